package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearWaitlistEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WAITLIST_STORE", "SQLITE_PATH", "SUPABASE_URL", "SUPABASE_KEY", "SUPABASE_TABLE", "SUPABASE_TIMEOUT",
		"NEXT_PUBLIC_SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_ANON_KEY", "WAITLIST_COUNT_CACHE_TTL",
		"WAITLIST_DEFAULT_LOCALE", "WAITLIST_REGISTER_RATE_LIMIT", "WAITLIST_BREAKER_FAILURES", "WAITLIST_BREAKER_RECOVERY",
	} {
		// Setenv registers the restore; Unsetenv makes the key absent for the test.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadWaitlistConfig_Defaults(t *testing.T) {
	clearWaitlistEnv(t)

	cfg, err := LoadWaitlistConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultWaitlistConfig(), cfg)
}

func TestLoadWaitlistConfig_Overrides(t *testing.T) {
	clearWaitlistEnv(t)
	t.Setenv("WAITLIST_STORE", " SQLite ")
	t.Setenv("SQLITE_PATH", "/tmp/waitlist.db")
	t.Setenv("WAITLIST_COUNT_CACHE_TTL", "0s")
	t.Setenv("WAITLIST_DEFAULT_LOCALE", "en")
	t.Setenv("WAITLIST_REGISTER_RATE_LIMIT", "5")

	cfg, err := LoadWaitlistConfig()
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/tmp/waitlist.db", cfg.SQLitePath)
	assert.Equal(t, time.Duration(0), cfg.CountCacheTTL)
	assert.Equal(t, "en", cfg.DefaultLocale)
	assert.Equal(t, 5, cfg.RegisterRateLimit)
}

func TestLoadWaitlistConfig_SupabaseFallsBackToPublicEnv(t *testing.T) {
	clearWaitlistEnv(t)
	t.Setenv("WAITLIST_STORE", "supabase")
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "\"https://demo.supabase.co\"")
	t.Setenv("NEXT_PUBLIC_SUPABASE_ANON_KEY", "anon-key")

	cfg, err := LoadWaitlistConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://demo.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "anon-key", cfg.Supabase.Key)
	assert.Equal(t, "waitlist", cfg.Supabase.Table)
}

func TestLoadWaitlistConfig_SupabaseRequiresCredentials(t *testing.T) {
	clearWaitlistEnv(t)
	t.Setenv("WAITLIST_STORE", "supabase")

	_, err := LoadWaitlistConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL")
	assert.Contains(t, err.Error(), "SUPABASE_KEY")
}

func TestLoadWaitlistConfig_RejectsUnknownStore(t *testing.T) {
	clearWaitlistEnv(t)
	t.Setenv("WAITLIST_STORE", "mongodb")

	_, err := LoadWaitlistConfig()
	assert.Error(t, err)
}
