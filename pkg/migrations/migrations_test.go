package migrations

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
}

func (l *recordingLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

type fakeMigrator struct {
	upErr      error
	stepsErr   error
	steps      []int
	version    uint
	dirty      bool
	versionErr error
	closed     atomic.Bool
}

func (m *fakeMigrator) Up() error { return m.upErr }
func (m *fakeMigrator) Steps(n int) error {
	m.steps = append(m.steps, n)
	return m.stepsErr
}
func (m *fakeMigrator) Version() (uint, bool, error) { return m.version, m.dirty, m.versionErr }
func (m *fakeMigrator) Close() (error, error) {
	m.closed.Store(true)
	return nil, nil
}

// stalledMigrator blocks every operation until Close is called.
type stalledMigrator struct {
	release chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func (m *stalledMigrator) Up() error                    { <-m.release; return nil }
func (m *stalledMigrator) Steps(int) error              { return m.Up() }
func (m *stalledMigrator) Version() (uint, bool, error) { return 0, false, m.Up() }
func (m *stalledMigrator) Close() (error, error) {
	m.once.Do(func() {
		m.closed.Store(true)
		close(m.release)
	})
	return nil, nil
}

// stub swaps the package factories for the duration of the test and records
// the source URL and config they receive.
type stub struct {
	sourceURL string
	cfg       Config
	built     atomic.Bool
}

func stubFactories(t *testing.T, m migrator, initErr error) *stub {
	t.Helper()
	origDriver, origMigrator := driverFactory, migratorFactory
	t.Cleanup(func() {
		driverFactory, migratorFactory = origDriver, origMigrator
	})

	s := &stub{}
	driverFactory = func(_ *sql.DB, cfg Config) (database.Driver, error) {
		s.built.Store(true)
		s.cfg = cfg
		return nil, nil
	}
	migratorFactory = func(sourceURL string, _ database.Driver) (migrator, error) {
		s.sourceURL = sourceURL
		if initErr != nil {
			return nil, initErr
		}
		return m, nil
	}
	return s
}

func TestRun_RejectsNilDB(t *testing.T) {
	require.ErrorContains(t, Up(context.Background(), nil, Config{}), "db is nil")
	_, err := Version(context.Background(), nil, Config{})
	require.Error(t, err)
}

func TestRun_CancelledContextBuildsNothing(t *testing.T) {
	s := stubFactories(t, &fakeMigrator{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Up(ctx, &sql.DB{}, Config{Dir: t.TempDir()}), context.Canceled)
	assert.False(t, s.built.Load())
}

func TestRun_DeadlineClosesStalledMigrator(t *testing.T) {
	m := &stalledMigrator{release: make(chan struct{})}
	stubFactories(t, m, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, Down(ctx, &sql.DB{}, Config{Dir: t.TempDir()}), context.DeadlineExceeded)
	assert.True(t, m.closed.Load())
}

func TestRun_DefaultsAndSourceURL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "waitlist migrations")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	s := stubFactories(t, m, nil)

	require.NoError(t, Up(context.Background(), &sql.DB{}, Config{Dir: dir}))

	assert.Equal(t, "schema_migrations", s.cfg.MigrationsTable)
	assert.True(t, m.closed.Load())

	parsed, err := url.Parse(s.sourceURL)
	require.NoError(t, err)
	abs, _ := filepath.Abs(dir)
	assert.Equal(t, "file", parsed.Scheme)
	assert.Equal(t, filepath.ToSlash(abs), parsed.Path)
}

func TestRun_WrapsInitError(t *testing.T) {
	stubFactories(t, nil, errors.New("boom"))

	assert.ErrorContains(t, Up(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()}), "migrations: init")
}

func TestUp(t *testing.T) {
	tests := []struct {
		name    string
		upErr   error
		wantErr string
		wantLog string
	}{
		{name: "applies pending", wantLog: "Migrations applied successfully"},
		{name: "nothing pending", upErr: migrate.ErrNoChange, wantLog: "No migrations to apply"},
		{name: "failure is wrapped", upErr: errors.New("bad sql"), wantErr: "migrations: up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubFactories(t, &fakeMigrator{upErr: tt.upErr}, nil)
			logger := &recordingLogger{}

			err := Up(context.Background(), &sql.DB{}, Config{Dir: t.TempDir(), Logger: logger})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, logger.infos, tt.wantLog)
		})
	}
}

func TestDown(t *testing.T) {
	t.Run("rolls back one step", func(t *testing.T) {
		m := &fakeMigrator{}
		stubFactories(t, m, nil)

		require.NoError(t, Down(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()}))
		assert.Equal(t, []int{-1}, m.steps)
	})

	t.Run("nothing to roll back", func(t *testing.T) {
		stubFactories(t, &fakeMigrator{stepsErr: migrate.ErrNoChange}, nil)
		assert.NoError(t, Down(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()}))
	})

	t.Run("failure is wrapped", func(t *testing.T) {
		stubFactories(t, &fakeMigrator{stepsErr: errors.New("boom")}, nil)
		assert.ErrorContains(t, Down(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()}), "migrations: down")
	})
}

func TestVersion(t *testing.T) {
	tests := []struct {
		name     string
		migrator *fakeMigrator
		expected Status
	}{
		{name: "applied", migrator: &fakeMigrator{version: 1}, expected: Status{Version: 1, Applied: true}},
		{name: "dirty", migrator: &fakeMigrator{version: 2, dirty: true}, expected: Status{Version: 2, Dirty: true, Applied: true}},
		{name: "nothing applied", migrator: &fakeMigrator{versionErr: migrate.ErrNilVersion}, expected: Status{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubFactories(t, tt.migrator, nil)

			status, err := Version(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, status)
		})
	}
}
