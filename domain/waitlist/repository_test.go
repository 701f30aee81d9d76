package waitlist

import (
	"context"
	"testing"

	"github.com/akeren/lore-anchor-waitlist/internal/models"
	apperrors "github.com/akeren/lore-anchor-waitlist/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.ModelRegistry...))
	return db
}

func TestWaitlistRepository_CreateAndCount(t *testing.T) {
	repo := NewWaitlistRepository(newTestDB(t))
	ctx := context.Background()

	count, err := repo.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	ref := "newsletter"
	require.NoError(t, repo.CreateEntry(ctx, &models.WaitlistEntry{Email: "a@b.com", RefSource: &ref}))
	require.NoError(t, repo.CreateEntry(ctx, &models.WaitlistEntry{Email: "c@d.com"}))

	count, err = repo.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestWaitlistRepository_StoresRefVerbatim(t *testing.T) {
	db := newTestDB(t)
	repo := NewWaitlistRepository(db)

	ref := "  Mixed Case ref  "
	require.NoError(t, repo.CreateEntry(context.Background(), &models.WaitlistEntry{Email: "a@b.com", RefSource: &ref}))
	require.NoError(t, repo.CreateEntry(context.Background(), &models.WaitlistEntry{Email: "b@b.com"}))

	var stored []models.WaitlistEntry
	require.NoError(t, db.Order("id").Find(&stored).Error)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].RefSource)
	assert.Equal(t, ref, *stored[0].RefSource)
	assert.Nil(t, stored[1].RefSource)
	assert.False(t, stored[0].CreatedAt.IsZero())
}

func TestWaitlistRepository_DuplicateEmailIsConflict(t *testing.T) {
	repo := NewWaitlistRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateEntry(ctx, &models.WaitlistEntry{Email: "a@b.com"}))

	err := repo.CreateEntry(ctx, &models.WaitlistEntry{Email: "a@b.com"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeConflict, apperrors.GetErrorType(err))

	// Uniqueness is case-sensitive.
	require.NoError(t, repo.CreateEntry(ctx, &models.WaitlistEntry{Email: "A@b.com"}))

	count, err := repo.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestWaitlistRepository_ClosedDatabase(t *testing.T) {
	db := newTestDB(t)
	repo := NewWaitlistRepository(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = repo.CountEntries(context.Background())
	assert.Equal(t, apperrors.ErrorTypeDatabaseError, apperrors.GetErrorType(err))

	err = repo.CreateEntry(context.Background(), &models.WaitlistEntry{Email: "a@b.com"})
	assert.Equal(t, apperrors.ErrorTypeDatabaseError, apperrors.GetErrorType(err))

	assert.Error(t, repo.Ping(context.Background()))
}

func TestWaitlistRepository_NilDB(t *testing.T) {
	repo := NewWaitlistRepository(nil)

	_, err := repo.CountEntries(context.Background())
	assert.Error(t, err)
	assert.Error(t, repo.CreateEntry(context.Background(), &models.WaitlistEntry{Email: "a@b.com"}))
	assert.Error(t, repo.Ping(context.Background()))
}
