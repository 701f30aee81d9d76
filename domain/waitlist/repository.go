package waitlist

import (
	"context"
	"errors"

	"github.com/akeren/lore-anchor-waitlist/internal/models"
	apperrors "github.com/akeren/lore-anchor-waitlist/pkg/errors"
	"gorm.io/gorm"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=waitlist

type WaitlistRepository interface {
	// CreateEntry inserts one entry; a duplicate email yields a conflict error.
	CreateEntry(ctx context.Context, entry *models.WaitlistEntry) error
	// CountEntries returns the number of stored entries.
	CountEntries(ctx context.Context) (int64, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

type waitlistRepository struct {
	db *gorm.DB
}

func NewWaitlistRepository(db *gorm.DB) WaitlistRepository {
	return &waitlistRepository{db: db}
}

func (wr *waitlistRepository) CreateEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	if wr.db == nil {
		return apperrors.NewDatabaseError("database is not configured", nil)
	}

	if err := wr.db.WithContext(ctx).Create(entry).Error; err != nil {
		if isDuplicateKey(err) {
			return apperrors.NewConflictError(MsgAlreadyRegistered, err)
		}
		return apperrors.NewDatabaseError(MsgRegistrationFailed, err)
	}

	return nil
}

func (wr *waitlistRepository) CountEntries(ctx context.Context) (int64, error) {
	if wr.db == nil {
		return 0, apperrors.NewDatabaseError("database is not configured", nil)
	}

	var count int64
	if err := wr.db.WithContext(ctx).Model(&models.WaitlistEntry{}).Count(&count).Error; err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	return count, nil
}

func (wr *waitlistRepository) Ping(ctx context.Context) error {
	if wr.db == nil {
		return apperrors.NewDatabaseError("database is not configured", nil)
	}

	sqlDB, err := wr.db.DB()
	if err != nil {
		return apperrors.NewDatabaseError("unable to access database handle", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.NewDatabaseError("database is unreachable", err)
	}

	return nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateKeyError(err)
}
