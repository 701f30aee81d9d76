package models

import "time"

// WaitlistTableName matches the table created by migrations/000001_create_waitlist.up.sql.
const WaitlistTableName = "waitlist"

// WaitlistEntry is append-only: no UpdatedAt and no soft delete, so the row
// count is always the number of registrations.
type WaitlistEntry struct {
	ID        uint      `gorm:"primaryKey"`
	Email     string    `gorm:"not null;uniqueIndex:waitlist_email_key"`
	RefSource *string   `gorm:"column:ref_source"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (WaitlistEntry) TableName() string {
	return WaitlistTableName
}
