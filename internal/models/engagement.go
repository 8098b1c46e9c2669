package models

import (
	"time"
)

// ActivityDate marks one qualifying activity day for a user. Rows are
// append-only: created on the first qualifying action of the day, never
// updated, never deleted. The composite unique index makes re-marking a
// date a no-op.
type ActivityDate struct {
	ActivityID uint64 `gorm:"primaryKey;autoIncrement"`
	UserID     string `gorm:"type:char(36);not null;index:idx_user_activity_date,unique"`
	ActivityOn string `gorm:"size:10;not null;index:idx_user_activity_date,unique"`
	CreatedAt  time.Time
}

// Badge is a per-user award. Awarded at most once per (user, key); never
// deleted and never revoked, even if the streak later breaks.
type Badge struct {
	BadgeID   uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"type:char(36);not null;index:idx_user_badge_key,unique"`
	BadgeKey  string `gorm:"size:64;not null;index:idx_user_badge_key,unique"`
	EarnedAt  time.Time
	Metadata  JSON `gorm:"type:json"`
	Notified  bool `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for ActivityDate
func (ActivityDate) TableName() string {
	return "activity_dates"
}

// TableName overrides the table name for Badge
func (Badge) TableName() string {
	return "badges"
}
