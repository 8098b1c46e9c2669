package models

import (
	"time"
)

// Project (of heart) statuses. A user holds at most one project in each of
// the three open slots; terminal rows accumulate as history.
const (
	StatusActive      = "active"
	StatusNext        = "next"
	StatusHorizon     = "horizon"
	StatusCompleted   = "completed"
	StatusClosedEarly = "closed_early"
)

// Project categories. CategoryOther carries free text in CustomCategory.
const (
	CategoryCareer        = "career"
	CategoryHealth        = "health"
	CategoryRelationships = "relationships"
	CategoryWealth        = "wealth"
	CategoryOther         = "other"
)

// Field limits enforced before any store write.
const (
	TitleMaxLen      = 120
	WhyMaxLen        = 500
	MilestoneTextMax = 200
	MaxMilestones    = 5
	MaxActions       = 3
	VisionImageSlots = 3
	ReflectionMinLen = 20
	RatingMax        = 10
)

// ProjectOfHeart is a user-defined personal goal occupying one slot of the
// active/next/horizon pipeline. VisionImages holds up to three object-store
// references as a JSON array.
type ProjectOfHeart struct {
	ProjectID         string `gorm:"type:char(36);primaryKey"`
	UserID            string `gorm:"type:char(36);not null;index:idx_user_status"`
	Title             string `gorm:"size:120;not null"`
	Why               string `gorm:"size:500"`
	Category          string `gorm:"size:32;not null"`
	CustomCategory    string `gorm:"size:120"`
	Status            string `gorm:"size:16;not null;index:idx_user_status"`
	StartedAt         *time.Time
	EndedAt           *time.Time
	ClosingReflection string `gorm:"size:2000"`
	VisionImages      JSON   `gorm:"type:json"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Milestones        []Milestone  `gorm:"foreignKey:ProjectID"`
	Actions           []ActionItem `gorm:"foreignKey:ProjectID"`
}

// Milestone belongs to one project. Once achieved the text is locked and
// the achievement never reverts.
type Milestone struct {
	MilestoneID string `gorm:"type:char(36);primaryKey"`
	ProjectID   string `gorm:"type:char(36);not null;index"`
	Text        string `gorm:"size:200;not null"`
	Achieved    bool   `gorm:"not null;default:false"`
	AchievedAt  *time.Time
	OrderIndex  int `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActionItem is one of up to three concrete next actions on a project.
// Updates replace the whole set.
type ActionItem struct {
	ActionID   uint64 `gorm:"primaryKey;autoIncrement"`
	ProjectID  string `gorm:"type:char(36);not null;index"`
	Text       string `gorm:"size:500;not null"`
	OrderIndex int    `gorm:"not null;default:0"`
	CreatedAt  time.Time
}

// DailyRating is one 0-10 rating per user per calendar day, attached to
// whichever project was active. Unique on (user, date) so a same-day
// re-rate updates in place.
type DailyRating struct {
	RatingID  uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"type:char(36);not null;index:idx_user_rating_date,unique"`
	ProjectID string `gorm:"type:char(36);not null;index"`
	LocalDate string `gorm:"size:10;not null;index:idx_user_rating_date,unique"`
	Rating    int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for ProjectOfHeart
func (ProjectOfHeart) TableName() string {
	return "projects_of_heart"
}

// TableName overrides the table name for Milestone
func (Milestone) TableName() string {
	return "project_milestones"
}

// TableName overrides the table name for ActionItem
func (ActionItem) TableName() string {
	return "project_actions"
}

// TableName overrides the table name for DailyRating
func (DailyRating) TableName() string {
	return "daily_ratings"
}
