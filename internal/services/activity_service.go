package services

import (
	"errors"

	"github.com/emberwell/emberwell-api/internal/models"
	"github.com/emberwell/emberwell-api/internal/streak"
	"github.com/emberwell/emberwell-api/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/hints"
)

// MarkActivityDate records one qualifying activity day for the user.
// Re-marking an already-recorded date is a no-op; the composite unique
// index backs the check against concurrent writers. Returns true when a
// new row was created.
func MarkActivityDate(db *gorm.DB, userID string, date types.LocalDate) (bool, error) {
	row := models.ActivityDate{UserID: userID, ActivityOn: date.String()}

	result := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("user_id = ? AND activity_on = ?", userID, date.String()).
		FirstOrCreate(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// GetActivityDates returns the user's full activity history sorted
// ascending.
func GetActivityDates(db *gorm.DB, userID string) ([]types.LocalDate, error) {
	var rows []models.ActivityDate
	err := db.Clauses(hints.CommentBefore("select", "activity_scan")).
		Where("user_id = ?", userID).
		Order("activity_on ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	dates := make([]types.LocalDate, len(rows))
	for i, r := range rows {
		dates[i] = types.LocalDate(r.ActivityOn)
	}
	return dates, nil
}

// CurrentStreak computes the consecutive-day streak ending today or
// yesterday by walking backward through the recorded dates.
func CurrentStreak(db *gorm.DB, userID string, today types.LocalDate) (int, error) {
	dates, err := GetActivityDates(db, userID)
	if err != nil {
		return 0, err
	}
	return streak.WalkBack(streak.DateSet(dates), today), nil
}

// AnalyzeStreak runs the full cycle decomposition over the user's history.
func AnalyzeStreak(db *gorm.DB, userID string, today types.LocalDate) (streak.Analysis, error) {
	dates, err := GetActivityDates(db, userID)
	if err != nil {
		return streak.Analysis{}, err
	}
	return streak.Analyze(dates, today), nil
}
