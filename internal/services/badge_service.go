package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/emberwell/emberwell-api/internal/models"
	"github.com/emberwell/emberwell-api/internal/streak"
	"github.com/emberwell/emberwell-api/internal/types"
	"gorm.io/gorm"
)

// Core badge keys, ordered by threshold.
const (
	BadgeDayZero     = "day_zero"
	BadgeSpark       = "spark"
	BadgePulse       = "pulse"
	BadgeAnchor      = "anchor"
	BadgeAligned     = "aligned"
	BadgeDisciplined = "disciplined"
	BadgeUnstoppable = "unstoppable"
	BadgeIntegrated  = "integrated"
	BadgeTitan       = "titan"
)

// Meta badge keys.
const (
	BadgeResilient  = "resilient"
	BadgeRelentless = "relentless"
)

// Admin-only badge keys, never awarded by the evaluator.
const (
	BadgeAmbassador = "ambassador"
	BadgeHallOfFame = "hall_of_fame"
)

// Meta badge qualification bounds.
const (
	resilientRebuildDays = 14
	relentlessCycleDays  = 30
	relentlessCycleCount = 3
)

// ThresholdBadge pairs a core badge key with the minimum consecutive-day
// streak that earns it.
type ThresholdBadge struct {
	Key       string
	Threshold int
}

// thresholdCatalog is immutable, process-wide configuration, ascending by
// threshold. day_zero is awarded unconditionally on first evaluation.
var thresholdCatalog = []ThresholdBadge{
	{BadgeDayZero, 0},
	{BadgeSpark, 3},
	{BadgePulse, 7},
	{BadgeAnchor, 30},
	{BadgeAligned, 90},
	{BadgeDisciplined, 100},
	{BadgeUnstoppable, 365},
	{BadgeIntegrated, 1000},
	{BadgeTitan, 3000},
}

// ThresholdCatalog returns a copy of the core badge catalog.
func ThresholdCatalog() []ThresholdBadge {
	out := make([]ThresholdBadge, len(thresholdCatalog))
	copy(out, thresholdCatalog)
	return out
}

// GetBadges returns every badge the user has earned, oldest first.
func GetBadges(db *gorm.DB, userID string) ([]models.Badge, error) {
	var badges []models.Badge
	err := db.Where("user_id = ?", userID).Order("earned_at ASC").Find(&badges).Error
	return badges, err
}

// getBadgeKeys returns the set of badge keys the user already holds.
func getBadgeKeys(db *gorm.DB, userID string) (map[string]struct{}, error) {
	var keys []string
	err := db.Model(&models.Badge{}).Where("user_id = ?", userID).Pluck("badge_key", &keys).Error
	if err != nil {
		return nil, err
	}

	held := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		held[k] = struct{}{}
	}
	return held, nil
}

// awardBadge creates the badge row if the user does not already hold it.
// The unique (user_id, badge_key) index guards the race between the check
// and the insert; a duplicate-key failure is reported as "not newly
// awarded", never as an error.
func awardBadge(db *gorm.DB, userID, key string, metadata interface{}) (bool, error) {
	var count int64
	if err := db.Model(&models.Badge{}).
		Where("user_id = ? AND badge_key = ?", userID, key).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	badge := models.Badge{
		UserID:   userID,
		BadgeKey: key,
		EarnedAt: time.Now().UTC(),
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return false, err
		}
		badge.Metadata.JSON = raw
	}

	if err := db.Create(&badge).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EvaluateBadges awards every badge the user newly qualifies for and
// returns the keys awarded by this call. Safe to call repeatedly: each
// award is an independent idempotent write, so a second evaluation with no
// new activity returns an empty slice. Surfacing to the client is a
// separate concern, see CollectFreshBadges.
func EvaluateBadges(db *gorm.DB, userID string, today types.LocalDate) ([]string, error) {
	held, err := getBadgeKeys(db, userID)
	if err != nil {
		return nil, err
	}

	dates, err := GetActivityDates(db, userID)
	if err != nil {
		return nil, err
	}
	currentStreak := streak.WalkBack(streak.DateSet(dates), today)

	awarded := []string{}
	award := func(key string, metadata interface{}) error {
		if _, ok := held[key]; ok {
			return nil
		}
		created, err := awardBadge(db, userID, key, metadata)
		if err != nil {
			return err
		}
		if created {
			awarded = append(awarded, key)
		}
		return nil
	}

	// Core threshold badges, ascending. A first evaluation at a 100-day
	// streak earns everything up to and including disciplined in one pass.
	for _, tb := range thresholdCatalog {
		if currentStreak >= tb.Threshold {
			if err := award(tb.Key, nil); err != nil {
				return nil, err
			}
		}
	}

	analysis := streak.Analyze(dates, today)

	// resilient: the user broke a streak and rebuilt the latest cycle to at
	// least 14 days.
	if analysis.HadBreak && len(analysis.Cycles) >= 2 {
		last := analysis.Cycles[len(analysis.Cycles)-1]
		if last.Length >= resilientRebuildDays {
			if err := award(BadgeResilient, nil); err != nil {
				return nil, err
			}
		}
	}

	// relentless: at least 3 separate cycles of 30+ days.
	longCycles := 0
	for _, c := range analysis.Cycles {
		if c.Length >= relentlessCycleDays {
			longCycles++
		}
	}
	if longCycles >= relentlessCycleCount {
		if err := award(BadgeRelentless, map[string]interface{}{"cycles": longCycles}); err != nil {
			return nil, err
		}
	}

	return awarded, nil
}

// CollectFreshBadges fetches badges not yet surfaced to a client, marks
// them notified, and returns them. "Notified" means returned by this call
// once; an award whose evaluation response was lost still resurfaces here.
func CollectFreshBadges(db *gorm.DB, userID string) ([]models.Badge, error) {
	var fresh []models.Badge

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND notified = ?", userID, false).
			Order("earned_at ASC").
			Find(&fresh).Error; err != nil {
			return err
		}
		if len(fresh) == 0 {
			return nil
		}

		ids := make([]uint64, len(fresh))
		for i, b := range fresh {
			ids[i] = b.BadgeID
		}
		return tx.Model(&models.Badge{}).
			Where("badge_id IN ?", ids).
			Update("notified", true).Error
	})
	if err != nil {
		return nil, err
	}

	return fresh, nil
}

// AwardAdminBadge grants an out-of-band badge (ambassador, hall_of_fame)
// to a user. Double-award is a guarded no-op; the bool reports whether the
// badge was newly granted.
func AwardAdminBadge(db *gorm.DB, userID, key string) (bool, error) {
	if key != BadgeAmbassador && key != BadgeHallOfFame {
		return false, &types.ValidationError{Field: "key", Reason: fmt.Sprintf("%q is not an admin badge", key)}
	}
	return awardBadge(db, userID, key, nil)
}
