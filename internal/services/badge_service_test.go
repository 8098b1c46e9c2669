package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/emberwell/emberwell-api/internal/models"
	"github.com/emberwell/emberwell-api/internal/services"
	"github.com/emberwell/emberwell-api/internal/types"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.ActivityDate{},
		&models.Badge{},
		&models.ProjectOfHeart{},
		&models.Milestone{},
		&models.ActionItem{},
		&models.DailyRating{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// markRange marks consecutive activity days from start for n days
func markRange(t *testing.T, db *gorm.DB, userID string, start types.LocalDate, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := services.MarkActivityDate(db, userID, start.AddDays(i)); err != nil {
			t.Fatalf("Failed to mark activity date: %v", err)
		}
	}
}

func badgeKeys(badges []models.Badge) []string {
	keys := make([]string, len(badges))
	for i, b := range badges {
		keys[i] = b.BadgeKey
	}
	return keys
}

func hasKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// TestEvaluateBadgesFirstDay verifies day_zero on first evaluation
func TestEvaluateBadgesFirstDay(t *testing.T) {
	db := setupTestDB(t)
	userID := "11111111-1111-1111-1111-111111111111"
	today, _ := types.ParseLocalDate("2026-08-31")

	markRange(t, db, userID, today, 1)

	awarded, err := services.EvaluateBadges(db, userID, today)
	if err != nil {
		t.Fatalf("EvaluateBadges failed: %v", err)
	}
	if !hasKey(awarded, services.BadgeDayZero) {
		t.Errorf("Expected day_zero in awards, got %v", awarded)
	}
	if hasKey(awarded, services.BadgeSpark) {
		t.Errorf("spark should not be awarded on a 1-day streak")
	}
}

// TestEvaluateBadgesMultiAward verifies a long first streak earns every
// threshold badge below it in one pass
func TestEvaluateBadgesMultiAward(t *testing.T) {
	db := setupTestDB(t)
	userID := "22222222-2222-2222-2222-222222222222"
	start, _ := types.ParseLocalDate("2026-01-01")
	days := 100
	today := start.AddDays(days - 1)

	markRange(t, db, userID, start, days)

	awarded, err := services.EvaluateBadges(db, userID, today)
	if err != nil {
		t.Fatalf("EvaluateBadges failed: %v", err)
	}

	for _, key := range []string{
		services.BadgeDayZero,
		services.BadgeSpark,
		services.BadgePulse,
		services.BadgeAnchor,
		services.BadgeAligned,
		services.BadgeDisciplined,
	} {
		if !hasKey(awarded, key) {
			t.Errorf("Expected %s in awards, got %v", key, awarded)
		}
	}
	if hasKey(awarded, services.BadgeUnstoppable) {
		t.Errorf("unstoppable should not be awarded at 100 days")
	}
}

// TestEvaluateBadgesIdempotent verifies that re-evaluation with no new
// activity awards nothing
func TestEvaluateBadgesIdempotent(t *testing.T) {
	db := setupTestDB(t)
	userID := "33333333-3333-3333-3333-333333333333"
	start, _ := types.ParseLocalDate("2026-06-01")
	today := start.AddDays(6)

	markRange(t, db, userID, start, 7)

	first, err := services.EvaluateBadges(db, userID, today)
	if err != nil {
		t.Fatalf("First evaluation failed: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("Expected awards on first evaluation")
	}

	second, err := services.EvaluateBadges(db, userID, today)
	if err != nil {
		t.Fatalf("Second evaluation failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("Expected no awards on re-evaluation, got %v", second)
	}

	// Exactly one row per key
	badges, err := services.GetBadges(db, userID)
	if err != nil {
		t.Fatalf("GetBadges failed: %v", err)
	}
	seen := map[string]int{}
	for _, b := range badges {
		seen[b.BadgeKey]++
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("Expected one %s badge, got %d", k, n)
		}
	}
}

// TestEvaluateBadgesResilient verifies the break-and-rebuild badge
func TestEvaluateBadgesResilient(t *testing.T) {
	db := setupTestDB(t)
	userID := "44444444-4444-4444-4444-444444444444"
	start, _ := types.ParseLocalDate("2026-01-01")

	// 5-day cycle, 3-day gap, then a 14-day rebuild
	markRange(t, db, userID, start, 5)
	rebuildStart := start.AddDays(8)
	markRange(t, db, userID, rebuildStart, 14)
	today := rebuildStart.AddDays(13)

	awarded, err := services.EvaluateBadges(db, userID, today)
	if err != nil {
		t.Fatalf("EvaluateBadges failed: %v", err)
	}
	if !hasKey(awarded, services.BadgeResilient) {
		t.Errorf("Expected resilient in awards, got %v", awarded)
	}
}

// TestEvaluateBadgesRelentless verifies three 30-day cycles earn relentless
func TestEvaluateBadgesRelentless(t *testing.T) {
	db := setupTestDB(t)
	userID := "55555555-5555-5555-5555-555555555555"
	start, _ := types.ParseLocalDate("2025-01-01")

	cursor := start
	for i := 0; i < 3; i++ {
		markRange(t, db, userID, cursor, 30)
		cursor = cursor.AddDays(35)
	}
	today := cursor.AddDays(-6) // last marked day

	awarded, err := services.EvaluateBadges(db, userID, today)
	if err != nil {
		t.Fatalf("EvaluateBadges failed: %v", err)
	}
	if !hasKey(awarded, services.BadgeRelentless) {
		t.Errorf("Expected relentless in awards, got %v", awarded)
	}
}

// TestCollectFreshBadges verifies fresh badges surface exactly once
func TestCollectFreshBadges(t *testing.T) {
	db := setupTestDB(t)
	userID := "66666666-6666-6666-6666-666666666666"
	today, _ := types.ParseLocalDate("2026-08-31")

	markRange(t, db, userID, today.AddDays(-2), 3)
	if _, err := services.EvaluateBadges(db, userID, today); err != nil {
		t.Fatalf("EvaluateBadges failed: %v", err)
	}

	fresh, err := services.CollectFreshBadges(db, userID)
	if err != nil {
		t.Fatalf("CollectFreshBadges failed: %v", err)
	}
	if len(fresh) == 0 {
		t.Fatal("Expected fresh badges after evaluation")
	}
	if !hasKey(badgeKeys(fresh), services.BadgeSpark) {
		t.Errorf("Expected spark among fresh badges, got %v", badgeKeys(fresh))
	}

	again, err := services.CollectFreshBadges(db, userID)
	if err != nil {
		t.Fatalf("Second CollectFreshBadges failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Expected no fresh badges on second collect, got %v", badgeKeys(again))
	}
}

// TestAwardAdminBadge verifies the admin grant path and its key allowlist
func TestAwardAdminBadge(t *testing.T) {
	db := setupTestDB(t)
	userID := "77777777-7777-7777-7777-777777777777"

	created, err := services.AwardAdminBadge(db, userID, services.BadgeAmbassador)
	if err != nil {
		t.Fatalf("AwardAdminBadge failed: %v", err)
	}
	if !created {
		t.Error("Expected ambassador to be newly granted")
	}

	// Double grant is a no-op
	created, err = services.AwardAdminBadge(db, userID, services.BadgeAmbassador)
	if err != nil {
		t.Fatalf("Second AwardAdminBadge failed: %v", err)
	}
	if created {
		t.Error("Expected double grant to report not created")
	}

	// Core badges cannot be granted by hand
	var validationErr *types.ValidationError
	_, err = services.AwardAdminBadge(db, userID, services.BadgeSpark)
	if err == nil {
		t.Fatal("Expected error granting a core badge")
	}
	if !errors.As(err, &validationErr) {
		t.Errorf("Expected ValidationError, got %T", err)
	}
}

// TestMarkActivityDateIdempotent verifies re-marking a date is a no-op
func TestMarkActivityDateIdempotent(t *testing.T) {
	db := setupTestDB(t)
	userID := "88888888-8888-8888-8888-888888888888"
	today, _ := types.ParseLocalDate("2026-08-31")

	created, err := services.MarkActivityDate(db, userID, today)
	if err != nil {
		t.Fatalf("MarkActivityDate failed: %v", err)
	}
	if !created {
		t.Error("Expected first mark to create a row")
	}

	created, err = services.MarkActivityDate(db, userID, today)
	if err != nil {
		t.Fatalf("Second MarkActivityDate failed: %v", err)
	}
	if created {
		t.Error("Expected second mark to be a no-op")
	}

	dates, err := services.GetActivityDates(db, userID)
	if err != nil {
		t.Fatalf("GetActivityDates failed: %v", err)
	}
	if len(dates) != 1 {
		t.Errorf("Expected one activity row, got %d", len(dates))
	}
}

// TestCurrentStreakGap verifies yesterday grace and broken streaks
func TestCurrentStreakGap(t *testing.T) {
	db := setupTestDB(t)
	userID := "99999999-9999-9999-9999-999999999999"
	start, _ := types.ParseLocalDate("2026-08-20")
	markRange(t, db, userID, start, 5) // through 08-24

	// Yesterday grace: streak holds the day after the last mark
	streakLen, err := services.CurrentStreak(db, userID, start.AddDays(5))
	if err != nil {
		t.Fatalf("CurrentStreak failed: %v", err)
	}
	if streakLen != 5 {
		t.Errorf("Expected streak 5 with yesterday grace, got %d", streakLen)
	}

	// Two days after the last mark the streak is gone
	streakLen, err = services.CurrentStreak(db, userID, start.AddDays(6))
	if err != nil {
		t.Fatalf("CurrentStreak failed: %v", err)
	}
	if streakLen != 0 {
		t.Errorf("Expected streak 0 after a gap, got %d", streakLen)
	}
}

// TestDuplicateBadgeKeyTranslation verifies the unique index behind the
// award race guard surfaces as gorm.ErrDuplicatedKey, not a raw driver
// error. awardBadge depends on this to report a lost race as "not newly
// awarded".
func TestDuplicateBadgeKeyTranslation(t *testing.T) {
	db := setupTestDB(t)
	userID := "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"

	badge := models.Badge{UserID: userID, BadgeKey: "day_zero", EarnedAt: time.Now().UTC()}
	if err := db.Create(&badge).Error; err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	dup := models.Badge{UserID: userID, BadgeKey: "day_zero", EarnedAt: time.Now().UTC()}
	err := db.Create(&dup).Error
	if err == nil {
		t.Fatal("Expected duplicate badge insert to fail")
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("Expected gorm.ErrDuplicatedKey, got %v", err)
	}
}

// TestDuplicateActivityDateTranslation covers the same guard for
// concurrent activity marks on one date.
func TestDuplicateActivityDateTranslation(t *testing.T) {
	db := setupTestDB(t)
	userID := "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"

	first := models.ActivityDate{UserID: userID, ActivityOn: "2026-08-31"}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	dup := models.ActivityDate{UserID: userID, ActivityOn: "2026-08-31"}
	err := db.Create(&dup).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("Expected gorm.ErrDuplicatedKey, got %v", err)
	}
}
