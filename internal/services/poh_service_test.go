package services_test

import (
	"errors"
	"testing"

	"github.com/emberwell/emberwell-api/internal/models"
	"github.com/emberwell/emberwell-api/internal/services"
	"github.com/emberwell/emberwell-api/internal/types"
	"gorm.io/gorm"
)

const testReflection = "This project taught me more than I expected to learn."

func createProject(t *testing.T, db *gorm.DB, userID, title string) *models.ProjectOfHeart {
	t.Helper()
	project, err := services.CreateProject(db, userID, services.CreateProjectInput{
		Title:    title,
		Why:      "Because it matters",
		Category: models.CategoryHealth,
	})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	return project
}

// TestCreateProjectSlotOrder verifies slots fill active, next, horizon and
// a fourth create is rejected
func TestCreateProjectSlotOrder(t *testing.T) {
	db := setupTestDB(t)
	userID := "a1111111-1111-1111-1111-111111111111"

	first := createProject(t, db, userID, "First")
	if first.Status != models.StatusActive {
		t.Errorf("Expected first project active, got %s", first.Status)
	}
	if first.StartedAt == nil {
		t.Error("Expected StartedAt stamped on active creation")
	}

	second := createProject(t, db, userID, "Second")
	if second.Status != models.StatusNext {
		t.Errorf("Expected second project next, got %s", second.Status)
	}
	if second.StartedAt != nil {
		t.Error("Expected no StartedAt on next creation")
	}

	third := createProject(t, db, userID, "Third")
	if third.Status != models.StatusHorizon {
		t.Errorf("Expected third project horizon, got %s", third.Status)
	}

	_, err := services.CreateProject(db, userID, services.CreateProjectInput{
		Title:    "Fourth",
		Category: models.CategoryCareer,
	})
	if err == nil {
		t.Fatal("Expected fourth create to fail")
	}
	var capErr *types.CapacityError
	if !errors.As(err, &capErr) {
		t.Errorf("Expected CapacityError, got %T", err)
	}
}

// TestCreateProjectValidation verifies field validation on create
func TestCreateProjectValidation(t *testing.T) {
	db := setupTestDB(t)
	userID := "a2222222-2222-2222-2222-222222222222"

	cases := []struct {
		name string
		in   services.CreateProjectInput
	}{
		{"empty title", services.CreateProjectInput{Title: "  ", Category: models.CategoryHealth}},
		{"unknown category", services.CreateProjectInput{Title: "Run", Category: "sports"}},
		{"other without custom", services.CreateProjectInput{Title: "Run", Category: models.CategoryOther}},
	}
	for _, tc := range cases {
		_, err := services.CreateProject(db, userID, tc.in)
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		var validationErr *types.ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("%s: expected ValidationError, got %T", tc.name, err)
		}
	}
}

// TestCompleteProjectCascade verifies the promotion cascade runs on
// completion: next becomes active with StartedAt stamped, horizon becomes
// next without one
func TestCompleteProjectCascade(t *testing.T) {
	db := setupTestDB(t)
	userID := "a3333333-3333-3333-3333-333333333333"

	active := createProject(t, db, userID, "Active")
	next := createProject(t, db, userID, "Next")
	horizon := createProject(t, db, userID, "Horizon")

	finished, err := services.CompleteProject(db, userID, active.ProjectID, testReflection)
	if err != nil {
		t.Fatalf("CompleteProject failed: %v", err)
	}
	if finished.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", finished.Status)
	}
	if finished.EndedAt == nil {
		t.Error("Expected EndedAt stamped")
	}

	var promoted models.ProjectOfHeart
	if err := db.First(&promoted, "project_id = ?", next.ProjectID).Error; err != nil {
		t.Fatalf("Failed to reload next project: %v", err)
	}
	if promoted.Status != models.StatusActive {
		t.Errorf("Expected next promoted to active, got %s", promoted.Status)
	}
	if promoted.StartedAt == nil {
		t.Error("Expected StartedAt stamped on promotion to active")
	}

	var shifted models.ProjectOfHeart
	if err := db.First(&shifted, "project_id = ?", horizon.ProjectID).Error; err != nil {
		t.Fatalf("Failed to reload horizon project: %v", err)
	}
	if shifted.Status != models.StatusNext {
		t.Errorf("Expected horizon shifted to next, got %s", shifted.Status)
	}
	if shifted.StartedAt != nil {
		t.Error("Expected no StartedAt on shift to next")
	}

	// The vacated horizon slot accepts a new project
	refill := createProject(t, db, userID, "Refill")
	if refill.Status != models.StatusHorizon {
		t.Errorf("Expected refill in horizon, got %s", refill.Status)
	}
}

// TestFinishProjectGuards verifies reflection length and active-only rules
func TestFinishProjectGuards(t *testing.T) {
	db := setupTestDB(t)
	userID := "a4444444-4444-4444-4444-444444444444"

	createProject(t, db, userID, "Active")
	next := createProject(t, db, userID, "Next")

	_, err := services.CloseProject(db, userID, next.ProjectID, testReflection)
	if err == nil {
		t.Fatal("Expected close to fail on a non-active project")
	}
	var stateErr *types.StateConflictError
	if !errors.As(err, &stateErr) {
		t.Errorf("Expected StateConflictError, got %T", err)
	}

	active := []models.ProjectOfHeart{}
	db.Where("user_id = ? AND status = ?", userID, models.StatusActive).Find(&active)
	_, err = services.CompleteProject(db, userID, active[0].ProjectID, "too short")
	if err == nil {
		t.Fatal("Expected complete to fail on a short reflection")
	}
	var validationErr *types.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("Expected ValidationError, got %T", err)
	}
}

// TestUpdateProjectRules verifies the field edit rules per status
func TestUpdateProjectRules(t *testing.T) {
	db := setupTestDB(t)
	userID := "a5555555-5555-5555-5555-555555555555"

	createProject(t, db, userID, "Active")
	next := createProject(t, db, userID, "Next")

	// Title edits are allowed on any open project
	newTitle := "Renamed"
	updated, err := services.UpdateProject(db, userID, next.ProjectID, services.UpdateProjectInput{Title: &newTitle})
	if err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	if updated.Title != newTitle {
		t.Errorf("Expected title %q, got %q", newTitle, updated.Title)
	}

	// Why edits are active-only
	newWhy := "A deeper reason"
	_, err = services.UpdateProject(db, userID, next.ProjectID, services.UpdateProjectInput{Why: &newWhy})
	if err == nil {
		t.Fatal("Expected why edit to fail on a next project")
	}
	var stateErr *types.StateConflictError
	if !errors.As(err, &stateErr) {
		t.Errorf("Expected StateConflictError, got %T", err)
	}

	// Terminal projects are immutable
	active := []models.ProjectOfHeart{}
	db.Where("user_id = ? AND status = ?", userID, models.StatusActive).Find(&active)
	if _, err := services.CompleteProject(db, userID, active[0].ProjectID, testReflection); err != nil {
		t.Fatalf("CompleteProject failed: %v", err)
	}
	_, err = services.UpdateProject(db, userID, active[0].ProjectID, services.UpdateProjectInput{Title: &newTitle})
	if err == nil {
		t.Fatal("Expected edit to fail on a completed project")
	}
}

// TestUpdateProjectCategoryClearsCustom verifies moving off "other"
// drops the free-text category
func TestUpdateProjectCategoryClearsCustom(t *testing.T) {
	db := setupTestDB(t)
	userID := "a6666666-6666-6666-6666-666666666666"

	project, err := services.CreateProject(db, userID, services.CreateProjectInput{
		Title:          "Woodworking",
		Why:            "Because it matters",
		Category:       models.CategoryOther,
		CustomCategory: "craft",
	})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	health := models.CategoryHealth
	updated, err := services.UpdateProject(db, userID, project.ProjectID, services.UpdateProjectInput{Category: &health})
	if err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	if updated.Category != models.CategoryHealth {
		t.Errorf("Expected category %q, got %q", models.CategoryHealth, updated.Category)
	}
	if updated.CustomCategory != "" {
		t.Errorf("Expected custom category cleared, got %q", updated.CustomCategory)
	}

	// Moving back to "other" still requires the custom text
	other := models.CategoryOther
	_, err = services.UpdateProject(db, userID, project.ProjectID, services.UpdateProjectInput{Category: &other})
	var validationErr *types.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

// TestMilestoneLifecycle verifies the cap, the achieve lock and ordering
func TestMilestoneLifecycle(t *testing.T) {
	db := setupTestDB(t)
	userID := "a6666666-6666-6666-6666-666666666666"
	project := createProject(t, db, userID, "Active")

	for i := 0; i < models.MaxMilestones; i++ {
		m, err := services.AddMilestone(db, userID, project.ProjectID, "Milestone")
		if err != nil {
			t.Fatalf("AddMilestone %d failed: %v", i, err)
		}
		if m.OrderIndex != i {
			t.Errorf("Expected order index %d, got %d", i, m.OrderIndex)
		}
	}

	_, err := services.AddMilestone(db, userID, project.ProjectID, "One too many")
	if err == nil {
		t.Fatal("Expected sixth milestone to fail")
	}
	var capErr *types.CapacityError
	if !errors.As(err, &capErr) {
		t.Errorf("Expected CapacityError, got %T", err)
	}

	var milestones []models.Milestone
	db.Where("project_id = ?", project.ProjectID).Order("order_index ASC").Find(&milestones)

	achieved, err := services.AchieveMilestone(db, userID, milestones[0].MilestoneID)
	if err != nil {
		t.Fatalf("AchieveMilestone failed: %v", err)
	}
	if !achieved.Achieved || achieved.AchievedAt == nil {
		t.Error("Expected milestone marked achieved with a timestamp")
	}

	// Achieved milestones are locked for edits and re-achieves
	if _, err := services.EditMilestone(db, userID, milestones[0].MilestoneID, "Rewrite"); err == nil {
		t.Error("Expected edit of achieved milestone to fail")
	}
	if _, err := services.AchieveMilestone(db, userID, milestones[0].MilestoneID); err == nil {
		t.Error("Expected re-achieve to fail")
	}

	// Unachieved milestones still editable
	edited, err := services.EditMilestone(db, userID, milestones[1].MilestoneID, "Rewritten")
	if err != nil {
		t.Fatalf("EditMilestone failed: %v", err)
	}
	if edited.Text != "Rewritten" {
		t.Errorf("Expected rewritten text, got %q", edited.Text)
	}
}

// TestReplaceActions verifies full replacement semantics and the cap
func TestReplaceActions(t *testing.T) {
	db := setupTestDB(t)
	userID := "a7777777-7777-7777-7777-777777777777"
	project := createProject(t, db, userID, "Active")

	actions, err := services.ReplaceActions(db, userID, project.ProjectID, []string{"One", "Two", "Three"})
	if err != nil {
		t.Fatalf("ReplaceActions failed: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("Expected 3 actions, got %d", len(actions))
	}

	actions, err = services.ReplaceActions(db, userID, project.ProjectID, []string{"Only"})
	if err != nil {
		t.Fatalf("Second ReplaceActions failed: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("Expected 1 action after replacement, got %d", len(actions))
	}

	var count int64
	db.Model(&models.ActionItem{}).Where("project_id = ?", project.ProjectID).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 action row after replacement, got %d", count)
	}

	_, err = services.ReplaceActions(db, userID, project.ProjectID, []string{"1", "2", "3", "4"})
	if err == nil {
		t.Fatal("Expected four actions to fail")
	}
	var capErr *types.CapacityError
	if !errors.As(err, &capErr) {
		t.Errorf("Expected CapacityError, got %T", err)
	}
}

// TestRateDay verifies rating bounds, current-date-only and the same-day
// upsert
func TestRateDay(t *testing.T) {
	db := setupTestDB(t)
	userID := "a8888888-8888-8888-8888-888888888888"
	project := createProject(t, db, userID, "Active")
	today, _ := types.ParseLocalDate("2026-08-31")

	_, err := services.RateDay(db, userID, project.ProjectID, 11, today, today)
	if err == nil {
		t.Fatal("Expected rating 11 to fail")
	}

	_, err = services.RateDay(db, userID, project.ProjectID, 5, today.AddDays(-1), today)
	if err == nil {
		t.Fatal("Expected backdated rating to fail")
	}
	var stateErr *types.StateConflictError
	if !errors.As(err, &stateErr) {
		t.Errorf("Expected StateConflictError, got %T", err)
	}

	first, err := services.RateDay(db, userID, project.ProjectID, 7, today, today)
	if err != nil {
		t.Fatalf("RateDay failed: %v", err)
	}
	if first.Rating != 7 {
		t.Errorf("Expected rating 7, got %d", first.Rating)
	}

	second, err := services.RateDay(db, userID, project.ProjectID, 9, today, today)
	if err != nil {
		t.Fatalf("Second RateDay failed: %v", err)
	}
	if second.Rating != 9 {
		t.Errorf("Expected rating 9, got %d", second.Rating)
	}

	var count int64
	db.Model(&models.DailyRating{}).Where("user_id = ?", userID).Count(&count)
	if count != 1 {
		t.Errorf("Expected one rating row, got %d", count)
	}
}

// TestOwnershipUniformNotFound verifies cross-user access and missing rows
// are indistinguishable
func TestOwnershipUniformNotFound(t *testing.T) {
	db := setupTestDB(t)
	owner := "a9999999-9999-9999-9999-999999999999"
	stranger := "ab111111-1111-1111-1111-111111111111"
	project := createProject(t, db, owner, "Private")

	newTitle := "Hijacked"
	_, crossErr := services.UpdateProject(db, stranger, project.ProjectID, services.UpdateProjectInput{Title: &newTitle})
	_, missingErr := services.UpdateProject(db, stranger, "00000000-0000-0000-0000-000000000000", services.UpdateProjectInput{Title: &newTitle})

	if !errors.Is(crossErr, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for cross-user access, got %v", crossErr)
	}
	if !errors.Is(missingErr, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing project, got %v", missingErr)
	}
}

// TestSetVisionImage verifies slot bounds and overwrite
func TestSetVisionImage(t *testing.T) {
	db := setupTestDB(t)
	userID := "ac111111-1111-1111-1111-111111111111"
	project := createProject(t, db, userID, "Active")

	if err := services.SetVisionImage(db, userID, project.ProjectID, 3, "media/x.jpg"); err == nil {
		t.Error("Expected slot 3 to fail")
	}

	if err := services.SetVisionImage(db, userID, project.ProjectID, 1, "media/a.jpg"); err != nil {
		t.Fatalf("SetVisionImage failed: %v", err)
	}
	if err := services.SetVisionImage(db, userID, project.ProjectID, 1, "media/b.jpg"); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	pipeline, err := services.GetPipeline(db, userID)
	if err != nil {
		t.Fatalf("GetPipeline failed: %v", err)
	}
	if len(pipeline) != 1 {
		t.Fatalf("Expected one open project, got %d", len(pipeline))
	}
	got := string(pipeline[0].VisionImages.JSON)
	want := `["","media/b.jpg",""]`
	if got != want {
		t.Errorf("Expected vision slots %s, got %s", want, got)
	}
}

// TestPipelineAndHistoryOrder verifies slot ordering and history split
func TestPipelineAndHistoryOrder(t *testing.T) {
	db := setupTestDB(t)
	userID := "ad111111-1111-1111-1111-111111111111"

	active := createProject(t, db, userID, "Active")
	createProject(t, db, userID, "Next")
	createProject(t, db, userID, "Horizon")

	pipeline, err := services.GetPipeline(db, userID)
	if err != nil {
		t.Fatalf("GetPipeline failed: %v", err)
	}
	if len(pipeline) != 3 {
		t.Fatalf("Expected 3 open projects, got %d", len(pipeline))
	}
	wantOrder := []string{models.StatusActive, models.StatusNext, models.StatusHorizon}
	for i, status := range wantOrder {
		if pipeline[i].Status != status {
			t.Errorf("Position %d: expected %s, got %s", i, status, pipeline[i].Status)
		}
	}

	if _, err := services.CompleteProject(db, userID, active.ProjectID, testReflection); err != nil {
		t.Fatalf("CompleteProject failed: %v", err)
	}

	history, err := services.GetHistory(db, userID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 project in history, got %d", len(history))
	}
	if history[0].ProjectID != active.ProjectID {
		t.Errorf("Expected completed project in history")
	}

	pipeline, _ = services.GetPipeline(db, userID)
	if len(pipeline) != 2 {
		t.Errorf("Expected 2 open projects after completion, got %d", len(pipeline))
	}
}
