package helpers

import (
	"testing"
	"time"

	"github.com/emberwell/emberwell-api/internal/models"
	"github.com/emberwell/emberwell-api/internal/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateTestActivityDates marks one activity row per date for the user
func CreateTestActivityDates(t *testing.T, db *gorm.DB, userID string, dates []types.LocalDate) {
	t.Helper()
	for _, d := range dates {
		row := models.ActivityDate{
			UserID:     userID,
			ActivityOn: string(d),
		}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("Failed to create activity date %s: %v", d, err)
		}
	}
}

// CreateTestBadge inserts a badge row directly, bypassing evaluation
func CreateTestBadge(t *testing.T, db *gorm.DB, userID, key string, notified bool) {
	t.Helper()
	badge := models.Badge{
		UserID:   userID,
		BadgeKey: key,
		EarnedAt: time.Now().UTC(),
		Notified: notified,
	}
	if err := db.Create(&badge).Error; err != nil {
		t.Fatalf("Failed to create badge %s: %v", key, err)
	}
}

// CreateTestProject inserts a project in the given slot or terminal status
func CreateTestProject(t *testing.T, db *gorm.DB, userID, status string) *models.ProjectOfHeart {
	t.Helper()
	project := models.ProjectOfHeart{
		ProjectID:    uuid.New().String(),
		UserID:       userID,
		Title:        "Test project " + status,
		Category:     models.CategoryHealth,
		Status:       status,
		VisionImages: models.JSON{JSON: []byte(`["","",""]`)},
	}
	switch status {
	case models.StatusActive, models.StatusCompleted, models.StatusClosedEarly:
		now := time.Now().UTC()
		project.StartedAt = &now
	}
	switch status {
	case models.StatusCompleted, models.StatusClosedEarly:
		now := time.Now().UTC()
		project.EndedAt = &now
		project.ClosingReflection = "It ran its course and taught me plenty."
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	return &project
}

// CreateTestMilestone appends a milestone to a project
func CreateTestMilestone(t *testing.T, db *gorm.DB, projectID, text string, orderIndex int) *models.Milestone {
	t.Helper()
	milestone := models.Milestone{
		MilestoneID: uuid.New().String(),
		ProjectID:   projectID,
		Text:        text,
		OrderIndex:  orderIndex,
	}
	if err := db.Create(&milestone).Error; err != nil {
		t.Fatalf("Failed to create milestone: %v", err)
	}
	return &milestone
}
