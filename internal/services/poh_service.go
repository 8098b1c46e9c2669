package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emberwell/emberwell-api/internal/models"
	"github.com/emberwell/emberwell-api/internal/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// openStatusOrder is the slot fill order for project creation.
var openStatusOrder = []string{models.StatusActive, models.StatusNext, models.StatusHorizon}

// validCategories is the fixed category set; "other" requires custom text.
var validCategories = map[string]struct{}{
	models.CategoryCareer:        {},
	models.CategoryHealth:        {},
	models.CategoryRelationships: {},
	models.CategoryWealth:        {},
	models.CategoryOther:         {},
}

// CreateProjectInput carries the fields for a new project of heart.
type CreateProjectInput struct {
	Title          string `json:"title"`
	Why            string `json:"why"`
	Category       string `json:"category"`
	CustomCategory string `json:"customCategory"`
}

// UpdateProjectInput carries optional field updates; nil means unchanged.
type UpdateProjectInput struct {
	Title          *string `json:"title"`
	Why            *string `json:"why"`
	Category       *string `json:"category"`
	CustomCategory *string `json:"customCategory"`
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &types.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(title) > models.TitleMaxLen {
		return &types.ValidationError{Field: "title", Reason: fmt.Sprintf("exceeds %d characters", models.TitleMaxLen)}
	}
	return nil
}

func validateWhy(why string) error {
	if len(why) > models.WhyMaxLen {
		return &types.ValidationError{Field: "why", Reason: fmt.Sprintf("exceeds %d characters", models.WhyMaxLen)}
	}
	return nil
}

func validateCategory(category, custom string) error {
	if _, ok := validCategories[category]; !ok {
		return &types.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}
	if category == models.CategoryOther && strings.TrimSpace(custom) == "" {
		return &types.ValidationError{Field: "customCategory", Reason: "required for category \"other\""}
	}
	return nil
}

// lockForUpdate adds a row lock on dialects that support SELECT FOR
// UPDATE. SQLite serializes writers on its own and rejects the syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// loadOwnedProject fetches a project scoped to the requesting user. A
// missing row and a row owned by a different user are both reported as
// ErrNotFound so project IDs cannot be enumerated.
func loadOwnedProject(tx *gorm.DB, userID, projectID string) (*models.ProjectOfHeart, error) {
	var project models.ProjectOfHeart
	err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// CreateProject places a new project into the first vacant slot in the
// order active, next, horizon. The vacancy check and insert run in one
// transaction with the user's open rows locked, so two devices creating
// concurrently cannot both land in the same slot. Only an active creation
// stamps StartedAt.
func CreateProject(db *gorm.DB, userID string, in CreateProjectInput) (*models.ProjectOfHeart, error) {
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := validateWhy(in.Why); err != nil {
		return nil, err
	}
	if err := validateCategory(in.Category, in.CustomCategory); err != nil {
		return nil, err
	}

	var project *models.ProjectOfHeart
	err := db.Transaction(func(tx *gorm.DB) error {
		var open []models.ProjectOfHeart
		if err := lockForUpdate(tx).
			Where("user_id = ? AND status IN ?", userID, openStatusOrder).
			Find(&open).Error; err != nil {
			return err
		}

		occupied := make(map[string]struct{}, len(open))
		for _, p := range open {
			occupied[p.Status] = struct{}{}
		}

		slot := ""
		for _, status := range openStatusOrder {
			if _, taken := occupied[status]; !taken {
				slot = status
				break
			}
		}
		if slot == "" {
			return &types.CapacityError{Resource: "open projects", Limit: len(openStatusOrder)}
		}

		emptySlots, _ := json.Marshal(make([]string, models.VisionImageSlots))
		project = &models.ProjectOfHeart{
			ProjectID:      uuid.NewString(),
			UserID:         userID,
			Title:          in.Title,
			Why:            in.Why,
			Category:       in.Category,
			CustomCategory: in.CustomCategory,
			Status:         slot,
		}
		project.VisionImages.JSON = emptySlots

		if slot == models.StatusActive {
			now := time.Now()
			project.StartedAt = &now
		}

		return tx.Create(project).Error
	})
	if err != nil {
		return nil, err
	}

	return project, nil
}

// GetPipeline returns the user's open projects in slot order with
// milestones and actions preloaded.
func GetPipeline(db *gorm.DB, userID string) ([]models.ProjectOfHeart, error) {
	var projects []models.ProjectOfHeart
	err := db.Preload("Milestones", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_index ASC") }).
		Preload("Actions", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_index ASC") }).
		Where("user_id = ? AND status IN ?", userID, openStatusOrder).
		Find(&projects).Error
	if err != nil {
		return nil, err
	}

	// Slot order, not creation order.
	rank := map[string]int{models.StatusActive: 0, models.StatusNext: 1, models.StatusHorizon: 2}
	for i := 1; i < len(projects); i++ {
		for j := i; j > 0 && rank[projects[j].Status] < rank[projects[j-1].Status]; j-- {
			projects[j], projects[j-1] = projects[j-1], projects[j]
		}
	}
	return projects, nil
}

// GetHistory returns the user's completed and closed projects, most
// recently ended first.
func GetHistory(db *gorm.DB, userID string) ([]models.ProjectOfHeart, error) {
	var projects []models.ProjectOfHeart
	err := db.Preload("Milestones", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_index ASC") }).
		Where("user_id = ? AND status IN ?", userID, []string{models.StatusCompleted, models.StatusClosedEarly}).
		Order("ended_at DESC").
		Find(&projects).Error
	return projects, err
}

// UpdateProject edits title/category on any open project; the deep "why"
// reflection is editable only while the project is active. Terminal rows
// are immutable.
func UpdateProject(db *gorm.DB, userID, projectID string, in UpdateProjectInput) (*models.ProjectOfHeart, error) {
	var project *models.ProjectOfHeart
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = loadOwnedProject(tx, userID, projectID)
		if err != nil {
			return err
		}

		if project.Status == models.StatusCompleted || project.Status == models.StatusClosedEarly {
			return &types.StateConflictError{Reason: "project is closed and can no longer be edited"}
		}

		updates := map[string]interface{}{}
		if in.Title != nil {
			if err := validateTitle(*in.Title); err != nil {
				return err
			}
			updates["title"] = *in.Title
		}
		if in.Category != nil {
			custom := project.CustomCategory
			if in.CustomCategory != nil {
				custom = *in.CustomCategory
			}
			// Custom text only has meaning under "other".
			if *in.Category != models.CategoryOther {
				custom = ""
			}
			if err := validateCategory(*in.Category, custom); err != nil {
				return err
			}
			updates["category"] = *in.Category
			updates["custom_category"] = custom
		}
		if in.Why != nil {
			if project.Status != models.StatusActive {
				return &types.StateConflictError{Reason: "why can only be edited on the active project"}
			}
			if err := validateWhy(*in.Why); err != nil {
				return err
			}
			updates["why"] = *in.Why
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(project).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	return project, nil
}

// AddMilestone appends a milestone to the active project, capped at five.
func AddMilestone(db *gorm.DB, userID, projectID, text string) (*models.Milestone, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &types.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if len(text) > models.MilestoneTextMax {
		return nil, &types.ValidationError{Field: "text", Reason: fmt.Sprintf("exceeds %d characters", models.MilestoneTextMax)}
	}

	var milestone *models.Milestone
	err := db.Transaction(func(tx *gorm.DB) error {
		project, err := loadOwnedProject(tx, userID, projectID)
		if err != nil {
			return err
		}
		if project.Status != models.StatusActive {
			return &types.StateConflictError{Reason: "milestones can only be added to the active project"}
		}

		var count int64
		if err := tx.Model(&models.Milestone{}).
			Where("project_id = ?", projectID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= models.MaxMilestones {
			return &types.CapacityError{Resource: "milestones", Limit: models.MaxMilestones}
		}

		milestone = &models.Milestone{
			MilestoneID: uuid.NewString(),
			ProjectID:   projectID,
			Text:        text,
			OrderIndex:  int(count),
		}
		return tx.Create(milestone).Error
	})
	if err != nil {
		return nil, err
	}

	return milestone, nil
}

// loadOwnedMilestone fetches a milestone together with its owning project,
// scoped to the requesting user.
func loadOwnedMilestone(tx *gorm.DB, userID, milestoneID string) (*models.Milestone, *models.ProjectOfHeart, error) {
	var milestone models.Milestone
	err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
		Where("milestone_id = ?", milestoneID).
		First(&milestone).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, types.ErrNotFound
		}
		return nil, nil, err
	}

	project, err := loadOwnedProject(tx, userID, milestone.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return &milestone, project, nil
}

// EditMilestone rewrites a milestone's text. Locked once achieved.
func EditMilestone(db *gorm.DB, userID, milestoneID, text string) (*models.Milestone, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &types.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if len(text) > models.MilestoneTextMax {
		return nil, &types.ValidationError{Field: "text", Reason: fmt.Sprintf("exceeds %d characters", models.MilestoneTextMax)}
	}

	var milestone *models.Milestone
	err := db.Transaction(func(tx *gorm.DB) error {
		var project *models.ProjectOfHeart
		var err error
		milestone, project, err = loadOwnedMilestone(tx, userID, milestoneID)
		if err != nil {
			return err
		}
		if project.Status != models.StatusActive {
			return &types.StateConflictError{Reason: "milestones can only be edited on the active project"}
		}
		if milestone.Achieved {
			return &types.StateConflictError{Reason: "achieved milestones are locked"}
		}

		milestone.Text = text
		return tx.Model(milestone).Update("text", text).Error
	})
	if err != nil {
		return nil, err
	}

	return milestone, nil
}

// AchieveMilestone marks a milestone achieved. One-directional: the flag
// never reverts.
func AchieveMilestone(db *gorm.DB, userID, milestoneID string) (*models.Milestone, error) {
	var milestone *models.Milestone
	err := db.Transaction(func(tx *gorm.DB) error {
		var project *models.ProjectOfHeart
		var err error
		milestone, project, err = loadOwnedMilestone(tx, userID, milestoneID)
		if err != nil {
			return err
		}
		if project.Status != models.StatusActive {
			return &types.StateConflictError{Reason: "milestones can only be achieved on the active project"}
		}
		if milestone.Achieved {
			return &types.StateConflictError{Reason: "milestone is already achieved"}
		}

		now := time.Now()
		milestone.Achieved = true
		milestone.AchievedAt = &now
		return tx.Model(milestone).Updates(map[string]interface{}{
			"achieved":    true,
			"achieved_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return milestone, nil
}

// ReplaceActions swaps the project's action set wholesale: delete all,
// insert the new list in order. At most three actions.
func ReplaceActions(db *gorm.DB, userID, projectID string, texts []string) ([]models.ActionItem, error) {
	if len(texts) > models.MaxActions {
		return nil, &types.CapacityError{Resource: "actions", Limit: models.MaxActions}
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, &types.ValidationError{Field: "actions", Reason: "action text must not be empty"}
		}
	}

	var actions []models.ActionItem
	err := db.Transaction(func(tx *gorm.DB) error {
		project, err := loadOwnedProject(tx, userID, projectID)
		if err != nil {
			return err
		}
		if project.Status != models.StatusActive {
			return &types.StateConflictError{Reason: "actions can only be set on the active project"}
		}

		if err := tx.Where("project_id = ?", projectID).
			Delete(&models.ActionItem{}).Error; err != nil {
			return err
		}

		actions = make([]models.ActionItem, len(texts))
		for i, text := range texts {
			actions[i] = models.ActionItem{ProjectID: projectID, Text: text, OrderIndex: i}
		}
		if len(actions) == 0 {
			return nil
		}
		return tx.Create(&actions).Error
	})
	if err != nil {
		return nil, err
	}

	return actions, nil
}

// RateDay records the user's 0-10 rating for the current local date.
// Ratings cannot be backdated or future-dated; a second call the same day
// updates the existing row (unique on user and date).
func RateDay(db *gorm.DB, userID, projectID string, rating int, date, today types.LocalDate) (*models.DailyRating, error) {
	if rating < 0 || rating > models.RatingMax {
		return nil, &types.ValidationError{Field: "rating", Reason: fmt.Sprintf("must be between 0 and %d", models.RatingMax)}
	}
	if date != today {
		return nil, &types.StateConflictError{Reason: "ratings can only be set for the current date"}
	}

	var row models.DailyRating
	err := db.Transaction(func(tx *gorm.DB) error {
		project, err := loadOwnedProject(tx, userID, projectID)
		if err != nil {
			return err
		}
		if project.Status != models.StatusActive {
			return &types.StateConflictError{Reason: "ratings can only be set on the active project"}
		}

		findErr := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
			Where("user_id = ? AND local_date = ?", userID, date.String()).
			First(&row).Error
		if findErr == nil {
			row.Rating = rating
			row.ProjectID = projectID
			return tx.Model(&row).Updates(map[string]interface{}{
				"rating":     rating,
				"project_id": projectID,
			}).Error
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		row = models.DailyRating{
			UserID:    userID,
			ProjectID: projectID,
			LocalDate: date.String(),
			Rating:    rating,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}

	return &row, nil
}

// SetVisionImage records an object-store reference in one of the three
// vision slots, overwriting any previous reference.
func SetVisionImage(db *gorm.DB, userID, projectID string, slot int, ref string) error {
	if slot < 0 || slot >= models.VisionImageSlots {
		return &types.ValidationError{Field: "slot", Reason: fmt.Sprintf("must be between 0 and %d", models.VisionImageSlots-1)}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		project, err := loadOwnedProject(tx, userID, projectID)
		if err != nil {
			return err
		}
		if project.Status != models.StatusActive {
			return &types.StateConflictError{Reason: "vision images can only be set on the active project"}
		}

		slots := make([]string, models.VisionImageSlots)
		if len(project.VisionImages.JSON) > 0 {
			if err := json.Unmarshal(project.VisionImages.JSON, &slots); err != nil {
				return err
			}
			for len(slots) < models.VisionImageSlots {
				slots = append(slots, "")
			}
		}
		slots[slot] = ref

		raw, err := json.Marshal(slots)
		if err != nil {
			return err
		}
		return tx.Model(project).Update("vision_images", models.JSON{JSON: raw}).Error
	})
}

// CompleteProject finishes the active project as completed and promotes
// the pipeline.
func CompleteProject(db *gorm.DB, userID, projectID, reflection string) (*models.ProjectOfHeart, error) {
	return finishProject(db, userID, projectID, reflection, models.StatusCompleted)
}

// CloseProject finishes the active project as closed early and promotes
// the pipeline.
func CloseProject(db *gorm.DB, userID, projectID, reflection string) (*models.ProjectOfHeart, error) {
	return finishProject(db, userID, projectID, reflection, models.StatusClosedEarly)
}

// finishProject moves an active project to a terminal status and runs the
// promotion cascade: next becomes active (StartedAt stamped now), horizon
// becomes next (StartedAt untouched). The terminal write and both
// promotions commit in a single transaction so a crash cannot leave the
// pipeline half-promoted.
func finishProject(db *gorm.DB, userID, projectID, reflection, terminalStatus string) (*models.ProjectOfHeart, error) {
	if len(strings.TrimSpace(reflection)) < models.ReflectionMinLen {
		return nil, &types.ValidationError{Field: "closingReflection", Reason: fmt.Sprintf("must be at least %d characters", models.ReflectionMinLen)}
	}

	var project *models.ProjectOfHeart
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = loadOwnedProject(lockForUpdate(tx), userID, projectID)
		if err != nil {
			return err
		}
		if project.Status != models.StatusActive {
			return &types.StateConflictError{Reason: "only the active project can be completed or closed"}
		}

		now := time.Now()
		project.Status = terminalStatus
		project.EndedAt = &now
		project.ClosingReflection = reflection
		if err := tx.Model(project).Updates(map[string]interface{}{
			"status":             terminalStatus,
			"ended_at":           now,
			"closing_reflection": reflection,
		}).Error; err != nil {
			return err
		}

		// Promotion cascade: a single-step shift, never creating rows.
		var next models.ProjectOfHeart
		findNext := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
			Where("user_id = ? AND status = ?", userID, models.StatusNext).
			First(&next).Error
		if findNext == nil {
			if err := tx.Model(&next).Updates(map[string]interface{}{
				"status":     models.StatusActive,
				"started_at": now,
			}).Error; err != nil {
				return err
			}
		} else if !errors.Is(findNext, gorm.ErrRecordNotFound) {
			return findNext
		}

		var horizon models.ProjectOfHeart
		findHorizon := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
			Where("user_id = ? AND status = ?", userID, models.StatusHorizon).
			First(&horizon).Error
		if findHorizon == nil {
			if err := tx.Model(&horizon).
				Update("status", models.StatusNext).Error; err != nil {
				return err
			}
		} else if !errors.Is(findHorizon, gorm.ErrRecordNotFound) {
			return findHorizon
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return project, nil
}
