package handlers

import (
	"github.com/emberwell/emberwell-api/internal/services"
	"github.com/emberwell/emberwell-api/internal/types"
	"github.com/emberwell/emberwell-api/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// EngagementHandler handles activity, streak and badge routes
type EngagementHandler struct {
	DB *gorm.DB
}

// MarkActivity handles POST /api/activity
// @Summary Mark today's activity
// @Description Record a qualifying activity for the current date and evaluate badges
// @Tags Engagement
// @Accept json
// @Produce json
// @Param body body object false "Optional date, must equal the current date"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /activity [post]
func (h *EngagementHandler) MarkActivity(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	today := serverToday()

	var body struct {
		Date types.LocalDate `json:"date"`
	}
	// Body is optional; an empty body means "today".
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
		}
	}
	if !body.Date.IsZero() && body.Date != today {
		return utils.ErrorResponse(c, "Activity can only be marked for the current date", fiber.StatusBadRequest, "engagement.validation.date")
	}

	created, err := services.MarkActivityDate(h.DB, userID, today)
	if err != nil {
		return mapServiceError(c, err, "markActivity")
	}

	newBadges, err := services.EvaluateBadges(h.DB, userID, today)
	if err != nil {
		return mapServiceError(c, err, "evaluateBadges")
	}

	currentStreak, err := services.CurrentStreak(h.DB, userID, today)
	if err != nil {
		return mapServiceError(c, err, "currentStreak")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":            true,
		"date":          today,
		"created":       created,
		"currentStreak": currentStreak,
		"newBadges":     newBadges,
	})
}

// GetStreak handles GET /api/streak
// @Summary Get streak analysis
// @Description Get the cycle decomposition, current streak and break flag
// @Tags Engagement
// @Produce json
// @Success 200 {object} streak.Analysis
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /streak [get]
func (h *EngagementHandler) GetStreak(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	analysis, err := services.AnalyzeStreak(h.DB, userID, serverToday())
	if err != nil {
		return mapServiceError(c, err, "getStreak")
	}

	return c.Status(fiber.StatusOK).JSON(analysis)
}

// GetBadges handles GET /api/badges
// @Summary List earned badges
// @Tags Engagement
// @Produce json
// @Success 200 {array} models.Badge
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /badges [get]
func (h *EngagementHandler) GetBadges(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	badges, err := services.GetBadges(h.DB, userID)
	if err != nil {
		return mapServiceError(c, err, "getBadges")
	}

	return c.Status(fiber.StatusOK).JSON(badges)
}

// CollectFreshBadges handles POST /api/badges/fresh
// @Summary Collect unseen badges
// @Description Return badges not yet surfaced to a client and mark them notified
// @Tags Engagement
// @Produce json
// @Success 200 {array} models.Badge
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /badges/fresh [post]
func (h *EngagementHandler) CollectFreshBadges(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	fresh, err := services.CollectFreshBadges(h.DB, userID)
	if err != nil {
		return mapServiceError(c, err, "collectFreshBadges")
	}

	return c.Status(fiber.StatusOK).JSON(fresh)
}

// AwardAdminBadge handles POST /api/admin/badges
// @Summary Award an admin badge
// @Description Grant ambassador or hall_of_fame to a user, idempotently
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body object true "userId and badge key"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /admin/badges [post]
func (h *EngagementHandler) AwardAdminBadge(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"userId"`
		Key    string `json:"key"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
	}
	if body.UserID == "" || body.Key == "" {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
	}

	awarded, err := services.AwardAdminBadge(h.DB, body.UserID, body.Key)
	if err != nil {
		return mapServiceError(c, err, "awardAdminBadge")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":      true,
		"awarded": awarded,
		"key":     body.Key,
	})
}
