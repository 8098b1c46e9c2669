package handlers

import (
	"io"

	"github.com/emberwell/emberwell-api/internal/models"
	"github.com/emberwell/emberwell-api/internal/services"
	"github.com/emberwell/emberwell-api/internal/storage"
	"github.com/emberwell/emberwell-api/internal/types"
	"github.com/emberwell/emberwell-api/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ProjectHandler handles project-of-heart routes
type ProjectHandler struct {
	DB    *gorm.DB
	Store storage.ObjectStore
}

// CreateProject handles POST /api/poh
// @Summary Create a project of heart
// @Description Create a project in the first vacant slot (active, next, horizon)
// @Tags ProjectOfHeart
// @Accept json
// @Produce json
// @Param body body services.CreateProjectInput true "Project fields"
// @Success 201 {object} models.ProjectOfHeart
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh [post]
func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	var in services.CreateProjectInput
	if err := c.BodyParser(&in); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
	}

	project, err := services.CreateProject(h.DB, userID, in)
	if err != nil {
		return mapServiceError(c, err, "createProject")
	}

	return c.Status(fiber.StatusCreated).JSON(project)
}

// GetPipeline handles GET /api/poh
// @Summary Get the open project pipeline
// @Tags ProjectOfHeart
// @Produce json
// @Success 200 {array} models.ProjectOfHeart
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh [get]
func (h *ProjectHandler) GetPipeline(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	projects, err := services.GetPipeline(h.DB, userID)
	if err != nil {
		return mapServiceError(c, err, "getPipeline")
	}

	return c.Status(fiber.StatusOK).JSON(projects)
}

// GetHistory handles GET /api/poh/history
// @Summary Get completed and closed projects
// @Tags ProjectOfHeart
// @Produce json
// @Success 200 {array} models.ProjectOfHeart
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh/history [get]
func (h *ProjectHandler) GetHistory(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	projects, err := services.GetHistory(h.DB, userID)
	if err != nil {
		return mapServiceError(c, err, "getHistory")
	}

	return c.Status(fiber.StatusOK).JSON(projects)
}

// UpdateProject handles PATCH /api/poh/:id
// @Summary Update project fields
// @Description Title and category are editable on any open project; why only on the active one
// @Tags ProjectOfHeart
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body services.UpdateProjectInput true "Fields to update"
// @Success 200 {object} models.ProjectOfHeart
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh/{id} [patch]
func (h *ProjectHandler) UpdateProject(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	var in services.UpdateProjectInput
	if err := c.BodyParser(&in); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
	}

	project, err := services.UpdateProject(h.DB, userID, c.Params("id"), in)
	if err != nil {
		return mapServiceError(c, err, "updateProject")
	}

	return c.Status(fiber.StatusOK).JSON(project)
}

// CompleteProject handles POST /api/poh/:id/complete
// @Summary Complete the active project
// @Description Finish the active project and promote next and horizon
// @Tags ProjectOfHeart
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body object true "closingReflection, at least 20 characters"
// @Success 200 {object} models.ProjectOfHeart
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh/{id}/complete [post]
func (h *ProjectHandler) CompleteProject(c *fiber.Ctx) error {
	return h.finishProject(c, services.CompleteProject, "completeProject")
}

// CloseProject handles POST /api/poh/:id/close
// @Summary Close the active project early
// @Description Close the active project before completion and promote next and horizon
// @Tags ProjectOfHeart
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body object true "closingReflection, at least 20 characters"
// @Success 200 {object} models.ProjectOfHeart
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh/{id}/close [post]
func (h *ProjectHandler) CloseProject(c *fiber.Ctx) error {
	return h.finishProject(c, services.CloseProject, "closeProject")
}

type finishFunc func(db *gorm.DB, userID, projectID, reflection string) (*models.ProjectOfHeart, error)

func (h *ProjectHandler) finishProject(c *fiber.Ctx, finish finishFunc, op string) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	var body struct {
		ClosingReflection string `json:"closingReflection"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
	}

	project, err := finish(h.DB, userID, c.Params("id"), body.ClosingReflection)
	if err != nil {
		return mapServiceError(c, err, op)
	}

	return c.Status(fiber.StatusOK).JSON(project)
}

// AddMilestone handles POST /api/poh/:id/milestones
// @Summary Add a milestone
// @Description Add a milestone to the active project, up to five
// @Tags ProjectOfHeart
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body object true "Milestone text"
// @Success 201 {object} models.Milestone
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh/{id}/milestones [post]
func (h *ProjectHandler) AddMilestone(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
	}

	milestone, err := services.AddMilestone(h.DB, userID, c.Params("id"), body.Text)
	if err != nil {
		return mapServiceError(c, err, "addMilestone")
	}

	return c.Status(fiber.StatusCreated).JSON(milestone)
}

// EditMilestone handles PATCH /api/milestones/:id
// @Summary Edit milestone text
// @Description Rewrite milestone text; locked once the milestone is achieved
// @Tags ProjectOfHeart
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param body body object true "Milestone text"
// @Success 200 {object} models.Milestone
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /milestones/{id} [patch]
func (h *ProjectHandler) EditMilestone(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
	}

	milestone, err := services.EditMilestone(h.DB, userID, c.Params("id"), body.Text)
	if err != nil {
		return mapServiceError(c, err, "editMilestone")
	}

	return c.Status(fiber.StatusOK).JSON(milestone)
}

// AchieveMilestone handles POST /api/milestones/:id/achieve
// @Summary Achieve a milestone
// @Description Mark a milestone achieved; irreversible
// @Tags ProjectOfHeart
// @Produce json
// @Param id path string true "Milestone ID"
// @Success 200 {object} models.Milestone
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /milestones/{id}/achieve [post]
func (h *ProjectHandler) AchieveMilestone(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	milestone, err := services.AchieveMilestone(h.DB, userID, c.Params("id"))
	if err != nil {
		return mapServiceError(c, err, "achieveMilestone")
	}

	return c.Status(fiber.StatusOK).JSON(milestone)
}

// ReplaceActions handles PUT /api/poh/:id/actions
// @Summary Replace the action set
// @Description Replace all actions on the active project, up to three, preserving order
// @Tags ProjectOfHeart
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body object true "Action texts"
// @Success 200 {array} models.ActionItem
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh/{id}/actions [put]
func (h *ProjectHandler) ReplaceActions(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	var body struct {
		Actions types.FlexList[string] `json:"actions"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
	}

	actions, err := services.ReplaceActions(h.DB, userID, c.Params("id"), body.Actions.Slice())
	if err != nil {
		return mapServiceError(c, err, "replaceActions")
	}

	return c.Status(fiber.StatusOK).JSON(actions)
}

// RateDay handles POST /api/poh/:id/rating
// @Summary Rate the current day
// @Description Record a 0-10 rating for today on the active project; same-day re-rates update in place
// @Tags ProjectOfHeart
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param body body object true "rating 0-10 and optional date"
// @Success 200 {object} models.DailyRating
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh/{id}/rating [post]
func (h *ProjectHandler) RateDay(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	var body struct {
		Rating types.FlexUint64 `json:"rating"`
		Date   types.LocalDate  `json:"date"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "engagement.validation.input")
	}

	today := serverToday()
	date := body.Date
	if date.IsZero() {
		date = today
	}

	rating, err := services.RateDay(h.DB, userID, c.Params("id"), int(body.Rating.Uint64()), date, today)
	if err != nil {
		return mapServiceError(c, err, "rateDay")
	}

	return c.Status(fiber.StatusOK).JSON(rating)
}

// UploadVisionImage handles PUT /api/poh/:id/vision/:slot
// @Summary Upload a vision image
// @Description Store image bytes and record the reference in one of three slots, overwriting
// @Tags ProjectOfHeart
// @Accept octet-stream
// @Produce json
// @Param id path string true "Project ID"
// @Param slot path int true "Slot index 0-2"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /poh/{id}/vision/{slot} [put]
func (h *ProjectHandler) UploadVisionImage(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "engagement.authorization.user")
	}

	slot, err := c.ParamsInt("slot", -1)
	if err != nil || slot < 0 {
		return utils.ErrorResponse(c, "Invalid slot", fiber.StatusBadRequest, "engagement.validation.input")
	}

	data := c.Body()
	contentType := c.Get(fiber.HeaderContentType, "application/octet-stream")

	// Multipart uploads carry the image in the "image" form field.
	if fileHeader, err := c.FormFile("image"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "engagement.validation.input")
		}
		defer file.Close()

		data, err = io.ReadAll(file)
		if err != nil {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "engagement.validation.input")
		}
		if ct := fileHeader.Header.Get(fiber.HeaderContentType); ct != "" {
			contentType = ct
		}
	}

	if len(data) == 0 {
		return utils.ErrorResponse(c, "Empty image body", fiber.StatusBadRequest, "engagement.validation.input")
	}
	ref, err := h.Store.Put("vision/"+userID, contentType, data)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "uploadVisionImage")
	}

	if err := services.SetVisionImage(h.DB, userID, c.Params("id"), slot, ref); err != nil {
		// The orphaned object is left for out-of-band cleanup.
		return mapServiceError(c, err, "uploadVisionImage")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":   true,
		"slot": slot,
		"ref":  ref,
	})
}
