package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/localnerve/authorizer-go"
	"github.com/emberwell/emberwell-api/internal/types"
	"github.com/emberwell/emberwell-api/internal/utils"
	"github.com/gofiber/fiber/v2"
)

// getUserID extracts the user ID from context (set by auth middleware).
// The middleware stores the typed authorizer user; tests may inject a
// plain map.
func getUserID(c *fiber.Ctx) (string, error) {
	switch user := c.Locals("user").(type) {
	case *authorizer.User:
		if user != nil && user.ID != "" {
			return user.ID, nil
		}
	case map[string]interface{}:
		if id, ok := user["id"].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("user not found in context")
}

// serverToday is the server's current calendar date. Ratings and activity
// marks are gated against this value.
func serverToday() types.LocalDate {
	return types.Today(time.Local)
}

// mapServiceError translates the service error taxonomy into the JSON
// error envelope. Not-found covers both missing rows and rows owned by a
// different user. State and capacity conflicts get distinct types so
// clients can branch between "locked" and "limit reached".
func mapServiceError(c *fiber.Ctx, err error, op string) error {
	var validationErr *types.ValidationError
	var stateErr *types.StateConflictError
	var capacityErr *types.CapacityError

	switch {
	case errors.Is(err, types.ErrNotFound):
		return utils.NotFoundResponse(c, "Resource not found")
	case errors.As(err, &validationErr):
		return utils.ErrorResponse(c, validationErr.Error(), fiber.StatusBadRequest, "engagement.validation")
	case errors.As(err, &stateErr):
		return utils.ConflictResponse(c, stateErr.Error(), "conflict.state")
	case errors.As(err, &capacityErr):
		return utils.ConflictResponse(c, capacityErr.Error(), "conflict.capacity")
	}
	return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, op)
}
