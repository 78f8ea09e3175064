package handlers

import (
	"errors"
	"log"

	"github.com/arnold/chore-tracker-api/internal/middleware"
	"github.com/arnold/chore-tracker-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

// Handler holds the services the HTTP routes call into.
type Handler struct {
	Auth     *middleware.Auth
	Accounts *services.AccountService
	Families *services.FamilyService
	Tasks    *services.TaskService
	Notifier *services.Notifier
	Hub      *Hub
}

func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// respondError maps service errors onto the JSON error envelope.
func respondError(c *fiber.Ctx, err error) error {
	msg := err.Error()
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		msg = svcErr.Message
	}

	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConflict):
		return fail(c, fiber.StatusBadRequest, msg)
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUnauthorized):
		return fail(c, fiber.StatusUnauthorized, msg)
	case errors.Is(err, services.ErrForbidden):
		return fail(c, fiber.StatusForbidden, msg)
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, msg)
	case errors.Is(err, services.ErrStatusChanged):
		return fail(c, fiber.StatusConflict, msg)
	}

	log.Printf("%s %s: %v", c.Method(), c.Path(), err)
	return fail(c, fiber.StatusInternalServerError, "Server error")
}

// ErrorHandler renders errors that escape handlers, such as unmatched routes
// or oversized bodies, in the same envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	if code == fiber.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Method(), c.Path(), err)
		return fail(c, code, "Server error")
	}
	return fail(c, code, err.Error())
}
