package handlers

import (
	"github.com/arnold/chore-tracker-api/internal/middleware"
	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := h.Accounts.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return h.sendToken(c, fiber.StatusCreated, user)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := h.Accounts.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return h.sendToken(c, fiber.StatusOK, user)
}

func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req models.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.Accounts.ResetPassword(c.UserContext(), req); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "Password updated successfully. Please log in with new password.")
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, middleware.GetUser(c))
}

// RegisterDeviceToken saves the FCM token for push notifications
func (h *Handler) RegisterDeviceToken(c *fiber.Ctx) error {
	var req models.DeviceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.Accounts.SetDeviceToken(c.UserContext(), middleware.GetUserID(c), req.Token); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) GetRewardHistory(c *fiber.Ctx) error {
	history, err := h.Accounts.RewardHistory(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, history)
}

func (h *Handler) sendToken(c *fiber.Ctx, status int, user *models.User) error {
	token, err := h.Auth.GenerateToken(user)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to generate token")
	}
	return c.Status(status).JSON(models.AuthResponse{
		Success: true,
		Token:   token,
		User:    *user,
	})
}
