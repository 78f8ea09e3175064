package handlers

import (
	"github.com/arnold/chore-tracker-api/internal/middleware"
	"github.com/arnold/chore-tracker-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetNotifications returns paginated notifications for the current user
func (h *Handler) GetNotifications(c *fiber.Ctx) error {
	page := services.NewPage(c.QueryInt("page", 1), c.QueryInt("limit", 20))

	notifications, total, unread, err := h.Notifier.ListNotifications(c.UserContext(), middleware.GetUserID(c), page)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"notifications": notifications,
		"total":         total,
		"unread":        unread,
		"page":          page.Number,
		"limit":         page.Limit,
	})
}

// MarkNotificationRead marks a single notification as read
func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	notifID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid notification ID")
	}
	if err := h.Notifier.MarkRead(c.UserContext(), middleware.GetUserID(c), notifID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// MarkAllRead marks all notifications as read for the current user
func (h *Handler) MarkAllRead(c *fiber.Ctx) error {
	if err := h.Notifier.MarkAllRead(c.UserContext(), middleware.GetUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
