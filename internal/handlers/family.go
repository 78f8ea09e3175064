package handlers

import (
	"github.com/arnold/chore-tracker-api/internal/middleware"
	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/arnold/chore-tracker-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) CreateFamily(c *fiber.Ctx) error {
	var req models.CreateFamilyRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	family, err := h.Families.CreateFamily(c.UserContext(), middleware.GetUser(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, fiber.Map{
		"id":         family.ID,
		"familyName": family.FamilyName,
		"inviteCode": family.InviteCode,
	})
}

func (h *Handler) JoinFamily(c *fiber.Ctx) error {
	var req models.JoinFamilyRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	family, err := h.Families.JoinFamily(c.UserContext(), middleware.GetUser(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"message":  "Successfully joined " + family.FamilyName + ".",
		"familyId": family.ID,
	})
}

func (h *Handler) GetFamily(c *fiber.Ctx) error {
	details, err := h.Families.GetDetails(c.UserContext(), middleware.GetUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, details)
}

func (h *Handler) GetMembers(c *fiber.Ctx) error {
	members, err := h.Families.ListMembers(c.UserContext(), middleware.GetUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, members)
}

func (h *Handler) RegenerateInviteCode(c *fiber.Ctx) error {
	code, err := h.Families.RegenerateInviteCode(c.UserContext(), middleware.GetUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"inviteCode": code})
}

// GetFamilyActivity returns paginated activity for the caller's family
func (h *Handler) GetFamilyActivity(c *fiber.Ctx) error {
	page := services.NewPage(c.QueryInt("page", 1), c.QueryInt("limit", 20))

	activities, total, err := h.Families.ListActivity(c.UserContext(), middleware.GetUser(c), page)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"activities": activities,
		"total":      total,
		"page":       page.Number,
		"limit":      page.Limit,
	})
}
