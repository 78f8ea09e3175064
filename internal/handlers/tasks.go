package handlers

import (
	"github.com/arnold/chore-tracker-api/internal/middleware"
	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetTasks(c *fiber.Ctx) error {
	tasks, err := h.Tasks.List(c.UserContext(), middleware.GetUser(c), c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, tasks)
}

func (h *Handler) GetMyTasks(c *fiber.Ctx) error {
	tasks, err := h.Tasks.ListMine(c.UserContext(), middleware.GetUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, tasks)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	task, err := h.Tasks.Get(c.UserContext(), middleware.GetUser(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, task)
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	var req models.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	task, err := h.Tasks.Create(c.UserContext(), middleware.GetUser(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, task)
}

func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	var req models.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	task, err := h.Tasks.Update(c.UserContext(), middleware.GetUser(c), c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, task)
}

func (h *Handler) UpdateTaskStatus(c *fiber.Ctx) error {
	var req models.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	task, err := h.Tasks.UpdateStatus(c.UserContext(), middleware.GetUser(c), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, task)
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	if err := h.Tasks.Delete(c.UserContext(), middleware.GetUser(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
