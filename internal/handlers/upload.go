package handlers

import (
	"github.com/arnold/chore-tracker-api/internal/middleware"
	"github.com/arnold/chore-tracker-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

// SubmitProof accepts a multipart proofImage with notes and taskId fields.
func (h *Handler) SubmitProof(c *fiber.Ctx) error {
	file, err := c.FormFile("proofImage")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Please select a photo proof")
	}

	task, err := h.Tasks.SubmitProof(c.UserContext(), middleware.GetUser(c), services.ProofSubmission{
		TaskID: c.FormValue("taskId"),
		Notes:  c.FormValue("notes"),
		File:   file,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, task)
}
