package handlers

import (
	"errors"
	"log"

	"convlogger/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SessionHandler handles session metadata HTTP requests
type SessionHandler struct {
	sessions *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Describe returns the analyzed metadata of one session
// GET /api/sessions/:id
func (h *SessionHandler) Describe(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	meta, err := h.sessions.Describe(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if errors.Is(err, services.ErrPoolTimeout) {
			log.Printf("⏱️ [SESSIONS] Describe timed out for session %s", sessionID)
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "Session analysis timed out",
			})
		}
		log.Printf("❌ [SESSIONS] Describe failure for session %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to describe session",
		})
	}

	return c.JSON(meta)
}

// List returns analyzed metadata for every known session
// GET /api/sessions?project=
func (h *SessionHandler) List(c *fiber.Ctx) error {
	project := c.Query("project")

	metas, err := h.sessions.DescribeAll(c.Context(), project)
	if err != nil {
		log.Printf("❌ [SESSIONS] List failure: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sessions",
		})
	}

	return c.JSON(fiber.Map{
		"sessions": metas,
		"count":    len(metas),
	})
}
