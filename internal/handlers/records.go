package handlers

import (
	"errors"
	"log"
	"time"

	"convlogger/internal/services"

	"github.com/gofiber/fiber/v2"
)

// RecordHandler handles record ingestion and query HTTP requests
type RecordHandler struct {
	records *services.RecordService
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(records *services.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

// Ingest accepts one conversation record from a logging client
// POST /api/log
func (h *RecordHandler) Ingest(c *fiber.Ctx) error {
	var input services.IngestInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON body",
		})
	}

	record, err := h.records.Ingest(c.Context(), input)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		log.Printf("❌ [INGEST] Unexpected ingest failure: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store record",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":        record.ID,
		"timestamp": record.Timestamp,
	})
}

// Query returns stored records, newest first
// GET /api/conversations?limit=50&project=&session=&start=&end=
func (h *RecordHandler) Query(c *fiber.Ctx) error {
	filter := services.RecordFilter{
		Limit:   c.QueryInt("limit", 0),
		Project: c.Query("project"),
		Session: c.Query("session"),
	}

	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid 'start' time, expected RFC3339",
			})
		}
		filter.Start = &t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid 'end' time, expected RFC3339",
			})
		}
		filter.End = &t
	}

	records, err := h.records.Query(c.Context(), filter)
	if err != nil {
		log.Printf("❌ [QUERY] Query failure: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query records",
		})
	}

	return c.JSON(fiber.Map{
		"conversations": records,
		"count":         len(records),
	})
}

// Export returns every record of one session in chronological order
// GET /api/sessions/:id/export
func (h *RecordHandler) Export(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	records, err := h.records.SessionRecords(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		log.Printf("❌ [EXPORT] Export failure for session %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export session",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"records":    records,
		"count":      len(records),
	})
}
