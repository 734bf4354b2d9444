package handlers

import (
	"errors"
	"log"

	"convlogger/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SearchHandler handles full-record search HTTP requests
type SearchHandler struct {
	search *services.SearchService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(search *services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search ranks records against a free-text query
// GET /api/search?q=deploy+error&project=&limit=20
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	query := c.Query("q")
	project := c.Query("project")
	limit := c.QueryInt("limit", 0)

	results, err := h.search.Search(c.Context(), query, project, limit)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query parameter 'q' is required",
			})
		}
		log.Printf("❌ [SEARCH] Search failure for %q: %v", query, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	return c.JSON(fiber.Map{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}
