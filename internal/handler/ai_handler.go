package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

// AIHandler exposes the Gemini backed CO2 estimate for a pack.
type AIHandler struct {
	packs service.PackService
}

func NewAIHandler(packs service.PackService) *AIHandler {
	return &AIHandler{packs: packs}
}

func (h *AIHandler) EstimateCO2(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid pack id"))
	}
	p, err := h.packs.EstimateCO2(c.Request().Context(), id, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"packId":     p.ID,
		"co2SavedKg": p.CO2SavedKg,
	})
}
