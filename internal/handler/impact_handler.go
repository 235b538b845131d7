package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

type ImpactHandler struct {
	svc service.ImpactService
}

func NewImpactHandler(svc service.ImpactService) *ImpactHandler {
	return &ImpactHandler{svc: svc}
}

type ImpactResponse struct {
	PacksRescued   int64   `json:"packsRescued"`
	OrdersPickedUp int64   `json:"ordersPickedUp"`
	CO2AvoidedKg   float64 `json:"co2AvoidedKg"`
}

func toImpactResponse(i *model.UserImpact) ImpactResponse {
	return ImpactResponse{
		PacksRescued:   i.PacksRescued,
		OrdersPickedUp: i.OrdersPickedUp,
		CO2AvoidedKg:   i.CO2AvoidedKg,
	}
}

func (h *ImpactHandler) Get(c echo.Context) error {
	impact, err := h.svc.Get(c.Request().Context(), actorFrom(c).UID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toImpactResponse(impact))
}
