package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/service"
	"github.com/shopspring/decimal"
)

type RevenueHandler struct {
	svc service.RevenueService
}

func NewRevenueHandler(svc service.RevenueService) *RevenueHandler {
	return &RevenueHandler{svc: svc}
}

type RevenueResponse struct {
	EstablishmentID uint64          `json:"establishmentId"`
	Balance         decimal.Decimal `json:"balance"`
	PaidOut         decimal.Decimal `json:"paidOut"`
	OrdersPaid      int64           `json:"ordersPaid"`
}

func toRevenueResponse(r *model.EstablishmentRevenue) RevenueResponse {
	return RevenueResponse{
		EstablishmentID: r.EstablishmentID,
		Balance:         r.Amount,
		PaidOut:         r.PaidOut,
		OrdersPaid:      r.OrdersPaid,
	}
}

func (h *RevenueHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid establishment id"))
	}
	rev, err := h.svc.Get(c.Request().Context(), id, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toRevenueResponse(rev))
}

func (h *RevenueHandler) Payout(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid establishment id"))
	}
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid amount"))
	}
	rev, err := h.svc.Payout(c.Request().Context(), id, body.Amount, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toRevenueResponse(rev))
}
