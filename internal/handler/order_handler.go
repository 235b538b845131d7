package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/service"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	svc service.OrderService
}

func NewOrderHandler(svc service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type OrderResponse struct {
	ID              string           `json:"id"`
	UserUID         string           `json:"userUid"`
	PackID          uint64           `json:"packId"`
	EstablishmentID uint64           `json:"establishmentId"`
	Quantity        int              `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unitPrice"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	Currency        string           `json:"currency"`
	PickupDate      string           `json:"pickupDate"`
	Status          string           `json:"status"`
	CheckoutURL     *string          `json:"checkoutUrl,omitempty"`
	PaymentStatus   *string          `json:"paymentStatus,omitempty"`
	PaymentMethod   *string          `json:"paymentMethod,omitempty"`
	PaidAmount      *decimal.Decimal `json:"paidAmount,omitempty"`
	PaidAt          *string          `json:"paidAt,omitempty"`
	ReadyAt         *string          `json:"readyAt,omitempty"`
	CompletedAt     *string          `json:"completedAt,omitempty"`
	CancelledAt     *string          `json:"cancelledAt,omitempty"`
	CancelReason    *string          `json:"cancelReason,omitempty"`
	CreatedAt       string           `json:"createdAt"`
	UpdatedAt       string           `json:"updatedAt"`
}

func toOrderResponse(o *model.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		UserUID:         o.UserUID,
		PackID:          o.PackID,
		EstablishmentID: o.EstablishmentID,
		Quantity:        o.Quantity,
		UnitPrice:       o.UnitPrice,
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		PickupDate:      formatTime(o.PickupDate),
		Status:          string(o.Status),
		CheckoutURL:     strPtrOrNil(o.CheckoutURL),
		PaymentStatus:   strPtrOrNil(o.PaymentStatus),
		PaymentMethod:   strPtrOrNil(o.PaymentMethod),
		PaidAmount:      o.PaidAmount,
		PaidAt:          formatTimePtr(o.PaidAt),
		ReadyAt:         formatTimePtr(o.ReadyAt),
		CompletedAt:     formatTimePtr(o.CompletedAt),
		CancelledAt:     formatTimePtr(o.CancelledAt),
		CancelReason:    strPtrOrNil(o.CancelReason),
		CreatedAt:       formatTime(o.CreatedAt),
		UpdatedAt:       formatTime(o.UpdatedAt),
	}
}

func toOrderList(list []model.Order) []OrderResponse {
	resp := make([]OrderResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toOrderResponse(&list[i]))
	}
	return resp
}

func (h *OrderHandler) Reserve(c echo.Context) error {
	packID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid pack id"))
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	o, err := h.svc.Reserve(c.Request().Context(), packID, body.Quantity, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(o))
}

func (h *OrderHandler) Get(c echo.Context) error {
	o, err := h.svc.Get(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) ListMine(c echo.Context) error {
	list, err := h.svc.ListMine(c.Request().Context(), actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": toOrderList(list)})
}

func (h *OrderHandler) ListByEstablishment(c echo.Context) error {
	estID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid establishment id"))
	}
	var status model.OrderStatus
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := model.ParseOrderStatus(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "unknown status"))
		}
		status = st
	}
	list, err := h.svc.ListByEstablishment(c.Request().Context(), estID, status, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": toOrderList(list)})
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	// The body is optional.
	_ = c.Bind(&body)
	o, err := h.svc.Cancel(c.Request().Context(), c.Param("id"), body.Reason, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) MarkReady(c echo.Context) error {
	o, err := h.svc.MarkReady(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) Complete(c echo.Context) error {
	o, err := h.svc.Complete(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}
