package handler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

type AdminHandler struct {
	establishments service.EstablishmentService
	orders         service.OrderService
}

func NewAdminHandler(establishments service.EstablishmentService, orders service.OrderService) *AdminHandler {
	return &AdminHandler{establishments: establishments, orders: orders}
}

func (h *AdminHandler) ListEstablishments(c echo.Context) error {
	status := model.VerificationStatus(strings.ToUpper(c.QueryParam("status")))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	list, total, err := h.establishments.ListByStatus(c.Request().Context(), status, limit, offset, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]EstablishmentResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toEstablishmentResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"establishments": resp,
		"total":          total,
	})
}

type verifyRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *AdminHandler) Verify(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid establishment id"))
	}
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	status := model.VerificationStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	e, err := h.establishments.Verify(c.Request().Context(), id, status, req.Note, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toEstablishmentResponse(e))
}

func (h *AdminHandler) SetActive(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid establishment id"))
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "active is required"))
	}
	e, err := h.establishments.SetActive(c.Request().Context(), id, *req.Active, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toEstablishmentResponse(e))
}

var exportColumns = []string{
	"id", "user_uid", "pack_id", "establishment_id", "quantity", "unit_price",
	"total_amount", "currency", "status", "payment_status", "pickup_date",
	"paid_at", "completed_at", "cancelled_at", "cancel_reason", "created_at",
}

func exportRow(o *model.Order) []string {
	optional := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return []string{
		o.ID,
		o.UserUID,
		strconv.FormatUint(o.PackID, 10),
		strconv.FormatUint(o.EstablishmentID, 10),
		strconv.Itoa(o.Quantity),
		o.UnitPrice.StringFixed(2),
		o.TotalAmount.StringFixed(2),
		o.Currency,
		string(o.Status),
		o.PaymentStatus,
		formatTime(o.PickupDate),
		optional(formatTimePtr(o.PaidAt)),
		optional(formatTimePtr(o.CompletedAt)),
		optional(formatTimePtr(o.CancelledAt)),
		o.CancelReason,
		formatTime(o.CreatedAt),
	}
}

// ExportOrders streams every order as CSV. The header is written with the
// first batch so errors before any output still get the JSON envelope.
func (h *AdminHandler) ExportOrders(c echo.Context) error {
	w := csv.NewWriter(c.Response())
	started := false
	start := func() error {
		if started {
			return nil
		}
		started = true
		c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="orders.csv"`)
		c.Response().WriteHeader(http.StatusOK)
		return w.Write(exportColumns)
	}
	err := h.orders.Export(c.Request().Context(), actorFrom(c), func(batch []model.Order) error {
		if err := start(); err != nil {
			return err
		}
		for i := range batch {
			if err := w.Write(exportRow(&batch[i])); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		if !started {
			return writeServiceError(c, err)
		}
		return err
	}
	if err := start(); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
