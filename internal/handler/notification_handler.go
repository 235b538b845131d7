package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type NotificationResponse struct {
	ID              uint64  `json:"id"`
	Type            string  `json:"type"`
	Title           string  `json:"title"`
	Body            string  `json:"body"`
	OrderID         *string `json:"orderId,omitempty"`
	EstablishmentID *uint64 `json:"establishmentId,omitempty"`
	Read            bool    `json:"read"`
	CreatedAt       string  `json:"createdAt"`
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:              n.ID,
		Type:            n.Type,
		Title:           n.Title,
		Body:            n.Body,
		OrderID:         n.OrderID,
		EstablishmentID: n.EstablishmentID,
		Read:            n.ReadAt != nil,
		CreatedAt:       formatTime(n.CreatedAt),
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	actor := actorFrom(c)
	unreadOnly := c.QueryParam("unread_only") != "false"
	limit := 20
	if lStr := c.QueryParam("limit"); lStr != "" {
		if lParsed, err := strconv.Atoi(lStr); err == nil && lParsed > 0 {
			limit = lParsed
		}
	}
	list, unreadCount, err := h.svc.List(c.Request().Context(), actor.UID, unreadOnly, limit)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, toNotificationResponse(n))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": resp,
		"unreadCount":   unreadCount,
	})
}

// MarkAllRead marks every notification read, or only those of one order when
// orderId is given.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	actor := actorFrom(c)
	var err error
	if orderID := c.QueryParam("orderId"); orderID != "" {
		err = h.svc.MarkByOrder(c.Request().Context(), actor.UID, orderID)
	} else {
		err = h.svc.MarkAllRead(c.Request().Context(), actor.UID)
	}
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *NotificationHandler) RegisterDevice(c echo.Context) error {
	var req registerDeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if err := h.svc.RegisterDevice(c.Request().Context(), actorFrom(c).UID, req.Token, req.Platform); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
