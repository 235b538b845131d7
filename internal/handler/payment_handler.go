package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/payment"
	"github.com/shinyyama/foodrescue-backend/internal/service"
	"go.uber.org/zap"
)

const maxWebhookBytes = 64 << 10

type webhookParser interface {
	ParseWebhook(payload []byte, sigHeader string) (payment.Callback, bool, error)
}

type PaymentHandler struct {
	parser webhookParser
	orders service.OrderService
	log    *zap.Logger
}

func NewPaymentHandler(parser webhookParser, orders service.OrderService, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{parser: parser, orders: orders, log: log}
}

// StripeWebhook answers 2xx for anything that must not be redelivered.
// Storage failures return 5xx so the provider retries.
func (h *PaymentHandler) StripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "cannot read body"))
	}
	cb, ok, err := h.parser.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		h.log.Warn("stripe webhook rejected", zap.Error(err))
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid webhook"))
	}
	if !ok {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
	o, err := h.orders.HandlePaymentCallback(c.Request().Context(), cb)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "orderStatus": string(o.Status)})
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrNotFound):
		h.log.Warn("payment callback ignored",
			zap.String("order_id", cb.ExternalReference),
			zap.String("payment_status", cb.Status),
			zap.Error(err))
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
	return writeServiceError(c, err)
}
