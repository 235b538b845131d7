package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/eligibility"
	appmw "github.com/shinyyama/foodrescue-backend/internal/middleware"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

type errorPayload struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// writeServiceError maps service errors onto the error envelope. Anything it
// does not recognise is returned to echo, which logs it and answers 500.
func writeServiceError(c echo.Context, err error) error {
	var (
		unavailable *service.UnavailableError
		validation  *service.ValidationError
	)
	switch {
	case errors.As(err, &unavailable):
		resp := NewErrorResponse("unavailable", "pack is not available for purchase")
		resp.Error.Reasons = eligibility.Codes(unavailable.Reasons)
		return c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.As(err, &validation):
		resp := NewErrorResponse("validation_failed", validation.Error())
		resp.Error.Field = validation.Field
		return c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, service.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_quantity", err.Error()))
	case errors.Is(err, service.ErrUnknownPaymentStatus):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("unknown_payment_status", err.Error()))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "resource not found"))
	case errors.Is(err, service.ErrInsufficientStock):
		return c.JSON(http.StatusConflict, NewErrorResponse("insufficient_stock", "not enough packs left"))
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, NewErrorResponse("invalid_transition", err.Error()))
	case errors.Is(err, service.ErrExternal):
		return c.JSON(http.StatusBadGateway, NewErrorResponse("external_failure", "upstream service failed"))
	}
	return err
}

// ErrorHandler renders errors returned by handlers and middleware in the
// same envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	resp := NewErrorResponse("internal_error", "internal server error")
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		text := http.StatusText(status)
		resp = NewErrorResponse(strings.ToLower(strings.ReplaceAll(text, " ", "_")), text)
		if msg, ok := he.Message.(string); ok {
			resp.Error.Message = msg
		}
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, resp)
}

func actorFrom(c echo.Context) service.Actor {
	uid, _ := c.Get(appmw.ContextUID).(string)
	isAdmin, _ := c.Get(appmw.ContextAdmin).(bool)
	return service.Actor{UID: uid, Admin: isAdmin}
}

func parseID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
