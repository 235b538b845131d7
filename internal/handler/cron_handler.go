package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

type CronHandler struct {
	reminders service.ReminderService
	now       func() time.Time
}

func NewCronHandler(reminders service.ReminderService) *CronHandler {
	return &CronHandler{reminders: reminders, now: func() time.Time { return time.Now().UTC() }}
}

func (h *CronHandler) Reminders(c echo.Context) error {
	res, err := h.reminders.Sweep(c.Request().Context(), h.now())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
