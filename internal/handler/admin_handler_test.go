package handler

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportCall(actor service.Actor) call {
	return call{method: http.MethodGet, route: "/admin/orders/export.csv", path: "/admin/orders/export.csv", actor: &actor}
}

func TestExportOrdersCSV(t *testing.T) {
	paid := t0.Add(10 * time.Minute)
	svc := &fakeOrderService{export: func(actor service.Actor, fn func([]model.Order) error) error {
		if !actor.Admin {
			return service.ErrForbidden
		}
		first := testOrder()
		first.PaidAt = &paid
		second := testOrder()
		second.ID = "second"
		second.Status = model.OrderStatusCancelled
		second.CancelReason = "cancelled_by_customer"
		if err := fn([]model.Order{*first}); err != nil {
			return err
		}
		return fn([]model.Order{*second})
	}}
	h := NewAdminHandler(nil, svc)

	rec := serve(t, h.ExportOrders, exportCall(service.Actor{UID: "a", Admin: true}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportColumns, rows[0])
	assert.Equal(t, "0b7e8f8e-2f4a-4a59-9f57-3c93e2b0a1d1", rows[1][0])
	assert.Equal(t, "9.00", rows[1][6])
	assert.Equal(t, "2026-03-10T12:10:00Z", rows[1][11])
	assert.Equal(t, "CANCELLED", rows[2][8])
	assert.Equal(t, "cancelled_by_customer", rows[2][14])
}

func TestExportOrdersErrorsBeforeOutput(t *testing.T) {
	svc := &fakeOrderService{export: func(actor service.Actor, fn func([]model.Order) error) error {
		if !actor.Admin {
			return service.ErrForbidden
		}
		return errors.New("db down")
	}}
	h := NewAdminHandler(nil, svc)

	rec := serve(t, h.ExportOrders, exportCall(service.Actor{UID: "u"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forbidden")

	rec = serve(t, h.ExportOrders, exportCall(service.Actor{UID: "a", Admin: true}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExportOrdersEmpty(t *testing.T) {
	svc := &fakeOrderService{export: func(service.Actor, func([]model.Order) error) error { return nil }}
	rec := serve(t, NewAdminHandler(nil, svc).ExportOrders, exportCall(service.Actor{UID: "a", Admin: true}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, strings.Join(exportColumns, ",")+"\n", rec.Body.String())
}
