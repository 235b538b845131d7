package handler

import (
	"context"
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/eligibility"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/payment"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

// Fakes embed the service interface; calling a method a test did not stub panics.

type fakePackService struct {
	service.PackService
	listAvailable func(f service.ListFilter, now time.Time) ([]service.PackListing, int64, error)
	get           func(id uint64) (*service.PackDetail, error)
	availability  func(id uint64) ([]eligibility.Reason, error)
	create        func(estID uint64, in service.PackInput, actor service.Actor) (*model.Pack, error)
	upload        func(id uint64, contentType string, data []byte) (*model.Pack, error)
}

func (f *fakePackService) ListAvailable(_ context.Context, filter service.ListFilter, now time.Time) ([]service.PackListing, int64, error) {
	return f.listAvailable(filter, now)
}

func (f *fakePackService) Get(_ context.Context, id uint64, _ time.Time) (*service.PackDetail, error) {
	return f.get(id)
}

func (f *fakePackService) Availability(_ context.Context, id uint64, _ time.Time) ([]eligibility.Reason, error) {
	return f.availability(id)
}

func (f *fakePackService) Create(_ context.Context, estID uint64, in service.PackInput, actor service.Actor) (*model.Pack, error) {
	return f.create(estID, in, actor)
}

func (f *fakePackService) UploadImage(_ context.Context, id uint64, _ service.Actor, contentType string, data []byte) (*model.Pack, error) {
	return f.upload(id, contentType, data)
}

type fakeOrderService struct {
	service.OrderService
	reserve  func(packID uint64, qty int, actor service.Actor) (*model.Order, error)
	callback func(cb payment.Callback) (*model.Order, error)
	cancel   func(id, reason string, actor service.Actor) (*model.Order, error)
	listEst  func(estID uint64, status model.OrderStatus) ([]model.Order, error)
	export   func(actor service.Actor, fn func([]model.Order) error) error
}

func (f *fakeOrderService) Reserve(_ context.Context, packID uint64, qty int, actor service.Actor) (*model.Order, error) {
	return f.reserve(packID, qty, actor)
}

func (f *fakeOrderService) HandlePaymentCallback(_ context.Context, cb payment.Callback) (*model.Order, error) {
	return f.callback(cb)
}

func (f *fakeOrderService) Cancel(_ context.Context, id, reason string, actor service.Actor) (*model.Order, error) {
	return f.cancel(id, reason, actor)
}

func (f *fakeOrderService) ListByEstablishment(_ context.Context, estID uint64, status model.OrderStatus, _ service.Actor) ([]model.Order, error) {
	return f.listEst(estID, status)
}

func (f *fakeOrderService) Export(_ context.Context, actor service.Actor, fn func([]model.Order) error) error {
	return f.export(actor, fn)
}

type fakeReminderService struct {
	res service.SweepResult
	err error
	at  time.Time
}

func (f *fakeReminderService) Sweep(_ context.Context, now time.Time) (service.SweepResult, error) {
	f.at = now
	return f.res, f.err
}

type fakeParser struct {
	cb  payment.Callback
	ok  bool
	err error
	sig string
}

func (f *fakeParser) ParseWebhook(_ []byte, sig string) (payment.Callback, bool, error) {
	f.sig = sig
	return f.cb, f.ok, f.err
}
