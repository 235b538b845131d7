package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/foodrescue-backend/internal/eligibility"
	"github.com/shinyyama/foodrescue-backend/internal/events"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/notify"
	"github.com/shinyyama/foodrescue-backend/internal/payment"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	cancelReasonPaymentSetup = "payment_setup_failed"
	cancelReasonCustomer     = "cancelled_by_customer"
	cancelReasonMerchant     = "cancelled_by_establishment"
	cancelReasonAdmin        = "cancelled_by_admin"
)

type OrderService interface {
	Reserve(ctx context.Context, packID uint64, quantity int, actor Actor) (*model.Order, error)
	HandlePaymentCallback(ctx context.Context, cb payment.Callback) (*model.Order, error)
	Cancel(ctx context.Context, orderID, reason string, actor Actor) (*model.Order, error)
	MarkReady(ctx context.Context, orderID string, actor Actor) (*model.Order, error)
	Complete(ctx context.Context, orderID string, actor Actor) (*model.Order, error)
	Get(ctx context.Context, orderID string, actor Actor) (*model.Order, error)
	ListMine(ctx context.Context, actor Actor) ([]model.Order, error)
	ListByEstablishment(ctx context.Context, establishmentID uint64, status model.OrderStatus, actor Actor) ([]model.Order, error)
	Export(ctx context.Context, actor Actor, fn func(batch []model.Order) error) error
}

type OrderServiceDeps struct {
	Orders         repository.OrderRepository
	Packs          repository.PackRepository
	Establishments repository.EstablishmentRepository
	Revenue        repository.RevenueRepository
	Impact         repository.ImpactRepository
	// Gateway is nil when orders are paid at pickup.
	Gateway  payment.Gateway
	Notifier notify.Notifier
	Events   events.Publisher
	Log      *zap.Logger
	Currency string
	Now      func() time.Time
}

type orderService struct {
	orders         repository.OrderRepository
	packs          repository.PackRepository
	establishments repository.EstablishmentRepository
	revenue        repository.RevenueRepository
	impact         repository.ImpactRepository
	gateway        payment.Gateway
	msg            orderMessenger
	log            *zap.Logger
	currency       string
	now            func() time.Time
}

func NewOrderService(d OrderServiceDeps) OrderService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Events == nil {
		d.Events = events.NewNopPublisher()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Currency == "" {
		d.Currency = "usd"
	}
	return &orderService{
		orders:         d.Orders,
		packs:          d.Packs,
		establishments: d.Establishments,
		revenue:        d.Revenue,
		impact:         d.Impact,
		gateway:        d.Gateway,
		msg: orderMessenger{
			packs:          d.Packs,
			establishments: d.Establishments,
			notifier:       d.Notifier,
			events:         d.Events,
			log:            d.Log,
		},
		log:      d.Log,
		currency: d.Currency,
		now:      d.Now,
	}
}

func (s *orderService) Reserve(ctx context.Context, packID uint64, quantity int, actor Actor) (*model.Order, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if actor.UID == "" {
		return nil, ErrForbidden
	}
	pack, est, err := s.loadPack(ctx, packID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	// A pack whose only problem is stock reports ErrInsufficientStock, the
	// same error a lost race on the decrement produces.
	if reasons := eligibility.Evaluate(*pack, *est, now); !onlySoldOut(reasons) {
		return nil, &UnavailableError{Reasons: reasons}
	}
	if quantity > pack.Quantity {
		return nil, ErrInsufficientStock
	}

	o := &model.Order{
		ID:              uuid.NewString(),
		UserUID:         actor.UID,
		PackID:          pack.ID,
		EstablishmentID: est.ID,
		Quantity:        quantity,
		UnitPrice:       pack.DiscountedPrice,
		TotalAmount:     pack.DiscountedPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Currency:        s.currency,
		PickupDate:      pickupDate(*pack, now),
		Status:          model.OrderStatusPending,
	}
	if err := s.orders.CreateReserved(ctx, o, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrStockExhausted):
			return nil, ErrInsufficientStock
		case errors.Is(err, repository.ErrPackClosed):
			return nil, s.unavailableNow(ctx, packID, quantity, now)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reserve pack %d: %w", packID, err)
	}
	s.log.Info("order reserved",
		zap.String("order_id", o.ID),
		zap.Uint64("pack_id", o.PackID),
		zap.Int("quantity", o.Quantity))
	s.msg.publish(ctx, events.TypeOrderCreated, o, "", now)

	if s.gateway == nil {
		return o, nil
	}
	pref, err := s.gateway.CreatePreference(ctx, payment.PreferenceRequest{
		OrderID:     o.ID,
		CustomerUID: o.UserUID,
		Title:       pack.Title,
		Quantity:    int64(o.Quantity),
		UnitPrice:   o.UnitPrice,
		Amount:      o.TotalAmount,
		Currency:    o.Currency,
	})
	if err != nil {
		s.compensate(ctx, o, err)
		return nil, external("create payment preference", err)
	}
	if err := s.orders.SetPreference(ctx, o.ID, pref.ID, pref.CheckoutURL); err != nil {
		s.compensate(ctx, o, err)
		return nil, fmt.Errorf("store payment preference: %w", err)
	}
	o.PaymentPreferenceID = pref.ID
	o.CheckoutURL = pref.CheckoutURL
	return o, nil
}

// compensate releases a reservation whose checkout could not be opened.
func (s *orderService) compensate(ctx context.Context, o *model.Order, cause error) {
	at := s.now()
	ok, err := s.orders.CancelAndRestock(ctx, o, []model.OrderStatus{model.OrderStatusPending}, cancelReasonPaymentSetup, at)
	if err != nil || !ok {
		s.log.Error("failed to release reservation",
			zap.String("order_id", o.ID),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	s.log.Warn("reservation released after payment setup failure",
		zap.String("order_id", o.ID),
		zap.Error(cause))
	o.Status = model.OrderStatusCancelled
	o.CancelledAt = &at
	o.CancelReason = cancelReasonPaymentSetup
	s.msg.publish(ctx, events.TypeOrderStatusChanged, o, model.OrderStatusPending, at)
}

func onlySoldOut(reasons []eligibility.Reason) bool {
	for _, r := range reasons {
		if r != eligibility.ReasonSoldOut {
			return false
		}
	}
	return true
}

// unavailableNow explains a decrement that matched no row. The pack is read
// again, so it may already look purchasable; the close is then reported as
// PACK_INACTIVE.
func (s *orderService) unavailableNow(ctx context.Context, packID uint64, quantity int, now time.Time) error {
	pack, est, err := s.loadPack(ctx, packID)
	if err != nil {
		return err
	}
	reasons := eligibility.Evaluate(*pack, *est, now)
	if onlySoldOut(reasons) && (len(reasons) > 0 || pack.Quantity < quantity) {
		return ErrInsufficientStock
	}
	if len(reasons) == 0 {
		reasons = []eligibility.Reason{eligibility.ReasonPackInactive}
	}
	return &UnavailableError{Reasons: reasons}
}

func (s *orderService) HandlePaymentCallback(ctx context.Context, cb payment.Callback) (*model.Order, error) {
	action, err := payment.MapStatus(cb.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentStatus, cb.Status)
	}
	o, err := s.findOrder(ctx, cb.ExternalReference)
	if err != nil {
		return nil, err
	}
	switch action {
	case payment.ActionConfirm:
		return s.confirmPaid(ctx, o, cb)
	case payment.ActionCancel:
		return s.cancelUnpaid(ctx, o, cb)
	}
	if o.Status != model.OrderStatusPending {
		return o, nil
	}
	if err := s.orders.UpdatePaymentStatus(ctx, o.ID, cb.Status); err != nil {
		return nil, err
	}
	o.PaymentStatus = cb.Status
	return o, nil
}

func (s *orderService) confirmPaid(ctx context.Context, o *model.Order, cb payment.Callback) (*model.Order, error) {
	if o.Status == model.OrderStatusPending {
		now := s.now()
		paid := cb.Amount
		if paid.IsZero() {
			paid = o.TotalAmount
		}
		if !paid.Equal(o.TotalAmount) {
			// Left PENDING for manual review; no revenue is credited.
			s.log.Warn("payment amount differs from order total",
				zap.String("order_id", o.ID),
				zap.String("payment_id", cb.PaymentID),
				zap.String("paid", paid.StringFixed(2)),
				zap.String("total", o.TotalAmount.StringFixed(2)))
			if err := s.orders.UpdatePaymentStatus(ctx, o.ID, cb.Status); err != nil {
				return nil, err
			}
			o.PaymentStatus = cb.Status
			return o, nil
		}
		ok, err := s.orders.Transition(ctx, o.ID, model.OrderStatusPending, model.OrderStatusConfirmed, map[string]interface{}{
			"payment_id":     cb.PaymentID,
			"payment_status": cb.Status,
			"payment_method": cb.Method,
			"paid_amount":    paid,
			"paid_at":        now,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			o.Status = model.OrderStatusConfirmed
			o.PaymentID = cb.PaymentID
			o.PaymentStatus = cb.Status
			o.PaymentMethod = cb.Method
			o.PaidAmount = &paid
			o.PaidAt = &now
			if err := s.revenue.Add(ctx, o.EstablishmentID, paid); err != nil {
				s.log.Warn("revenue credit failed", zap.String("order_id", o.ID), zap.Error(err))
			}
			_ = s.msg.notify(ctx, notify.KindOrderConfirmed, o, nil)
			s.msg.publish(ctx, events.TypeOrderStatusChanged, o, model.OrderStatusPending, now)
			return o, nil
		}
		if o, err = s.findOrder(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	switch o.Status {
	case model.OrderStatusConfirmed, model.OrderStatusReadyForPickup, model.OrderStatusCompleted:
		if o.PaymentID != cb.PaymentID {
			s.log.Warn("approved callback for an order paid by another payment",
				zap.String("order_id", o.ID),
				zap.String("payment_id", cb.PaymentID),
				zap.String("recorded_payment_id", o.PaymentID))
		}
		return o, nil
	}
	return nil, &InvalidTransitionError{From: string(o.Status), To: string(model.OrderStatusConfirmed)}
}

func (s *orderService) cancelUnpaid(ctx context.Context, o *model.Order, cb payment.Callback) (*model.Order, error) {
	if o.Status == model.OrderStatusCancelled {
		return o, nil
	}
	if !o.Status.HoldsStock() {
		return nil, &InvalidTransitionError{From: string(o.Status), To: string(model.OrderStatusCancelled)}
	}
	if err := s.orders.UpdatePaymentStatus(ctx, o.ID, cb.Status); err != nil {
		return nil, err
	}
	o.PaymentStatus = cb.Status
	res, err := s.cancel(ctx, o, "payment_"+cb.Status, []model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed})
	var ite *InvalidTransitionError
	if errors.As(err, &ite) && ite.From == string(model.OrderStatusCancelled) {
		return s.findOrder(ctx, o.ID)
	}
	return res, err
}

func (s *orderService) Cancel(ctx context.Context, orderID, reason string, actor Actor) (*model.Order, error) {
	o, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	est, err := s.findEstablishment(ctx, o.EstablishmentID)
	if err != nil {
		return nil, err
	}
	var defaultReason string
	switch {
	case actor.Is(o.UserUID):
		defaultReason = cancelReasonCustomer
	case actor.Is(est.OwnerUID):
		defaultReason = cancelReasonMerchant
	case actor.Admin:
		defaultReason = cancelReasonAdmin
	default:
		return nil, ErrForbidden
	}
	if reason == "" {
		reason = defaultReason
	}
	if !model.CanTransition(o.Status, model.OrderStatusCancelled) {
		return nil, &InvalidTransitionError{From: string(o.Status), To: string(model.OrderStatusCancelled)}
	}
	return s.cancel(ctx, o, reason, []model.OrderStatus{o.Status})
}

// cancel moves o to CANCELLED from one of the given statuses and returns its
// stock to the pack.
func (s *orderService) cancel(ctx context.Context, o *model.Order, reason string, from []model.OrderStatus) (*model.Order, error) {
	at := s.now()
	prev := o.Status
	ok, err := s.orders.CancelAndRestock(ctx, o, from, reason, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, err := s.findOrder(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		return nil, &InvalidTransitionError{From: string(cur.Status), To: string(model.OrderStatusCancelled)}
	}
	o.Status = model.OrderStatusCancelled
	o.CancelledAt = &at
	o.CancelReason = reason

	if prev == model.OrderStatusConfirmed && o.PaidAmount != nil && o.PaidAmount.IsPositive() {
		if err := s.revenue.Refund(ctx, o.EstablishmentID, *o.PaidAmount); err != nil {
			s.log.Warn("revenue debit failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	_ = s.msg.notify(ctx, notify.KindOrderCancelled, o, map[string]string{"reason": reason})
	s.msg.publish(ctx, events.TypeOrderStatusChanged, o, prev, at)
	return o, nil
}

func (s *orderService) MarkReady(ctx context.Context, orderID string, actor Actor) (*model.Order, error) {
	o, err := s.ownedOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(o.Status, model.OrderStatusReadyForPickup) {
		return nil, &InvalidTransitionError{From: string(o.Status), To: string(model.OrderStatusReadyForPickup)}
	}
	now := s.now()
	prev := o.Status
	if err := s.transition(ctx, o, model.OrderStatusReadyForPickup, map[string]interface{}{"ready_at": now}); err != nil {
		return nil, err
	}
	o.ReadyAt = &now
	_ = s.msg.notify(ctx, notify.KindPickupReady, o, nil)
	s.msg.publish(ctx, events.TypeOrderStatusChanged, o, prev, now)
	return o, nil
}

func (s *orderService) Complete(ctx context.Context, orderID string, actor Actor) (*model.Order, error) {
	o, err := s.ownedOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(o.Status, model.OrderStatusCompleted) {
		return nil, &InvalidTransitionError{From: string(o.Status), To: string(model.OrderStatusCompleted)}
	}
	now := s.now()
	prev := o.Status
	if err := s.transition(ctx, o, model.OrderStatusCompleted, map[string]interface{}{"completed_at": now}); err != nil {
		return nil, err
	}
	o.CompletedAt = &now

	var co2 float64
	if p, err := s.packs.FindByID(ctx, o.PackID); err == nil {
		co2 = p.CO2SavedKg * float64(o.Quantity)
	}
	if err := s.impact.Add(ctx, o.UserUID, int64(o.Quantity), co2); err != nil {
		s.log.Warn("impact credit failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	s.msg.publish(ctx, events.TypeOrderStatusChanged, o, prev, now)
	return o, nil
}

// transition applies a conditional status change; losing a race is reported
// with the status the order was found in.
func (s *orderService) transition(ctx context.Context, o *model.Order, to model.OrderStatus, updates map[string]interface{}) error {
	ok, err := s.orders.Transition(ctx, o.ID, o.Status, to, updates)
	if err != nil {
		return err
	}
	if !ok {
		cur, err := s.findOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		return &InvalidTransitionError{From: string(cur.Status), To: string(to)}
	}
	o.Status = to
	return nil
}

func (s *orderService) Get(ctx context.Context, orderID string, actor Actor) (*model.Order, error) {
	o, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Admin || actor.Is(o.UserUID) {
		return o, nil
	}
	est, err := s.findEstablishment(ctx, o.EstablishmentID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(est.OwnerUID) {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *orderService) ListMine(ctx context.Context, actor Actor) ([]model.Order, error) {
	if actor.UID == "" {
		return nil, ErrForbidden
	}
	return s.orders.ListByUser(ctx, actor.UID)
}

func (s *orderService) ListByEstablishment(ctx context.Context, establishmentID uint64, status model.OrderStatus, actor Actor) ([]model.Order, error) {
	est, err := s.findEstablishment(ctx, establishmentID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !actor.Is(est.OwnerUID) {
		return nil, ErrForbidden
	}
	return s.orders.ListByEstablishment(ctx, establishmentID, status)
}

func (s *orderService) Export(ctx context.Context, actor Actor, fn func(batch []model.Order) error) error {
	if !actor.Admin {
		return ErrForbidden
	}
	return s.orders.EachBatch(ctx, 200, fn)
}

// ownedOrder loads an order the actor may fulfil as the establishment owner.
func (s *orderService) ownedOrder(ctx context.Context, orderID string, actor Actor) (*model.Order, error) {
	o, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	est, err := s.findEstablishment(ctx, o.EstablishmentID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(est.OwnerUID) {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *orderService) loadPack(ctx context.Context, packID uint64) (*model.Pack, *model.Establishment, error) {
	pack, err := s.packs.FindByID(ctx, packID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	est, err := s.findEstablishment(ctx, pack.EstablishmentID)
	if err != nil {
		return nil, nil, err
	}
	return pack, est, nil
}

func (s *orderService) findOrder(ctx context.Context, id string) (*model.Order, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (s *orderService) findEstablishment(ctx context.Context, id uint64) (*model.Establishment, error) {
	est, err := s.establishments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return est, nil
}
