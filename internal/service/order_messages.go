package service

import (
	"context"
	"strconv"
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/events"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/notify"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"go.uber.org/zap"
)

// orderMessenger sends the customer-facing messages and events of an order.
// Both are best-effort: failures are logged and never undo a committed change.
type orderMessenger struct {
	packs          repository.PackRepository
	establishments repository.EstablishmentRepository
	notifier       notify.Notifier
	events         events.Publisher
	log            *zap.Logger
}

func orderMessageData(o *model.Order, p *model.Pack, e *model.Establishment) map[string]string {
	data := map[string]string{
		"orderId":    o.ID,
		"quantity":   strconv.Itoa(o.Quantity),
		"pickupDate": o.PickupDate.Format("2006-01-02"),
		"status":     string(o.Status),
	}
	if p != nil {
		data["pack"] = p.Title
		data["pickupStart"] = p.PickupTimeStart
		data["pickupEnd"] = p.PickupTimeEnd
	}
	if e != nil {
		data["establishment"] = e.Name
		data["address"] = e.Address
		data["phone"] = e.Phone
	}
	return data
}

func (m orderMessenger) notify(ctx context.Context, kind notify.Kind, o *model.Order, extra map[string]string) error {
	var (
		p *model.Pack
		e *model.Establishment
	)
	if found, err := m.packs.FindByID(ctx, o.PackID); err == nil {
		p = found
	}
	if found, err := m.establishments.FindByID(ctx, o.EstablishmentID); err == nil {
		e = found
	}
	data := orderMessageData(o, p, e)
	for k, v := range extra {
		data[k] = v
	}
	err := m.notifier.Send(ctx, notify.Message{Recipient: o.UserUID, Kind: kind, Data: data})
	if err != nil {
		m.log.Warn("order notification failed",
			zap.String("order_id", o.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	return err
}

func (m orderMessenger) publish(ctx context.Context, typ string, o *model.Order, from model.OrderStatus, at time.Time) {
	ev := events.OrderEvent{
		Type:            typ,
		OrderID:         o.ID,
		PackID:          o.PackID,
		EstablishmentID: o.EstablishmentID,
		UserUID:         o.UserUID,
		Quantity:        o.Quantity,
		FromStatus:      string(from),
		Status:          string(o.Status),
		Timestamp:       at,
	}
	if err := m.events.PublishOrderEvent(ctx, ev); err != nil {
		m.log.Warn("order event publish failed",
			zap.String("order_id", o.ID),
			zap.String("type", typ),
			zap.Error(err))
	}
}
