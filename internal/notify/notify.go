// Package notify delivers order and establishment notifications over in-app,
// push and email channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type Kind string

const (
	KindOrderConfirmed        Kind = "order_confirmed"
	KindOrderCancelled        Kind = "order_cancelled"
	KindPickupReady           Kind = "pickup_ready"
	KindPickupReminder24h     Kind = "pickup_reminder_24h"
	KindPickupReminder2h      Kind = "pickup_reminder_2h"
	KindEstablishmentVerified Kind = "establishment_verified"
)

// Message is addressed to a user uid. Email overrides the address looked up
// for the uid, e.g. an establishment's contact address.
type Message struct {
	Recipient string
	Email     string
	Kind      Kind
	Data      map[string]string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Channel is one delivery mechanism.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg Message, r Rendered) error
}

// Dispatcher renders a message once and hands it to every channel. A failing
// channel does not stop the others.
type Dispatcher struct {
	channels []Channel
	log      *zap.Logger
}

func NewDispatcher(log *zap.Logger, channels ...Channel) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{channels: channels, log: log}
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	if msg.Recipient == "" && msg.Email == "" {
		return errors.New("notify: message has no recipient")
	}
	rendered, err := Render(msg.Kind, msg.Data)
	if err != nil {
		return err
	}
	var errs []error
	for _, ch := range d.channels {
		if err := ch.Deliver(ctx, msg, rendered); err != nil {
			d.log.Warn("notification channel failed",
				zap.String("channel", ch.Name()),
				zap.String("kind", string(msg.Kind)),
				zap.String("recipient", msg.Recipient),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Nop discards every message.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }
