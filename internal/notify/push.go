package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"go.uber.org/zap"
)

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// PushChannel sends FCM notifications to every registered device of the user
// and prunes tokens FCM reports as unregistered.
type PushChannel struct {
	client multicastSender
	tokens repository.DeviceTokenRepository
	log    *zap.Logger
}

func NewPushChannel(client multicastSender, tokens repository.DeviceTokenRepository, log *zap.Logger) *PushChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &PushChannel{client: client, tokens: tokens, log: log}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Deliver(ctx context.Context, msg Message, r Rendered) error {
	if msg.Recipient == "" {
		return nil
	}
	tokens, err := c.tokens.ListTokens(ctx, msg.Recipient)
	if err != nil {
		return fmt.Errorf("list device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["kind"] = string(msg.Kind)

	resp, err := c.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Data:         data,
		Notification: &messaging.Notification{Title: r.Title, Body: r.Body},
	})
	if err != nil {
		return fmt.Errorf("fcm multicast: %w", err)
	}

	var stale []string
	for i, res := range resp.Responses {
		if res.Success || i >= len(tokens) {
			continue
		}
		if messaging.IsUnregistered(res.Error) {
			stale = append(stale, tokens[i])
		}
	}
	if len(stale) > 0 {
		if err := c.tokens.DeleteTokens(ctx, stale); err != nil {
			c.log.Warn("prune device tokens failed", zap.Int("count", len(stale)), zap.Error(err))
		}
	}
	if resp.SuccessCount == 0 {
		return fmt.Errorf("fcm delivered to none of %d devices", len(tokens))
	}
	return nil
}
