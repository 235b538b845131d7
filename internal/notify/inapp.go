package notify

import (
	"context"
	"strconv"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
)

// InAppChannel stores the message in the user's notification feed.
type InAppChannel struct {
	repo repository.NotificationRepository
}

func NewInAppChannel(repo repository.NotificationRepository) *InAppChannel {
	return &InAppChannel{repo: repo}
}

func (c *InAppChannel) Name() string { return "in_app" }

func (c *InAppChannel) Deliver(ctx context.Context, msg Message, r Rendered) error {
	if msg.Recipient == "" {
		return nil
	}
	n := &model.Notification{
		UserUID: msg.Recipient,
		Type:    string(msg.Kind),
		Title:   r.Title,
		Body:    r.Body,
	}
	if id := msg.Data["orderId"]; id != "" {
		n.OrderID = &id
	}
	if raw := msg.Data["establishmentId"]; raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			n.EstablishmentID = &id
		}
	}
	return c.repo.Create(ctx, n)
}
