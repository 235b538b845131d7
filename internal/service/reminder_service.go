package service

import (
	"context"
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/notify"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"go.uber.org/zap"
)

type SweepResult struct {
	Reminded24h int `json:"reminded24h"`
	Reminded2h  int `json:"reminded2h"`
	Failed      int `json:"failed"`
}

// ReminderService sends pickup reminders. It never changes an order's status;
// each reminder is claimed once through its sent-at marker.
type ReminderService interface {
	Sweep(ctx context.Context, now time.Time) (SweepResult, error)
}

type reminderService struct {
	orders    repository.OrderRepository
	msg       orderMessenger
	log       *zap.Logger
	lead      time.Duration
	finalLead time.Duration
}

func NewReminderService(orders repository.OrderRepository, packs repository.PackRepository, establishments repository.EstablishmentRepository, notifier notify.Notifier, log *zap.Logger, lead, finalLead time.Duration) ReminderService {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if lead <= 0 {
		lead = 24 * time.Hour
	}
	if finalLead <= 0 {
		finalLead = 3 * time.Hour
	}
	return &reminderService{
		orders: orders,
		msg: orderMessenger{
			packs:          packs,
			establishments: establishments,
			notifier:       notifier,
			log:            log,
		},
		log:       log,
		lead:      lead,
		finalLead: finalLead,
	}
}

type reminderPass struct {
	kind     repository.ReminderKind
	notify   notify.Kind
	statuses []model.OrderStatus
	window   time.Duration
}

func (s *reminderService) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	passes := []reminderPass{
		{
			kind:     repository.Reminder24h,
			notify:   notify.KindPickupReminder24h,
			statuses: []model.OrderStatus{model.OrderStatusConfirmed},
			window:   s.lead,
		},
		{
			kind:     repository.Reminder2h,
			notify:   notify.KindPickupReminder2h,
			statuses: []model.OrderStatus{model.OrderStatusConfirmed, model.OrderStatusReadyForPickup},
			window:   s.finalLead,
		},
	}
	var res SweepResult
	for _, p := range passes {
		sent, failed, err := s.runPass(ctx, p, now)
		if p.kind == repository.Reminder24h {
			res.Reminded24h = sent
		} else {
			res.Reminded2h = sent
		}
		res.Failed += failed
		if err != nil {
			return res, err
		}
	}
	s.log.Info("reminder sweep finished",
		zap.Int("reminded_24h", res.Reminded24h),
		zap.Int("reminded_2h", res.Reminded2h),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (s *reminderService) runPass(ctx context.Context, p reminderPass, now time.Time) (sent, failed int, err error) {
	candidates, err := s.orders.ListReminderCandidates(ctx, p.kind, p.statuses, now, now.Add(p.window))
	if err != nil {
		return 0, 0, err
	}
	for i := range candidates {
		o := &candidates[i]
		if err := ctx.Err(); err != nil {
			return sent, failed, err
		}
		claimed, err := s.orders.ClaimReminder(ctx, o.ID, p.kind, now)
		if err != nil {
			s.log.Warn("reminder claim failed", zap.String("order_id", o.ID), zap.Error(err))
			failed++
			continue
		}
		if !claimed {
			continue
		}
		if err := s.msg.notify(ctx, p.notify, o, nil); err != nil {
			failed++
			continue
		}
		sent++
	}
	return sent, failed, nil
}
