// Command sweep runs the pickup reminder sweep once and exits. It is meant to
// be triggered by a scheduler.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/shinyyama/foodrescue-backend/internal/config"
	"github.com/shinyyama/foodrescue-backend/internal/db"
	"github.com/shinyyama/foodrescue-backend/internal/logging"
	"github.com/shinyyama/foodrescue-backend/internal/notify"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"github.com/shinyyama/foodrescue-backend/internal/service"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("sweep failed: %v", err)
	}
}

func run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	conn, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}

	orders := repository.NewOrderRepository(conn)
	packs := repository.NewPackRepository(conn)
	establishments := repository.NewEstablishmentRepository(conn)
	tokens := repository.NewDeviceTokenRepository(conn)

	channels := []notify.Channel{notify.NewInAppChannel(repository.NewNotificationRepository(conn))}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID})
	if err != nil {
		logger.Warn("firebase init failed; push and email lookup disabled", zap.Error(err))
	} else {
		if client, err := app.Messaging(ctx); err == nil {
			channels = append(channels, notify.NewPushChannel(client, tokens, logger))
		} else {
			logger.Warn("firebase messaging init failed", zap.Error(err))
		}
		if cfg.SMTPHost != "" {
			sender, err := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
			if err != nil {
				logger.Warn("smtp disabled", zap.Error(err))
			} else if users, err := app.Auth(ctx); err == nil {
				channels = append(channels, notify.NewEmailChannel(sender, users))
			} else {
				logger.Warn("firebase auth init failed", zap.Error(err))
			}
		}
	}

	svc := service.NewReminderService(orders, packs, establishments, notify.NewDispatcher(logger, channels...), logger, cfg.ReminderLead, cfg.ReminderFinalLead)
	res, err := svc.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	logger.Info("reminder sweep finished",
		zap.Int("reminded_24h", res.Reminded24h),
		zap.Int("reminded_2h", res.Reminded2h),
		zap.Int("failed", res.Failed))
	return nil
}
