package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/shinyyama/foodrescue-backend/internal/ai"
	"github.com/shinyyama/foodrescue-backend/internal/config"
	"github.com/shinyyama/foodrescue-backend/internal/db"
	"github.com/shinyyama/foodrescue-backend/internal/events"
	"github.com/shinyyama/foodrescue-backend/internal/logging"
	"github.com/shinyyama/foodrescue-backend/internal/notify"
	"github.com/shinyyama/foodrescue-backend/internal/payment"
	"github.com/shinyyama/foodrescue-backend/internal/server"
	"github.com/shinyyama/foodrescue-backend/internal/storage"
	"go.uber.org/zap"
)

var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger, err := logging.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := server.Deps{
		Config:    cfg,
		Log:       logger,
		SHA:       gitSHA,
		BuildTime: buildTime,
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID})
	if err != nil {
		logger.Warn("firebase init failed", zap.Error(err))
	} else {
		if client, err := app.Auth(ctx); err != nil {
			logger.Warn("firebase auth init failed", zap.Error(err))
		} else {
			deps.Auth = client
		}
		if client, err := app.Messaging(ctx); err != nil {
			logger.Warn("firebase messaging init failed", zap.Error(err))
		} else {
			deps.Push = client
		}
	}

	if cfg.PaymentsEnabled() {
		gw := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
		deps.Gateway = gw
		deps.Webhook = gw
	} else {
		logger.Info("payments disabled; orders are paid at pickup")
	}

	if cfg.SMTPHost != "" {
		sender, err := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		if err != nil {
			logger.Warn("smtp disabled", zap.Error(err))
		} else {
			deps.Email = sender
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		defer func() { _ = pub.Close() }()
		deps.Events = pub
	}

	if cfg.StorageBucket != "" {
		store, err := storage.NewGCSStore(ctx, cfg.StorageBucket, cfg.StorageCredentialsFile)
		if err != nil {
			logger.Warn("image storage disabled", zap.Error(err))
		} else {
			defer func() { _ = store.Close() }()
			deps.Images = store
		}
	}

	if cfg.GeminiEnabled {
		est, err := ai.NewCO2Estimator(ctx, cfg.GeminiModel, logger)
		if err != nil {
			logger.Warn("co2 estimator disabled", zap.Error(err))
		} else {
			deps.Estimator = est
		}
	}

	srv := server.New(nil, deps)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", zap.String("addr", addr), zap.String("git_sha", gitSHA))
		errCh <- srv.Start(addr)
	}()

	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			logger.Error("db connect error", zap.Error(err))
			return
		}
		if err := db.Migrate(conn); err != nil {
			logger.Error("auto migrate error", zap.Error(err))
		}
		srv.SetDB(conn)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}
}
