package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/foodrescue-backend/internal/config"
	"github.com/shinyyama/foodrescue-backend/internal/events"
	"github.com/shinyyama/foodrescue-backend/internal/handler"
	"github.com/shinyyama/foodrescue-backend/internal/logging"
	appmw "github.com/shinyyama/foodrescue-backend/internal/middleware"
	"github.com/shinyyama/foodrescue-backend/internal/notify"
	"github.com/shinyyama/foodrescue-backend/internal/payment"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"github.com/shinyyama/foodrescue-backend/internal/service"
	"github.com/shinyyama/foodrescue-backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthClient is the part of the Firebase Auth client the API uses.
type AuthClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type PushClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type WebhookParser interface {
	ParseWebhook(payload []byte, sigHeader string) (payment.Callback, bool, error)
}

// Deps carries the optional integrations. Nil fields disable the feature.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	Auth      AuthClient
	Push      PushClient
	Email     notify.EmailSender
	Gateway   payment.Gateway
	Webhook   WebhookParser
	Events    events.Publisher
	Images    storage.ImageStore
	Estimator service.CO2Estimator
	SHA       string
	BuildTime string
}

type dbSetter interface {
	SetDB(db *gorm.DB)
}

type Server struct {
	e     *echo.Echo
	log   *zap.Logger
	repos []dbSetter
}

func New(db *gorm.DB, d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(logging.RequestLogger(log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			host := u.Hostname()
			if strings.HasSuffix(host, "vercel.app") {
				return true, nil
			}
			return false, nil
		},
	}))

	packRepo := repository.NewPackRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	estRepo := repository.NewEstablishmentRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	tokenRepo := repository.NewDeviceTokenRepository(db)
	revenueRepo := repository.NewRevenueRepository(db)
	impactRepo := repository.NewImpactRepository(db)

	channels := []notify.Channel{notify.NewInAppChannel(notifRepo)}
	if d.Push != nil {
		channels = append(channels, notify.NewPushChannel(d.Push, tokenRepo, log))
	}
	if d.Email != nil {
		channels = append(channels, notify.NewEmailChannel(d.Email, d.Auth))
	}
	notifier := notify.NewDispatcher(log, channels...)

	publisher := d.Events
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}

	packSvc := service.NewPackService(service.PackServiceDeps{
		Packs:          packRepo,
		Establishments: estRepo,
		Orders:         orderRepo,
		Images:         d.Images,
		Estimator:      d.Estimator,
		Log:            log,
	})
	orderSvc := service.NewOrderService(service.OrderServiceDeps{
		Orders:         orderRepo,
		Packs:          packRepo,
		Establishments: estRepo,
		Revenue:        revenueRepo,
		Impact:         impactRepo,
		Gateway:        d.Gateway,
		Notifier:       notifier,
		Events:         publisher,
		Log:            log,
		Currency:       cfg.PaymentCurrency,
	})
	estSvc := service.NewEstablishmentService(estRepo, notifier, log)
	notifSvc := service.NewNotificationService(notifRepo, tokenRepo)
	revenueSvc := service.NewRevenueService(revenueRepo, estRepo)
	impactSvc := service.NewImpactService(impactRepo)
	reminderSvc := service.NewReminderService(orderRepo, packRepo, estRepo, notifier, log, cfg.ReminderLead, cfg.ReminderFinalLead)

	packHandler := handler.NewPackHandler(packSvc)
	orderHandler := handler.NewOrderHandler(orderSvc)
	estHandler := handler.NewEstablishmentHandler(estSvc)
	adminHandler := handler.NewAdminHandler(estSvc, orderSvc)
	notifHandler := handler.NewNotificationHandler(notifSvc)
	revenueHandler := handler.NewRevenueHandler(revenueSvc)
	impactHandler := handler.NewImpactHandler(impactSvc)
	aiHandler := handler.NewAIHandler(packSvc)
	cronHandler := handler.NewCronHandler(reminderSvc)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    d.SHA,
			"build_time": d.BuildTime,
		})
	})

	api := e.Group("/api")
	if d.Auth != nil {
		authMw := appmw.NewAuthMiddleware(d.Auth)
		userHandler := handler.NewUserHandler(d.Auth, impactSvc)

		api.GET("/packs", packHandler.List)
		api.GET("/packs/:id", packHandler.Get)
		api.GET("/packs/:id/availability", packHandler.Availability)
		api.GET("/establishments/:id", estHandler.Get, authMw.OptionalAuth)
		api.GET("/establishments/:id/packs", packHandler.ListByEstablishment, authMw.OptionalAuth)
		api.GET("/users/:uid/public", userHandler.GetPublic)

		api.POST("/packs/:id/orders", orderHandler.Reserve, authMw.RequireAuth)
		api.POST("/establishments", estHandler.Create, authMw.RequireAuth)
		api.PUT("/establishments/:id", estHandler.Update, authMw.RequireAuth)
		api.GET("/me/establishments", estHandler.ListMine, authMw.RequireAuth)
		api.POST("/establishments/:id/packs", packHandler.Create, authMw.RequireAuth)
		api.PUT("/packs/:id", packHandler.Update, authMw.RequireAuth)
		api.DELETE("/packs/:id", packHandler.Delete, authMw.RequireAuth)
		api.POST("/packs/:id/image", packHandler.UploadImage, authMw.RequireAuth)
		api.POST("/packs/:id/co2-estimate", aiHandler.EstimateCO2, authMw.RequireAuth)
		api.GET("/establishments/:id/orders", orderHandler.ListByEstablishment, authMw.RequireAuth)
		api.GET("/establishments/:id/revenue", revenueHandler.Get, authMw.RequireAuth)
		api.GET("/me/orders", orderHandler.ListMine, authMw.RequireAuth)
		api.GET("/orders/:id", orderHandler.Get, authMw.RequireAuth)
		api.POST("/orders/:id/cancel", orderHandler.Cancel, authMw.RequireAuth)
		api.POST("/orders/:id/ready", orderHandler.MarkReady, authMw.RequireAuth)
		api.POST("/orders/:id/complete", orderHandler.Complete, authMw.RequireAuth)
		api.GET("/me/notifications", notifHandler.List, authMw.RequireAuth)
		api.POST("/me/notifications/read", notifHandler.MarkAllRead, authMw.RequireAuth)
		api.POST("/me/devices", notifHandler.RegisterDevice, authMw.RequireAuth)
		api.GET("/me/impact", impactHandler.Get, authMw.RequireAuth)

		admin := e.Group("/admin", authMw.RequireAuth, appmw.RequireAdmin)
		admin.GET("/establishments", adminHandler.ListEstablishments)
		admin.POST("/establishments/:id/verify", adminHandler.Verify)
		admin.POST("/establishments/:id/active", adminHandler.SetActive)
		admin.POST("/establishments/:id/payouts", revenueHandler.Payout)
		admin.GET("/orders/export.csv", adminHandler.ExportOrders)
	} else {
		log.Warn("firebase auth unavailable; only public routes are served")
		api.GET("/packs", packHandler.List)
		api.GET("/packs/:id", packHandler.Get)
		api.GET("/packs/:id/availability", packHandler.Availability)
		api.GET("/establishments/:id", estHandler.Get)
		api.GET("/establishments/:id/packs", packHandler.ListByEstablishment)
	}

	if d.Webhook != nil {
		paymentHandler := handler.NewPaymentHandler(d.Webhook, orderSvc, log)
		api.POST("/payments/stripe/webhook", paymentHandler.StripeWebhook)
	}
	e.POST("/internal/cron/reminders", cronHandler.Reminders, appmw.RequireCronSecret(cfg.CronSecret))

	return &Server{
		e:     e,
		log:   log,
		repos: []dbSetter{packRepo, orderRepo, estRepo, notifRepo, tokenRepo, revenueRepo, impactRepo},
	}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func (s *Server) SetDB(db *gorm.DB) {
	for _, r := range s.repos {
		r.SetDB(db)
	}
	s.log.Info("database attached")
}
