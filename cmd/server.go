package cmd

import (
	"context"
	"log"
	"log/slog"
	"time"

	"prefest/config"
	"prefest/internal/broker"
	"prefest/internal/drafts"
	"prefest/internal/handlers"
	"prefest/internal/services"
	"prefest/internal/services/gateway"
	"prefest/internal/store"
	"prefest/monitoring"
	"prefest/security"
	"prefest/utils"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// server holds everything the HTTP API needs. It is only built when the app
// serves, so CLI commands never dial Redis or the payment providers.
type server struct {
	cfg       *config.Config
	redis     *redis.Client
	db        *store.Store
	publisher broker.Publisher
	gateways  *gateway.Registry

	events   *handlers.EventHandler
	payments *handlers.PaymentHandler
	matches  *handlers.MatchHandler
	tickets  *handlers.TicketHandler
	drafts   *handlers.DraftHandler
	admin    *handlers.AdminHandler
	limiter  *security.RateLimiter
}

func newServer(ctx context.Context, app core.App, cfg *config.Config) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	s := &server{cfg: cfg, redis: redisClient, publisher: broker.LogPublisher{}}

	// Realtime notifications
	var notifier services.Notifier = services.LogNotifier{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		notifier = services.NewPubNubNotifier(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey, cfg.PubNubUserID)
	} else {
		slog.Warn("pubnub keys not set, notifications are only logged")
	}

	// Domain events
	if cfg.AMQPURL != "" {
		amqpPublisher, err := broker.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.publisher = amqpPublisher
	}

	// Payment gateways
	s.gateways, err = registerGateways(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(redisClient)
		go monitor.Run(ctx, 30*time.Second)
	}

	// Initialize services
	s.db = store.New(app)
	signer := services.NewTicketSigner(cfg.TicketSigningSecret)
	eventService := services.NewEventService(s.db)
	couponService := services.NewCouponService(s.db, monitor)
	ticketService := services.NewTicketService(s.db, s.db, signer, s.publisher, monitor)
	paymentService := services.NewPaymentService(
		redisClient, s.db, s.db, couponService, ticketService, s.gateways, notifier, s.publisher, monitor,
		services.PaymentConfig{
			Currency:  cfg.Currency,
			ReturnURL: cfg.PaymentReturnURL,
			LockTTL:   cfg.CheckoutLockTTL,
		},
	)
	matchService := services.NewMatchService(s.db, notifier, s.publisher, monitor)
	chatService := services.NewChatService(s.db, s.db, notifier, cfg.ChatTTL)
	draftStore := drafts.NewRedisStore(redisClient, cfg.DraftTTL)

	// Initialize handlers
	s.events = handlers.NewEventHandler(eventService, ticketService)
	s.payments = handlers.NewPaymentHandler(paymentService, couponService, cfg.IsDevelopment(), cfg.PaymentReturnURL)
	s.matches = handlers.NewMatchHandler(matchService, chatService)
	s.tickets = handlers.NewTicketHandler(ticketService)
	s.drafts = handlers.NewDraftHandler(draftStore)
	s.admin = handlers.NewAdminHandler(app, redisClient, paymentService)

	s.limiter = security.NewRateLimiter(redisClient)
	return s, nil
}

func (s *server) registerRoutes(e *core.ServeEvent) {
	cfg := s.cfg

	api := e.Router.Group("/api/v1")
	api.BindFunc(s.limiter.AntiBot(cfg.AntiBotMaxPerMin))

	// Events and checkout
	api.GET("/events/{eventId}", s.events.GetEvent)
	api.GET("/events/{eventId}/participation", s.events.GetParticipation).Bind(apis.RequireAuth())
	api.POST("/events/{eventId}/quote", s.payments.Quote).Bind(apis.RequireAuth())
	api.POST("/events/{eventId}/join", s.payments.JoinEvent).Bind(apis.RequireAuth())
	api.POST("/coupons/validate", s.payments.ValidateCoupon).
		Bind(apis.RequireAuth()).
		BindFunc(s.limiter.Limit("coupon", cfg.CouponRateLimit, cfg.RateLimitWindow))

	// Payments
	api.POST("/payments/intent", s.payments.CreatePaymentIntent).Bind(apis.RequireAuth())
	api.GET("/payments/{paymentId}", s.payments.GetPaymentDetails).Bind(apis.RequireAuth())

	// Matching and chat
	api.GET("/events/{eventId}/match-candidates", s.matches.GetCandidates).Bind(apis.RequireAuth())
	api.GET("/events/{eventId}/attendees", s.matches.GetAttendees).Bind(apis.RequireAuth())
	api.POST("/likes", s.matches.Like).
		Bind(apis.RequireAuth()).
		BindFunc(s.limiter.Limit("like", cfg.LikeRateLimit, cfg.RateLimitWindow))
	api.GET("/profiles/{userId}/public", s.matches.GetPublicProfile).Bind(apis.RequireAuth())
	api.GET("/matches/{matchId}/messages", s.matches.ListMessages).Bind(apis.RequireAuth())
	api.POST("/matches/{matchId}/messages", s.matches.SendMessage).Bind(apis.RequireAuth())

	// Ticket scanning
	api.POST("/tickets/validate", s.tickets.ValidateTicket).
		Bind(apis.RequireAuth()).
		BindFunc(s.limiter.Limit("scan", cfg.ScanRateLimit, cfg.RateLimitWindow))
	api.POST("/tickets/validate-code", s.tickets.ValidateCode).
		Bind(apis.RequireAuth()).
		BindFunc(s.limiter.Limit("scan", cfg.ScanRateLimit, cfg.RateLimitWindow))

	// Drafts
	api.GET("/drafts/{kind}", s.drafts.GetDraft).Bind(apis.RequireAuth())
	api.PUT("/drafts/{kind}", s.drafts.PutDraft).Bind(apis.RequireAuth())
	api.DELETE("/drafts/{kind}", s.drafts.DeleteDraft).Bind(apis.RequireAuth())

	// Admin endpoints
	api.GET("/admin/dashboard", s.admin.GetDashboard).Bind(apis.RequireSuperuserAuth())
	api.GET("/admin/gateway/check", s.admin.CheckGateway).Bind(apis.RequireSuperuserAuth())

	// Test endpoints for payment simulation
	if cfg.IsDevelopment() {
		api.POST("/test/simulate-payment", s.payments.SimulatePayment).Bind(apis.RequireSuperuserAuth())
		api.GET("/test/sandbox/authorize", s.payments.SandboxAuthorize)
	}

	e.Router.POST("/api/v1/payments/webhook/{provider}", s.payments.Webhook)
	e.Router.GET("/health", s.admin.Health)
	if cfg.EnableMetrics {
		e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
	}

	log.Println("Server routes registered")
}

func (s *server) Close() {
	if s.gateways != nil {
		if err := s.gateways.Close(context.Background()); err != nil {
			slog.Warn("close payment gateways", "error", err)
		}
	}
	if err := s.publisher.Close(); err != nil {
		slog.Warn("close publisher", "error", err)
	}
	if err := s.redis.Close(); err != nil {
		slog.Warn("close redis", "error", err)
	}
}
