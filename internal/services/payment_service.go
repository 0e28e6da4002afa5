package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"prefest/internal/broker"
	"prefest/internal/checkout"
	"prefest/internal/pricing"
	"prefest/internal/services/gateway"
	"prefest/internal/status"
	"prefest/models"
	"prefest/monitoring"

	"github.com/redis/go-redis/v9"
)

type PaymentConfig struct {
	Currency  string
	ReturnURL string
	LockTTL   time.Duration
}

// PaymentService prices checkouts on the server and settles them, either
// directly for free tickets or through a payment gateway.
type PaymentService struct {
	Redis     redis.Cmdable
	events    EventStore
	payments  PaymentStore
	coupons   *CouponService
	tickets   *TicketService
	gateways  *gateway.Registry
	notifier  Notifier
	publisher broker.Publisher
	monitor   *monitoring.Monitor
	cfg       PaymentConfig
	now       func() time.Time
}

func NewPaymentService(
	redisClient redis.Cmdable,
	events EventStore,
	payments PaymentStore,
	coupons *CouponService,
	tickets *TicketService,
	gateways *gateway.Registry,
	notifier Notifier,
	publisher broker.Publisher,
	monitor *monitoring.Monitor,
	cfg PaymentConfig,
) *PaymentService {
	return &PaymentService{
		Redis:     redisClient,
		events:    events,
		payments:  payments,
		coupons:   coupons,
		tickets:   tickets,
		gateways:  gateways,
		notifier:  notifier,
		publisher: publisher,
		monitor:   monitor,
		cfg:       cfg,
		now:       time.Now,
	}
}

type checkoutPlan struct {
	event      *models.Event
	ticketType *models.TicketType
	coupon     *models.Coupon
	quote      pricing.Breakdown
}

func (p *checkoutPlan) ticketTypeID() string {
	if p.ticketType == nil {
		return ""
	}
	return p.ticketType.ID
}

func (p *checkoutPlan) couponID() string {
	if p.coupon == nil {
		return ""
	}
	return p.coupon.ID
}

// Quote prices a checkout request without side effects.
func (s *PaymentService) Quote(ctx context.Context, userID string, req models.CheckoutRequest) (pricing.Breakdown, error) {
	plan, err := s.plan(ctx, userID, req)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return plan.quote, nil
}

func (s *PaymentService) plan(ctx context.Context, userID string, req models.CheckoutRequest) (*checkoutPlan, error) {
	if err := checkout.ValidatePersonalData(req.Personal); err != nil {
		return nil, err
	}

	event, err := s.events.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if event.Status != "published" {
		return nil, status.ErrEventNotOpen
	}

	ticketTypes, err := s.events.ListTicketTypes(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}

	plan := &checkoutPlan{event: event}
	switch {
	case len(ticketTypes) > 0 && req.TicketTypeID == "":
		return nil, status.ErrTicketTypeRequired
	case len(ticketTypes) == 0 && req.TicketTypeID != "":
		return nil, status.ErrTicketTypeNotFound
	case req.TicketTypeID != "":
		tt, err := s.events.GetTicketType(ctx, req.TicketTypeID)
		if err != nil {
			return nil, err
		}
		if tt.EventID != event.ID {
			return nil, status.ErrTicketTypeNotFound
		}
		if !tt.OnSale(s.now()) {
			return nil, status.ErrNotOnSale
		}
		if tt.Remaining() == 0 {
			return nil, status.ErrSoldOut
		}
		plan.ticketType = tt
	}

	if event.Capacity > 0 && event.ParticipantsCount >= event.Capacity {
		return nil, status.ErrSoldOut
	}

	if req.CouponCode != "" {
		coupon, err := s.coupons.Validate(ctx, req.CouponCode)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			return nil, status.ErrCouponNotFound
		}
		plan.coupon = coupon
	}

	if _, err := s.tickets.Participation(ctx, userID, event.ID); err == nil {
		return nil, status.ErrAlreadyRegistered
	} else if !errors.Is(err, status.ErrParticipantNotFound) {
		return nil, fmt.Errorf("check registration: %w", err)
	}

	plan.quote = pricing.Quote(pricing.BasePrice(*event, plan.ticketType), plan.coupon)
	return plan, nil
}

// lock serialises checkout submissions of one user for one event.
func (s *PaymentService) lock(ctx context.Context, userID, eventID string) (func(), error) {
	key := fmt.Sprintf("checkout:lock:%s:%s", userID, eventID)
	ok, err := s.Redis.SetNX(ctx, key, 1, s.cfg.LockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, status.ErrCheckoutInProgress
	}
	return func() {
		if err := s.Redis.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			slog.Warn("release checkout lock failed", "key", key, "error", err)
		}
	}, nil
}

// JoinEvent registers the user for free. The total is recomputed here and any
// amount above zero is refused.
func (s *PaymentService) JoinEvent(ctx context.Context, userID string, req models.CheckoutRequest) (*models.Participant, error) {
	unlock, err := s.lock(ctx, userID, req.EventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	plan, err := s.plan(ctx, userID, req)
	if err != nil {
		s.monitor.TrackCheckout("free", "rejected")
		return nil, err
	}
	if !plan.quote.IsFree() {
		s.monitor.TrackCheckout("free", "rejected")
		return nil, status.ErrPaymentRequired
	}

	participant := &models.Participant{
		UserID:       userID,
		EventID:      plan.event.ID,
		TicketTypeID: plan.ticketTypeID(),
		HolderName:   req.Personal.Name,
		HolderEmail:  req.Personal.Email,
	}
	if err := s.tickets.Issue(ctx, participant); err != nil {
		s.monitor.TrackCheckout("free", "failed")
		return nil, err
	}
	if plan.ticketType != nil {
		participant.TicketTypeName = plan.ticketType.Name
	}

	s.redeemCoupon(ctx, plan.couponID())
	s.monitor.TrackCheckout("free", "success")
	return participant, nil
}

// CreatePaymentIntent records a pending payment and opens a charge with the
// primary gateway. The caller redirects the buyer to PaymentURL.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID string, req models.CheckoutRequest) (*models.PaymentIntent, error) {
	unlock, err := s.lock(ctx, userID, req.EventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	plan, err := s.plan(ctx, userID, req)
	if err != nil {
		s.monitor.TrackCheckout("paid", "rejected")
		return nil, err
	}
	if plan.quote.IsFree() {
		s.monitor.TrackCheckout("paid", "rejected")
		return nil, status.ErrFreeCheckout
	}

	gw, err := s.gateways.Primary()
	if err != nil {
		return nil, err
	}
	provider := string(gw.GetProvider())

	payment := &models.Payment{
		UserID:       userID,
		EventID:      plan.event.ID,
		TicketTypeID: plan.ticketTypeID(),
		CouponID:     plan.couponID(),
		HolderName:   req.Personal.Name,
		HolderEmail:  req.Personal.Email,
		Amount:       plan.quote.Total,
		Currency:     s.cfg.Currency,
		Status:       models.PaymentPending,
		Provider:     provider,
	}
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	start := s.now()
	charge, err := gw.CreateCharge(ctx, &gateway.ChargeRequest{
		Amount:      plan.quote.MinorUnits(),
		Currency:    s.cfg.Currency,
		Reference:   payment.ID,
		ReturnURL:   s.returnURL(payment),
		Description: plan.event.Title,
	})
	s.monitor.TrackGatewayCall(provider, "create_charge", s.now().Sub(start))
	if err != nil {
		s.monitor.TrackPayment(provider, "create_charge", "error")
		if _, cerr := s.payments.CompletePayment(ctx, payment.ID, models.PaymentFailed, "charge_create_failed", s.now()); cerr != nil {
			slog.Error("mark payment failed", "payment_id", payment.ID, "error", cerr)
		}
		return nil, fmt.Errorf("%w: %v", status.ErrFailedPayment, err)
	}
	s.monitor.TrackPayment(provider, "create_charge", "success")

	if err := s.payments.AttachCharge(ctx, payment.ID, charge.ID, charge.AuthorizeURI); err != nil {
		return nil, fmt.Errorf("attach charge: %w", err)
	}

	s.monitor.TrackCheckout("paid", "intent")
	return &models.PaymentIntent{
		PaymentID:  payment.ID,
		PaymentURL: charge.AuthorizeURI,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
	}, nil
}

func (s *PaymentService) returnURL(p *models.Payment) string {
	u, err := url.Parse(s.cfg.ReturnURL)
	if err != nil || s.cfg.ReturnURL == "" {
		return s.cfg.ReturnURL
	}
	q := u.Query()
	q.Set("payment_id", p.ID)
	q.Set("event_id", p.EventID)
	u.RawQuery = q.Encode()
	return u.String()
}

// GetPayment returns a payment owned by userID.
func (s *PaymentService) GetPayment(ctx context.Context, userID, paymentID string) (*models.Payment, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, status.ErrForbidden
	}
	return p, nil
}

// HandleWebhook settles the payment behind a provider notification. Repeated
// notifications for an already settled payment are accepted and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, provider gateway.Provider, body []byte) error {
	gw, err := s.gateways.Get(provider)
	if err != nil {
		return err
	}

	charge, err := gw.ResolveWebhook(ctx, body)
	if errors.Is(err, gateway.ErrIgnoredEvent) {
		return nil
	}
	if err != nil {
		s.monitor.TrackPayment(string(provider), "webhook", "error")
		return err
	}

	payment, err := s.payments.FindPaymentByProviderRef(ctx, charge.ID)
	if errors.Is(err, status.ErrPaymentNotFound) && charge.Reference != "" {
		payment, err = s.payments.GetPayment(ctx, charge.Reference)
	}
	if err != nil {
		return err
	}

	s.monitor.TrackPayment(string(provider), "webhook", string(charge.Status))
	return s.settle(ctx, payment, charge)
}

func (s *PaymentService) settle(ctx context.Context, payment *models.Payment, charge *gateway.Charge) error {
	switch charge.Status {
	case gateway.ChargeSuccessful:
		return s.markPaid(ctx, payment)
	case gateway.ChargeFailed:
		return s.markFailed(ctx, payment, charge.FailureCode)
	default:
		return nil
	}
}

func (s *PaymentService) markPaid(ctx context.Context, payment *models.Payment) error {
	ok, err := s.payments.CompletePayment(ctx, payment.ID, models.PaymentPaid, "", s.now())
	if err != nil {
		return err
	}
	if !ok {
		missing, err := s.paidWithoutTicket(ctx, payment.ID)
		if err != nil {
			return err
		}
		if !missing {
			slog.Info("payment already settled", "payment_id", payment.ID)
			return nil
		}
		slog.Warn("paid payment has no ticket, issuing again", "payment_id", payment.ID)
	}

	participant := &models.Participant{
		UserID:       payment.UserID,
		EventID:      payment.EventID,
		TicketTypeID: payment.TicketTypeID,
		PaymentID:    payment.ID,
		HolderName:   payment.HolderName,
		HolderEmail:  payment.HolderEmail,
	}
	if err := s.tickets.Issue(ctx, participant); err != nil {
		// The charge went through but no ticket could be issued. This needs a refund.
		slog.Error("issue ticket for paid payment", "payment_id", payment.ID, "error", err)
		s.monitor.TrackCheckout("paid", "issue_failed")
		return fmt.Errorf("issue ticket for payment %s: %w", payment.ID, err)
	}

	s.redeemCoupon(ctx, payment.CouponID)
	s.monitor.TrackCheckout("paid", "success")

	notify(ctx, s.notifier, payment.UserID, models.Notification{
		Type:      models.NotifyPaymentSuccess,
		EventID:   payment.EventID,
		PaymentID: payment.ID,
	})
	return nil
}

// paidWithoutTicket reports whether paymentID is paid but has no ticket yet.
func (s *PaymentService) paidWithoutTicket(ctx context.Context, paymentID string) (bool, error) {
	current, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return false, err
	}
	if current.Status != models.PaymentPaid {
		return false, nil
	}
	issued, err := s.tickets.IssuedForPayment(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("check ticket for payment %s: %w", paymentID, err)
	}
	return !issued, nil
}

func (s *PaymentService) markFailed(ctx context.Context, payment *models.Payment, failureCode string) error {
	ok, err := s.payments.CompletePayment(ctx, payment.ID, models.PaymentFailed, failureCode, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	s.monitor.TrackCheckout("paid", "failed")
	notify(ctx, s.notifier, payment.UserID, models.Notification{
		Type:      models.NotifyPaymentFailed,
		EventID:   payment.EventID,
		PaymentID: payment.ID,
	})

	if s.publisher != nil {
		env := broker.NewEnvelope(broker.KeyPaymentFailed, broker.PaymentFailed{
			PaymentID:   payment.ID,
			UserID:      payment.UserID,
			EventID:     payment.EventID,
			FailureCode: failureCode,
		})
		if err := s.publisher.PublishJSON(ctx, broker.KeyPaymentFailed, env); err != nil {
			slog.Warn("publish event failed", "key", broker.KeyPaymentFailed, "error", err)
		}
	}
	return nil
}

func (s *PaymentService) redeemCoupon(ctx context.Context, couponID string) {
	if err := s.coupons.Redeem(ctx, couponID); err != nil {
		slog.Warn("coupon usage not counted", "coupon_id", couponID, "error", err)
	}
}

// SimulatePayment settles a sandbox payment as if the provider had called back.
func (s *PaymentService) SimulatePayment(ctx context.Context, paymentID string, to gateway.ChargeStatus) error {
	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Provider != string(gateway.ProviderSandbox) {
		return fmt.Errorf("payment %s was not created by the sandbox gateway", paymentID)
	}
	return s.SettleSandboxCharge(ctx, payment.ProviderRef, to)
}

// SettleSandboxCharge feeds a sandbox webhook for chargeID through HandleWebhook.
func (s *PaymentService) SettleSandboxCharge(ctx context.Context, chargeID string, to gateway.ChargeStatus) error {
	body, err := json.Marshal(map[string]any{
		"charge_id":    chargeID,
		"status":       to,
		"failure_code": failureCodeFor(to),
	})
	if err != nil {
		return err
	}
	return s.HandleWebhook(ctx, gateway.ProviderSandbox, body)
}

func failureCodeFor(to gateway.ChargeStatus) string {
	if to == gateway.ChargeFailed {
		return "simulated_failure"
	}
	return ""
}

// VerifyGateway checks the credentials of every registered provider.
func (s *PaymentService) VerifyGateway(ctx context.Context) map[gateway.Provider]error {
	out := make(map[gateway.Provider]error)
	for _, p := range s.gateways.Available() {
		gw, err := s.gateways.Get(p)
		if err != nil {
			out[p] = err
			continue
		}
		out[p] = gw.VerifyCredentials(ctx)
	}
	return out
}
