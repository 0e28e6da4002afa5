package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"prefest/internal/broker"
	"prefest/internal/checkout"
	"prefest/internal/services/gateway"
	"prefest/internal/status"
	"prefest/models"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lockTTL = 30 * time.Second

type paymentFixture struct {
	store     *memStore
	notifier  *recordingNotifier
	publisher *recordingPublisher
	mock      redismock.ClientMock
	svc       *PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	st := newMemStore()
	st.events["e1"] = &models.Event{ID: "e1", Title: "Festival", Status: "published", Price: decimal.NewFromInt(50)}
	st.ticketTypes["vip"] = &models.TicketType{ID: "vip", EventID: "e1", Name: "VIP", Price: decimal.NewFromInt(100), QuantityAvailable: 5}
	st.ticketTypes["guest"] = &models.TicketType{ID: "guest", EventID: "e1", Name: "Guest", Price: decimal.Zero, QuantityAvailable: 5}
	st.coupons["HALF"] = &models.Coupon{ID: "c1", Code: "HALF", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(50), Active: true}
	st.coupons["ALL"] = &models.Coupon{ID: "c2", Code: "ALL", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(500), Active: true}

	registry := gateway.NewRegistry(gateway.NewFactory())
	require.NoError(t, registry.Register(context.Background(), gateway.ProviderSandbox, &gateway.SandboxConfig{AppURL: "http://localhost:8090"}))

	db, mock := redismock.NewClientMock()
	notifier := &recordingNotifier{}
	pub := &recordingPublisher{}
	tickets := NewTicketService(st, st, NewTicketSigner("secret"), pub, nil)
	coupons := NewCouponService(st, nil)

	svc := NewPaymentService(db, st, st, coupons, tickets, registry, notifier, pub, nil, PaymentConfig{
		Currency:  "thb",
		ReturnURL: "http://localhost:3000/checkout/return",
		LockTTL:   lockTTL,
	})

	return &paymentFixture{store: st, notifier: notifier, publisher: pub, mock: mock, svc: svc}
}

func (f *paymentFixture) expectLock(userID, eventID string) {
	key := "checkout:lock:" + userID + ":" + eventID
	f.mock.ExpectSetNX(key, 1, lockTTL).SetVal(true)
	f.mock.ExpectDel(key).SetVal(1)
}

func validRequest(ticketTypeID, coupon string) models.CheckoutRequest {
	return models.CheckoutRequest{
		EventID:      "e1",
		TicketTypeID: ticketTypeID,
		CouponCode:   coupon,
		Personal: models.PersonalData{
			Name:  "Maria Silva",
			CPF:   "123.456.789-09",
			Email: "maria@example.com",
			Phone: "(11) 98765-4321",
			Age:   28,
		},
	}
}

func TestPaymentService_Quote(t *testing.T) {
	f := newPaymentFixture(t)

	q, err := f.svc.Quote(context.Background(), "u1", validRequest("vip", "half"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", q.Base.StringFixed(2))
	assert.Equal(t, "10.00", q.Fee.StringFixed(2))
	assert.Equal(t, "50.00", q.Discount.StringFixed(2))
	assert.Equal(t, "60.00", q.Total.StringFixed(2))
}

func TestPaymentService_PlanRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*memStore, *models.CheckoutRequest)
		wantErr error
	}{
		{"ticket type required", func(_ *memStore, r *models.CheckoutRequest) { r.TicketTypeID = "" }, status.ErrTicketTypeRequired},
		{"foreign ticket type", func(s *memStore, r *models.CheckoutRequest) {
			s.ticketTypes["other"] = &models.TicketType{ID: "other", EventID: "e2", QuantityAvailable: 1}
			r.TicketTypeID = "other"
		}, status.ErrTicketTypeNotFound},
		{"sold out", func(s *memStore, _ *models.CheckoutRequest) { s.ticketTypes["vip"].QuantitySold = 5 }, status.ErrSoldOut},
		{"not published", func(s *memStore, _ *models.CheckoutRequest) { s.events["e1"].Status = "draft" }, status.ErrEventNotOpen},
		{"invalid coupon", func(_ *memStore, r *models.CheckoutRequest) { r.CouponCode = "NOPE" }, status.ErrCouponNotFound},
		{"already registered", func(s *memStore, _ *models.CheckoutRequest) {
			s.participants["p0"] = &models.Participant{ID: "p0", UserID: "u1", EventID: "e1", Status: models.ParticipantValid}
		}, status.ErrAlreadyRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			req := validRequest("vip", "")
			tt.mutate(f.store, &req)

			_, err := f.svc.Quote(context.Background(), "u1", req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaymentService_PlanValidatesPersonalData(t *testing.T) {
	f := newPaymentFixture(t)
	req := validRequest("vip", "")
	req.Personal.CPF = "123"

	_, err := f.svc.Quote(context.Background(), "u1", req)
	var verr *checkout.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cpf", verr.Field)
}

func TestPaymentService_JoinEvent(t *testing.T) {
	t.Run("free ticket type", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.expectLock("u1", "e1")

		p, err := f.svc.JoinEvent(context.Background(), "u1", validRequest("guest", ""))
		require.NoError(t, err)
		assert.Equal(t, "Guest", p.TicketTypeName)
		assert.NotEmpty(t, p.TicketCode)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("coupon brings the total to zero", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.expectLock("u1", "e1")

		_, err := f.svc.JoinEvent(context.Background(), "u1", validRequest("vip", "ALL"))
		require.NoError(t, err)
		assert.Equal(t, 1, f.store.coupons["ALL"].UsedCount)
	})

	t.Run("paid total is refused", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.expectLock("u1", "e1")

		_, err := f.svc.JoinEvent(context.Background(), "u1", validRequest("vip", ""))
		assert.ErrorIs(t, err, status.ErrPaymentRequired)
		assert.Empty(t, f.store.participants)
	})

	t.Run("concurrent submission", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.mock.ExpectSetNX("checkout:lock:u1:e1", 1, lockTTL).SetVal(false)

		_, err := f.svc.JoinEvent(context.Background(), "u1", validRequest("guest", ""))
		assert.ErrorIs(t, err, status.ErrCheckoutInProgress)
	})

	t.Run("redis failure", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.mock.ExpectSetNX("checkout:lock:u1:e1", 1, lockTTL).SetErr(errors.New("redis down"))

		_, err := f.svc.JoinEvent(context.Background(), "u1", validRequest("guest", ""))
		assert.Error(t, err)
	})
}

func TestPaymentService_PaidFlow(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	f.expectLock("u1", "e1")

	intent, err := f.svc.CreatePaymentIntent(ctx, "u1", validRequest("vip", "HALF"))
	require.NoError(t, err)
	assert.Equal(t, "60.00", intent.Amount.StringFixed(2))
	assert.Contains(t, intent.PaymentURL, "/api/v1/test/sandbox/authorize")

	payment := f.store.payments[intent.PaymentID]
	require.NotNil(t, payment)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, "c1", payment.CouponID)
	assert.NotEmpty(t, payment.ProviderRef)

	require.NoError(t, f.svc.SimulatePayment(ctx, intent.PaymentID, gateway.ChargeSuccessful))

	assert.Equal(t, models.PaymentPaid, f.store.payments[intent.PaymentID].Status)
	p, err := f.store.FindParticipant(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, intent.PaymentID, p.PaymentID)
	assert.Equal(t, 1, f.store.coupons["HALF"].UsedCount)
	assert.Equal(t, []models.NotificationType{models.NotifyPaymentSuccess}, f.notifier.types())
	assert.Contains(t, f.publisher.keys, broker.KeyTicketIssued)

	// A repeated notification does not issue a second ticket.
	require.NoError(t, f.svc.SimulatePayment(ctx, intent.PaymentID, gateway.ChargeSuccessful))
	assert.Len(t, f.store.participants, 1)
	assert.Len(t, f.notifier.sent, 1)
}

func TestPaymentService_RetryIssuesMissingTicket(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	f.expectLock("u1", "e1")

	intent, err := f.svc.CreatePaymentIntent(ctx, "u1", validRequest("vip", "HALF"))
	require.NoError(t, err)

	f.store.failIssue = status.ErrSoldOut
	err = f.svc.SimulatePayment(ctx, intent.PaymentID, gateway.ChargeSuccessful)
	require.ErrorIs(t, err, status.ErrSoldOut)
	assert.Equal(t, models.PaymentPaid, f.store.payments[intent.PaymentID].Status)
	assert.Empty(t, f.store.participants)
	assert.Empty(t, f.notifier.sent)

	// The provider retries the notification once stock is back.
	require.NoError(t, f.svc.SimulatePayment(ctx, intent.PaymentID, gateway.ChargeSuccessful))
	p, err := f.store.FindParticipantByPayment(ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, 1, f.store.coupons["HALF"].UsedCount)
	assert.Equal(t, []models.NotificationType{models.NotifyPaymentSuccess}, f.notifier.types())

	require.NoError(t, f.svc.SimulatePayment(ctx, intent.PaymentID, gateway.ChargeSuccessful))
	assert.Len(t, f.store.participants, 1)
	assert.Len(t, f.notifier.sent, 1)
}

func TestPaymentService_FailedCharge(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	f.expectLock("u1", "e1")

	intent, err := f.svc.CreatePaymentIntent(ctx, "u1", validRequest("vip", ""))
	require.NoError(t, err)

	require.NoError(t, f.svc.SimulatePayment(ctx, intent.PaymentID, gateway.ChargeFailed))

	payment := f.store.payments[intent.PaymentID]
	assert.Equal(t, models.PaymentFailed, payment.Status)
	assert.Equal(t, "simulated_failure", payment.FailureCode)
	assert.Empty(t, f.store.participants)
	assert.Equal(t, []models.NotificationType{models.NotifyPaymentFailed}, f.notifier.types())
	assert.Contains(t, f.publisher.keys, broker.KeyPaymentFailed)
}

func TestPaymentService_CreateIntentRejectsFreeTotal(t *testing.T) {
	f := newPaymentFixture(t)
	f.expectLock("u1", "e1")

	_, err := f.svc.CreatePaymentIntent(context.Background(), "u1", validRequest("guest", ""))
	assert.ErrorIs(t, err, status.ErrFreeCheckout)
	assert.Empty(t, f.store.payments)
}

func TestPaymentService_GetPaymentChecksOwner(t *testing.T) {
	f := newPaymentFixture(t)
	f.store.payments["pay1"] = &models.Payment{ID: "pay1", UserID: "u1"}

	_, err := f.svc.GetPayment(context.Background(), "u2", "pay1")
	assert.ErrorIs(t, err, status.ErrForbidden)

	p, err := f.svc.GetPayment(context.Background(), "u1", "pay1")
	require.NoError(t, err)
	assert.Equal(t, "pay1", p.ID)
}

func TestPaymentService_WebhookIgnoresPendingEvents(t *testing.T) {
	f := newPaymentFixture(t)
	err := f.svc.HandleWebhook(context.Background(), gateway.ProviderSandbox, []byte(`{"charge_id":"x","status":"pending"}`))
	assert.NoError(t, err)
}

func TestPaymentService_VerifyGateway(t *testing.T) {
	f := newPaymentFixture(t)
	res := f.svc.VerifyGateway(context.Background())
	require.Contains(t, res, gateway.ProviderSandbox)
	assert.NoError(t, res[gateway.ProviderSandbox])
}

func TestPaymentService_ReturnURL(t *testing.T) {
	f := newPaymentFixture(t)
	u := f.svc.returnURL(&models.Payment{ID: "pay1", EventID: "e1"})
	assert.Equal(t, "http://localhost:3000/checkout/return?event_id=e1&payment_id=pay1", u)
}
