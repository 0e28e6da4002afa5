package checkout

import (
	"context"
	"errors"
	"testing"

	"prefest/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ValidateCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	c, _ := args.Get(0).(*models.Coupon)
	return c, args.Error(1)
}

func (m *MockBackend) JoinEvent(ctx context.Context, req models.CheckoutRequest) (*models.Participant, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*models.Participant)
	return p, args.Error(1)
}

func (m *MockBackend) CreatePaymentIntent(ctx context.Context, req models.CheckoutRequest) (*models.PaymentIntent, error) {
	args := m.Called(ctx, req)
	i, _ := args.Get(0).(*models.PaymentIntent)
	return i, args.Error(1)
}

var validPersonal = models.PersonalData{
	Name:  "Maria Silva",
	CPF:   "123.456.789-09",
	Email: "maria@example.com",
	Phone: "(11) 98765-4321",
	Age:   28,
}

func testEvent() (models.Event, []models.TicketType) {
	event := models.Event{ID: "ev1", Price: decimal.NewFromInt(50)}
	types := []models.TicketType{
		{ID: "tt-early", EventID: "ev1", Price: decimal.NewFromInt(100)},
		{ID: "tt-free", EventID: "ev1", Price: decimal.Zero},
	}
	return event, types
}

func wizardAtPayment(t *testing.T, backend Backend, ticketTypeID string) *Wizard {
	t.Helper()
	event, types := testEvent()
	w := NewWizard(backend, event, types)
	require.NoError(t, w.SelectTicketType(ticketTypeID))
	require.NoError(t, w.Next())
	w.SetPersonalData(validPersonal)
	require.NoError(t, w.Next())
	require.Equal(t, StepPayment, w.Step())
	return w
}

func TestWizard_NextWithoutTicketTypeKeepsStep(t *testing.T) {
	event, types := testEvent()
	w := NewWizard(&MockBackend{}, event, types)

	for i := 0; i < 3; i++ {
		err := w.Next()
		assert.ErrorIs(t, err, ErrNoTicketType)
		assert.Equal(t, StepSelectTicketType, w.Step())
	}
}

func TestWizard_SelectUnknownTicketType(t *testing.T) {
	event, types := testEvent()
	w := NewWizard(&MockBackend{}, event, types)

	assert.ErrorIs(t, w.SelectTicketType("other-event-type"), ErrUnknownTicketType)
	assert.ErrorIs(t, w.Next(), ErrNoTicketType)
}

func TestWizard_PersonalDataGuard(t *testing.T) {
	event, types := testEvent()
	w := NewWizard(&MockBackend{}, event, types)
	require.NoError(t, w.SelectTicketType("tt-early"))
	require.NoError(t, w.Next())

	bad := validPersonal
	bad.CPF = "123.456.789-0"
	w.SetPersonalData(bad)

	err := w.Next()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cpf", verr.Field)
	assert.Equal(t, StepPersonalData, w.Step())

	w.SetPersonalData(validPersonal)
	assert.NoError(t, w.Next())
	assert.Equal(t, StepPayment, w.Step())
}

func TestWizard_BackTransitions(t *testing.T) {
	w := wizardAtPayment(t, &MockBackend{}, "tt-early")

	w.Back()
	assert.Equal(t, StepPersonalData, w.Step())
	w.Back()
	assert.Equal(t, StepSelectTicketType, w.Step())
	w.Back()
	assert.Equal(t, StepSelectTicketType, w.Step())
}

func TestWizard_NoTicketTypesStartsAtPersonalData(t *testing.T) {
	event := models.Event{ID: "ev2", Price: decimal.NewFromInt(20)}
	w := NewWizard(&MockBackend{}, event, nil)

	assert.Equal(t, StepPersonalData, w.Step())
	w.Back()
	assert.Equal(t, StepPersonalData, w.Step())
	assert.Equal(t, "22.00", w.Quote().Total.StringFixed(2))
}

func TestWizard_ApplyCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("valid coupon is upper-cased and priced", func(t *testing.T) {
		backend := &MockBackend{}
		coupon := &models.Coupon{Code: "SAVE20", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(20), Active: true}
		backend.On("ValidateCoupon", ctx, "SAVE20").Return(coupon, nil)

		w := wizardAtPayment(t, backend, "tt-early")
		got, err := w.ApplyCoupon(ctx, "  save20 ")

		require.NoError(t, err)
		assert.Equal(t, coupon, got)
		assert.Equal(t, "90.00", w.Quote().Total.StringFixed(2))
		backend.AssertExpectations(t)
	})

	t.Run("null result is invalid", func(t *testing.T) {
		backend := &MockBackend{}
		backend.On("ValidateCoupon", ctx, "NOPE").Return(nil, nil)

		w := wizardAtPayment(t, backend, "tt-early")
		_, err := w.ApplyCoupon(ctx, "nope")

		assert.ErrorIs(t, err, ErrCouponInvalid)
		assert.Nil(t, w.Coupon())
	})

	t.Run("remote failure is distinct", func(t *testing.T) {
		backend := &MockBackend{}
		backend.On("ValidateCoupon", ctx, "X1").Return(nil, errors.New("connection reset"))

		w := wizardAtPayment(t, backend, "tt-early")
		_, err := w.ApplyCoupon(ctx, "x1")

		assert.ErrorIs(t, err, ErrCouponLookup)
		assert.NotErrorIs(t, err, ErrCouponInvalid)
	})

	t.Run("blank code skips the remote call", func(t *testing.T) {
		backend := &MockBackend{}
		w := wizardAtPayment(t, backend, "tt-early")

		_, err := w.ApplyCoupon(ctx, "   ")
		assert.ErrorIs(t, err, ErrCouponInvalid)
		backend.AssertNotCalled(t, "ValidateCoupon", mock.Anything, mock.Anything)
	})
}

func TestWizard_SubmitPaid(t *testing.T) {
	ctx := context.Background()
	backend := &MockBackend{}
	backend.On("CreatePaymentIntent", ctx, mock.MatchedBy(func(req models.CheckoutRequest) bool {
		return req.EventID == "ev1" && req.TicketTypeID == "tt-early" && req.Personal.Email == validPersonal.Email
	})).Return(&models.PaymentIntent{PaymentID: "pay1", PaymentURL: "https://pay.example/authorize"}, nil)

	w := wizardAtPayment(t, backend, "tt-early")
	res, err := w.Submit(ctx)

	require.NoError(t, err)
	assert.False(t, res.Free())
	assert.Equal(t, "https://pay.example/authorize", res.RedirectURL)
	assert.Equal(t, "pay1", res.PaymentID)
	backend.AssertNotCalled(t, "JoinEvent", mock.Anything, mock.Anything)
}

func TestWizard_SubmitFreeJoins(t *testing.T) {
	ctx := context.Background()
	backend := &MockBackend{}
	backend.On("JoinEvent", ctx, mock.Anything).Return(&models.Participant{ID: "p1", TicketCode: "PF-AB12-CD34"}, nil)

	w := wizardAtPayment(t, backend, "tt-free")
	res, err := w.Submit(ctx)

	require.NoError(t, err)
	assert.True(t, res.Free())
	assert.Equal(t, "PF-AB12-CD34", res.Participant.TicketCode)
	backend.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
}

func TestWizard_SubmitFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	backend := &MockBackend{}
	backend.On("CreatePaymentIntent", ctx, mock.Anything).Return(nil, errors.New("gateway down")).Once()

	w := wizardAtPayment(t, backend, "tt-early")
	_, err := w.Submit(ctx)

	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, StepPayment, w.Step())

	backend.On("CreatePaymentIntent", ctx, mock.Anything).Return(&models.PaymentIntent{PaymentID: "pay2", PaymentURL: "https://pay.example/2"}, nil).Once()
	res, err := w.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pay2", res.PaymentID)
}

func TestWizard_SubmitOutsidePaymentStep(t *testing.T) {
	event, types := testEvent()
	w := NewWizard(&MockBackend{}, event, types)

	_, err := w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotAtPayment)
}

type blockingBackend struct {
	MockBackend
	entered chan struct{}
	unblock chan struct{}
}

func (b *blockingBackend) CreatePaymentIntent(ctx context.Context, req models.CheckoutRequest) (*models.PaymentIntent, error) {
	close(b.entered)
	<-b.unblock
	return &models.PaymentIntent{PaymentID: "pay", PaymentURL: "https://pay.example"}, nil
}

func TestWizard_DuplicateSubmitIsRejected(t *testing.T) {
	backend := &blockingBackend{entered: make(chan struct{}), unblock: make(chan struct{})}
	w := wizardAtPayment(t, backend, "tt-early")

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background())
		done <- err
	}()

	<-backend.entered
	_, err := w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(backend.unblock)
	assert.NoError(t, <-done)
}
