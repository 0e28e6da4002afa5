// Package checkout drives the ticket purchase wizard:
// select ticket type, personal data, payment.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"prefest/internal/pricing"
	"prefest/models"
)

type Step int

const (
	StepSelectTicketType Step = iota
	StepPersonalData
	StepPayment
)

func (s Step) String() string {
	switch s {
	case StepSelectTicketType:
		return "select_ticket_type"
	case StepPersonalData:
		return "personal_data"
	case StepPayment:
		return "payment"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	ErrNoTicketType      = errors.New("checkout: select a ticket type to continue")
	ErrUnknownTicketType = errors.New("checkout: ticket type does not belong to this event")
	ErrCouponInvalid     = errors.New("checkout: coupon is invalid or expired")
	ErrCouponLookup      = errors.New("checkout: could not validate the coupon, try again")
	ErrSubmitFailed      = errors.New("checkout: could not complete the purchase, try again")
	ErrNotAtPayment      = errors.New("checkout: purchase can only be submitted from the payment step")
	ErrBusy              = errors.New("checkout: a request is already in progress")
)

// Backend is the remote side of the checkout.
type Backend interface {
	ValidateCoupon(ctx context.Context, code string) (*models.Coupon, error)
	JoinEvent(ctx context.Context, req models.CheckoutRequest) (*models.Participant, error)
	CreatePaymentIntent(ctx context.Context, req models.CheckoutRequest) (*models.PaymentIntent, error)
}

// Result is the terminal action of a successful submit. Exactly one of
// Participant (free join) or RedirectURL (paid checkout) is set.
type Result struct {
	Participant *models.Participant
	RedirectURL string
	PaymentID   string
}

func (r Result) Free() bool { return r.Participant != nil }

type Wizard struct {
	backend     Backend
	event       models.Event
	ticketTypes []models.TicketType

	mu           sync.Mutex
	step         Step
	ticketTypeID string
	personal     models.PersonalData
	coupon       *models.Coupon
	busy         bool
}

// NewWizard starts at ticket type selection, or directly at personal data
// when the event sells no ticket types and is priced from its base price.
func NewWizard(backend Backend, event models.Event, ticketTypes []models.TicketType) *Wizard {
	w := &Wizard{
		backend:     backend,
		event:       event,
		ticketTypes: ticketTypes,
	}
	if len(ticketTypes) == 0 {
		w.step = StepPersonalData
	}
	return w
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) firstStep() Step {
	if len(w.ticketTypes) == 0 {
		return StepPersonalData
	}
	return StepSelectTicketType
}

func (w *Wizard) SelectTicketType(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id == "" {
		w.ticketTypeID = ""
		return nil
	}
	if w.findTicketType(id) == nil {
		return ErrUnknownTicketType
	}
	w.ticketTypeID = id
	return nil
}

func (w *Wizard) SetPersonalData(p models.PersonalData) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.personal = p
}

// Next advances one step when the guard of the current step passes.
// A failing guard leaves the step unchanged.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.step {
	case StepSelectTicketType:
		if w.ticketTypeID == "" {
			return ErrNoTicketType
		}
		w.step = StepPersonalData
	case StepPersonalData:
		if err := ValidatePersonalData(w.personal); err != nil {
			return err
		}
		w.step = StepPayment
	}
	return nil
}

// Back moves one step backwards. It is a no-op on the first step.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step > w.firstStep() {
		w.step--
	}
}

// ApplyCoupon looks up code remotely. A null result yields ErrCouponInvalid,
// a failed call yields ErrCouponLookup.
func (w *Wizard) ApplyCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCouponInvalid
	}
	if err := w.acquire(); err != nil {
		return nil, err
	}
	defer w.release()

	coupon, err := w.backend.ValidateCoupon(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouponLookup, err)
	}
	if coupon == nil {
		return nil, ErrCouponInvalid
	}

	w.mu.Lock()
	w.coupon = coupon
	w.mu.Unlock()
	return coupon, nil
}

func (w *Wizard) RemoveCoupon() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.coupon = nil
}

func (w *Wizard) Coupon() *models.Coupon {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.coupon
}

// Quote is recomputed on every call from the current selection.
func (w *Wizard) Quote() pricing.Breakdown {
	w.mu.Lock()
	defer w.mu.Unlock()
	return pricing.Quote(pricing.BasePrice(w.event, w.findTicketType(w.ticketTypeID)), w.coupon)
}

// Submit performs the purchase. Free totals join the event directly; paid
// totals create a payment intent whose URL the caller redirects to.
// Failures keep the wizard where it is so the user can submit again.
func (w *Wizard) Submit(ctx context.Context) (Result, error) {
	if w.Step() != StepPayment {
		return Result{}, ErrNotAtPayment
	}
	if err := w.acquire(); err != nil {
		return Result{}, err
	}
	defer w.release()

	req := w.request()
	if w.Quote().IsFree() {
		participant, err := w.backend.JoinEvent(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
		}
		return Result{Participant: participant}, nil
	}

	intent, err := w.backend.CreatePaymentIntent(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	if intent.PaymentURL == "" {
		return Result{}, fmt.Errorf("%w: payment url missing", ErrSubmitFailed)
	}
	return Result{RedirectURL: intent.PaymentURL, PaymentID: intent.PaymentID}, nil
}

func (w *Wizard) request() models.CheckoutRequest {
	w.mu.Lock()
	defer w.mu.Unlock()

	req := models.CheckoutRequest{
		EventID:      w.event.ID,
		TicketTypeID: w.ticketTypeID,
		Personal:     w.personal,
	}
	if w.coupon != nil {
		req.CouponCode = w.coupon.Code
	}
	return req
}

func (w *Wizard) acquire() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	return nil
}

func (w *Wizard) release() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

func (w *Wizard) findTicketType(id string) *models.TicketType {
	if id == "" {
		return nil
	}
	for i := range w.ticketTypes {
		if w.ticketTypes[i].ID == id {
			return &w.ticketTypes[i]
		}
	}
	return nil
}
