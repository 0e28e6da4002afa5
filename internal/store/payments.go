package store

import (
	"context"
	"fmt"
	"time"

	"prefest/internal/status"
	"prefest/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

func paymentFromRecord(r *core.Record) models.Payment {
	return models.Payment{
		ID:           r.Id,
		UserID:       r.GetString("user"),
		EventID:      r.GetString("event"),
		TicketTypeID: r.GetString("ticket_type"),
		CouponID:     r.GetString("coupon"),
		HolderName:   r.GetString("holder_name"),
		HolderEmail:  r.GetString("holder_email"),
		Amount:       money(r, "amount"),
		Currency:     r.GetString("currency"),
		Status:       models.PaymentStatus(r.GetString("status")),
		Provider:     r.GetString("provider"),
		ProviderRef:  r.GetString("provider_ref"),
		PaymentURL:   r.GetString("payment_url"),
		FailureCode:  r.GetString("failure_code"),
		CreatedAt:    timeOf(r, "created"),
		CompletedAt:  optionalTime(r, "completed_at"),
	}
}

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	collection, err := s.app.FindCollectionByNameOrId(CollectionPayments)
	if err != nil {
		return err
	}

	record := core.NewRecord(collection)
	record.Set("user", p.UserID)
	record.Set("event", p.EventID)
	record.Set("ticket_type", p.TicketTypeID)
	record.Set("coupon", p.CouponID)
	record.Set("holder_name", p.HolderName)
	record.Set("holder_email", p.HolderEmail)
	record.Set("amount", p.Amount.InexactFloat64())
	record.Set("currency", p.Currency)
	record.Set("status", string(p.Status))
	record.Set("provider", p.Provider)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	p.ID = record.Id
	p.CreatedAt = timeOf(record, "created")
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	r, err := s.app.FindRecordById(CollectionPayments, id)
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment %s: %w", id, err)
	}
	p := paymentFromRecord(r)
	return &p, nil
}

func (s *Store) FindPaymentByProviderRef(_ context.Context, ref string) (*models.Payment, error) {
	r, err := s.app.FindFirstRecordByFilter(CollectionPayments, "provider_ref = {:ref}", dbx.Params{"ref": ref})
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment by ref: %w", err)
	}
	p := paymentFromRecord(r)
	return &p, nil
}

// AttachCharge stores the gateway reference and redirect URL of a pending payment.
func (s *Store) AttachCharge(ctx context.Context, id, providerRef, paymentURL string) error {
	r, err := s.app.FindRecordById(CollectionPayments, id)
	if err != nil {
		return fmt.Errorf("find payment %s: %w", id, err)
	}
	r.Set("provider_ref", providerRef)
	r.Set("payment_url", paymentURL)
	return s.app.SaveWithContext(ctx, r)
}

// CompletePayment moves a pending payment to paid or failed. It reports false
// when the payment was already completed.
func (s *Store) CompletePayment(_ context.Context, id string, to models.PaymentStatus, failureCode string, at time.Time) (bool, error) {
	res, err := s.app.DB().NewQuery(`
		UPDATE payments SET status = {:to}, failure_code = {:failure}, completed_at = {:at}
		WHERE id = {:id} AND status = 'pending'
	`).Bind(dbx.Params{
		"id":      id,
		"to":      string(to),
		"failure": failureCode,
		"at":      dbTime(at),
	}).Execute()
	if err != nil {
		return false, fmt.Errorf("complete payment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
