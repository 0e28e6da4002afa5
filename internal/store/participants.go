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

func participantFromRecord(r *core.Record) models.Participant {
	return models.Participant{
		ID:           r.Id,
		UserID:       r.GetString("user"),
		EventID:      r.GetString("event"),
		TicketTypeID: r.GetString("ticket_type"),
		PaymentID:    r.GetString("payment"),
		HolderName:   r.GetString("holder_name"),
		HolderEmail:  r.GetString("holder_email"),
		Status:       models.ParticipantStatus(r.GetString("status")),
		TicketCode:   r.GetString("ticket_code"),
		CheckedInAt:  optionalTime(r, "checked_in_at"),
		CreatedAt:    timeOf(r, "created"),
	}
}

func (s *Store) withTicketTypeName(p *models.Participant) {
	if p.TicketTypeID == "" {
		return
	}
	if r, err := s.app.FindRecordById(CollectionTicketTypes, p.TicketTypeID); err == nil {
		p.TicketTypeName = r.GetString("name")
	}
}

func (s *Store) GetParticipant(_ context.Context, id string) (*models.Participant, error) {
	r, err := s.app.FindRecordById(CollectionParticipants, id)
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("find participant %s: %w", id, err)
	}
	p := participantFromRecord(r)
	s.withTicketTypeName(&p)
	return &p, nil
}

// FindParticipant returns the non-cancelled ticket of userID for eventID.
func (s *Store) FindParticipant(_ context.Context, userID, eventID string) (*models.Participant, error) {
	r, err := s.app.FindFirstRecordByFilter(
		CollectionParticipants,
		"user = {:user} && event = {:event} && status != 'cancelled'",
		dbx.Params{"user": userID, "event": eventID},
	)
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("find participant: %w", err)
	}
	p := participantFromRecord(r)
	s.withTicketTypeName(&p)
	return &p, nil
}

func (s *Store) FindParticipantByCode(_ context.Context, code string) (*models.Participant, error) {
	r, err := s.app.FindFirstRecordByFilter(
		CollectionParticipants,
		"ticket_code = {:code}",
		dbx.Params{"code": code},
	)
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("find participant by code: %w", err)
	}
	p := participantFromRecord(r)
	s.withTicketTypeName(&p)
	return &p, nil
}

// FindParticipantByPayment returns the ticket issued for a paid payment.
func (s *Store) FindParticipantByPayment(_ context.Context, paymentID string) (*models.Participant, error) {
	r, err := s.app.FindFirstRecordByFilter(
		CollectionParticipants,
		"payment = {:payment}",
		dbx.Params{"payment": paymentID},
	)
	if err != nil {
		if isNotFound(err) {
			return nil, status.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("find participant by payment: %w", err)
	}
	p := participantFromRecord(r)
	return &p, nil
}

// CreateParticipant issues a ticket. Ticket type inventory and event capacity
// are reserved with conditional updates inside the same transaction.
func (s *Store) CreateParticipant(_ context.Context, p *models.Participant) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		_, err := txApp.FindFirstRecordByFilter(
			CollectionParticipants,
			"user = {:user} && event = {:event} && status != 'cancelled'",
			dbx.Params{"user": p.UserID, "event": p.EventID},
		)
		if err == nil {
			return status.ErrAlreadyRegistered
		}
		if !isNotFound(err) {
			return fmt.Errorf("check existing participant: %w", err)
		}

		if p.TicketTypeID != "" {
			res, err := txApp.DB().NewQuery(`
				UPDATE ticket_types SET quantity_sold = quantity_sold + 1
				WHERE id = {:id} AND event = {:event} AND quantity_sold < quantity_available
			`).Bind(dbx.Params{"id": p.TicketTypeID, "event": p.EventID}).Execute()
			if err != nil {
				return fmt.Errorf("reserve ticket type: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return status.ErrSoldOut
			}
		}

		res, err := txApp.DB().NewQuery(`
			UPDATE events SET participants_count = participants_count + 1
			WHERE id = {:id} AND (capacity = 0 OR participants_count < capacity)
		`).Bind(dbx.Params{"id": p.EventID}).Execute()
		if err != nil {
			return fmt.Errorf("reserve event capacity: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return status.ErrSoldOut
		}

		collection, err := txApp.FindCollectionByNameOrId(CollectionParticipants)
		if err != nil {
			return err
		}

		record := core.NewRecord(collection)
		record.Set("user", p.UserID)
		record.Set("event", p.EventID)
		record.Set("ticket_type", p.TicketTypeID)
		record.Set("payment", p.PaymentID)
		record.Set("holder_name", p.HolderName)
		record.Set("holder_email", p.HolderEmail)
		record.Set("status", string(models.ParticipantValid))
		record.Set("ticket_code", p.TicketCode)

		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("save participant: %w", err)
		}

		p.ID = record.Id
		p.Status = models.ParticipantValid
		p.CreatedAt = timeOf(record, "created")
		return nil
	})
}

// RedeemParticipant flips a ticket from valid to used. It reports false when
// the ticket was not valid anymore at the time of the update.
func (s *Store) RedeemParticipant(_ context.Context, id string, at time.Time) (bool, error) {
	res, err := s.app.DB().NewQuery(`
		UPDATE participants SET status = 'used', checked_in_at = {:at}
		WHERE id = {:id} AND status = 'valid'
	`).Bind(dbx.Params{"id": id, "at": dbTime(at)}).Execute()
	if err != nil {
		return false, fmt.Errorf("redeem participant %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
