package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"prefest/internal/broker"
	"prefest/internal/scanner"
	"prefest/internal/status"
	"prefest/models"
	"prefest/monitoring"
	"prefest/utils"
)

const maxCodeAttempts = 3

type TicketService struct {
	tickets   TicketStore
	events    EventStore
	signer    *TicketSigner
	publisher broker.Publisher
	monitor   *monitoring.Monitor
	now       func() time.Time
}

func NewTicketService(
	tickets TicketStore,
	events EventStore,
	signer *TicketSigner,
	publisher broker.Publisher,
	monitor *monitoring.Monitor,
) *TicketService {
	return &TicketService{
		tickets:   tickets,
		events:    events,
		signer:    signer,
		publisher: publisher,
		monitor:   monitor,
		now:       time.Now,
	}
}

// Issue creates a valid ticket with a fresh short code. The store enforces
// inventory and rejects a second ticket for the same user and event.
func (s *TicketService) Issue(ctx context.Context, p *models.Participant) error {
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		p.TicketCode, err = utils.GenerateShortCode()
		if err != nil {
			return fmt.Errorf("generate ticket code: %w", err)
		}

		err = s.tickets.CreateParticipant(ctx, p)
		if err == nil || !isDuplicateCode(err) {
			break
		}
		slog.Warn("ticket code collision, retrying", "attempt", attempt+1)
	}
	if err != nil {
		return err
	}

	p.QRPayload = s.signer.Payload(p.ID, p.EventID)

	s.publish(ctx, broker.KeyTicketIssued, broker.TicketIssued{
		ParticipantID: p.ID,
		UserID:        p.UserID,
		EventID:       p.EventID,
		TicketTypeID:  p.TicketTypeID,
		PaymentID:     p.PaymentID,
		TicketCode:    p.TicketCode,
	})
	return nil
}

// isDuplicateCode recognises a unique index violation on ticket_code, either
// from SQLite or from the record validator.
func isDuplicateCode(err error) bool {
	if errors.Is(err, status.ErrAlreadyRegistered) || errors.Is(err, status.ErrSoldOut) {
		return false
	}
	return containsAll(strings.ToLower(err.Error()), "unique", "ticket_code")
}

// IssuedForPayment reports whether a ticket exists for paymentID.
func (s *TicketService) IssuedForPayment(ctx context.Context, paymentID string) (bool, error) {
	_, err := s.tickets.FindParticipantByPayment(ctx, paymentID)
	if errors.Is(err, status.ErrParticipantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Participation returns the user's ticket for the event including its QR payload.
func (s *TicketService) Participation(ctx context.Context, userID, eventID string) (*models.Participant, error) {
	p, err := s.tickets.FindParticipant(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	p.QRPayload = s.signer.Payload(p.ID, p.EventID)
	return p, nil
}

// CanScan reports whether userID organizes eventID.
func (s *TicketService) CanScan(ctx context.Context, userID, eventID string) (bool, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return false, err
	}
	return event.OrganizerID == userID, nil
}

func (s *TicketService) ValidateLegacy(ctx context.Context, staffID string, req models.ValidateLegacyRequest) *models.ValidationResult {
	if !s.signer.Verify(req.Payload) {
		return s.finish("legacy", reject(models.CodeInvalidSignature, "Ticket signature is invalid"))
	}

	p, err := s.tickets.GetParticipant(ctx, req.Payload.T)
	if err != nil {
		return s.finish("legacy", s.lookupFailure(err))
	}
	if p.EventID != req.Payload.E {
		return s.finish("legacy", reject(models.CodeInvalidSignature, "Ticket signature is invalid"))
	}

	return s.finish("legacy", s.redeem(ctx, staffID, "legacy", p, req.EventID))
}

func (s *TicketService) ValidateShortCode(ctx context.Context, staffID string, req models.ValidateCodeRequest) *models.ValidationResult {
	code := scanner.NormalizeCode(req.Code)
	if !scanner.IsShortCode(code) {
		return s.finish("short_code", reject(models.CodeInvalidFormat, "Code format is invalid"))
	}

	p, err := s.tickets.FindParticipantByCode(ctx, code)
	if err != nil {
		return s.finish("short_code", s.lookupFailure(err))
	}

	return s.finish("short_code", s.redeem(ctx, staffID, "short_code", p, req.EventID))
}

func (s *TicketService) lookupFailure(err error) *models.ValidationResult {
	if errors.Is(err, status.ErrParticipantNotFound) {
		return reject(models.CodeNotFound, "Ticket not found")
	}
	slog.Error("ticket lookup failed", "error", err)
	return reject(models.CodeError, "Could not validate ticket")
}

func (s *TicketService) redeem(ctx context.Context, staffID, method string, p *models.Participant, eventID string) *models.ValidationResult {
	if p.EventID != eventID {
		return &models.ValidationResult{Code: models.CodeWrongEvent, Message: "Ticket belongs to another event", Participant: p}
	}

	switch p.Status {
	case models.ParticipantUsed:
		return alreadyUsed(p)
	case models.ParticipantCancelled:
		return &models.ValidationResult{Code: models.CodeCancelled, Message: "Ticket was cancelled", Participant: p}
	}

	now := s.now().UTC()
	ok, err := s.tickets.RedeemParticipant(ctx, p.ID, now)
	if err != nil {
		slog.Error("redeem ticket failed", "participant_id", p.ID, "error", err)
		return reject(models.CodeError, "Could not validate ticket")
	}
	if !ok {
		// Another device checked the ticket in first.
		p.Status = models.ParticipantUsed
		return alreadyUsed(p)
	}

	p.Status = models.ParticipantUsed
	p.CheckedInAt = &now

	s.publish(ctx, broker.KeyTicketCheckedIn, broker.TicketCheckedIn{
		ParticipantID: p.ID,
		EventID:       p.EventID,
		StaffID:       staffID,
		Method:        method,
		CheckedInAt:   now,
	})

	return &models.ValidationResult{Success: true, Code: models.CodeOK, Message: "Check-in confirmed", Participant: p}
}

func (s *TicketService) finish(method string, r *models.ValidationResult) *models.ValidationResult {
	s.monitor.TrackScan(method, string(r.Code))
	return r
}

func (s *TicketService) publish(ctx context.Context, key string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(ctx, key, broker.NewEnvelope(key, data)); err != nil {
		slog.Warn("publish event failed", "key", key, "error", err)
	}
}

func reject(code models.ValidationCode, msg string) *models.ValidationResult {
	return &models.ValidationResult{Code: code, Message: msg}
}

func alreadyUsed(p *models.Participant) *models.ValidationResult {
	msg := "Ticket was already used"
	if p.CheckedInAt != nil {
		msg = fmt.Sprintf("Ticket was already used at %s", p.CheckedInAt.Format("15:04"))
	}
	return &models.ValidationResult{Code: models.CodeAlreadyUsed, Message: msg, Participant: p}
}
