package broker

import (
	"time"

	"github.com/google/uuid"
)

const (
	KeyTicketIssued    = "ticket.issued"
	KeyTicketCheckedIn = "ticket.checked_in"
	KeyMatchCreated    = "match.created"
	KeyPaymentFailed   = "payment.failed"
)

// Envelope wraps every event published to the exchange.
type Envelope struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	Version    int       `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func NewEnvelope(key string, data any) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Event:      key,
		Version:    1,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type TicketIssued struct {
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id"`
	EventID       string `json:"event_id"`
	TicketTypeID  string `json:"ticket_type_id,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`
	TicketCode    string `json:"ticket_code"`
}

type TicketCheckedIn struct {
	ParticipantID string    `json:"participant_id"`
	EventID       string    `json:"event_id"`
	StaffID       string    `json:"staff_id"`
	Method        string    `json:"method"`
	CheckedInAt   time.Time `json:"checked_in_at"`
}

type MatchCreated struct {
	MatchID string `json:"match_id"`
	EventID string `json:"event_id"`
	UserA   string `json:"user_a"`
	UserB   string `json:"user_b"`
}

type PaymentFailed struct {
	PaymentID   string `json:"payment_id"`
	UserID      string `json:"user_id"`
	EventID     string `json:"event_id"`
	FailureCode string `json:"failure_code,omitempty"`
}
