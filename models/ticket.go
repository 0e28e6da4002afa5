package models

import "time"

type ParticipantStatus string

const (
	ParticipantValid     ParticipantStatus = "valid"
	ParticipantUsed      ParticipantStatus = "used"
	ParticipantCancelled ParticipantStatus = "cancelled"
)

type Participant struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	EventID        string            `json:"event_id"`
	TicketTypeID   string            `json:"ticket_type_id,omitempty"`
	TicketTypeName string            `json:"ticket_type_name,omitempty"`
	PaymentID      string            `json:"payment_id,omitempty"`
	HolderName     string            `json:"holder_name"`
	HolderEmail    string            `json:"holder_email"`
	Status         ParticipantStatus `json:"status"`
	TicketCode     string            `json:"ticket_code"`
	QRPayload      string            `json:"qr_payload,omitempty"`
	CheckedInAt    *time.Time        `json:"checked_in_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// LegacyPayload is the JSON body encoded in first-generation ticket QR codes.
type LegacyPayload struct {
	T string `json:"t"` // participant id
	E string `json:"e"` // event id
	K string `json:"k"` // signature
}

type ValidationCode string

const (
	CodeOK               ValidationCode = "OK"
	CodeAlreadyUsed      ValidationCode = "ALREADY_USED"
	CodeWrongEvent       ValidationCode = "WRONG_EVENT"
	CodeInvalidFormat    ValidationCode = "INVALID_FORMAT"
	CodeInvalidSignature ValidationCode = "INVALID_SIGNATURE"
	CodeNotFound         ValidationCode = "NOT_FOUND"
	CodeCancelled        ValidationCode = "CANCELLED"
	CodeError            ValidationCode = "ERROR"
)

// Known reports whether c belongs to the closed set returned by ticket validation.
func (c ValidationCode) Known() bool {
	switch c {
	case CodeOK, CodeAlreadyUsed, CodeWrongEvent, CodeInvalidFormat,
		CodeInvalidSignature, CodeNotFound, CodeCancelled, CodeError:
		return true
	}
	return false
}

type ValidationResult struct {
	Success     bool           `json:"success"`
	Code        ValidationCode `json:"code"`
	Message     string         `json:"message"`
	Participant *Participant   `json:"participant,omitempty"`
}

type ValidateLegacyRequest struct {
	Payload LegacyPayload `json:"payload"`
	EventID string        `json:"event_id"`
}

type ValidateCodeRequest struct {
	Code    string `json:"code"`
	EventID string `json:"event_id"`
}
