package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Payment struct {
	ID           string          `json:"payment_id"`
	UserID       string          `json:"user_id"`
	EventID      string          `json:"event_id"`
	TicketTypeID string          `json:"ticket_type_id,omitempty"`
	CouponID     string          `json:"coupon_id,omitempty"`
	HolderName   string          `json:"holder_name"`
	HolderEmail  string          `json:"holder_email"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       PaymentStatus   `json:"status"`
	Provider     string          `json:"provider"`
	ProviderRef  string          `json:"provider_ref,omitempty"`
	PaymentURL   string          `json:"payment_url,omitempty"`
	FailureCode  string          `json:"failure_code,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

type PaymentIntent struct {
	PaymentID  string          `json:"payment_id"`
	PaymentURL string          `json:"payment_url"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

// PersonalData is collected in the second checkout step.
type PersonalData struct {
	Name  string `json:"name" validate:"required,min=2,max=120"`
	CPF   string `json:"cpf" validate:"required,cpf"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,phone"`
	Age   int    `json:"age" validate:"required,gte=1,lte=120"`
}

type CheckoutRequest struct {
	EventID      string       `json:"event_id"`
	TicketTypeID string       `json:"ticket_type_id,omitempty"`
	CouponCode   string       `json:"coupon_code,omitempty"`
	Personal     PersonalData `json:"personal"`
}
