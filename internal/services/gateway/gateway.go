// Package gateway abstracts the payment providers behind one interface.
package gateway

import (
	"context"
	"errors"
)

// Provider identifies a payment gateway implementation.
type Provider string

const (
	ProviderOmise   Provider = "omise"
	ProviderSandbox Provider = "sandbox"
)

// ErrIgnoredEvent is returned for webhook notifications that do not settle a charge.
var ErrIgnoredEvent = errors.New("gateway: event does not complete a charge")

type ChargeStatus string

const (
	ChargePending    ChargeStatus = "pending"
	ChargeSuccessful ChargeStatus = "successful"
	ChargeFailed     ChargeStatus = "failed"
)

// ChargeRequest asks the provider for a redirect-based charge.
type ChargeRequest struct {
	Amount      int64  `json:"amount"` // minor units
	Currency    string `json:"currency"`
	Reference   string `json:"reference"` // local payment id
	ReturnURL   string `json:"return_url"`
	Description string `json:"description,omitempty"`
}

type Charge struct {
	ID           string       `json:"id"`
	Status       ChargeStatus `json:"status"`
	Amount       int64        `json:"amount"`
	Currency     string       `json:"currency"`
	AuthorizeURI string       `json:"authorize_uri"`
	Reference    string       `json:"reference"`
	FailureCode  string       `json:"failure_code,omitempty"`
}

// Gateway is implemented by every payment provider.
type Gateway interface {
	// GetProvider returns the provider type
	GetProvider() Provider

	// CreateCharge starts a charge and returns the URL the buyer is sent to.
	CreateCharge(ctx context.Context, req *ChargeRequest) (*Charge, error)

	// RetrieveCharge reads the current state of a charge.
	RetrieveCharge(ctx context.Context, chargeID string) (*Charge, error)

	// ResolveWebhook authenticates a provider notification and returns the
	// settled charge it refers to.
	ResolveWebhook(ctx context.Context, body []byte) (*Charge, error)

	// VerifyCredentials checks the configured keys against the provider.
	VerifyCredentials(ctx context.Context) error

	// Close gracefully closes any connections
	Close(ctx context.Context) error
}

// Factory creates gateways based on provider type.
type Factory interface {
	Create(ctx context.Context, provider Provider, config any) (Gateway, error)
	SupportedProviders() []Provider
}
