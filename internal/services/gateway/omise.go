package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"prefest/internal/status"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

type OmiseConfig struct {
	PublicKey  string
	SecretKey  string
	SourceType string // e.g. promptpay, truemoney, mobile_banking_scb
}

// OmiseGateway creates redirect charges backed by an offsite payment source.
type OmiseGateway struct {
	client     *omise.Client
	sourceType string
}

func NewOmiseGateway(cfg *OmiseConfig) (*OmiseGateway, error) {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("omise: public and secret keys are required")
	}
	client, err := omise.NewClient(cfg.PublicKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("omise: new client: %w", err)
	}
	sourceType := cfg.SourceType
	if sourceType == "" {
		sourceType = "promptpay"
	}
	return &OmiseGateway{client: client, sourceType: sourceType}, nil
}

func (g *OmiseGateway) GetProvider() Provider {
	return ProviderOmise
}

func (g *OmiseGateway) CreateCharge(_ context.Context, req *ChargeRequest) (*Charge, error) {
	if req.Amount <= 0 || req.Currency == "" {
		return nil, errors.New("omise: invalid charge amount or currency")
	}

	src := &omise.Source{}
	if err := g.client.Do(src, &operations.CreateSource{
		Type:     g.sourceType,
		Amount:   req.Amount,
		Currency: req.Currency,
	}); err != nil {
		return nil, fmt.Errorf("omise: create source: %w", err)
	}

	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.CreateCharge{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Source:      src.ID,
		ReturnURI:   req.ReturnURL,
		Description: req.Description,
		Metadata:    map[string]any{"payment_id": req.Reference},
	}); err != nil {
		return nil, fmt.Errorf("omise: create charge: %w", err)
	}

	return toCharge(ch), nil
}

func (g *OmiseGateway) RetrieveCharge(_ context.Context, chargeID string) (*Charge, error) {
	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.RetrieveCharge{ChargeID: chargeID}); err != nil {
		return nil, fmt.Errorf("omise: retrieve charge %s: %w", chargeID, err)
	}
	return toCharge(ch), nil
}

type omiseWebhook struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// ResolveWebhook re-reads the event from Omise instead of trusting the body.
func (g *OmiseGateway) ResolveWebhook(_ context.Context, body []byte) (*Charge, error) {
	var in omiseWebhook
	if err := json.Unmarshal(body, &in); err != nil || in.ID == "" {
		return nil, fmt.Errorf("omise: malformed webhook body")
	}

	ev := &omise.Event{}
	if err := g.client.Do(ev, &operations.RetrieveEvent{EventID: in.ID}); err != nil {
		return nil, fmt.Errorf("omise: retrieve event %s: %w", in.ID, err)
	}
	if ev.Key != "charge.complete" {
		return nil, ErrIgnoredEvent
	}

	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("omise: marshal event data: %w", err)
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("omise: unmarshal charge: %w", err)
	}
	if ch.ID == "" {
		return nil, status.ErrRefCodeNotFound
	}
	return toCharge(&ch), nil
}

func (g *OmiseGateway) VerifyCredentials(_ context.Context) error {
	account := &omise.Account{}
	if err := g.client.Do(account, &operations.RetrieveAccount{}); err != nil {
		return fmt.Errorf("omise: verify credentials: %w", err)
	}
	return nil
}

func (g *OmiseGateway) Close(_ context.Context) error {
	return nil
}

func toCharge(ch *omise.Charge) *Charge {
	out := &Charge{
		ID:           ch.ID,
		Status:       chargeStatus(string(ch.Status)),
		Amount:       ch.Amount,
		Currency:     ch.Currency,
		AuthorizeURI: ch.AuthorizeURI,
	}
	if ref, ok := ch.Metadata["payment_id"].(string); ok {
		out.Reference = ref
	}
	if ch.FailureCode != nil {
		out.FailureCode = *ch.FailureCode
	}
	return out
}

func chargeStatus(s string) ChargeStatus {
	switch s {
	case "successful":
		return ChargeSuccessful
	case "failed", "expired", "reversed":
		return ChargeFailed
	}
	return ChargePending
}
