package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"prefest/internal/status"

	"github.com/google/uuid"
)

type SandboxConfig struct {
	// AppURL is where the simulated authorize page is served.
	AppURL string
}

// SandboxGateway settles charges locally. It backs development setups and
// the payment simulation endpoint.
type SandboxGateway struct {
	appURL string

	mu      sync.Mutex
	charges map[string]*Charge
}

func NewSandboxGateway(cfg *SandboxConfig) *SandboxGateway {
	return &SandboxGateway{appURL: cfg.AppURL, charges: make(map[string]*Charge)}
}

func (g *SandboxGateway) GetProvider() Provider {
	return ProviderSandbox
}

func (g *SandboxGateway) CreateCharge(_ context.Context, req *ChargeRequest) (*Charge, error) {
	if req.Amount <= 0 {
		return nil, errors.New("sandbox: invalid charge amount")
	}

	id := "chrg_sbx_" + uuid.NewString()
	q := url.Values{"charge": {id}, "return": {req.ReturnURL}}
	ch := &Charge{
		ID:           id,
		Status:       ChargePending,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Reference:    req.Reference,
		AuthorizeURI: g.appURL + "/api/v1/test/sandbox/authorize?" + q.Encode(),
	}

	g.mu.Lock()
	g.charges[id] = ch
	g.mu.Unlock()

	copied := *ch
	return &copied, nil
}

func (g *SandboxGateway) RetrieveCharge(_ context.Context, chargeID string) (*Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.charges[chargeID]
	if !ok {
		return nil, status.ErrRefCodeNotFound
	}
	copied := *ch
	return &copied, nil
}

type sandboxWebhook struct {
	ChargeID    string       `json:"charge_id"`
	Status      ChargeStatus `json:"status"`
	FailureCode string       `json:"failure_code,omitempty"`
}

// ResolveWebhook settles a known sandbox charge with the status from body.
func (g *SandboxGateway) ResolveWebhook(_ context.Context, body []byte) (*Charge, error) {
	var in sandboxWebhook
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("sandbox: malformed webhook body: %w", err)
	}
	if in.Status != ChargeSuccessful && in.Status != ChargeFailed {
		return nil, ErrIgnoredEvent
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.charges[in.ChargeID]
	if !ok {
		return nil, status.ErrRefCodeNotFound
	}
	ch.Status = in.Status
	ch.FailureCode = in.FailureCode

	copied := *ch
	return &copied, nil
}

func (g *SandboxGateway) VerifyCredentials(_ context.Context) error {
	return nil
}

func (g *SandboxGateway) Close(_ context.Context) error {
	return nil
}
