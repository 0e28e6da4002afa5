package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"prefest/internal/status"
)

type DefaultFactory struct{}

func NewFactory() *DefaultFactory {
	return &DefaultFactory{}
}

// Create builds a gateway for provider from its typed configuration.
func (f *DefaultFactory) Create(ctx context.Context, provider Provider, config any) (Gateway, error) {
	switch provider {
	case ProviderOmise:
		cfg, ok := config.(*OmiseConfig)
		if !ok {
			return nil, fmt.Errorf("invalid omise config type, expected *gateway.OmiseConfig")
		}
		return NewOmiseGateway(cfg)

	case ProviderSandbox:
		cfg, ok := config.(*SandboxConfig)
		if !ok {
			return nil, fmt.Errorf("invalid sandbox config type, expected *gateway.SandboxConfig")
		}
		return NewSandboxGateway(cfg), nil

	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", provider)
	}
}

func (f *DefaultFactory) SupportedProviders() []Provider {
	return []Provider{ProviderOmise, ProviderSandbox}
}

// Registry holds the configured gateways and the primary one used for new charges.
type Registry struct {
	mu       sync.RWMutex
	gateways map[Provider]Gateway
	factory  Factory
	primary  Provider
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		gateways: make(map[Provider]Gateway),
		factory:  factory,
	}
}

// Register creates and stores a gateway. The first registered one becomes primary.
func (r *Registry) Register(ctx context.Context, provider Provider, config any) error {
	gw, err := r.factory.Create(ctx, provider, config)
	if err != nil {
		return fmt.Errorf("failed to create %s gateway: %w", provider, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.gateways[provider] = gw
	if r.primary == "" {
		r.primary = provider
	}
	return nil
}

func (r *Registry) Get(provider Provider) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gw, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", status.ErrProviderNotRegistered, provider)
	}
	return gw, nil
}

func (r *Registry) Primary() (Gateway, error) {
	r.mu.RLock()
	primary := r.primary
	r.mu.RUnlock()

	if primary == "" {
		return nil, fmt.Errorf("%w: no primary gateway configured", status.ErrProviderNotRegistered)
	}
	return r.Get(primary)
}

func (r *Registry) SetPrimary(provider Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.gateways[provider]; !ok {
		return fmt.Errorf("%w: %s", status.ErrProviderNotRegistered, provider)
	}
	r.primary = provider
	return nil
}

func (r *Registry) Available() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.gateways))
	for p := range r.gateways {
		providers = append(providers, p)
	}
	return providers
}

// Close closes every gateway, logging failures and continuing with the rest.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for provider, gw := range r.gateways {
		if err := gw.Close(ctx); err != nil {
			slog.Error("close payment gateway", "provider", provider, "error", err)
		}
	}
	return nil
}
