package payment

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
)

type Config struct {
	Environment string
	Bypass      bool
	External    ExternalConfig
}

// Registry maps a payment method to its gateway. The EXTERNAL slot holds
// either the real provider or, only when explicitly configured outside
// production, the bypass.
type Registry struct {
	cod      CashOnDelivery
	external Gateway
}

func NewRegistry(cfg Config, now func() time.Time) (*Registry, error) {
	r := &Registry{}
	if cfg.Bypass {
		b, err := NewBypass(cfg.Environment)
		if err != nil {
			return nil, err
		}
		r.external = b
		return r, nil
	}
	if cfg.External.GatewayURL != "" {
		ext, err := NewExternal(cfg.External, now)
		if err != nil {
			return nil, fmt.Errorf("external gateway: %w", err)
		}
		r.external = ext
	}
	return r, nil
}

func (r *Registry) Resolve(m domain.PaymentMethod) (Gateway, error) {
	switch m {
	case domain.MethodCashOnDelivery:
		return r.cod, nil
	case domain.MethodExternal:
		if r.external == nil {
			return nil, apperr.Validation("payment method %s is not configured", m)
		}
		return r.external, nil
	}
	return nil, apperr.Validation("unknown payment method %q", m)
}

// Callback returns the gateway that verifies provider callbacks.
func (r *Registry) Callback() (Gateway, error) {
	return r.Resolve(domain.MethodExternal)
}

func (r *Registry) BypassEnabled() bool {
	_, ok := r.external.(*Bypass)
	return ok
}
