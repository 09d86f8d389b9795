package router

import (
	"github.com/adalundhe/canvas/core/providers"
)

// FallbackPlan is the ordered list of providers tried for one request: the
// requested provider, then the default provider as the last resort. Each
// provider appears at most once.
type FallbackPlan struct {
	providers []providers.ProviderType
}

// NewFallbackPlan builds the plan for requested. An empty requested provider
// yields a plan holding only the default.
func NewFallbackPlan(requested, defaultProvider providers.ProviderType) FallbackPlan {
	plan := FallbackPlan{}
	for _, p := range []providers.ProviderType{requested, defaultProvider} {
		if p == "" || plan.contains(p) {
			continue
		}
		plan.providers = append(plan.providers, p)
	}
	return plan
}

func (p FallbackPlan) contains(t providers.ProviderType) bool {
	for _, existing := range p.providers {
		if existing == t {
			return true
		}
	}
	return false
}

// Providers returns a copy of the plan's entries in attempt order.
func (p FallbackPlan) Providers() []providers.ProviderType {
	out := make([]providers.ProviderType, len(p.providers))
	copy(out, p.providers)
	return out
}

func (p FallbackPlan) Len() int {
	return len(p.providers)
}
