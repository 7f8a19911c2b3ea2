package llm

import "fmt"

// Registry resolves a Provider by name, falling back to a configured
// default when the caller doesn't ask for a specific one.
type Registry struct {
	providers map[string]Provider
	defaultName string
}

func NewRegistry(defaultName string) *Registry {
	return &Registry{providers: make(map[string]Provider), defaultName: defaultName}
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Resolve returns the named provider, or the registry default when name is
// empty. An unknown or unconfigured name returns ErrProviderUnavailable so
// callers can map it to a single HTTP status regardless of the cause.
func (r *Registry) Resolve(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("llm: provider %q not configured: %w", name, ErrProviderUnavailable)
	}
	return p, nil
}

// NewRegistryFromConfig wires up the providers whose credentials are
// present; OpenAI and Anthropic are registered unconditionally (their
// Complete calls surface ErrProviderUnavailable themselves when no key is
// set), and a stub provider is always available for local testing.
func NewRegistryFromConfig(openAIKey, anthropicKey, defaultProvider string) *Registry {
	reg := NewRegistry(defaultProvider)
	reg.Register(NewOpenAIProvider(openAIKey))
	reg.Register(NewAnthropicProvider(anthropicKey))
	reg.Register(NewStubProvider())
	return reg
}
