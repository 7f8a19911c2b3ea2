package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolveDefaultAndNamed(t *testing.T) {
	reg := NewRegistry("stub")
	reg.Register(NewStubProvider())
	reg.Register(NewOpenAIProvider(""))

	p, err := reg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())

	p, err = reg.Resolve("openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestRegistry_ResolveUnknownReturnsUnavailable(t *testing.T) {
	reg := NewRegistry("stub")
	reg.Register(NewStubProvider())

	_, err := reg.Resolve("nonexistent")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestOpenAIProvider_NoKeyReturnsUnavailable(t *testing.T) {
	p := NewOpenAIProvider("")
	_, err := p.Complete(nil, Request{})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestAnthropicProvider_NoKeyReturnsUnavailable(t *testing.T) {
	p := NewAnthropicProvider("")
	_, err := p.Complete(nil, Request{})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
