// Package llm implements the gateway's analysis surface: provider adapters
// for external completion APIs, analysis-type prompt templates, and
// retrieval-augmented composition against the vector search service.
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrProviderUnavailable is returned by a Provider when it has no usable
// credentials configured; the gateway surfaces this as 503 per spec.md §6's
// external-collaborator contract for the LLM provider.
var ErrProviderUnavailable = errors.New("llm: provider unavailable")

// Message is one turn of a chat-style completion request.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Request is a single completion call's parameters.
type Request struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// Usage reports token accounting for a completion, when the provider
// reports it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a single completion's result.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider is the external-collaborator contract spec.md §6 names: given a
// message list and parameters, return a completion string plus token
// accounting. Unavailable credentials surface as ErrProviderUnavailable.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// sharedHTTPClient is reused across all provider adapters, styled on the
// teacher's storage/s3aws.go connection-pooling client: a generous overall
// timeout for slow completions with a bounded per-host connection pool so
// concurrent gateway requests don't each pay a fresh TLS handshake.
var sharedHTTPClient = &http.Client{
	Timeout: 120 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	},
}
