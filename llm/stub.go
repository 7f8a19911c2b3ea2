package llm

import (
	"context"
	"fmt"
	"strings"
)

// StubProvider returns deterministic completions without calling any
// external API, for tests and local development without credentials.
type StubProvider struct {
	name string
}

func NewStubProvider() *StubProvider {
	return &StubProvider{name: "stub"}
}

func (p *StubProvider) Name() string { return p.name }

func (p *StubProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	var last string
	for _, m := range req.Messages {
		if m.Role == "user" {
			last = m.Content
		}
	}

	words := len(strings.Fields(last))
	text := fmt.Sprintf("stub completion covering %d words of input", words)

	return &Response{
		Text:  text,
		Model: "stub-1",
		Usage: Usage{
			PromptTokens:     words,
			CompletionTokens: len(strings.Fields(text)),
			TotalTokens:      words + len(strings.Fields(text)),
		},
	}, nil
}
