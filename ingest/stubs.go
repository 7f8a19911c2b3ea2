package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// StubExtractor is a deterministic stand-in for the out-of-scope PDF/text
// extractor: it reads the file as raw bytes and reports stable,
// content-derived metadata so tests and local runs exercise the full
// pipeline without a real parsing library.
type StubExtractor struct{}

func NewStubExtractor() *StubExtractor { return &StubExtractor{} }

func (e *StubExtractor) Extract(ctx context.Context, filePath string) (*ExtractedText, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}
	text := string(data)

	printable := 0
	for _, r := range text {
		if r >= 32 && r < 127 || r == '\n' || r == '\t' {
			printable++
		}
	}
	density := 1.0
	if len(text) > 0 {
		density = float64(printable) / float64(len(text))
	}
	confidence := 1.0 - density
	if confidence < 0 {
		confidence = 0
	}

	pageCount := strings.Count(text, "\f") + 1

	return &ExtractedText{
		Text:       text,
		PageCount:  pageCount,
		IsScanned:  confidence >= 0.7,
		Confidence: confidence,
	}, nil
}

// StubOCREngine deterministically "recognizes" text by returning the input
// unchanged, a placeholder for an out-of-scope OCR model.
type StubOCREngine struct{}

func NewStubOCREngine() *StubOCREngine { return &StubOCREngine{} }

func (e *StubOCREngine) RecognizeText(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filePath, err)
	}
	return string(data), nil
}

// StubDOIValidator deterministically accepts any syntactically plausible
// DOI (prefix "10."), standing in for the out-of-scope external directory.
type StubDOIValidator struct{}

func NewStubDOIValidator() *StubDOIValidator { return &StubDOIValidator{} }

func (v *StubDOIValidator) Validate(ctx context.Context, doi string) (*DOIValidationResult, error) {
	if !strings.HasPrefix(doi, "10.") {
		return &DOIValidationResult{DOI: doi, Valid: false}, nil
	}
	sum := sha256.Sum256([]byte(doi))
	seed := binary.BigEndian.Uint32(sum[:4])
	return &DOIValidationResult{
		DOI:     doi,
		Valid:   true,
		Title:   fmt.Sprintf("Untitled work %d", seed%10000),
		Authors: []string{"Unknown Author"},
	}, nil
}
