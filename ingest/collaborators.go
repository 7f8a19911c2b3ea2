// Package ingest implements the document-processing pipeline: text
// extraction, OCR fallback, DOI validation, structural parsing, and
// artifact extraction, run by the worker pool (package worker) as the body
// of each processing job.
package ingest

import "context"

// ExtractedText is the raw outcome of text extraction from a source file.
type ExtractedText struct {
	Text       string
	PageCount  int
	IsScanned  bool    // heuristic classification, refined by OCRCheck
	Confidence float64 // confidence that the document is scanned (image-only)
}

// Extractor pulls raw text and page metadata out of a source file. The
// real implementation (a PDF/text parser) is out of scope (spec.md §1);
// StubExtractor stands in for local runs and tests.
type Extractor interface {
	Extract(ctx context.Context, filePath string) (*ExtractedText, error)
}

// OCREngine renders a scanned document to text. Out of scope per spec.md
// §1; StubOCREngine stands in.
type OCREngine interface {
	RecognizeText(ctx context.Context, filePath string) (string, error)
}

// DOIValidationResult is the outcome of checking a candidate DOI against
// the external directory.
type DOIValidationResult struct {
	DOI      string
	Valid    bool
	Title    string
	Authors  []string
}

// DOIValidator checks a candidate DOI against an external directory. Out
// of scope per spec.md §1 (an opaque HTTP dependency); StubDOIValidator
// stands in.
type DOIValidator interface {
	Validate(ctx context.Context, doi string) (*DOIValidationResult, error)
}
