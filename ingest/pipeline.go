package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/scholaris/core/common"
)

// VectorIndexer is the C4 collaborator the pipeline calls to chunk, embed,
// and store a document's text once persisted, and to remove a document's
// chunks on delete/reprocess. Implemented by package vector.
type VectorIndexer interface {
	IndexDocument(ctx context.Context, documentID int64, title string, sections map[string]string) (chunkCount int, err error)
	DeleteChunks(ctx context.Context, documentID int64) error
}

// JobContext carries the accumulated state of one job's run across steps.
type JobContext struct {
	FilePath         string
	OriginalFilename string
	OwnerID          string
	BatchID          string
	ForceOCR         bool

	Extracted  *ExtractedText
	Sections   map[string]string
	DOI        string
	DOIResult  *DOIValidationResult
	Tables     []map[string]interface{}
	Figures    []map[string]interface{}
	References []map[string]interface{}

	Title      string
	Authors    []string
	PageCount  int
	OCRApplied bool

	DocumentID int64
	ChunkCount int
}

// StepOutcome reports how one step of the sequence completed.
type StepOutcome struct {
	Name     string
	Progress int
	Message  string
	Detail   map[string]interface{}
	Err      error
	// Terminal reports whether Err (if non-nil) should abort the job, as
	// opposed to being logged as a non-fatal warning and falling through.
	Terminal bool
}

// Step is one named stage of the canonical ingestion sequence.
type Step struct {
	Name     string
	Progress int
	Terminal bool // true: a failure aborts the job; false: best-effort
	Run      func(ctx context.Context, jc *JobContext) (detail map[string]interface{}, err error)
}

// Pipeline executes the eight-step canonical ingestion sequence defined in
// §4.3: extract_text, ocr_check, doi_extract, parse_sections,
// extract_tables_figures_refs, persist_document, index_vectors, finalize.
type Pipeline struct {
	extractor Extractor
	ocr       OCREngine
	doi       DOIValidator
	vector    VectorIndexer
	documents documentPersister

	// ocrConfidenceThreshold is the text-density-heuristic confidence
	// above which a document is classified as scanned and OCR is applied.
	ocrConfidenceThreshold float64
}

// documentPersister is the narrow slice of repository.DocumentRepository
// the pipeline needs, kept as an interface here to avoid ingest depending
// on db/repository's full surface.
type documentPersister interface {
	Persist(ctx context.Context, jc *JobContext) (int64, error)
	Delete(ctx context.Context, documentID int64) error
}

// NewPipeline builds a pipeline from its external collaborators.
func NewPipeline(extractor Extractor, ocr OCREngine, doi DOIValidator, vector VectorIndexer, documents documentPersister) *Pipeline {
	return &Pipeline{
		extractor:              extractor,
		ocr:                    ocr,
		doi:                    doi,
		vector:                 vector,
		documents:              documents,
		ocrConfidenceThreshold: 0.7,
	}
}

// Steps returns the ordered step sequence for one job run. Callers (the
// worker pool) execute each step, persist a ProcessingStep per outcome,
// and check for cancellation at each step boundary.
func (p *Pipeline) Steps() []Step {
	steps := []Step{
		{Name: "extract_text", Progress: 10, Terminal: true, Run: p.extractText},
		{Name: "ocr_check", Progress: 25, Terminal: false, Run: p.ocrCheck},
		{Name: "doi_extract", Progress: 35, Terminal: false, Run: p.doiExtract},
		{Name: "parse_sections", Progress: 50, Terminal: true, Run: p.parseSections},
		{Name: "extract_tables_figures_refs", Progress: 70, Terminal: false, Run: p.extractArtifacts},
		{Name: "persist_document", Progress: 80, Terminal: true, Run: p.persistDocument},
		{Name: "index_vectors", Progress: 90, Terminal: false, Run: p.indexVectors},
		{Name: "finalize", Progress: 100, Terminal: false, Run: p.finalize},
	}
	for i, step := range steps {
		steps[i].Run = traced(step.Name, step.Run)
	}
	return steps
}

// traced wraps a step's Run function in a span named after the step, so a
// registered OpenTelemetry SDK can trace one job's run across the full
// eight-step sequence; with no SDK provider configured, common.Tracer
// returns a no-op tracer and this has no overhead worth measuring.
func traced(name string, run func(ctx context.Context, jc *JobContext) (map[string]interface{}, error)) func(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
	return func(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
		ctx, span := common.Tracer().Start(ctx, name)
		defer span.End()
		return run(ctx, jc)
	}
}

func (p *Pipeline) extractText(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
	extracted, err := p.extractor.Extract(ctx, jc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	jc.Extracted = extracted
	jc.PageCount = extracted.PageCount
	return map[string]interface{}{"page_count": extracted.PageCount, "chars": len(extracted.Text)}, nil
}

func (p *Pipeline) ocrCheck(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
	if !jc.ForceOCR && (jc.Extracted == nil || jc.Extracted.Confidence < p.ocrConfidenceThreshold) {
		return map[string]interface{}{"applied": false}, nil
	}
	text, err := p.ocr.RecognizeText(ctx, jc.FilePath)
	if err != nil {
		return map[string]interface{}{"applied": false, "warning": err.Error()}, nil
	}
	jc.Extracted.Text = text
	jc.OCRApplied = true
	return map[string]interface{}{"applied": true}, nil
}

func (p *Pipeline) doiExtract(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
	text := ""
	if jc.Extracted != nil {
		text = jc.Extracted.Text
	}
	doi, found := ExtractDOI(text)
	if !found {
		return map[string]interface{}{"found": false}, nil
	}
	jc.DOI = doi

	result, err := p.doi.Validate(ctx, doi)
	if err != nil {
		return map[string]interface{}{"found": true, "doi": doi, "warning": err.Error()}, nil
	}
	jc.DOIResult = result
	if result.Valid {
		jc.Title = result.Title
		jc.Authors = result.Authors
	}
	return map[string]interface{}{"found": true, "doi": doi, "valid": result.Valid}, nil
}

func (p *Pipeline) parseSections(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
	if jc.Extracted == nil {
		return nil, fmt.Errorf("no extracted text available")
	}
	jc.Sections = DetectSections(jc.Extracted.Text)
	if jc.Title == "" {
		jc.Title = deriveTitleFromFilename(jc.OriginalFilename)
	}
	return map[string]interface{}{"section_count": len(jc.Sections)}, nil
}

func (p *Pipeline) extractArtifacts(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
	// Best-effort per artifact class: table/figure/reference structure
	// extraction is out of scope (spec.md §1); references are derived
	// from the detected "references" section as a minimal structured
	// stand-in so downstream consumers see a non-empty, schema-shaped list.
	if refs, ok := jc.Sections["references"]; ok && refs != "" {
		jc.References = []map[string]interface{}{{"raw": refs}}
	}
	return map[string]interface{}{
		"tables":     len(jc.Tables),
		"figures":    len(jc.Figures),
		"references": len(jc.References),
	}, nil
}

func (p *Pipeline) persistDocument(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
	id, err := p.documents.Persist(ctx, jc)
	if err != nil {
		return nil, fmt.Errorf("persisting document: %w", err)
	}
	jc.DocumentID = id
	return map[string]interface{}{"document_id": id}, nil
}

func (p *Pipeline) indexVectors(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
	count, err := p.vector.IndexDocument(ctx, jc.DocumentID, jc.Title, jc.Sections)
	if err != nil {
		return map[string]interface{}{"warning": err.Error()}, nil
	}
	jc.ChunkCount = count
	return map[string]interface{}{"chunk_count": count}, nil
}

// Rollback undoes whatever persist_document and index_vectors already
// committed for jc, called by the worker pool when a job is cancelled
// after persist_document has run: §5 requires that chunks and document
// records from a cancelled job are not left committed. A no-op if
// persist_document never ran (jc.DocumentID is unset).
func (p *Pipeline) Rollback(ctx context.Context, jc *JobContext) error {
	if jc.DocumentID == 0 {
		return nil
	}
	if err := p.vector.DeleteChunks(ctx, jc.DocumentID); err != nil {
		return fmt.Errorf("rolling back chunks for document %d: %w", jc.DocumentID, err)
	}
	if err := p.documents.Delete(ctx, jc.DocumentID); err != nil {
		return fmt.Errorf("rolling back document %d: %w", jc.DocumentID, err)
	}
	return nil
}

func (p *Pipeline) finalize(ctx context.Context, jc *JobContext) (map[string]interface{}, error) {
	return map[string]interface{}{
		"document_id": jc.DocumentID,
		"chunk_count": jc.ChunkCount,
		"finalized_at": time.Now().Format(time.RFC3339),
	}, nil
}

func deriveTitleFromFilename(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[:i]
		}
	}
	return filename
}
