package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scholaris/core/db/repository"
	"github.com/scholaris/core/vector"
)

// Service implements the gateway's LLM analysis operations: single-document
// analysis, free-form question answering, cross-document comparison, and
// multi-turn chat, each optionally grounded with retrieval-augmented
// context pulled from the vector search service.
type Service struct {
	registry  *Registry
	documents repository.DocumentRepository
	searcher  vector.Searcher
	ragTopK   int
}

func NewService(registry *Registry, documents repository.DocumentRepository, searcher vector.Searcher, ragTopK int) *Service {
	if ragTopK <= 0 {
		ragTopK = 5
	}
	return &Service{registry: registry, documents: documents, searcher: searcher, ragTopK: ragTopK}
}

// AnalyzeRequest mirrors the /analyze endpoint's body per spec.md §6.
type AnalyzeRequest struct {
	DocumentID   int64
	AnalysisType string
	UseRAG       bool
	Provider     string
	Model        string
	CustomPrompt string
}

// AnalyzeResult mirrors the /analyze endpoint's response shape.
type AnalyzeResult struct {
	DocumentID      int64
	AnalysisType    string
	Result          string
	ModelUsed       string
	ProviderUsed    string
	TokensUsed      int
	ProcessingTimeMS int64
	Sources         []Source
}

func (s *Service) Analyze(ctx context.Context, userID string, req AnalyzeRequest) (*AnalyzeResult, error) {
	start := time.Now()

	if !ValidAnalysisType(req.AnalysisType) {
		return nil, fmt.Errorf("llm: invalid analysis_type %q", req.AnalysisType)
	}

	doc, err := s.documents.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("llm: loading document: %w", err)
	}

	systemPrompt, err := buildPrompt(AnalysisType(req.AnalysisType), req.CustomPrompt)
	if err != nil {
		return nil, err
	}

	content, sources, err := s.documentContext(ctx, userID, doc, req.UseRAG, req.AnalysisType)
	if err != nil {
		return nil, err
	}

	provider, err := s.registry.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	resp, err := provider.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Paper: %s\n\n%s", doc.Title, content)},
		},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	return &AnalyzeResult{
		DocumentID:       req.DocumentID,
		AnalysisType:     req.AnalysisType,
		Result:           resp.Text,
		ModelUsed:        resp.Model,
		ProviderUsed:     provider.Name(),
		TokensUsed:       resp.Usage.TotalTokens,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Sources:          sources,
	}, nil
}

// documentContext returns either the RAG-retrieved chunks for the document
// or its full abstract+sections, depending on UseRAG.
func (s *Service) documentContext(ctx context.Context, userID string, doc *repository.Document, useRAG bool, query string) (string, []Source, error) {
	if useRAG && s.searcher != nil {
		content, sources, err := retrieveContext(ctx, s.searcher, userID, query, &doc.ID, s.ragTopK)
		if err != nil {
			return "", nil, err
		}
		if content != "" {
			return content, sources, nil
		}
	}

	var sb strings.Builder
	sb.WriteString(doc.Abstract)
	sb.WriteString("\n\n")
	for name, body := range doc.Sections {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", name, body)
	}
	return sb.String(), nil, nil
}

// QuestionRequest mirrors the /question-style free-form query operation.
type QuestionRequest struct {
	Question    string
	DocumentIDs []int64
	UseRAG      bool
	MaxTokens   int
}

func (s *Service) Question(ctx context.Context, userID string, req QuestionRequest) (*AnalyzeResult, error) {
	start := time.Now()

	var content string
	var sources []Source

	if req.UseRAG && s.searcher != nil {
		var docFilter *int64
		if len(req.DocumentIDs) == 1 {
			docFilter = &req.DocumentIDs[0]
		}
		c, srcs, err := retrieveContext(ctx, s.searcher, userID, req.Question, docFilter, s.ragTopK)
		if err != nil {
			return nil, err
		}
		content, sources = c, srcs
	}

	provider, err := s.registry.Resolve("")
	if err != nil {
		return nil, err
	}

	messages := []Message{
		{Role: "system", Content: "Answer the question using only the provided context when given; say so if the context is insufficient."},
	}
	if content != "" {
		messages = append(messages, Message{Role: "user", Content: "Context:\n" + content})
	}
	messages = append(messages, Message{Role: "user", Content: req.Question})

	resp, err := provider.Complete(ctx, Request{Messages: messages, MaxTokens: req.MaxTokens})
	if err != nil {
		return nil, err
	}

	return &AnalyzeResult{
		Result:           resp.Text,
		ModelUsed:        resp.Model,
		ProviderUsed:     provider.Name(),
		TokensUsed:       resp.Usage.TotalTokens,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Sources:          sources,
	}, nil
}

// CompareRequest mirrors the /compare endpoint's body. spec.md's S5 scenario
// requires 2-5 document_ids; 1 or >5 is a caller-side 400 the gateway
// enforces before calling Compare.
type CompareRequest struct {
	DocumentIDs       []int64
	ComparisonAspects []string
}

// CompareResult mirrors the /compare endpoint's response shape.
type CompareResult struct {
	Comparison        string
	DocumentsCompared []int64
	Model             string
}

func (s *Service) Compare(ctx context.Context, req CompareRequest) (*CompareResult, error) {
	if len(req.DocumentIDs) < 2 || len(req.DocumentIDs) > 5 {
		return nil, fmt.Errorf("llm: compare requires between 2 and 5 document_ids, got %d", len(req.DocumentIDs))
	}

	var sb strings.Builder
	for _, id := range req.DocumentIDs {
		doc, err := s.documents.GetDocument(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("llm: loading document %d: %w", id, err)
		}
		fmt.Fprintf(&sb, "### %s\n%s\n\n", doc.Title, doc.Abstract)
	}

	aspects := "their approaches, methodologies, and findings"
	if len(req.ComparisonAspects) > 0 {
		aspects = strings.Join(req.ComparisonAspects, ", ")
	}

	provider, err := s.registry.Resolve("")
	if err != nil {
		return nil, err
	}

	resp, err := provider.Complete(ctx, Request{
		Messages: []Message{
			{Role: "system", Content: fmt.Sprintf("Compare the following papers along these aspects: %s.", aspects)},
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		return nil, err
	}

	return &CompareResult{
		Comparison:        resp.Text,
		DocumentsCompared: req.DocumentIDs,
		Model:             resp.Model,
	}, nil
}

// ChatRequest mirrors the /chat endpoint's body.
type ChatRequest struct {
	Messages        []Message
	DocumentContext *int64
	UseRAG          bool
	Provider        string
}

func (s *Service) Chat(ctx context.Context, userID string, req ChatRequest) (*AnalyzeResult, error) {
	start := time.Now()

	messages := make([]Message, len(req.Messages))
	copy(messages, req.Messages)

	var sources []Source
	if req.UseRAG && s.searcher != nil && len(req.Messages) > 0 {
		lastUser := req.Messages[len(req.Messages)-1].Content
		content, srcs, err := retrieveContext(ctx, s.searcher, userID, lastUser, req.DocumentContext, s.ragTopK)
		if err != nil {
			return nil, err
		}
		if content != "" {
			messages = append([]Message{{Role: "system", Content: "Relevant context:\n" + content}}, messages...)
			sources = srcs
		}
	}

	provider, err := s.registry.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	resp, err := provider.Complete(ctx, Request{Messages: messages})
	if err != nil {
		return nil, err
	}

	return &AnalyzeResult{
		Result:           resp.Text,
		ModelUsed:        resp.Model,
		ProviderUsed:     provider.Name(),
		TokensUsed:       resp.Usage.TotalTokens,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Sources:          sources,
	}, nil
}
