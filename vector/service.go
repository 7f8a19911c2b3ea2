package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scholaris/core/db/repository"
)

// Service is the Vector Index Service (C4): it chunks, embeds, and indexes
// a document's sections, answers similarity search, and couples its chunk
// lifecycle to document delete/reprocess. It implements ingest.VectorIndexer
// without importing package ingest, avoiding an import cycle.
type Service struct {
	chunker   *Chunker
	embedder  Embedder
	index     Index
	chunks    repository.ChunkRepository
	documents repository.DocumentRepository
	searchLog repository.SearchLogRepository

	dimension int
}

// NewService wires a vector service from its collaborators. dimension must
// equal embedder.Dimensions(); a mismatch means the configured model and
// the configured index were built for different sizes, which is refused at
// construction per the embedding dimension invariant (spec.md §4.4) rather
// than discovered later as a silent mix of dimensions.
func NewService(chunker *Chunker, embedder Embedder, index Index, chunks repository.ChunkRepository, documents repository.DocumentRepository, searchLog repository.SearchLogRepository) (*Service, error) {
	if embedder.Dimensions() != index.Dimensions() {
		return nil, fmt.Errorf("vector: embedder dimension %d does not match index dimension %d; migrate the index or reconfigure the embedding model", embedder.Dimensions(), index.Dimensions())
	}
	return &Service{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		chunks:    chunks,
		documents: documents,
		searchLog: searchLog,
		dimension: embedder.Dimensions(),
	}, nil
}

// HealthFact reports the device and dimension facts the gateway's
// aggregated health endpoint surfaces for this service.
type HealthFact struct {
	Device    string `json:"device"`
	Dimension int    `json:"dimension"`
}

// Health takes a context so the remote-backed implementation (HTTPClient)
// can honor cancellation and report a transport failure the same way a
// local call reports a configuration failure.
func (s *Service) Health(ctx context.Context) (HealthFact, error) {
	return HealthFact{Device: s.embedder.Device(), Dimension: s.dimension}, nil
}

// Searcher is the narrow surface llm.Service depends on, satisfied by both
// the in-process Service and HTTPClient.
type Searcher interface {
	Search(ctx context.Context, userID, query string, maxResults int, filters SearchFilters) (*SearchResponse, error)
}

// Backend is the full C4 surface the gateway consumes: search for
// /search, chunk deletion for document delete, and a health check for the
// aggregated /health endpoint. Satisfied by both the in-process Service
// (inside cmd/vectorsvc) and HTTPClient (inside cmd/gateway and
// cmd/worker, which reach the real Service over the network).
type Backend interface {
	Searcher
	DeleteChunks(ctx context.Context, documentID int64) error
	Health(ctx context.Context) (HealthFact, error)
}

// IndexDocument chunks a document's detected sections, embeds every chunk
// in one batch call, and persists and indexes them as a single atomic unit:
// SaveChunks either writes the full batch or none of it, matching the
// "readers see either the pre- or post-reprocess set, never a mix" invariant.
func (s *Service) IndexDocument(ctx context.Context, documentID int64, title string, sections map[string]string) (int, error) {
	specs := s.chunker.Chunk(sections)
	if len(specs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(specs))
	for i, spec := range specs {
		texts[i] = spec.Text
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("vector: embedding batch: %w", err)
	}

	chunks := make([]*repository.Chunk, len(specs))
	for i, spec := range specs {
		chunks[i] = &repository.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			ChunkIndex: spec.ChunkIndex,
			Text:       spec.Text,
			Section:    spec.Section,
			Kind:       repository.ChunkText,
			Embedding:  embeddings[i],
			CreatedAt:  time.Now(),
		}
	}

	if err := s.chunks.SaveChunks(ctx, documentID, chunks); err != nil {
		return 0, fmt.Errorf("vector: saving chunks: %w", err)
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := s.index.Add(ctx, ids, embeddings); err != nil {
		return 0, fmt.Errorf("vector: indexing embeddings: %w", err)
	}

	return len(chunks), nil
}

// Hydrate loads every persisted chunk's embedding into the ANN index,
// standing in for the teacher's file-based index persistence: the
// relational store is the durable copy, and a freshly constructed
// in-memory index is empty until this runs. Call it once at startup,
// before the service accepts search traffic, or a restart leaves every
// previously indexed document unsearchable.
func (s *Service) Hydrate(ctx context.Context) (int, error) {
	chunks, err := s.chunks.ListAllChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("vector: listing chunks for hydration: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(chunks))
	embeddings := make([][]float32, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != s.dimension {
			continue
		}
		ids = append(ids, c.ID)
		embeddings = append(embeddings, c.Embedding)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.index.Add(ctx, ids, embeddings); err != nil {
		return 0, fmt.Errorf("vector: hydrating ANN index: %w", err)
	}
	return len(ids), nil
}

// DeleteChunks removes a document's chunks from both the relational store
// and the ANN index; called by the ingestion worker on document deletion
// and before re-indexing on reprocess (spec.md §4.4's lifecycle coupling).
func (s *Service) DeleteChunks(ctx context.Context, documentID int64) error {
	existing, err := s.chunks.ListChunksByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("vector: listing chunks: %w", err)
	}
	ids := make([]string, len(existing))
	for i, c := range existing {
		ids[i] = c.ID
	}
	if err := s.chunks.DeleteChunksByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("vector: deleting chunks: %w", err)
	}
	if len(ids) > 0 {
		if err := s.index.Remove(ctx, ids); err != nil {
			return fmt.Errorf("vector: removing from ANN index: %w", err)
		}
	}
	return nil
}

// SearchFilters narrows a query to a document and/or section.
type SearchFilters struct {
	DocumentID *int64
	Section    string
}

// SearchResult is one ranked chunk hit, joined with its owning document's
// title per spec.md §4.4 step 4.
type SearchResult struct {
	ChunkID         string
	DocumentID      int64
	DocumentTitle   string
	Section         string
	Text            string
	SimilarityScore float64
	Page            *int
}

// SearchResponse is the full answer to one search call, including the
// end-to-end timing fact spec.md §4.4 step 5 requires.
type SearchResponse struct {
	Results      []SearchResult
	SearchTimeMS int64
}

// Search validates max_results, embeds the query, runs ANN search
// over-fetched to absorb post-filtering, and returns results ordered by
// descending similarity — spec.md §4.4's five-step search contract.
//
// maxResults must already be resolved by the caller (the gateway defaults
// an omitted max_results to 10 before calling; an explicit 0 is rejected
// here, never silently defaulted, per the "value of 0 rejected with 400"
// invariant).
func (s *Service) Search(ctx context.Context, userID, query string, maxResults int, filters SearchFilters) (*SearchResponse, error) {
	start := time.Now()

	if maxResults < 1 || maxResults > 100 {
		return nil, fmt.Errorf("vector: max_results must be in [1, 100], got %d", maxResults)
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vector: embedding query: %w", err)
	}

	// Over-fetch since document_id/section filters are applied after ANN
	// search; the index has no notion of metadata filters itself.
	overfetch := maxResults * 5
	if overfetch < 50 {
		overfetch = 50
	}
	hits, err := s.index.Search(ctx, queryVec, overfetch)
	if err != nil {
		return nil, fmt.Errorf("vector: ANN search: %w", err)
	}

	titleCache := make(map[int64]string)
	results := make([]SearchResult, 0, maxResults)
	for _, hit := range hits {
		if len(results) >= maxResults {
			break
		}
		chunk, err := s.chunks.GetChunk(ctx, hit.ID)
		if err != nil || chunk == nil {
			continue
		}
		if filters.DocumentID != nil && chunk.DocumentID != *filters.DocumentID {
			continue
		}
		if filters.Section != "" && chunk.Section != filters.Section {
			continue
		}

		title, ok := titleCache[chunk.DocumentID]
		if !ok {
			if doc, err := s.documents.GetDocument(ctx, chunk.DocumentID); err == nil {
				title = doc.Title
			}
			titleCache[chunk.DocumentID] = title
		}

		results = append(results, SearchResult{
			ChunkID:         chunk.ID,
			DocumentID:      chunk.DocumentID,
			DocumentTitle:   title,
			Section:         chunk.Section,
			Text:            chunk.Text,
			SimilarityScore: hit.Score,
			Page:            chunk.Page,
		})
	}

	elapsed := time.Since(start).Milliseconds()

	if s.searchLog != nil {
		_ = s.searchLog.LogQuery(ctx, &repository.SearchQueryLog{
			Query:       query,
			Timestamp:   time.Now(),
			UserID:      userID,
			ResultCount: len(results),
			LatencyMS:   elapsed,
		})
	}

	return &SearchResponse{Results: results, SearchTimeMS: elapsed}, nil
}
