package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Upstream errors an HTTPClient call can surface. Gateway handlers map
// these onto common.ErrUpstreamTimeout (504) and common.ErrUpstreamFailure
// (502) respectively, per spec.md §7's distinction between a request that
// exceeded its deadline and one the remote side actively failed or refused.
var (
	ErrUpstreamTimeout = errors.New("vector: upstream request timed out")
	ErrUpstreamFailure = errors.New("vector: upstream service failure")
)

// HTTPClient is the remote-backed implementation of Backend used by
// cmd/gateway and cmd/worker to reach the C4 Vector Index Service deployed
// as cmd/vectorsvc, grounded on the teacher's http.Execute/network.HttpClientDownloadFile
// pattern of a single *http.Client with an explicit timeout and transport,
// generalized here to a bounded connection pool per spec.md §4.1's "bounded
// connection pool" requirement.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a client against baseURL with requestTimeout as the
// per-call deadline and a connection pool bounded the way spec.md §4.1
// requires for every proxied C3/C4 call.
func NewHTTPClient(baseURL string, requestTimeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				MaxConnsPerHost:     32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("vector: encoding request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("vector: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrUpstreamTimeout
		}
		return fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: vectorsvc returned %d", ErrUpstreamFailure, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vector: vectorsvc rejected request (%d): %s", resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("vector: decoding response: %w", err)
	}
	return nil
}

type searchWireRequest struct {
	UserID     string        `json:"user_id"`
	Query      string        `json:"query"`
	MaxResults int           `json:"max_results"`
	Filters    SearchFilters `json:"filters"`
}

// Search proxies a search call to the remote Vector Index Service.
func (c *HTTPClient) Search(ctx context.Context, userID, query string, maxResults int, filters SearchFilters) (*SearchResponse, error) {
	var out SearchResponse
	err := c.do(ctx, http.MethodPost, "/internal/search", searchWireRequest{
		UserID:     userID,
		Query:      query,
		MaxResults: maxResults,
		Filters:    filters,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type indexWireRequest struct {
	DocumentID int64             `json:"document_id"`
	Title      string            `json:"title"`
	Sections   map[string]string `json:"sections"`
}

type indexWireResponse struct {
	ChunkCount int `json:"chunk_count"`
}

// IndexDocument proxies a document's chunk/embed/index call. Used only by
// the worker, which talks to the same remote service the gateway searches
// against.
func (c *HTTPClient) IndexDocument(ctx context.Context, documentID int64, title string, sections map[string]string) (int, error) {
	var out indexWireResponse
	err := c.do(ctx, http.MethodPost, "/internal/index", indexWireRequest{
		DocumentID: documentID,
		Title:      title,
		Sections:   sections,
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.ChunkCount, nil
}

type deleteChunksWireRequest struct {
	DocumentID int64 `json:"document_id"`
}

// DeleteChunks proxies a chunk-deletion call, e.g. on document delete or
// before reprocessing.
func (c *HTTPClient) DeleteChunks(ctx context.Context, documentID int64) error {
	return c.do(ctx, http.MethodPost, "/internal/delete-chunks", deleteChunksWireRequest{DocumentID: documentID}, nil)
}

// Health proxies a health probe so the gateway's aggregated /health
// endpoint can detect a down or misconfigured vector service the same way
// it detects a down database.
func (c *HTTPClient) Health(ctx context.Context) (HealthFact, error) {
	var out HealthFact
	if err := c.do(ctx, http.MethodGet, "/internal/health", nil, &out); err != nil {
		return HealthFact{}, err
	}
	return out, nil
}
