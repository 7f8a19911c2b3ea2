package gateway

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scholaris/core/common"
	"github.com/scholaris/core/vector"
)

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults *int   `json:"max_results"`
	DocumentID *int64 `json:"document_id,omitempty"`
	Section    string `json:"section,omitempty"`
}

type searchResultResponse struct {
	ChunkID         string  `json:"chunk_id"`
	DocumentID      int64   `json:"document_id"`
	DocumentTitle   string  `json:"document_title"`
	Section         string  `json:"section,omitempty"`
	Text            string  `json:"text"`
	SimilarityScore float64 `json:"similarity_score"`
	Page            *int    `json:"page,omitempty"`
}

type searchResponse struct {
	Results      []searchResultResponse `json:"results"`
	SearchTimeMS int64                  `json:"search_time_ms"`
}

func (s *Server) handleSearch(c echo.Context) error {
	if s.vectors == nil {
		return common.ErrInternal("search is not configured")
	}

	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}
	if req.Query == "" {
		return common.ErrValidation("query is required")
	}
	// An omitted max_results defaults to 10; an explicit 0 is passed
	// through unchanged so vector.Service.Search rejects it with the
	// boundary-violation error instead of silently substituting a default.
	maxResults := 10
	if req.MaxResults != nil {
		maxResults = *req.MaxResults
	}

	p, _ := getPrincipal(c)
	userID := ""
	if p != nil {
		userID = p.UserID
	}

	result, err := s.vectors.Search(c.Request().Context(), userID, req.Query, maxResults, vector.SearchFilters{
		DocumentID: req.DocumentID,
		Section:    req.Section,
	})
	if err != nil {
		switch {
		case errors.Is(err, vector.ErrUpstreamTimeout):
			return common.ErrUpstreamTimeout("vector search timed out")
		case errors.Is(err, vector.ErrUpstreamFailure):
			return common.ErrUpstreamFailure("vector search service unavailable")
		default:
			return common.ErrValidation(err.Error())
		}
	}

	resp := searchResponse{SearchTimeMS: result.SearchTimeMS, Results: make([]searchResultResponse, len(result.Results))}
	for i, r := range result.Results {
		resp.Results[i] = searchResultResponse{
			ChunkID:         r.ChunkID,
			DocumentID:      r.DocumentID,
			DocumentTitle:   r.DocumentTitle,
			Section:         r.Section,
			Text:            r.Text,
			SimilarityScore: r.SimilarityScore,
			Page:            r.Page,
		}
	}
	s.stats.recordRequest("vector")
	return c.JSON(http.StatusOK, resp)
}
