package gateway

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scholaris/core/common"
	"github.com/scholaris/core/llm"
)

func (s *Server) requireLLM() error {
	if s.llmSvc == nil {
		return common.ErrInternal("analysis is not configured")
	}
	return nil
}

func (s *Server) currentUserID(c echo.Context) string {
	if p, ok := getPrincipal(c); ok {
		return p.UserID
	}
	return ""
}

type analyzeRequestBody struct {
	DocumentID   int64  `json:"document_id"`
	AnalysisType string `json:"analysis_type"`
	UseRAG       bool   `json:"use_rag"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

func (s *Server) handleAnalyze(c echo.Context) error {
	if err := s.requireLLM(); err != nil {
		return err
	}
	var req analyzeRequestBody
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}

	result, err := s.llmSvc.Analyze(c.Request().Context(), s.currentUserID(c), llm.AnalyzeRequest{
		DocumentID:   req.DocumentID,
		AnalysisType: req.AnalysisType,
		UseRAG:       req.UseRAG,
		Provider:     req.Provider,
		Model:        req.Model,
		CustomPrompt: req.CustomPrompt,
	})
	if err != nil {
		return common.ErrValidation(err.Error())
	}
	s.stats.recordRequest("llm")
	return c.JSON(http.StatusOK, result)
}

type questionRequestBody struct {
	Question    string  `json:"question"`
	DocumentIDs []int64 `json:"document_ids,omitempty"`
	UseRAG      bool    `json:"use_rag"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

func (s *Server) handleQuestion(c echo.Context) error {
	if err := s.requireLLM(); err != nil {
		return err
	}
	var req questionRequestBody
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}
	if req.Question == "" {
		return common.ErrValidation("question is required")
	}

	result, err := s.llmSvc.Question(c.Request().Context(), s.currentUserID(c), llm.QuestionRequest{
		Question:    req.Question,
		DocumentIDs: req.DocumentIDs,
		UseRAG:      req.UseRAG,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return common.ErrValidation(err.Error())
	}
	s.stats.recordRequest("llm")
	return c.JSON(http.StatusOK, result)
}

type compareRequestBody struct {
	DocumentIDs       []int64  `json:"document_ids"`
	ComparisonAspects []string `json:"comparison_aspects,omitempty"`
}

func (s *Server) handleCompare(c echo.Context) error {
	if err := s.requireLLM(); err != nil {
		return err
	}
	var req compareRequestBody
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}
	if len(req.DocumentIDs) < 2 || len(req.DocumentIDs) > 5 {
		return common.ErrValidation("document_ids must contain between 2 and 5 entries")
	}

	result, err := s.llmSvc.Compare(c.Request().Context(), llm.CompareRequest{
		DocumentIDs:       req.DocumentIDs,
		ComparisonAspects: req.ComparisonAspects,
	})
	if err != nil {
		return common.ErrValidation(err.Error())
	}
	s.stats.recordRequest("llm")
	return c.JSON(http.StatusOK, result)
}

type chatRequestBody struct {
	Messages        []llm.Message `json:"messages"`
	DocumentContext *int64        `json:"document_context,omitempty"`
	UseRAG          bool          `json:"use_rag"`
	Provider        string        `json:"provider,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	if err := s.requireLLM(); err != nil {
		return err
	}
	var req chatRequestBody
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed request body")
	}
	if len(req.Messages) == 0 {
		return common.ErrValidation("messages must not be empty")
	}

	result, err := s.llmSvc.Chat(c.Request().Context(), s.currentUserID(c), llm.ChatRequest{
		Messages:        req.Messages,
		DocumentContext: req.DocumentContext,
		UseRAG:          req.UseRAG,
		Provider:        req.Provider,
	})
	if err != nil {
		return common.ErrValidation(err.Error())
	}
	s.stats.recordRequest("llm")
	return c.JSON(http.StatusOK, result)
}
