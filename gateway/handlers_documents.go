package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scholaris/core/common"
	"github.com/scholaris/core/db/repository"
	"github.com/scholaris/core/queue"
	"github.com/scholaris/core/vector"
)

type documentResponse struct {
	ID         int64                    `json:"id"`
	Filename   string                   `json:"filename"`
	OwnerID    string                   `json:"owner_id"`
	DOI        string                   `json:"doi,omitempty"`
	Title      string                   `json:"title"`
	Authors    []string                 `json:"authors,omitempty"`
	Abstract   string                   `json:"abstract,omitempty"`
	OCRApplied bool                     `json:"ocr_applied"`
	PageCount  int                      `json:"page_count"`
	BatchID    string                   `json:"batch_id,omitempty"`
	UploadedAt time.Time                `json:"uploaded_at"`
	UploadedAgo string                  `json:"uploaded_ago,omitempty"`
}

func toDocumentResponse(d *repository.Document) documentResponse {
	resp := documentResponse{
		ID:         d.ID,
		Filename:   d.Filename,
		OwnerID:    d.OwnerID,
		DOI:        d.DOI,
		Title:      d.Title,
		Authors:    d.Authors,
		Abstract:   d.Abstract,
		OCRApplied: d.OCRApplied,
		PageCount:  d.PageCount,
		BatchID:    d.BatchID,
		UploadedAt: d.UploadedAt,
	}
	if !d.UploadedAt.IsZero() {
		resp.UploadedAgo = humanize.Time(d.UploadedAt)
	}
	return resp
}

// loadUploadedFile reads the multipart "file" field into the configured
// storage backend and returns the stored path plus original filename.
func (s *Server) loadUploadedFile(c echo.Context) (storedPath, filename string, size int64, err error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", "", 0, common.ErrValidation("a \"file\" multipart field is required")
	}
	src, err := fh.Open()
	if err != nil {
		return "", "", 0, common.ErrInternal("reading uploaded file")
	}
	defer src.Close()

	storedPath, err = s.files.Save(c.Request().Context(), fh.Filename, src)
	if err != nil {
		return "", "", 0, common.ErrInternal("storing uploaded file")
	}
	return storedPath, fh.Filename, fh.Size, nil
}

// handleUpload runs the ingestion pipeline synchronously and returns the
// finished document, per spec.md's "synchronous extraction path".
func (s *Server) handleUpload(c echo.Context) error {
	if s.pipeline == nil {
		return common.ErrInternal("synchronous upload path is not configured")
	}
	doc, err := s.runSyncUpload(c)
	if err != nil {
		return err
	}
	s.stats.recordRequest("ingest")
	return c.JSON(http.StatusCreated, doc)
}

// handleUploadAsync enqueues the document for background processing and
// returns immediately with a job handle, per spec.md's /upload-async
// contract.
func (s *Server) handleUploadAsync(c echo.Context) error {
	p, _ := getPrincipal(c)
	ownerID := ""
	if p != nil {
		ownerID = p.UserID
	}

	storedPath, filename, size, err := s.loadUploadedFile(c)
	if err != nil {
		return err
	}

	jobID := uuid.NewString()
	batchID := c.QueryParam("batch_id")

	job := &repository.ProcessingJob{
		ID:        jobID,
		BatchID:   batchID,
		Filename:  filename,
		ByteSize:  size,
		Status:    repository.JobPending,
		CreatedAt: time.Now(),
		OwnerID:   ownerID,
		Metadata: map[string]interface{}{
			"file_path": storedPath,
			"force_ocr": c.QueryParam("force_ocr") == "true",
		},
	}
	if err := s.jobs.CreateJob(c.Request().Context(), job); err != nil {
		return common.ErrInternal("creating processing job")
	}

	enqueued := queue.Job{
		JobID:      jobID,
		QueueName:  queue.QueueDocumentProcessing,
		BatchID:    batchID,
		EnqueuedAt: time.Now(),
	}
	if err := s.broker.Enqueue(c.Request().Context(), enqueued); err != nil {
		return common.ErrInternal("enqueueing processing job")
	}

	s.stats.recordRequest("ingest")
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"success":         true,
		"job_id":          jobID,
		"task_id":         jobID,
		"filename":        filename,
		"status_endpoint": fmt.Sprintf("/api/v1/jobs/%s", jobID),
	})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	p, _ := getPrincipal(c)
	limit, offset := pagination(c)

	ownerID := c.QueryParam("owner_id")
	if ownerID == "" && p != nil {
		ownerID = p.UserID
	}
	if p != nil && p.Role == "admin" && c.QueryParam("owner_id") != "" {
		ownerID = c.QueryParam("owner_id")
	}

	docs, err := s.documents.ListDocumentsByOwner(c.Request().Context(), ownerID, limit, offset)
	if err != nil {
		return common.ErrInternal("listing documents")
	}
	resp := make([]documentResponse, len(docs))
	for i, d := range docs {
		resp[i] = toDocumentResponse(d)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetDocument(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return common.ErrValidation("invalid document id")
	}
	doc, err := s.documents.GetDocument(c.Request().Context(), id)
	if err != nil {
		return common.ErrNotFound("document not found")
	}
	p, _ := getPrincipal(c)
	if s.requireAuthForRead && !ownerScoped(p, doc.OwnerID) {
		return common.ErrAuthorization("not permitted to view this document")
	}
	return c.JSON(http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleGetSections(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return common.ErrValidation("invalid document id")
	}
	doc, err := s.documents.GetDocument(c.Request().Context(), id)
	if err != nil {
		return common.ErrNotFound("document not found")
	}
	return c.JSON(http.StatusOK, doc.Sections)
}

func (s *Server) handleGetTables(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return common.ErrValidation("invalid document id")
	}
	doc, err := s.documents.GetDocument(c.Request().Context(), id)
	if err != nil {
		return common.ErrNotFound("document not found")
	}
	return c.JSON(http.StatusOK, doc.Tables)
}

func (s *Server) handleGetFigures(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return common.ErrValidation("invalid document id")
	}
	doc, err := s.documents.GetDocument(c.Request().Context(), id)
	if err != nil {
		return common.ErrNotFound("document not found")
	}
	return c.JSON(http.StatusOK, doc.Figures)
}

// handleGetFigureFile serves one extracted figure's image bytes, the
// artifact named in spec.md §6's storage layout
// (figures/{timestamp}_{original}_p{page}_fig{num}.png), resolved through
// the figure's own "path" metadata rather than reconstructed from the
// request so a figure stored under any backend path still resolves.
func (s *Server) handleGetFigureFile(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return common.ErrValidation("invalid document id")
	}
	doc, err := s.documents.GetDocument(c.Request().Context(), id)
	if err != nil {
		return common.ErrNotFound("document not found")
	}
	p, _ := getPrincipal(c)
	if s.requireAuthForRead && !ownerScoped(p, doc.OwnerID) {
		return common.ErrAuthorization("not permitted to view this document")
	}

	filename := c.Param("filename")
	var storedPath string
	for _, fig := range doc.Figures {
		name, _ := fig["filename"].(string)
		if name != filename {
			continue
		}
		storedPath, _ = fig["path"].(string)
		break
	}
	if storedPath == "" {
		return common.ErrNotFound("figure not found")
	}

	rc, err := s.files.Open(c.Request().Context(), storedPath)
	if err != nil {
		return common.ErrNotFound("figure file not found in storage")
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, "image/png", rc)
}

func (s *Server) handleGetReferences(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return common.ErrValidation("invalid document id")
	}
	doc, err := s.documents.GetDocument(c.Request().Context(), id)
	if err != nil {
		return common.ErrNotFound("document not found")
	}
	return c.JSON(http.StatusOK, doc.References)
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return common.ErrValidation("invalid document id")
	}
	doc, err := s.documents.GetDocument(c.Request().Context(), id)
	if err != nil {
		return common.ErrNotFound("document not found")
	}
	p, _ := getPrincipal(c)
	if !ownerScoped(p, doc.OwnerID) {
		return common.ErrAuthorization("not permitted to delete this document")
	}

	if s.vectors != nil {
		if err := s.vectors.DeleteChunks(c.Request().Context(), id); err != nil {
			switch {
			case errors.Is(err, vector.ErrUpstreamTimeout):
				return common.ErrUpstreamTimeout("vector service timed out removing chunks")
			case errors.Is(err, vector.ErrUpstreamFailure):
				return common.ErrUpstreamFailure("vector service unavailable")
			default:
				return common.ErrInternal("removing document chunks")
			}
		}
	}
	if err := s.documents.DeleteDocument(c.Request().Context(), id); err != nil {
		return common.ErrInternal("deleting document")
	}
	return c.NoContent(http.StatusNoContent)
}
