package gateway

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"github.com/scholaris/core/common"
	"github.com/scholaris/core/db/repository"
)

type jobResponse struct {
	ID          string                 `json:"id"`
	BatchID     string                 `json:"batch_id,omitempty"`
	Filename    string                 `json:"filename"`
	Size        string                 `json:"size,omitempty"`
	Status      repository.JobStatus   `json:"status"`
	Progress    int                    `json:"progress"`
	Error       string                 `json:"error,omitempty"`
	DocumentID  *int64                 `json:"document_id,omitempty"`
	CreatedAgo  string                 `json:"created_ago,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func toJobResponse(j *repository.ProcessingJob) jobResponse {
	resp := jobResponse{
		ID:         j.ID,
		BatchID:    j.BatchID,
		Filename:   j.Filename,
		Status:     j.Status,
		Progress:   j.Progress,
		Error:      j.Error,
		DocumentID: j.DocumentID,
		Metadata:   j.Metadata,
	}
	if j.ByteSize > 0 {
		resp.Size = humanize.Bytes(uint64(j.ByteSize))
	}
	if !j.CreatedAt.IsZero() {
		resp.CreatedAgo = humanize.Time(j.CreatedAt)
	}
	return resp
}

func (s *Server) handleGetJob(c echo.Context) error {
	job, err := s.jobs.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return common.ErrNotFound("job not found")
	}
	p, _ := getPrincipal(c)
	if !ownerScoped(p, job.OwnerID) {
		return common.ErrAuthorization("not permitted to view this job")
	}
	steps, err := s.jobs.ListSteps(c.Request().Context(), job.ID)
	if err != nil {
		return common.ErrInternal("loading job steps")
	}
	resp := toJobResponse(job)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"job":   resp,
		"steps": steps,
	})
}

func (s *Server) handleListJobs(c echo.Context) error {
	p, _ := getPrincipal(c)
	ownerID := c.QueryParam("owner_id")
	if ownerID == "" && p != nil {
		ownerID = p.UserID
	}
	limit, offset := pagination(c)

	jobs, err := s.jobs.ListJobsByOwner(c.Request().Context(), ownerID, limit, offset)
	if err != nil {
		return common.ErrInternal("listing jobs")
	}
	resp := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = toJobResponse(j)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCancelJob(c echo.Context) error {
	job, err := s.jobs.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return common.ErrNotFound("job not found")
	}
	p, _ := getPrincipal(c)
	if !ownerScoped(p, job.OwnerID) {
		return common.ErrAuthorization("not permitted to cancel this job")
	}
	if job.Status == repository.JobCompleted || job.Status == repository.JobFailed || job.Status == repository.JobCancelled {
		return common.ErrConflict("job has already reached a terminal state")
	}

	job.Status = repository.JobCancelled
	if err := s.jobs.UpdateJob(c.Request().Context(), job); err != nil {
		return common.ErrInternal("cancelling job")
	}
	return c.JSON(http.StatusOK, toJobResponse(job))
}

func (s *Server) handleGetBatch(c echo.Context) error {
	jobs, err := s.jobs.ListJobsByBatch(c.Request().Context(), c.Param("batch_id"))
	if err != nil {
		return common.ErrInternal("loading batch")
	}
	if len(jobs) == 0 {
		return common.ErrNotFound("batch not found")
	}
	resp := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = toJobResponse(j)
	}
	return c.JSON(http.StatusOK, resp)
}

// batchSummary aggregates a batch's child jobs into one status per spec.md
// §5: "Batch status is computed from the aggregate of its children."
type batchSummary struct {
	BatchID   string               `json:"batch_id"`
	Status    repository.JobStatus `json:"status"`
	Total     int                  `json:"total"`
	Completed int                  `json:"completed"`
	Failed    int                  `json:"failed"`
	Cancelled int                  `json:"cancelled"`
	Jobs      []jobResponse        `json:"jobs"`
}

// aggregateBatchStatus rolls a batch's children up to one status: any job
// still pending or processing keeps the batch processing; failing that, an
// all-cancelled batch is cancelled, a batch with any failure is failed, and
// otherwise the batch is complete.
func aggregateBatchStatus(jobs []*repository.ProcessingJob) repository.JobStatus {
	allCancelled := true
	anyFailed := false
	for _, j := range jobs {
		switch j.Status {
		case repository.JobPending, repository.JobProcessing:
			return repository.JobProcessing
		case repository.JobFailed:
			anyFailed = true
			allCancelled = false
		case repository.JobCancelled:
		default:
			allCancelled = false
		}
	}
	if allCancelled {
		return repository.JobCancelled
	}
	if anyFailed {
		return repository.JobFailed
	}
	return repository.JobCompleted
}

func toBatchSummary(batchID string, jobs []*repository.ProcessingJob) batchSummary {
	summary := batchSummary{BatchID: batchID, Total: len(jobs), Jobs: make([]jobResponse, len(jobs))}
	for i, j := range jobs {
		summary.Jobs[i] = toJobResponse(j)
		switch j.Status {
		case repository.JobCompleted:
			summary.Completed++
		case repository.JobFailed:
			summary.Failed++
		case repository.JobCancelled:
			summary.Cancelled++
		}
	}
	summary.Status = aggregateBatchStatus(jobs)
	return summary
}

// handleListBatches lists an owner's batch handles with per-batch aggregate
// status, the batch counterpart to handleListJobs.
func (s *Server) handleListBatches(c echo.Context) error {
	p, _ := getPrincipal(c)
	ownerID := c.QueryParam("owner_id")
	if ownerID == "" && p != nil {
		ownerID = p.UserID
	}
	limit, offset := pagination(c)

	batchIDs, err := s.jobs.ListBatchIDsByOwner(c.Request().Context(), ownerID, limit, offset)
	if err != nil {
		return common.ErrInternal("listing batches")
	}

	summaries := make([]batchSummary, 0, len(batchIDs))
	for _, batchID := range batchIDs {
		jobs, err := s.jobs.ListJobsByBatch(c.Request().Context(), batchID)
		if err != nil {
			return common.ErrInternal("loading batch")
		}
		summaries = append(summaries, toBatchSummary(batchID, jobs))
	}
	return c.JSON(http.StatusOK, summaries)
}
