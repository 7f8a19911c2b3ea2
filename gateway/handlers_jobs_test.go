package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris/core/db/repository"
)

func TestListBatchesAggregatesChildStatus(t *testing.T) {
	srv, jobs := newTestServer(t)
	token := loginAdmin(t, srv)
	ctx := context.Background()

	require.NoError(t, jobs.CreateJob(ctx, &repository.ProcessingJob{
		ID: "job-1", BatchID: "batch-done", OwnerID: "user-1", Status: repository.JobCompleted,
	}))
	require.NoError(t, jobs.CreateJob(ctx, &repository.ProcessingJob{
		ID: "job-2", BatchID: "batch-done", OwnerID: "user-1", Status: repository.JobCompleted,
	}))
	require.NoError(t, jobs.CreateJob(ctx, &repository.ProcessingJob{
		ID: "job-3", BatchID: "batch-mixed", OwnerID: "user-1", Status: repository.JobFailed,
	}))
	require.NoError(t, jobs.CreateJob(ctx, &repository.ProcessingJob{
		ID: "job-4", BatchID: "batch-mixed", OwnerID: "user-1", Status: repository.JobCompleted,
	}))
	require.NoError(t, jobs.CreateJob(ctx, &repository.ProcessingJob{
		ID: "job-5", OwnerID: "user-1", Status: repository.JobCompleted,
	}))

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/jobs/batches?owner_id=user-1", nil, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var batches []batchSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batches))
	require.Len(t, batches, 2, "unbatched job-5 must not appear as its own batch")

	byID := make(map[string]batchSummary, len(batches))
	for _, b := range batches {
		byID[b.BatchID] = b
	}

	done := byID["batch-done"]
	assert.Equal(t, repository.JobCompleted, done.Status)
	assert.Equal(t, 2, done.Total)

	mixed := byID["batch-mixed"]
	assert.Equal(t, repository.JobFailed, mixed.Status)
	assert.Equal(t, 1, mixed.Failed)
	assert.Equal(t, 1, mixed.Completed)
}

func TestListBatchesEmptyForOwnerWithNoBatches(t *testing.T) {
	srv, _ := newTestServer(t)
	token := loginAdmin(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/jobs/batches", nil, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var batches []batchSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batches))
	assert.Empty(t, batches)
}
