package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scholaris/core/queue"
)

var errInvalidVectorDimension = errors.New("vector service reports an invalid dimension")

type serviceStatus struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Latency int64  `json:"latency_ms"`
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Services map[string]serviceStatus `json:"services"`
}

// handleHealth aggregates independent, concurrently-probed per-service
// checks into a single healthy/degraded/unhealthy verdict. unhealthy means
// specifically that the identity store (the database probe) is
// unreachable, per spec.md §4.1; a failure in queue or vectors alone with
// the database up is degraded, never unhealthy. Each probe is bounded so
// one stalled dependency cannot hang the whole endpoint.
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	probes := map[string]func(context.Context) error{
		"database": s.probeDatabase,
		"queue":    s.probeQueue,
		"vectors":  s.probeVectors,
	}

	var mu sync.Mutex
	results := make(map[string]serviceStatus, len(probes))
	var wg sync.WaitGroup
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe func(context.Context) error) {
			defer wg.Done()
			start := time.Now()
			err := probe(ctx)
			st := serviceStatus{Status: "healthy", Latency: time.Since(start).Milliseconds()}
			if err != nil {
				st.Status = "unhealthy"
				st.Detail = err.Error()
			}
			mu.Lock()
			results[name] = st
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	healthyCount := 0
	for _, st := range results {
		if st.Status == "healthy" {
			healthyCount++
		}
	}
	overall := "healthy"
	switch {
	case results["database"].Status != "healthy":
		overall = "unhealthy"
	case healthyCount < len(results):
		overall = "degraded"
	}

	s.stats.recordRequest("health")
	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, healthResponse{Status: overall, Services: results})
}

func (s *Server) probeDatabase(ctx context.Context) error {
	if s.documents == nil {
		return nil
	}
	_, err := s.documents.CountDocumentsByOwner(ctx, "")
	return err
}

func (s *Server) probeQueue(ctx context.Context) error {
	if s.broker == nil {
		return nil
	}
	_, err := s.broker.QueueDepth(ctx, queue.QueueDocumentProcessing)
	return err
}

func (s *Server) probeVectors(ctx context.Context) error {
	if s.vectors == nil {
		return nil
	}
	fact, err := s.vectors.Health(ctx)
	if err != nil {
		return err
	}
	if fact.Dimension <= 0 {
		return errInvalidVectorDimension
	}
	return nil
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.stats.snapshot())
}
