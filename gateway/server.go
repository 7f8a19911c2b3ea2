// Package gateway implements the platform's single external HTTP surface
// (C5): authentication, request routing/composition to the ingestion
// pipeline and vector search service, aggregated health, and statistics.
// Grounded on the teacher's http.NewEchoServer/StartServer pattern,
// generalized from a generic Echo helper into one wired specifically to
// this platform's services.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/scholaris/core/auth"
	"github.com/scholaris/core/common"
	"github.com/scholaris/core/db/repository"
	"github.com/scholaris/core/ingest"
	"github.com/scholaris/core/llm"
	"github.com/scholaris/core/queue"
	"github.com/scholaris/core/ratelimit"
	"github.com/scholaris/core/storage"
	"github.com/scholaris/core/vector"
)

// Config carries the gateway's runtime tunables, mirroring the fields of
// http.ServerConfig in the teacher but scoped to this platform's needs.
type Config struct {
	Port            int
	Debug           bool
	BodyLimit       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	WorkflowWait    time.Duration
	RateLimitPerMin int

	// APICredentialPrefix identifies an API credential presented in place
	// of an access token in the Authorization header (spec.md §4.2); a
	// bearer value carrying this prefix resolves via C1 api_credentials
	// instead of being validated as a JWT access token.
	APICredentialPrefix string
}

func DefaultConfig() Config {
	return Config{
		Port:            8080,
		BodyLimit:       "20M",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
		RequestTimeout:  120 * time.Second,
		WorkflowWait:    5 * time.Second,
		RateLimitPerMin: 100,

		APICredentialPrefix: "sk_live_",
	}
}

// Server bundles every collaborator a route handler needs: identity,
// document/job/chunk persistence, the queue broker (for upload-async), the
// vector search service, the LLM service, upload storage, rate limiting
// and token blacklist checks, and process-wide stats.
type Server struct {
	echo   *echo.Echo
	config Config

	authSvc   auth.Service
	blacklist auth.TokenBlacklist
	limiter   ratelimit.Limiter

	documents repository.DocumentRepository
	jobs      repository.JobRepository
	chunks    repository.ChunkRepository

	broker   queue.Broker
	vectors  vector.Backend
	llmSvc   *llm.Service
	files    storage.Store
	pipeline *ingest.Pipeline

	stats *statsTracker

	requireAuthForRead  bool
	requireAuthForWrite bool
}

// NewServer wires an Echo instance with the teacher's standard middleware
// stack (logging, recovery, body limit, CORS, request id) plus this
// platform's auth/rate-limit middleware, then registers every route group.
func NewServer(cfg Config, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: true,
		ExposeHeaders:    []string{"Set-Cookie"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodPatch, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			echo.HeaderAuthorization, "X-API-Key",
		},
	}))
	e.Use(middleware.RequestID())
	e.Use(otelecho.Middleware("scholaris-gateway"))

	e.HTTPErrorHandler = common.HTTPErrorHandler(cfg.Debug)

	s := &Server{
		echo:                e,
		config:              cfg,
		authSvc:             deps.Auth,
		blacklist:           deps.Blacklist,
		limiter:             deps.Limiter,
		documents:           deps.Documents,
		jobs:                deps.Jobs,
		chunks:              deps.Chunks,
		broker:              deps.Broker,
		vectors:             deps.Vectors,
		llmSvc:              deps.LLM,
		files:               deps.Files,
		pipeline:            deps.Pipeline,
		stats:               newStatsTracker(),
		requireAuthForRead:  deps.RequireAuthForRead,
		requireAuthForWrite: deps.RequireAuthForWrite,
	}

	s.routes()
	return s
}

// ServerDeps collects every external collaborator the gateway's handlers
// call into, so NewServer itself stays a pure wiring function.
type ServerDeps struct {
	Auth      auth.Service
	Blacklist auth.TokenBlacklist
	Limiter   ratelimit.Limiter

	Documents repository.DocumentRepository
	Jobs      repository.JobRepository
	Chunks    repository.ChunkRepository

	Broker   queue.Broker
	Vectors  vector.Backend
	LLM      *llm.Service
	Files    storage.Store
	Pipeline *ingest.Pipeline

	RequireAuthForRead  bool
	RequireAuthForWrite bool
}

func (s *Server) Echo() *echo.Echo { return s.echo }

// Start runs the server until the process is signaled to stop.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.echo.StartServer(srv)
}

// Shutdown gracefully drains in-flight requests within the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
