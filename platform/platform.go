// Package platform wires config.Config into the concrete collaborators
// (storage, identity, persistence, queue, vector search, LLM access) that
// cmd/gateway and cmd/worker both need, so the two binaries share one
// construction path instead of duplicating it, the way the teacher wires
// its CouchDB/RabbitMQ/JWT services once in cli/root.go and hands them to
// its HTTP handlers.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/scholaris/core/auth"
	"github.com/scholaris/core/config"
	"github.com/scholaris/core/db"
	"github.com/scholaris/core/db/repository"
	"github.com/scholaris/core/ingest"
	"github.com/scholaris/core/llm"
	"github.com/scholaris/core/queue"
	"github.com/scholaris/core/ratelimit"
	"github.com/scholaris/core/storage"
	"github.com/scholaris/core/vector"

	"github.com/redis/go-redis/v9"
)

// Services bundles every collaborator built from config.Config, ready to
// hand to gateway.ServerDeps or worker.NewPool.
type Services struct {
	Auth      auth.Service
	Blacklist auth.TokenBlacklist
	Limiter   ratelimit.Limiter

	Documents repository.DocumentRepository
	Jobs      repository.JobRepository
	Chunks    repository.ChunkRepository
	SearchLog repository.SearchLogRepository

	Broker   queue.Broker
	Vectors  vector.Backend
	LLM      *llm.Service
	Files    storage.Store
	Pipeline *ingest.Pipeline

	closers []func() error
}

// Close releases every pooled resource (database connections, queue
// clients) this wiring opened.
func (s *Services) Close() error {
	var firstErr error
	for _, closer := range s.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build constructs the full collaborator graph from cfg. database_url
// selects Postgres-backed persistence; an empty value falls back to
// in-process maps so the platform can run without external infrastructure
// for local development.
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	svc := &Services{}

	documents, jobs, chunks, searchLog, err := buildRepositories(cfg, svc)
	if err != nil {
		return nil, err
	}
	svc.Documents, svc.Jobs, svc.Chunks, svc.SearchLog = documents, jobs, chunks, searchLog

	userStore, blacklist, err := buildIdentityStores(cfg, svc)
	if err != nil {
		return nil, err
	}

	authCfg := auth.DefaultConfig()
	authCfg.JWTSecret = cfg.SecretKey
	authCfg.JWTAlgorithm = cfg.JWTAlgorithm
	authCfg.AccessExpiration = cfg.AccessTokenExpire
	authCfg.RefreshExpiration = cfg.RefreshTokenExpire
	authCfg.EnableAPIKeys = cfg.EnableAPIKeys
	authCfg.EnableRegistration = cfg.EnableRegistration
	authCfg.CookieSecure = !cfg.Debug

	svc.Auth = auth.NewService(authCfg, userStore, blacklist)
	svc.Blacklist = blacklist

	if cfg.AdminEmail != "" {
		if err := svc.Auth.EnsureBootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminFullName); err != nil {
			return nil, fmt.Errorf("platform: bootstrapping admin account: %w", err)
		}
	}

	svc.Limiter, err = buildLimiter(cfg, svc)
	if err != nil {
		return nil, err
	}

	svc.Broker, err = buildBroker(cfg)
	if err != nil {
		return nil, err
	}

	// The vector index itself runs as the separate cmd/vectorsvc process
	// (C4); gateway and worker only ever reach it over HTTP, per spec.md
	// §4.1's "proxied ... using an async HTTP client with a configurable
	// request timeout and a bounded connection pool".
	vectors := vector.NewHTTPClient(cfg.VectorServiceURL, cfg.RequestTimeout)
	svc.Vectors = vectors

	registry := llm.NewRegistryFromConfig(cfg.OpenAIAPIKey, cfg.AnthropicAPIKey, cfg.DefaultLLMProvider)
	svc.LLM = llm.NewService(registry, documents, vectors, cfg.RAGTopK)

	files, err := buildStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc.Files = files

	persister := ingest.NewRepositoryDocumentPersister(documents)
	svc.Pipeline = ingest.NewPipeline(
		ingest.NewStubExtractor(),
		ingest.NewStubOCREngine(),
		ingest.NewStubDOIValidator(),
		vectors,
		persister,
	)

	return svc, nil
}

// VectorServiceDeps bundles the in-process vector.Service that
// cmd/vectorsvc exposes over HTTP via vector.NewHTTPServer, plus the
// closer for whatever persistence it opened.
type VectorServiceDeps struct {
	Service *vector.Service
	closers []func() error
}

// Close releases every pooled resource BuildVectorService opened.
func (d *VectorServiceDeps) Close() error {
	var firstErr error
	for _, closer := range d.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildVectorService constructs the real, in-process vector.Service for
// cmd/vectorsvc: its own chunk/document/search-log repositories, chunker,
// embedder and ANN index. This is the only constructor that builds a
// concrete *vector.Service; cmd/gateway and cmd/worker instead get
// vector.NewHTTPClient from Build, never this function.
func BuildVectorService(cfg *config.Config) (*VectorServiceDeps, error) {
	deps := &VectorServiceDeps{}

	repoHolder := &Services{}
	documents, _, chunks, searchLog, err := buildRepositories(cfg, repoHolder)
	if err != nil {
		return nil, err
	}
	deps.closers = repoHolder.closers

	chunker := vector.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	embedder := vector.NewStubEmbedder(cfg.EmbeddingDimension, cfg.UseGPU)
	index, err := vector.NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("platform: building vector index: %w", err)
	}
	svc, err := vector.NewService(chunker, embedder, index, chunks, documents, searchLog)
	if err != nil {
		return nil, fmt.Errorf("platform: building vector service: %w", err)
	}
	deps.Service = svc

	if _, err := svc.Hydrate(context.Background()); err != nil {
		return nil, fmt.Errorf("platform: hydrating vector index: %w", err)
	}

	return deps, nil
}

func buildRepositories(cfg *config.Config, svc *Services) (repository.DocumentRepository, repository.JobRepository, repository.ChunkRepository, repository.SearchLogRepository, error) {
	if cfg.DatabaseURL == "" {
		return repository.NewInMemoryDocumentRepository(),
			repository.NewInMemoryJobRepository(),
			repository.NewInMemoryChunkRepository(),
			repository.NewInMemorySearchLogRepository(),
			nil
	}

	pg, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("platform: connecting to postgres: %w", err)
	}
	svc.closers = append(svc.closers, pg.Close)

	return repository.NewPostgresDocumentRepository(pg),
		repository.NewPostgresJobRepository(pg),
		repository.NewPostgresChunkRepository(pg),
		repository.NewPostgresSearchLogRepository(pg),
		nil
}

func buildIdentityStores(cfg *config.Config, svc *Services) (auth.UserStore, auth.TokenBlacklist, error) {
	if cfg.DatabaseURL == "" {
		return auth.NewMemoryUserStore(), auth.NewMemoryTokenBlacklist(), nil
	}

	pg, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("platform: connecting to postgres for identity store: %w", err)
	}
	svc.closers = append(svc.closers, pg.Close)
	userStore := repository.NewPostgresUserStore(pg)

	if cfg.RedisURL == "" {
		return userStore, auth.NewMemoryTokenBlacklist(), nil
	}
	blacklist, err := auth.NewRedisTokenBlacklist(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("platform: connecting to redis token blacklist: %w", err)
	}
	return userStore, blacklist, nil
}

const rateLimitWindow = time.Minute

func buildLimiter(cfg *config.Config, svc *Services) (ratelimit.Limiter, error) {
	if !cfg.EnableRateLimiting || cfg.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(cfg.RateLimitRequests, rateLimitWindow), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("platform: parsing redis url for rate limiter: %w", err)
	}
	client := redis.NewClient(opts)
	svc.closers = append(svc.closers, client.Close)
	return ratelimit.NewRedisLimiter(client, cfg.RateLimitRequests, rateLimitWindow), nil
}

func buildBroker(cfg *config.Config) (queue.Broker, error) {
	switch cfg.QueueBroker {
	case "amqp":
		return queue.NewAMQPBroker(cfg.AMQPURL)
	case "redis":
		if cfg.RedisURL == "" {
			return queue.NewMemoryBroker(), nil
		}
		return queue.NewRedisBroker(cfg.RedisURL, "scholaris")
	default:
		return queue.NewMemoryBroker(), nil
	}
}

func buildStorage(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Store(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
	}
	return storage.NewLocalStore(cfg.UploadDirectory)
}
