package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris/core/auth"
	"github.com/scholaris/core/db/repository"
	"github.com/scholaris/core/ingest"
	"github.com/scholaris/core/llm"
	"github.com/scholaris/core/queue"
	"github.com/scholaris/core/ratelimit"
	"github.com/scholaris/core/storage"
	"github.com/scholaris/core/vector"
)

// newFilesTestServer mirrors newTestServer but wires a real LocalStore, so
// handlers that read back uploaded/extracted bytes (figure files) have
// somewhere to resolve a stored path against.
func newFilesTestServer(t *testing.T) (*Server, repository.DocumentRepository, storage.Store) {
	t.Helper()

	authCfg := auth.DefaultConfig()
	authCfg.JWTSecret = "test-secret"
	authCfg.AccessExpiration = 2 * time.Second
	authStore := auth.NewMemoryUserStore()
	blacklist := auth.NewMemoryTokenBlacklist()
	authSvc := auth.NewService(authCfg, authStore, blacklist)
	require.NoError(t, authSvc.EnsureBootstrapAdmin(context.Background(), "admin@example.com", "Admin1234", "Admin"))

	documents := repository.NewInMemoryDocumentRepository()
	jobs := repository.NewInMemoryJobRepository()
	chunks := repository.NewInMemoryChunkRepository()
	searchLog := repository.NewInMemorySearchLogRepository()

	embedder := vector.NewStubEmbedder(16, false)
	index, err := vector.NewMemoryIndex(embedder.Dimensions())
	require.NoError(t, err)
	vecSvc, err := vector.NewService(vector.NewChunker(500, 50), embedder, index, chunks, documents, searchLog)
	require.NoError(t, err)

	registry := llm.NewRegistryFromConfig("", "", "stub")
	llmSvc := llm.NewService(registry, documents, vecSvc, 5)

	broker := queue.NewMemoryBroker()
	persister := ingest.NewRepositoryDocumentPersister(documents)
	pipeline := ingest.NewPipeline(
		ingest.NewStubExtractor(),
		ingest.NewStubOCREngine(),
		ingest.NewStubDOIValidator(),
		vecSvc,
		persister,
	)

	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	limiter := ratelimit.NewMemoryLimiter(100, time.Minute)

	cfg := DefaultConfig()
	cfg.Debug = true
	cfg.RateLimitPerMin = 100

	srv := NewServer(cfg, ServerDeps{
		Auth:                authSvc,
		Blacklist:           blacklist,
		Limiter:             limiter,
		Documents:           documents,
		Jobs:                jobs,
		Chunks:              chunks,
		Broker:              broker,
		Vectors:             vecSvc,
		LLM:                 llmSvc,
		Files:               files,
		Pipeline:            pipeline,
		RequireAuthForRead:  true,
		RequireAuthForWrite: true,
	})
	return srv, documents, files
}

func loginAdmin(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "Admin1234",
	}, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var login auth.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	return login.AccessToken
}

func TestGetFigureFileServesStoredImage(t *testing.T) {
	srv, documents, files := newFilesTestServer(t)
	token := loginAdmin(t, srv)

	ctx := context.Background()
	storedPath, err := files.Save(ctx, "fig1.png", strings.NewReader("fake-png-bytes"))
	require.NoError(t, err)

	_, err = documents.CreateDocument(ctx, &repository.Document{
		Filename: "paper.pdf",
		OwnerID:  "user-1",
		Figures: []map[string]interface{}{
			{"filename": "20260101_paper_p1_fig1.png", "path": storedPath, "page": 1},
		},
	})
	require.NoError(t, err)

	// admin bypasses ownerScoped, so no need to align OwnerID with the token.
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/documents/1/figures/20260101_paper_p1_fig1.png", nil, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "fake-png-bytes", rec.Body.String())
}

func TestGetFigureFileMissingReturnsNotFound(t *testing.T) {
	srv, documents, _ := newFilesTestServer(t)
	token := loginAdmin(t, srv)

	ctx := context.Background()
	_, err := documents.CreateDocument(ctx, &repository.Document{
		Filename: "paper.pdf",
		OwnerID:  "user-1",
	})
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/documents/1/figures/does-not-exist.png", nil, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
