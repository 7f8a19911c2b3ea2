package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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
	"github.com/scholaris/core/vector"
)

func newTestServer(t *testing.T) (*Server, repository.JobRepository) {
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

	limiter := ratelimit.NewMemoryLimiter(3, time.Minute)

	cfg := DefaultConfig()
	cfg.Debug = true
	cfg.RateLimitPerMin = 3

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
		Files:               nil,
		Pipeline:            pipeline,
		RequireAuthForRead:  true,
		RequireAuthForWrite: true,
	})
	return srv, jobs
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}, cookies []*http.Cookie, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

// TestLoginRoundTrip exercises scenario S1: login sets both cookies and
// returns a usable token pair; GET /auth/me with the cookie alone resolves
// the admin principal.
func TestLoginRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "Admin1234",
	}, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body auth.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.AccessToken)
	assert.NotEmpty(t, body.RefreshToken)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	meRec := doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", nil, cookies, "")
	require.Equal(t, http.StatusOK, meRec.Code)

	var profile auth.UserResponse
	require.NoError(t, json.Unmarshal(meRec.Body.Bytes(), &profile))
	assert.Equal(t, "admin", profile.Role)
	assert.Equal(t, "admin@example.com", profile.Email)
}

// TestLogoutInvalidatesSession exercises scenario S6.
func TestLogoutInvalidatesSession(t *testing.T) {
	srv, _ := newTestServer(t)

	loginRec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "Admin1234",
	}, nil, "")
	require.Equal(t, http.StatusOK, loginRec.Code)
	var login auth.AuthResult
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &login))

	logoutRec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/logout", nil, nil, login.AccessToken)
	require.Equal(t, http.StatusNoContent, logoutRec.Code)

	meRec := doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", nil, nil, login.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, meRec.Code)

	refreshRec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, nil, "")
	assert.Equal(t, http.StatusUnauthorized, refreshRec.Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	}, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestRateLimitingFires exercises scenario S4 with a configured cap of 3.
func TestRateLimitingFires(t *testing.T) {
	srv, _ := newTestServer(t)

	loginRec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "Admin1234",
	}, nil, "")
	var login auth.AuthResult
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &login))

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = doJSON(t, srv, http.MethodPost, "/api/v1/auth/change-password", map[string]string{
			"current_password": "wrong",
			"new_password":     "DoesntMatter1",
		}, nil, login.AccessToken)
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	retryAfter := last.Header().Get("Retry-After")
	require.NotEmpty(t, retryAfter)
}

func TestSearchRejectsZeroMaxResults(t *testing.T) {
	srv, _ := newTestServer(t)

	loginRec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "Admin1234",
	}, nil, "")
	var login auth.AuthResult
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &login))

	zero := 0
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"query":       "methodology",
		"max_results": &zero,
	}, nil, login.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareRejectsOutOfBoundsDocumentCount(t *testing.T) {
	srv, _ := newTestServer(t)

	loginRec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "Admin1234",
	}, nil, "")
	var login auth.AuthResult
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &login))

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/llm/compare", map[string]interface{}{
		"document_ids": []int64{1},
	}, nil, login.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/llm/compare", map[string]interface{}{
		"document_ids": []int64{1, 2, 3, 4, 5, 6},
	}, nil, login.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", nil, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpointReportsHealthy(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/health", nil, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
