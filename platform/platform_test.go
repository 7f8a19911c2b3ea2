package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris/core/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		VectorServiceURL:   "http://127.0.0.1:0",
		RequestTimeout:     5 * time.Second,
		SecretKey:          "test-secret",
		JWTAlgorithm:       "HS256",
		AccessTokenExpire:  30 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
		EnableAPIKeys:      true,
		EnableRateLimiting: true,
		RateLimitRequests:  100,
		EnableRegistration: true,
		EmbeddingDimension: 384,
		ChunkSize:          500,
		ChunkOverlap:       50,
		RAGTopK:            5,
		UploadDirectory:    t.TempDir(),
		StorageBackend:     "local",
		QueueBroker:        "memory",
		// DatabaseURL and RedisURL deliberately left empty: the platform
		// must fall back to in-memory collaborators without external infra.
	}
}

func TestBuildWithoutExternalInfraUsesInMemoryCollaborators(t *testing.T) {
	cfg := testConfig(t)
	svc, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()

	assert.NotNil(t, svc.Auth)
	assert.NotNil(t, svc.Documents)
	assert.NotNil(t, svc.Jobs)
	assert.NotNil(t, svc.Chunks)
	assert.NotNil(t, svc.Broker)
	assert.NotNil(t, svc.LLM)
	assert.NotNil(t, svc.Files)
	assert.NotNil(t, svc.Pipeline)
}

func TestBuildBootstrapsAdminAccount(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminEmail = "admin@example.com"
	cfg.AdminPassword = "Admin1234"
	cfg.AdminFullName = "Admin"

	svc, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()

	user, err := svc.Auth.GetUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)
}

func TestBuildVectorServiceStandalone(t *testing.T) {
	cfg := testConfig(t)
	deps, err := BuildVectorService(cfg)
	require.NoError(t, err)
	defer deps.Close()

	assert.NotNil(t, deps.Service)
}
