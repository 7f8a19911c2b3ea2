package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the single configuration surface shared by cmd/gateway,
// cmd/worker and cmd/vectorsvc. Every field corresponds to one of the
// recognized configuration keys; unused sections are simply not read by
// a given binary.
//
// document_service_url and llm_service_url are deliberately not modeled:
// document/job state lives in the relational store (C1), which both the
// gateway and the worker reach directly through the repository layer
// rather than through a network hop of their own, and the LLM provider is
// an external collaborator the gateway calls directly, not a service this
// platform deploys. Only vector_service_url names a real internal service
// boundary (C4), so it is the only one of the three kept and wired.
type Config struct {
	// VectorServiceURL is the C4 Vector Index Service's base URL; the
	// gateway and worker reach it through vector.NewHTTPClient using
	// RequestTimeout as the call's deadline.
	VectorServiceURL string
	// VectorServicePort is the port cmd/vectorsvc itself listens on; it is
	// independent of VectorServiceURL, which is how the *other* binaries
	// address it (the two agree in a single-host deployment but need not).
	VectorServicePort int

	CORSOrigins    []string
	RequestTimeout time.Duration

	EnableAuth           bool
	RequireAuthForRead   bool
	RequireAuthForWrite  bool
	SecretKey            string
	JWTAlgorithm         string
	AccessTokenExpire    time.Duration
	RefreshTokenExpire   time.Duration
	EnableAPIKeys        bool
	EnableRateLimiting   bool
	RateLimitRequests    int
	Debug                bool
	EnableRegistration   bool
	AdminEmail           string
	AdminPassword        string
	AdminFullName        string

	EmbeddingModel     string
	EmbeddingDimension int
	ChunkSize          int
	ChunkOverlap       int
	UseGPU             bool

	OpenAIAPIKey       string
	AnthropicAPIKey    string
	DefaultLLMProvider string
	DefaultModel       string
	MaxTokens          int
	Temperature        float64
	RAGTopK            int
	EnableVectorRAG    bool

	EnableOCR          bool
	OCRLanguage        string
	OCRDPI             int
	EnableDOIValidation bool

	// SectionDetectionThreshold is the two-column layout detection threshold
	// (default 0.3); not part of spec.md's enumerated table but a first-class
	// knob per the open-question decision recorded in DESIGN.md. It is loaded
	// but no package reads it: ingest.DetectSections takes no threshold.
	SectionDetectionThreshold float64

	UploadDirectory string

	// StorageBackend selects between the local filesystem and an
	// S3-compatible object store for uploaded paper bodies.
	StorageBackend string // "local" or "s3"
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string

	DatabaseURL string
	RedisURL    string
	AMQPURL     string
	QueueBroker string // "redis" or "amqp"

	ServerPort int
	ServerHost string

	MaxJobTimeout time.Duration
}

// Load reads configuration from environment variables (optionally prefixed)
// and an optional YAML file via viper, applying the defaults spec.md names
// for every key. prefix is applied to every environment variable, e.g.
// prefix "SCHOLARIS" makes `embedding_model` resolve to `SCHOLARIS_EMBEDDING_MODEL`.
func Load(prefix string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/scholaris")
	if file := viper.ConfigFileUsed(); file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	setDefaults(v)

	cfg := &Config{
		VectorServiceURL:  v.GetString("vector_service_url"),
		VectorServicePort: v.GetInt("vector_service_port"),

		CORSOrigins:    v.GetStringSlice("cors_origins"),
		RequestTimeout: v.GetDuration("request_timeout"),

		EnableAuth:          v.GetBool("enable_auth"),
		RequireAuthForRead:  v.GetBool("require_auth_for_read"),
		RequireAuthForWrite: v.GetBool("require_auth_for_write"),
		SecretKey:           v.GetString("secret_key"),
		JWTAlgorithm:        v.GetString("jwt_algorithm"),
		AccessTokenExpire:   time.Duration(v.GetInt("access_token_expire_minutes")) * time.Minute,
		RefreshTokenExpire:  time.Duration(v.GetInt("refresh_token_expire_days")) * 24 * time.Hour,
		EnableAPIKeys:       v.GetBool("enable_api_keys"),
		EnableRateLimiting:  v.GetBool("enable_rate_limiting"),
		RateLimitRequests:   v.GetInt("rate_limit_requests"),
		Debug:               v.GetBool("debug"),
		EnableRegistration:  v.GetBool("enable_registration"),
		AdminEmail:          v.GetString("admin_email"),
		AdminPassword:       v.GetString("admin_password"),
		AdminFullName:       v.GetString("admin_full_name"),

		EmbeddingModel:     v.GetString("embedding_model"),
		EmbeddingDimension: v.GetInt("embedding_dimension"),
		ChunkSize:          v.GetInt("chunk_size"),
		ChunkOverlap:       v.GetInt("chunk_overlap"),
		UseGPU:             v.GetBool("use_gpu"),

		OpenAIAPIKey:       v.GetString("openai_api_key"),
		AnthropicAPIKey:    v.GetString("anthropic_api_key"),
		DefaultLLMProvider: v.GetString("default_llm_provider"),
		DefaultModel:       v.GetString("default_model"),
		MaxTokens:          v.GetInt("max_tokens"),
		Temperature:        v.GetFloat64("temperature"),
		RAGTopK:            v.GetInt("rag_top_k"),
		EnableVectorRAG:    v.GetBool("enable_vector_rag"),

		EnableOCR:           v.GetBool("enable_ocr"),
		OCRLanguage:         v.GetString("ocr_language"),
		OCRDPI:              v.GetInt("ocr_dpi"),
		EnableDOIValidation: v.GetBool("enable_doi_validation"),

		SectionDetectionThreshold: v.GetFloat64("section_detection_threshold"),

		UploadDirectory: v.GetString("upload_directory"),

		StorageBackend: v.GetString("storage_backend"),
		S3Endpoint:     v.GetString("s3_endpoint"),
		S3Region:       v.GetString("s3_region"),
		S3Bucket:       v.GetString("s3_bucket"),
		S3AccessKey:    v.GetString("s3_access_key"),
		S3SecretKey:    v.GetString("s3_secret_key"),

		DatabaseURL: v.GetString("database_url"),
		RedisURL:    v.GetString("redis_url"),
		AMQPURL:     v.GetString("amqp_url"),
		QueueBroker: v.GetString("queue_broker"),

		ServerPort: v.GetInt("server_port"),
		ServerHost: v.GetString("server_host"),

		MaxJobTimeout: v.GetDuration("max_job_timeout"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vector_service_url", "http://localhost:8081")
	v.SetDefault("vector_service_port", 8081)

	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("request_timeout", 120*time.Second)

	v.SetDefault("enable_auth", true)
	v.SetDefault("require_auth_for_read", false)
	v.SetDefault("require_auth_for_write", true)
	v.SetDefault("jwt_algorithm", "HS256")
	v.SetDefault("access_token_expire_minutes", 30)
	v.SetDefault("refresh_token_expire_days", 7)
	v.SetDefault("enable_api_keys", true)
	v.SetDefault("enable_rate_limiting", true)
	v.SetDefault("rate_limit_requests", 100)
	v.SetDefault("debug", false)
	v.SetDefault("enable_registration", true)
	v.SetDefault("admin_full_name", "Administrator")

	v.SetDefault("embedding_model", "all-MiniLM-L6-v2")
	v.SetDefault("embedding_dimension", 384)
	v.SetDefault("chunk_size", 500)
	v.SetDefault("chunk_overlap", 50)
	v.SetDefault("use_gpu", false)

	v.SetDefault("default_llm_provider", "openai")
	v.SetDefault("default_model", "gpt-4o-mini")
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("rag_top_k", 5)
	v.SetDefault("enable_vector_rag", true)

	v.SetDefault("enable_ocr", true)
	v.SetDefault("ocr_language", "eng")
	v.SetDefault("ocr_dpi", 300)
	v.SetDefault("enable_doi_validation", true)

	v.SetDefault("section_detection_threshold", 0.3)

	v.SetDefault("upload_directory", "./uploads")

	v.SetDefault("storage_backend", "local")
	v.SetDefault("s3_region", "eu-central")

	v.SetDefault("database_url", "postgres://localhost:5432/scholaris?sslmode=disable")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("queue_broker", "redis")

	v.SetDefault("server_port", 8080)
	v.SetDefault("server_host", "0.0.0.0")

	v.SetDefault("max_job_timeout", 60*time.Minute)
}

// validate enforces the invariants that must hold before any binary starts
// serving traffic: a signing secret must be present whenever auth is
// enabled, and the rate limit and RAG top-k knobs must be positive.
func validate(cfg *Config) error {
	validator := NewValidator()

	validator.RequireString("vector_service_url", cfg.VectorServiceURL)
	if cfg.EnableAuth {
		validator.RequireString("secret_key", cfg.SecretKey)
		validator.RequireOneOf("jwt_algorithm", cfg.JWTAlgorithm, []string{"HS256", "HS384", "HS512"})
	}
	validator.RequirePositiveInt("embedding_dimension", cfg.EmbeddingDimension)
	validator.RequirePositiveInt("chunk_size", cfg.ChunkSize)
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return fmt.Errorf("config: chunk_overlap (%d) must be smaller than chunk_size (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.EnableRateLimiting {
		validator.RequirePositiveInt("rate_limit_requests", cfg.RateLimitRequests)
	}
	validator.RequirePositiveInt("rag_top_k", cfg.RAGTopK)
	validator.RequireOneOf("queue_broker", cfg.QueueBroker, []string{"redis", "amqp"})
	validator.RequireOneOf("storage_backend", cfg.StorageBackend, []string{"local", "s3"})
	if cfg.StorageBackend == "s3" {
		validator.RequireString("s3_bucket", cfg.S3Bucket)
		validator.RequireString("s3_endpoint", cfg.S3Endpoint)
	}

	return validator.Validate()
}
