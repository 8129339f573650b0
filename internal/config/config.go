package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"`
	APIPrefix   string `json:"api_prefix" yaml:"api_prefix"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header" yaml:"api_key_header"`
	APIKeys      []string `json:"api_keys" yaml:"api_keys"`
	EnableAuth   bool     `json:"enable_auth" yaml:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// Security
	MaxPromptLength    int      `json:"max_prompt_length" yaml:"max_prompt_length"`
	EnablePIIDetection bool     `json:"enable_pii_detection" yaml:"enable_pii_detection"`
	PIIKeywords        []string `json:"pii_keywords" yaml:"pii_keywords"`
	EnableAuditLogging bool     `json:"enable_audit_logging" yaml:"enable_audit_logging"`

	// Oracle
	Provider           string  `json:"provider" yaml:"provider"` // openai | anthropic
	Model              string  `json:"model" yaml:"model"`
	Temperature        float64 `json:"temperature" yaml:"temperature"`
	MaxTokens          int     `json:"max_tokens" yaml:"max_tokens"`
	OpenAIAPIKey       string  `json:"openai_api_key" yaml:"openai_api_key"`
	OpenAIBaseURL      string  `json:"openai_base_url" yaml:"openai_base_url"` // DashScope / SiliconFlow compatible endpoint
	AnthropicAPIKey    string  `json:"anthropic_api_key" yaml:"anthropic_api_key"`
	AnthropicBaseURL   string  `json:"anthropic_base_url" yaml:"anthropic_base_url"` // override for Z.ai / custom proxy
	BreakerMaxFailures uint32  `json:"breaker_max_failures" yaml:"breaker_max_failures"`
	BreakerTimeout     int     `json:"breaker_timeout" yaml:"breaker_timeout"` // seconds

	// Agent
	Classifier     string `json:"classifier" yaml:"classifier"` // llm | keyword
	MaxSteps       int    `json:"max_steps" yaml:"max_steps"`
	ParallelTools  bool   `json:"parallel_tools" yaml:"parallel_tools"`
	RunTimeout     int    `json:"run_timeout" yaml:"run_timeout"` // seconds
	WeatherBackend string `json:"weather_backend" yaml:"weather_backend"` // static | wttr
	WttrURL        string `json:"wttr_url" yaml:"wttr_url"`

	// Human-in-the-loop approval
	ApprovalRequire []string `json:"approval_require" yaml:"approval_require"`
	ApprovalAllow   []string `json:"approval_allow" yaml:"approval_allow"`
	ApprovalDeny    []string `json:"approval_deny" yaml:"approval_deny"`

	// Knowledge retrieval
	KnowledgeEnabled    bool   `json:"knowledge_enabled" yaml:"knowledge_enabled"`
	KnowledgeDir        string `json:"knowledge_dir" yaml:"knowledge_dir"`
	KnowledgeBackend    string `json:"knowledge_backend" yaml:"knowledge_backend"` // memory | elasticsearch
	KnowledgeTopK       int    `json:"knowledge_top_k" yaml:"knowledge_top_k"`
	EmbeddingModel      string `json:"embedding_model" yaml:"embedding_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions" yaml:"embedding_dimensions"`

	// Elasticsearch
	ElasticsearchHost        string `json:"elasticsearch_host" yaml:"elasticsearch_host"`
	ElasticsearchPort        int    `json:"elasticsearch_port" yaml:"elasticsearch_port"`
	ElasticsearchScheme      string `json:"elasticsearch_scheme" yaml:"elasticsearch_scheme"`
	ElasticsearchUser        string `json:"elasticsearch_user" yaml:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password" yaml:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs" yaml:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries" yaml:"elasticsearch_max_retries"`
	ElasticsearchTimeout     int    `json:"elasticsearch_timeout" yaml:"elasticsearch_timeout"`
	ElasticsearchIndex       string `json:"elasticsearch_index" yaml:"elasticsearch_index"`

	// Tracing
	TracingEnabled  bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
	TracingExporter string `json:"tracing_exporter" yaml:"tracing_exporter"` // stdout | noop
}

func Default() *Config {
	return &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              DefaultCORSOrigins,
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               true,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		MaxPromptLength:          DefaultMaxPromptLength,
		EnablePIIDetection:       true,
		PIIKeywords:              DefaultPIIKeywords,
		EnableAuditLogging:       true,
		Provider:                 DefaultProvider,
		Model:                    DefaultModel,
		Temperature:              DefaultTemperature,
		BreakerMaxFailures:       DefaultBreakerMaxFailures,
		BreakerTimeout:           DefaultBreakerTimeout,
		Classifier:               DefaultClassifier,
		MaxSteps:                 DefaultMaxSteps,
		RunTimeout:               DefaultRunTimeout,
		WeatherBackend:           DefaultWeatherBackend,
		KnowledgeDir:             DefaultKnowledgeDir,
		KnowledgeBackend:         DefaultKnowledgeBackend,
		KnowledgeTopK:            DefaultKnowledgeTopK,
		EmbeddingModel:           DefaultEmbeddingModel,
		EmbeddingDimensions:      DefaultEmbeddingDimensions,
		ElasticsearchPort:        DefaultElasticsearchPort,
		ElasticsearchScheme:      DefaultElasticsearchScheme,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		ElasticsearchTimeout:     DefaultElasticsearchTimeout,
		ElasticsearchIndex:       DefaultElasticsearchIndex,
		TracingExporter:          "stdout",
	}
}

func Load() (*Config, error) {
	cfg := Default()

	// Load from config file if specified
	if path := getEnv("INTENTGRAPH_CONFIG", ""); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// Validate rejects unknown backend names and out-of-range limits
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("invalid provider %q (want openai or anthropic)", c.Provider)
	}
	switch c.Classifier {
	case "llm", "keyword":
	default:
		return fmt.Errorf("invalid classifier %q (want llm or keyword)", c.Classifier)
	}
	switch c.WeatherBackend {
	case "static", "wttr":
	default:
		return fmt.Errorf("invalid weather_backend %q (want static or wttr)", c.WeatherBackend)
	}
	switch c.KnowledgeBackend {
	case "memory", "elasticsearch":
	default:
		return fmt.Errorf("invalid knowledge_backend %q (want memory or elasticsearch)", c.KnowledgeBackend)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be >= 0, got %d", c.MaxSteps)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// ElasticsearchURL joins scheme, host and port
func (c *Config) ElasticsearchURL() string {
	return fmt.Sprintf("%s://%s:%d", c.ElasticsearchScheme, c.ElasticsearchHost, c.ElasticsearchPort)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("INTENTGRAPH_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("INTENTGRAPH_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("INTENTGRAPH_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("INTENTGRAPH_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("INTENTGRAPH_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("INTENTGRAPH_PROVIDER", ""); v != "" {
		cfg.Provider = v
	}
	if v := getEnv("INTENTGRAPH_MODEL", ""); v != "" {
		cfg.Model = v
	}
	if v := getEnv("INTENTGRAPH_CLASSIFIER", ""); v != "" {
		cfg.Classifier = v
	}
	if v := getEnv("INTENTGRAPH_MAX_STEPS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSteps = n
		}
	}
	if v := getEnv("INTENTGRAPH_PARALLEL_TOOLS", ""); v != "" {
		cfg.ParallelTools = parseBool(v)
	}
	if v := getEnv("INTENTGRAPH_WEATHER_BACKEND", ""); v != "" {
		cfg.WeatherBackend = v
	}
	if v := getEnv("INTENTGRAPH_KNOWLEDGE_ENABLED", ""); v != "" {
		cfg.KnowledgeEnabled = parseBool(v)
	}
	if v := getEnv("INTENTGRAPH_KNOWLEDGE_DIR", ""); v != "" {
		cfg.KnowledgeDir = v
	}
	if v := getEnv("INTENTGRAPH_KNOWLEDGE_BACKEND", ""); v != "" {
		cfg.KnowledgeBackend = v
	}
	if v := getEnv("INTENTGRAPH_TRACING", ""); v != "" {
		cfg.TracingEnabled = parseBool(v)
	}
	if v := getEnv("DASHSCOPE_API_KEY", ""); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := getEnv("DASHSCOPE_BASE_URL", ""); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("ELASTICSEARCH_HOST", ""); v != "" {
		cfg.ElasticsearchHost = v
	}
	if v := getEnv("ELASTICSEARCH_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ElasticsearchPort = p
		}
	}
	if v := getEnv("ELASTICSEARCH_SCHEME", ""); v != "" {
		cfg.ElasticsearchScheme = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("ELASTICSEARCH_INDEX", ""); v != "" {
		cfg.ElasticsearchIndex = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = parseBool(v)
	}
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
