package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultProvider           = "openai"
	DefaultModel              = "qwen3-coder-plus"
	DefaultTemperature        = 0.7
	DefaultBreakerMaxFailures = 5
	DefaultBreakerTimeout     = 30 // seconds

	DefaultClassifier     = "llm"
	DefaultMaxSteps       = 10
	DefaultRunTimeout     = 120 // seconds
	DefaultWeatherBackend = "static"

	DefaultKnowledgeDir        = "knowledge"
	DefaultKnowledgeBackend    = "memory"
	DefaultKnowledgeTopK       = 3
	DefaultEmbeddingModel      = "text-embedding-v4"
	DefaultEmbeddingDimensions = 1024

	DefaultElasticsearchPort       = 9200
	DefaultElasticsearchScheme     = "http"
	DefaultElasticsearchMaxRetries = 3
	DefaultElasticsearchTimeout    = 30
	DefaultElasticsearchIndex      = "intentgraph-knowledge"

	DefaultMaxPromptLength = 2000

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "secret", "private key",
	"access token", "api key",
	"密码", "身份证", "银行卡",
}
