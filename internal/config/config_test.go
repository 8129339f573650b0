package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/intentgraph/intentgraph/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INTENTGRAPH_CONFIG", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "llm", cfg.Classifier)
	assert.Equal(t, 10, cfg.MaxSteps)
	assert.Equal(t, 3, cfg.KnowledgeTopK)
	assert.Equal(t, "text-embedding-v4", cfg.EmbeddingModel)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intentgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
classifier: keyword
max_steps: 4
approval_require: [get_weather]
`), 0o600))

	t.Setenv("INTENTGRAPH_CONFIG", path)
	t.Setenv("INTENTGRAPH_MAX_STEPS", "6")
	t.Setenv("DASHSCOPE_API_KEY", "sk-dash")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "keyword", cfg.Classifier)
	assert.Equal(t, 6, cfg.MaxSteps, "env wins over file")
	assert.Equal(t, []string{"get_weather"}, cfg.ApprovalRequire)
	assert.Equal(t, "sk-dash", cfg.OpenAIAPIKey)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intentgraph.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"provider":"anthropic","knowledge_backend":"elasticsearch"}`), 0o600))
	t.Setenv("INTENTGRAPH_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "elasticsearch", cfg.KnowledgeBackend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"provider", func(c *config.Config) { c.Provider = "gemini" }},
		{"classifier", func(c *config.Config) { c.Classifier = "regex" }},
		{"weather", func(c *config.Config) { c.WeatherBackend = "noaa" }},
		{"knowledge", func(c *config.Config) { c.KnowledgeBackend = "milvus" }},
		{"steps", func(c *config.Config) { c.MaxSteps = -1 }},
		{"port", func(c *config.Config) { c.Port = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
