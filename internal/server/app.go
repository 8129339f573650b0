package server

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/intentgraph/intentgraph/internal/agent"
	"github.com/intentgraph/intentgraph/internal/config"
	"github.com/intentgraph/intentgraph/internal/llm"
	"github.com/intentgraph/intentgraph/internal/retrieval"
	"github.com/intentgraph/intentgraph/internal/service"
	"github.com/intentgraph/intentgraph/internal/tools"
	"github.com/rs/zerolog/log"
)

// App holds the components built from one Config. The HTTP server and the
// CLI commands share it.
type App struct {
	Config       *config.Config
	Oracle       *llm.BreakerOracle
	Registry     *tools.Registry
	Orchestrator *agent.Orchestrator

	// nil when knowledge retrieval is disabled or failed to start
	Retriever *retrieval.Retriever
	Knowledge *retrieval.KnowledgeAgent
}

type BuildOption func(*buildOptions)

type buildOptions struct {
	approver tools.Approver
	oracle   llm.Oracle
	embedder retrieval.Embedder
}

// WithApprover replaces the config-driven approver and gates every built-in
// tool, not only those listed in approval_require.
func WithApprover(a tools.Approver) BuildOption {
	return func(o *buildOptions) { o.approver = a }
}

// WithOracle bypasses provider construction; the oracle is still wrapped in
// a circuit breaker.
func WithOracle(o llm.Oracle) BuildOption {
	return func(b *buildOptions) { b.oracle = o }
}

func WithEmbedder(e retrieval.Embedder) BuildOption {
	return func(b *buildOptions) { b.embedder = e }
}

func Build(ctx context.Context, cfg *config.Config, opts ...BuildOption) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	inner := bo.oracle
	if inner == nil {
		inner = newOracle(cfg)
	}
	oracle := llm.NewBreakerOracle(inner, llm.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     time.Duration(cfg.BreakerTimeout) * time.Second,
	})

	var classifier agent.Classifier
	switch cfg.Classifier {
	case "keyword":
		classifier = service.NewKeywordClassifier()
	default:
		classifier = agent.NewLLMClassifier(oracle)
	}

	registry, err := newRegistry(cfg, bo.approver)
	if err != nil {
		return nil, err
	}

	table, err := agent.NewDispatchTable(agent.DefaultHandlers()...)
	if err != nil {
		return nil, fmt.Errorf("dispatch table: %w", err)
	}
	orch, err := agent.NewOrchestrator(classifier, table, registry, oracle, agent.Options{
		MaxSteps:      cfg.MaxSteps,
		ParallelTools: cfg.ParallelTools,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	app := &App{
		Config:       cfg,
		Oracle:       oracle,
		Registry:     registry,
		Orchestrator: orch,
	}

	if cfg.KnowledgeEnabled {
		r, err := newRetriever(ctx, cfg, bo.embedder)
		if err != nil {
			log.Warn().Err(err).Msg("knowledge retrieval unavailable")
		} else {
			app.Retriever = r
			app.Knowledge = retrieval.NewKnowledgeAgent(oracle, r, cfg.MaxSteps)
		}
	}

	log.Info().
		Str("oracle", oracle.Name()).
		Str("classifier", cfg.Classifier).
		Str("weather", cfg.WeatherBackend).
		Int("max_steps", cfg.MaxSteps).
		Bool("parallel_tools", cfg.ParallelTools).
		Strs("tools", registry.Names()).
		Bool("knowledge_enabled", app.Knowledge != nil).
		Msg("service configuration")

	return app, nil
}

func newOracle(cfg *config.Config) llm.Oracle {
	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Warn().Msg("ANTHROPIC_API_KEY not set - oracle calls will fail")
		}
		model := cfg.Model
		if model == config.DefaultModel {
			model = ""
		}
		return llm.NewAnthropicOracle(cfg.AnthropicAPIKey, model, cfg.AnthropicBaseURL, cfg.Temperature, cfg.MaxTokens)
	default:
		if cfg.OpenAIAPIKey == "" {
			log.Warn().Msg("DASHSCOPE_API_KEY not set - oracle calls will fail")
		}
		return llm.NewOpenAIOracle(cfg.OpenAIAPIKey, cfg.Model, cfg.OpenAIBaseURL, cfg.Temperature, cfg.MaxTokens)
	}
}

func newRegistry(cfg *config.Config, approver tools.Approver) (*tools.Registry, error) {
	var weather tools.WeatherProvider = tools.StaticWeather{}
	if cfg.WeatherBackend == "wttr" {
		weather = tools.NewWttrWeather(cfg.WttrURL)
	}
	builtin := []tools.Tool{tools.WeatherTool(weather), tools.CalculateTool()}

	var opts []tools.RegistryOption
	switch {
	case approver != nil:
		require := slices.Clone(cfg.ApprovalRequire)
		for _, t := range builtin {
			require = append(require, t.Name)
		}
		opts = append(opts, tools.WithApprover(approver, require...))
	case len(cfg.ApprovalRequire) > 0:
		opts = append(opts, tools.WithApprover(tools.NewConfigApprover(cfg.ApprovalAllow, cfg.ApprovalDeny), cfg.ApprovalRequire...))
	}

	registry := tools.NewRegistry(opts...)
	for _, t := range builtin {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("register %s: %w", t.Name, err)
		}
	}
	return registry, nil
}

func newRetriever(ctx context.Context, cfg *config.Config, embedder retrieval.Embedder) (*retrieval.Retriever, error) {
	if embedder == nil {
		embedder = retrieval.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	}

	var store retrieval.Store
	switch cfg.KnowledgeBackend {
	case "elasticsearch":
		es, err := retrieval.NewElasticsearchStore(retrieval.ElasticsearchConfig{
			Address:     cfg.ElasticsearchURL(),
			User:        cfg.ElasticsearchUser,
			Password:    cfg.ElasticsearchPassword,
			VerifyCerts: cfg.ElasticsearchVerifyCerts,
			MaxRetries:  cfg.ElasticsearchMaxRetries,
			Timeout:     time.Duration(cfg.ElasticsearchTimeout) * time.Second,
			Index:       cfg.ElasticsearchIndex,
			Dimensions:  embedder.Dimension(),
		})
		if err != nil {
			return nil, err
		}
		if err := es.TestConnection(ctx); err != nil {
			return nil, fmt.Errorf("elasticsearch: %w", err)
		}
		if err := es.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		store = es
	default:
		store = retrieval.NewMemoryStore()
	}

	r := retrieval.NewRetriever(embedder, store, cfg.KnowledgeTopK)
	docs, err := retrieval.LoadDir(cfg.KnowledgeDir)
	if err != nil {
		return nil, err
	}
	if err := r.Index(ctx, docs); err != nil {
		return nil, err
	}
	return r, nil
}
