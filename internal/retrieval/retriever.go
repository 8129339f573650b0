package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/intentgraph/intentgraph/internal/tools"
	"github.com/rs/zerolog/log"
)

const DefaultTopK = 3

// Retriever embeds queries and searches a Store
type Retriever struct {
	embedder Embedder
	store    Store
	topK     int
}

func NewRetriever(embedder Embedder, store Store, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

func (r *Retriever) Store() Store { return r.store }

// Index embeds docs in batches and writes them to the store
func (r *Retriever) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if err := r.store.Index(ctx, docs, vecs); err != nil {
		return fmt.Errorf("%s index: %w", r.store.Name(), err)
	}
	log.Info().Str("store", r.store.Name()).Int("documents", len(docs)).Msg("knowledge indexed")
	return nil
}

// Search returns up to k documents visible to permission; k <= 0 uses the default
func (r *Retriever) Search(ctx context.Context, query, permission string, k int) ([]Hit, error) {
	if k <= 0 {
		k = r.topK
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.store.Search(ctx, vec, permission, k)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", r.store.Name(), err)
	}
	log.Debug().Str("permission", permission).Str("query", query).Int("hits", len(hits)).Msg("knowledge search")
	return hits, nil
}

// Format renders hits as "[source#chunk] content" blocks separated by blank lines
func Format(hits []Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("[%s] %s", h.Document.Ref(), h.Document.Content)
	}
	return strings.Join(parts, "\n\n")
}

type RetrieveArgs struct {
	Query string `json:"query" jsonschema:"search query describing the information needed"`
}

// Tool binds a retrieve_context tool to one caller's permission. The oracle
// never sees or chooses the permission.
func (r *Retriever) Tool(permission string) tools.Tool {
	return tools.MustNewTool("retrieve_context", "基于向量库检索与问题最相关的文本片段。",
		func(ctx context.Context, args RetrieveArgs) (string, error) {
			q := strings.TrimSpace(args.Query)
			if q == "" {
				return "", ErrEmptyInput
			}
			hits, err := r.Search(ctx, q, permission, r.topK)
			if err != nil {
				return "", err
			}
			if len(hits) == 0 {
				return "未检索到相关资料。", nil
			}
			return Format(hits), nil
		})
}
