package retrieval

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"
)

// ElasticsearchConfig mirrors the elasticsearch_* settings
type ElasticsearchConfig struct {
	Address     string
	User        string
	Password    string
	VerifyCerts bool
	MaxRetries  int
	Timeout     time.Duration
	Index       string
	Dimensions  int
}

// ElasticsearchStore keeps chunks in an index with a dense_vector field and
// answers with approximate kNN restricted by a permission filter.
type ElasticsearchStore struct {
	client *elasticsearch.Client
	index  string
	dims   int
}

func NewElasticsearchStore(cfg ElasticsearchConfig) (*ElasticsearchStore, error) {
	esCfg := elasticsearch.Config{
		Addresses:  []string{cfg.Address},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.User != "" {
		esCfg.Username = cfg.User
		esCfg.Password = cfg.Password
	}
	transport := &http.Transport{ResponseHeaderTimeout: cfg.Timeout}
	if !cfg.VerifyCerts {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
		}
	}
	esCfg.Transport = transport

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &ElasticsearchStore{client: client, index: cfg.Index, dims: dims}, nil
}

func (s *ElasticsearchStore) Name() string { return "elasticsearch" }

// TestConnection pings the cluster
func (s *ElasticsearchStore) TestConnection(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the index with its vector mapping when missing
func (s *ElasticsearchStore) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"source":     map[string]any{"type": "keyword"},
				"chunk_id":   map[string]any{"type": "integer"},
				"content":    map[string]any{"type": "text"},
				"permission": map[string]any{"type": "keyword"},
				"keywords":   map[string]any{"type": "text"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       s.dims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	res, err = s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if _, err := decodeBody(res.Body, res.Status()); err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	log.Info().Str("index", s.index).Int("dims", s.dims).Msg("elasticsearch index created")
	return nil
}

type esDoc struct {
	Source     string    `json:"source"`
	ChunkID    int       `json:"chunk_id"`
	Content    string    `json:"content"`
	Permission string    `json:"permission,omitempty"`
	Keywords   string    `json:"keywords,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Index bulk-writes docs; IDs are stable so re-indexing overwrites
func (s *ElasticsearchStore) Index(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("index: %d documents but %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, d := range docs {
		meta := map[string]any{"index": map[string]any{"_index": s.index, "_id": d.ID}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(esDoc{
			Source:     d.Source,
			ChunkID:    d.ChunkID,
			Content:    d.Content,
			Permission: d.Permission,
			Keywords:   d.Keywords,
			Embedding:  vectors[i],
		}); err != nil {
			return err
		}
	}

	res, err := s.client.Bulk(bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk: %w", err)
	}
	defer res.Body.Close()

	raw, err := decodeBody(res.Body, res.Status())
	if err != nil {
		return err
	}
	if failed, _ := raw["errors"].(bool); failed {
		return fmt.Errorf("bulk: some documents failed to index")
	}
	return nil
}

// Search runs kNN with a filter admitting public documents and those
// carrying the caller's permission.
func (s *ElasticsearchStore) Search(ctx context.Context, vector []float32, permission string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	body, err := json.Marshal(map[string]any{
		"size": k,
		"knn": map[string]any{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": max(50, k*10),
			"filter":         permissionFilter(permission),
		},
		"_source": []string{"source", "chunk_id", "content", "permission", "keywords"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Score  float64 `json:"_score"`
				Source esDoc   `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Error any `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch error [%s]: %v", res.Status(), parsed.Error)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{
			Document: Document{
				ID:         h.ID,
				Source:     h.Source.Source,
				ChunkID:    h.Source.ChunkID,
				Content:    h.Source.Content,
				Permission: h.Source.Permission,
				Keywords:   h.Source.Keywords,
			},
			// ES maps cosine to (1 + cos) / 2
			Score: 2*h.Score - 1,
		})
	}
	return hits, nil
}

func (s *ElasticsearchStore) Count(ctx context.Context) (int, error) {
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.index),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	raw, err := decodeBody(res.Body, res.Status())
	if err != nil {
		return 0, err
	}
	if count, ok := raw["count"].(float64); ok {
		return int(count), nil
	}
	return 0, nil
}

func permissionFilter(permission string) map[string]any {
	public := map[string]any{
		"bool": map[string]any{
			"must_not": map[string]any{"exists": map[string]any{"field": "permission"}},
		},
	}
	if permission == "" {
		return public
	}
	return map[string]any{
		"bool": map[string]any{
			"should": []any{
				public,
				map[string]any{"term": map[string]any{"permission": permission}},
			},
			"minimum_should_match": 1,
		},
	}
}

func decodeBody(r io.Reader, status string) (map[string]any, error) {
	var result map[string]any
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		if errObj, ok := result["error"]; ok {
			return nil, fmt.Errorf("elasticsearch error [%s]: %v", status, errObj)
		}
		return nil, fmt.Errorf("elasticsearch error: %s", status)
	}
	return result, nil
}
