package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/models"
)

// OpenSearchConfig holds connection settings for an OpenSearch cluster.
type OpenSearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	// Transport overrides the HTTP transport. Nil uses the client default, which verifies
	// server certificates.
	Transport http.RoundTripper
}

// OpenSearchEngine implements Engine against an OpenSearch cluster.
type OpenSearchEngine struct {
	client *opensearch.Client
	logger *zap.Logger
}

// OpenSearchOption configures an OpenSearchEngine.
type OpenSearchOption func(*OpenSearchEngine)

// WithOpenSearchLogger sets the logger.
func WithOpenSearchLogger(l *zap.Logger) OpenSearchOption {
	return func(o *OpenSearchEngine) {
		o.logger = l
	}
}

// NewOpenSearchEngine builds a client for cfg. No request is made until first use.
func NewOpenSearchEngine(cfg OpenSearchConfig, opts ...OpenSearchOption) (*OpenSearchEngine, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("opensearch: no addresses configured")
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}
	o := &OpenSearchEngine{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// indexBody is the settings and mapping used when creating an index. The analyzer mirrors
// the Bleve one: split on word boundaries and case changes, then lowercase.
var indexBody = map[string]interface{}{
	"settings": map[string]interface{}{
		"index": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"analysis": map[string]interface{}{
			"filter": map[string]interface{}{
				"content_word_delimiter": map[string]interface{}{
					"type":              "word_delimiter",
					"preserve_original": true,
				},
			},
			"analyzer": map[string]interface{}{
				contentAnalyzer: map[string]interface{}{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"content_word_delimiter", "lowercase"},
				},
			},
		},
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			FieldTitle:       map[string]string{"type": "text", "analyzer": contentAnalyzer},
			FieldDescription: map[string]string{"type": "text", "analyzer": contentAnalyzer},
			FieldCategory:    map[string]string{"type": "keyword"},
			FieldFilename:    map[string]string{"type": "keyword"},
			FieldDownloadURL: map[string]string{"type": "text", "analyzer": contentAnalyzer},
			FieldContent:     map[string]string{"type": "text", "analyzer": contentAnalyzer},
		},
	},
}

// EnsureIndex creates the index if a HEAD request reports it absent. A concurrent creator
// winning the race is not an error.
func (o *OpenSearchEngine) EnsureIndex(ctx context.Context, name string) error {
	exists, err := opensearchapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	_ = exists.Body.Close()
	switch exists.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: unexpected status %d", name, exists.StatusCode)
	}

	body, err := json.Marshal(indexBody)
	if err != nil {
		return err
	}
	res, err := opensearchapi.IndicesCreateRequest{Index: name, Body: bytes.NewReader(body)}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg := readError(res.Body)
		if strings.Contains(msg, "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s: status %d: %s", name, res.StatusCode, msg)
	}
	o.logger.Info("created index", zap.String("index", name))
	return nil
}

// Upsert writes the record as document id, replacing any earlier version.
func (o *OpenSearchEngine) Upsert(ctx context.Context, index, id string, record *models.IndexRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	res, err := opensearchapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("index document %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index document %s: status %d: %s", id, res.StatusCode, readError(res.Body))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string             `json:"_id"`
			Score  float64            `json:"_score"`
			Source models.IndexRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi_match query over fields with native scoring.
func (o *OpenSearchEngine) Search(ctx context.Context, index, query string, fields []string, limit int) ([]Hit, error) {
	if len(fields) == 0 {
		fields = SearchFields
	}
	body, err := json.Marshal(map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": fields,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	res, err := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, o.client)
	if err != nil {
		return nil, fmt.Errorf("opensearch search: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", index, ErrIndexNotFound)
	}
	if res.IsError() {
		return nil, fmt.Errorf("opensearch search: status %d: %s", res.StatusCode, readError(res.Body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]Hit, len(parsed.Hits.Hits))
	for i, h := range parsed.Hits.Hits {
		hits[i] = Hit{ID: h.ID, Score: h.Score, Record: h.Source}
	}
	return hits, nil
}

// DocCount asks the _count API for the number of documents in index.
func (o *OpenSearchEngine) DocCount(ctx context.Context, index string) (uint64, error) {
	res, err := opensearchapi.CountRequest{Index: []string{index}}.Do(ctx, o.client)
	if err != nil {
		return 0, fmt.Errorf("opensearch count: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, fmt.Errorf("opensearch count: status %d: %s", res.StatusCode, readError(res.Body))
	}
	var parsed struct {
		Count uint64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return parsed.Count, nil
}

// Close is a no-op; the underlying HTTP client holds no resources that need releasing.
func (o *OpenSearchEngine) Close() error {
	return nil
}

func readError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return strings.TrimSpace(string(b))
}
