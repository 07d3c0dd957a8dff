// Package search serves queries cache-aside: cached results first, the search engine on a miss.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/cache"
	"github.com/hyperjump/pdfsearch/internal/engine"
	"github.com/hyperjump/pdfsearch/internal/models"
)

var (
	// ErrEmptyQuery is returned for a query that is empty after trimming.
	ErrEmptyQuery = errors.New("empty query")
	// ErrSearchUnavailable wraps any engine failure or timeout.
	ErrSearchUnavailable = errors.New("search unavailable")
)

// NoResultsMessage is set on responses with zero results.
const NoResultsMessage = "no results found"

// Config tunes the coordinator. Zero values take the defaults below.
type Config struct {
	IndexName    string
	ResultLimit  int
	CacheTTL     time.Duration
	CacheTimeout time.Duration
	QueryTimeout time.Duration
	KeyPrefix    string
}

const (
	defaultIndexName    = "documents"
	defaultResultLimit  = 10
	defaultCacheTTL     = 600 * time.Second
	defaultCacheTimeout = 500 * time.Millisecond
	defaultQueryTimeout = 10 * time.Second
)

// Coordinator answers queries from the cache when possible and populates it from engine hits.
type Coordinator struct {
	engine engine.Engine
	cache  cache.Store
	cfg    Config
	logger *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// NewCoordinator returns a coordinator over eng and store. A nil store disables caching.
func NewCoordinator(eng engine.Engine, store cache.Store, cfg Config, opts ...Option) *Coordinator {
	if store == nil {
		store = cache.NopStore{}
	}
	if cfg.IndexName == "" {
		cfg.IndexName = defaultIndexName
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = defaultResultLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = defaultCacheTimeout
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	c := &Coordinator{engine: eng, cache: store, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey returns the cache key for query.
func (c *Coordinator) CacheKey(query string) string {
	return c.cfg.KeyPrefix + strings.TrimSpace(query)
}

// Search returns the results for query. Hits are cached for the configured TTL; empty
// results are never cached. Cache failures degrade to engine queries and are only logged.
func (c *Coordinator) Search(ctx context.Context, query string) (*models.SearchResponse, error) {
	start := time.Now()
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	key := c.CacheKey(q)

	if results, ok := c.lookup(ctx, key); ok {
		return newResponse(q, results, true, start), nil
	}

	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	hits, err := c.engine.Search(qctx, c.cfg.IndexName, q, engine.SearchFields, c.cfg.ResultLimit)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	results := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = models.ProjectResult(h.Record, h.Score)
	}
	if len(results) > 0 {
		c.populate(ctx, key, results)
	}
	return newResponse(q, results, false, start), nil
}

// IndexedDocuments returns the number of records in the configured index.
func (c *Coordinator) IndexedDocuments(ctx context.Context) (uint64, error) {
	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()
	n, err := c.engine.DocCount(qctx, c.cfg.IndexName)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	return n, nil
}

func (c *Coordinator) lookup(ctx context.Context, key string) ([]models.SearchResult, bool) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CacheTimeout)
	defer cancel()
	raw, err := c.cache.Get(cctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	var results []models.SearchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		c.logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return results, true
}

func (c *Coordinator) populate(ctx context.Context, key string, results []models.SearchResult) {
	raw, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CacheTimeout)
	defer cancel()
	if err := c.cache.Set(cctx, key, raw, c.cfg.CacheTTL); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func newResponse(query string, results []models.SearchResult, cached bool, start time.Time) *models.SearchResponse {
	if results == nil {
		results = []models.SearchResult{}
	}
	resp := &models.SearchResponse{
		Query:     query,
		Results:   results,
		Total:     len(results),
		Cached:    cached,
		QueryTime: time.Since(start).Milliseconds(),
	}
	if len(results) == 0 {
		resp.Message = NoResultsMessage
	}
	return resp
}
