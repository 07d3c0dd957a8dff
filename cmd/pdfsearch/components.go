package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/cache"
	"github.com/hyperjump/pdfsearch/internal/config"
	"github.com/hyperjump/pdfsearch/internal/dispatch"
	"github.com/hyperjump/pdfsearch/internal/engine"
	"github.com/hyperjump/pdfsearch/internal/extract"
	"github.com/hyperjump/pdfsearch/internal/inbox"
	"github.com/hyperjump/pdfsearch/internal/ingest"
	"github.com/hyperjump/pdfsearch/internal/search"
	"github.com/hyperjump/pdfsearch/internal/server"
	"github.com/hyperjump/pdfsearch/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Files       *storage.FileStore
	Engine      engine.Engine
	Cache       cache.Store
	Dispatcher  *dispatch.Dispatcher
	AsynqServer *dispatch.AsynqServer
	Coordinator *search.Coordinator
	Ingest      *ingest.Service
	Inbox       *inbox.Inbox
}

// Close releases resources in reverse dependency order. In-process indexing is drained first.
func (c *Components) Close() {
	if c.Inbox != nil {
		c.Inbox.Stop()
	}
	if c.AsynqServer != nil {
		c.AsynqServer.Shutdown()
	}
	if c.Dispatcher != nil {
		_ = c.Dispatcher.Close()
	}
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// StatusInfo describes the running configuration for the status endpoint.
func (c *Components) StatusInfo(cfg *config.Config) server.StatusInfo {
	paths := []string{cfg.Storage.UploadDir, cfg.Storage.DatabasePath}
	if be, ok := c.Engine.(*engine.BleveEngine); ok {
		paths = append(paths, be.Path())
	}
	mode := cfg.Indexing.Mode
	if mode == config.ModeAsync {
		mode += "/" + cfg.Indexing.Queue
	}
	return server.StatusInfo{
		EngineType:   cfg.Engine.Type,
		CacheType:    cfg.Cache.Type,
		IndexName:    cfg.Engine.IndexName,
		IndexingMode: mode,
		DiskPaths:    paths,
	}
}

// initializeComponents builds the full server stack from cfg. The search index is created
// if it does not exist.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return fail(fmt.Errorf("failed to create data directory: %w", err))
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize storage: %w", err))
	}
	c.Storage = store

	files, err := storage.NewFileStore(cfg.Storage.UploadDir)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize upload directory: %w", err))
	}
	c.Files = files

	eng, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	c.Engine = eng

	c.Cache = openCache(ctx, cfg, logger)
	c.Coordinator = newCoordinator(cfg, eng, c.Cache, logger)

	dispatcher, asynqServer, err := newDispatcher(cfg, eng, store, logger)
	if err != nil {
		return fail(err)
	}
	c.Dispatcher = dispatcher
	c.AsynqServer = asynqServer

	c.Ingest = ingest.NewService(
		ingest.NewValidator(extract.NewExtractor(extract.WithLogger(logger)), cfg.Server.MaxUploadBytes),
		ingest.NewRecordBuilder(cfg.Server.BaseURL),
		files,
		dispatcher,
		cfg.Engine.IndexName,
		ingest.WithLogger(logger),
		ingest.WithRegistry(store),
	)

	if cfg.Inbox.Directory != "" {
		c.Inbox = inbox.New(cfg.Inbox.Directory, c.Ingest,
			inbox.WithCategory(cfg.Inbox.Category),
			inbox.WithLogger(logger),
		)
	}
	return c, nil
}

func openEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engine.Engine, error) {
	var eng engine.Engine
	switch cfg.Engine.Type {
	case config.EngineOpenSearch:
		osc := cfg.Engine.OpenSearch
		oe, err := engine.NewOpenSearchEngine(engine.OpenSearchConfig{
			Addresses: osc.ResolvedAddresses(),
			Username:  osc.Username,
			Password:  osc.Password,
		}, engine.WithOpenSearchLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize opensearch: %w", err)
		}
		eng = oe
	default:
		be, err := engine.NewBleveEngine(cfg.Engine.BlevePath, engine.WithBleveLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bleve: %w", err)
		}
		eng = be
	}
	if err := eng.EnsureIndex(ctx, cfg.Engine.IndexName); err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("failed to ensure index %s: %w", cfg.Engine.IndexName, err)
	}
	logger.Info("search engine ready", zap.String("engine", cfg.Engine.Type), zap.String("index", cfg.Engine.IndexName))
	return eng, nil
}

func newCoordinator(cfg *config.Config, eng engine.Engine, store cache.Store, logger *zap.Logger) *search.Coordinator {
	return search.NewCoordinator(eng, store, search.Config{
		IndexName:    cfg.Engine.IndexName,
		ResultLimit:  cfg.Engine.ResultLimit,
		CacheTTL:     cfg.Cache.TTL,
		CacheTimeout: cfg.Cache.Timeout,
		QueryTimeout: cfg.Engine.QueryTimeout,
		KeyPrefix:    cfg.Cache.KeyPrefix,
	}, search.WithLogger(logger))
}

// openCache returns the configured cache. An unreachable Redis is logged and kept: lookups
// then fail fast and degrade to engine queries.
func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) cache.Store {
	switch cfg.Cache.Type {
	case config.CacheRedis:
		rs := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, cancel := context.WithTimeout(ctx, cfg.Cache.Timeout)
		defer cancel()
		if err := rs.Ping(pctx); err != nil {
			logger.Warn("redis cache unreachable; searches will bypass the cache", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return rs
	case config.CacheNone:
		return cache.NopStore{}
	default:
		return cache.NewMemoryStore(cfg.Cache.MemoryCapacity)
	}
}

func retryPolicy(cfg *config.Config) dispatch.RetryPolicy {
	return dispatch.RetryPolicy{
		MaxAttempts: cfg.Indexing.MaxAttempts,
		BaseDelay:   cfg.Indexing.RetryBaseDelay,
		MaxDelay:    cfg.Indexing.RetryMaxDelay,
	}
}

func asynqRedis(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// newDispatcher builds the dispatcher for the configured mode. With the asynq queue and an
// embedded worker, the returned server is already started.
func newDispatcher(cfg *config.Config, eng engine.Engine, store storage.Storage, logger *zap.Logger) (*dispatch.Dispatcher, *dispatch.AsynqServer, error) {
	writer := dispatch.NewWriter(eng, cfg.Indexing.RateLimit, cfg.Engine.WriteTimeout)
	opts := []dispatch.Option{dispatch.WithLogger(logger), dispatch.WithTickets(store)}
	if cfg.Indexing.Mode != config.ModeAsync {
		return dispatch.NewSyncDispatcher(writer, opts...), nil, nil
	}

	policy := retryPolicy(cfg)
	worker := dispatch.NewWorker(writer, store, logger)
	if cfg.Indexing.Queue != config.QueueAsynq {
		q := dispatch.NewMemoryQueue(worker, policy, cfg.Indexing.Workers, cfg.Indexing.QueueCapacity, logger)
		return dispatch.NewAsyncDispatcher(q, opts...), nil, nil
	}

	q := dispatch.NewAsynqQueue(asynqRedis(cfg), cfg.Indexing.AsynqQueue, policy)
	d := dispatch.NewAsyncDispatcher(q, opts...)
	if !cfg.Indexing.EmbeddedWorkerOrDefault() {
		return d, nil, nil
	}
	srv := dispatch.NewAsynqServer(asynqRedis(cfg), cfg.Indexing.AsynqQueue, cfg.Indexing.Workers, policy, worker, logger)
	if err := srv.Start(); err != nil {
		_ = d.Close()
		return nil, nil, fmt.Errorf("failed to start embedded worker: %w", err)
	}
	logger.Info("embedded indexing worker started", zap.String("queue", cfg.Indexing.AsynqQueue))
	return d, srv, nil
}

// initializeWorker builds a standalone asynq consumer that writes to the configured engine.
// The returned cleanup closes the engine and storage.
func initializeWorker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dispatch.AsynqServer, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	eng, err := openEngine(ctx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	writer := dispatch.NewWriter(eng, cfg.Indexing.RateLimit, cfg.Engine.WriteTimeout)
	worker := dispatch.NewWorker(writer, store, logger)
	srv := dispatch.NewAsynqServer(asynqRedis(cfg), cfg.Indexing.AsynqQueue, cfg.Indexing.Workers, retryPolicy(cfg), worker, logger)
	cleanup := func() {
		_ = eng.Close()
		_ = store.Close()
	}
	return srv, cleanup, nil
}
