package config

import (
	"fmt"
	"time"
)

// DefaultMaxUploadBytes is 20 MiB.
const DefaultMaxUploadBytes int64 = 20 << 20

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s", cfg.Server.Addr())
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/pdfsearch/uploads"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/pdfsearch/data/pdfsearch.db"
	}

	if cfg.Engine.Type == "" {
		cfg.Engine.Type = EngineBleve
	}
	if cfg.Engine.IndexName == "" {
		cfg.Engine.IndexName = "documents"
	}
	if cfg.Engine.ResultLimit == 0 {
		cfg.Engine.ResultLimit = 10
	}
	if cfg.Engine.QueryTimeout == 0 {
		cfg.Engine.QueryTimeout = 10 * time.Second
	}
	if cfg.Engine.WriteTimeout == 0 {
		cfg.Engine.WriteTimeout = 10 * time.Second
	}
	if cfg.Engine.BlevePath == "" {
		cfg.Engine.BlevePath = "/usr/local/var/pdfsearch/data/indices"
	}
	if cfg.Engine.OpenSearch.Host == "" {
		cfg.Engine.OpenSearch.Host = "localhost"
	}
	if cfg.Engine.OpenSearch.Port == 0 {
		cfg.Engine.OpenSearch.Port = 9200
	}
	if cfg.Engine.OpenSearch.Username == "" {
		cfg.Engine.OpenSearch.Username = "admin"
	}

	if cfg.Cache.Type == "" {
		cfg.Cache.Type = CacheMemory
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 600 * time.Second
	}
	if cfg.Cache.Timeout == 0 {
		cfg.Cache.Timeout = 500 * time.Millisecond
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "search:"
	}
	if cfg.Cache.MemoryCapacity == 0 {
		cfg.Cache.MemoryCapacity = 1024
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	if cfg.Indexing.Mode == "" {
		cfg.Indexing.Mode = ModeSync
	}
	if cfg.Indexing.Queue == "" {
		cfg.Indexing.Queue = QueueMemory
	}
	if cfg.Indexing.Workers == 0 {
		cfg.Indexing.Workers = 4
	}
	if cfg.Indexing.QueueCapacity == 0 {
		cfg.Indexing.QueueCapacity = 100
	}
	if cfg.Indexing.MaxAttempts == 0 {
		cfg.Indexing.MaxAttempts = 3
	}
	if cfg.Indexing.RetryBaseDelay == 0 {
		cfg.Indexing.RetryBaseDelay = time.Second
	}
	if cfg.Indexing.RetryMaxDelay == 0 {
		cfg.Indexing.RetryMaxDelay = 30 * time.Second
	}
	if cfg.Indexing.AsynqQueue == "" {
		cfg.Indexing.AsynqQueue = "indexing"
	}
	if cfg.Inbox.Category == "" {
		cfg.Inbox.Category = "General"
	}
}
