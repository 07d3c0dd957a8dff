package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads variables from a .env file into the process environment without
// overriding variables already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables read through lookup (os.LookupEnv in
// production). Relative paths are made absolute against the working directory.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}
	derivedBase := cfg.Server.BaseURL == "http://"+cfg.Server.Addr()

	e.bool("PDFSEARCH_DEBUG", &cfg.Debug)
	e.str("PDFSEARCH_HOST", &cfg.Server.Host)
	e.int("PDFSEARCH_PORT", &cfg.Server.Port)
	e.str("PDFSEARCH_BASE_URL", &cfg.Server.BaseURL)
	e.int64("PDFSEARCH_MAX_UPLOAD_BYTES", &cfg.Server.MaxUploadBytes)
	e.path("PDFSEARCH_UPLOAD_DIR", &cfg.Storage.UploadDir)
	e.path("PDFSEARCH_DATABASE_PATH", &cfg.Storage.DatabasePath)

	e.str("PDFSEARCH_ENGINE", &cfg.Engine.Type)
	e.str("PDFSEARCH_INDEX_NAME", &cfg.Engine.IndexName)
	e.path("PDFSEARCH_BLEVE_PATH", &cfg.Engine.BlevePath)
	e.str("OPENSEARCH_HOST", &cfg.Engine.OpenSearch.Host)
	e.int("OPENSEARCH_PORT", &cfg.Engine.OpenSearch.Port)
	e.str("OPENSEARCH_USER", &cfg.Engine.OpenSearch.Username)
	e.str("OPENSEARCH_PASSWORD", &cfg.Engine.OpenSearch.Password)

	e.str("PDFSEARCH_CACHE", &cfg.Cache.Type)
	e.duration("PDFSEARCH_CACHE_TTL", &cfg.Cache.TTL)
	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.str("REDIS_PASSWORD", &cfg.Redis.Password)

	e.str("PDFSEARCH_INDEXING_MODE", &cfg.Indexing.Mode)
	e.str("PDFSEARCH_QUEUE", &cfg.Indexing.Queue)
	e.path("PDFSEARCH_INBOX", &cfg.Inbox.Directory)

	if _, explicit := e.get("PDFSEARCH_BASE_URL"); derivedBase && !explicit {
		cfg.Server.BaseURL = "http://" + cfg.Server.Addr()
	}
	return e.err
}

type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) path(key string, dst *string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if abs, err := filepath.Abs(v); err == nil {
		v = abs
	}
	*dst = v
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) bool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
