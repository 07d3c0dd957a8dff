// Package config provides configuration loading and structs for the pdfsearch server.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Engine   EngineConfig   `yaml:"engine"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexing IndexingConfig `yaml:"indexing"`
	Inbox    InboxConfig    `yaml:"inbox"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// BaseURL prefixes every download URL. Defaults to http://host:port.
	BaseURL        string   `yaml:"base_url"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	CORSOrigins    []string `yaml:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StorageConfig holds paths for uploaded originals and the registry database.
type StorageConfig struct {
	UploadDir    string `yaml:"upload_dir"`
	DatabasePath string `yaml:"database_path"`
}

// EngineConfig selects and tunes the search engine.
type EngineConfig struct {
	Type         string           `yaml:"type"`
	IndexName    string           `yaml:"index_name"`
	ResultLimit  int              `yaml:"result_limit"`
	QueryTimeout time.Duration    `yaml:"query_timeout"`
	WriteTimeout time.Duration    `yaml:"write_timeout"`
	BlevePath    string           `yaml:"bleve_path"`
	OpenSearch   OpenSearchConfig `yaml:"opensearch"`
}

// OpenSearchConfig holds cluster connection settings. Addresses wins over Host and Port.
type OpenSearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	// UseSSL forces TLS on or off. When unset TLS is used for every host except localhost.
	UseSSL *bool `yaml:"use_ssl"`
}

// ResolvedAddresses returns the cluster URLs to connect to.
func (o OpenSearchConfig) ResolvedAddresses() []string {
	if len(o.Addresses) > 0 {
		return o.Addresses
	}
	scheme := "http"
	if o.TLS() {
		scheme = "https"
	}
	return []string{scheme + "://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))}
}

// TLS reports whether connections to Host use TLS.
func (o OpenSearchConfig) TLS() bool {
	if o.UseSSL != nil {
		return *o.UseSSL
	}
	return !isLocalHost(o.Host)
}

func isLocalHost(h string) bool {
	switch strings.ToLower(h) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// CacheConfig selects and tunes the search result cache.
type CacheConfig struct {
	Type           string        `yaml:"type"`
	TTL            time.Duration `yaml:"ttl"`
	Timeout        time.Duration `yaml:"timeout"`
	KeyPrefix      string        `yaml:"key_prefix"`
	MemoryCapacity int           `yaml:"memory_capacity"`
}

// RedisConfig is shared by the redis cache and the asynq queue.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// IndexingConfig controls how records reach the engine.
type IndexingConfig struct {
	Mode           string        `yaml:"mode"`
	Queue          string        `yaml:"queue"`
	Workers        int           `yaml:"workers"`
	QueueCapacity  int           `yaml:"queue_capacity"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
	// RateLimit caps engine writes per second; 0 means unlimited.
	RateLimit  float64 `yaml:"rate_limit"`
	AsynqQueue string  `yaml:"asynq_queue"`
	// EmbeddedWorker runs the asynq consumer inside the server process. Defaults to true.
	EmbeddedWorker *bool `yaml:"embedded_worker"`
}

// EmbeddedWorkerOrDefault returns whether the server should consume asynq tasks itself.
func (i *IndexingConfig) EmbeddedWorkerOrDefault() bool {
	if i.EmbeddedWorker != nil {
		return *i.EmbeddedWorker
	}
	return true
}

// InboxConfig holds the drop-directory settings. An empty Directory disables the inbox.
type InboxConfig struct {
	Directory string `yaml:"directory"`
	Category  string `yaml:"category"`
}

// Engine, cache, queue and mode names.
const (
	EngineOpenSearch = "opensearch"
	EngineBleve      = "bleve"

	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"

	ModeSync  = "sync"
	ModeAsync = "async"

	QueueMemory = "memory"
	QueueAsynq  = "asynq"
)

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Engine.BlevePath = expandPath(cfg.Engine.BlevePath, configDir)
	if cfg.Inbox.Directory != "" {
		cfg.Inbox.Directory = expandPath(cfg.Inbox.Directory, configDir)
	}

	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects unknown engine, cache, mode and queue names and impossible limits.
func (c *Config) Validate() error {
	switch c.Engine.Type {
	case EngineOpenSearch, EngineBleve:
	default:
		return fmt.Errorf("unknown engine type %q", c.Engine.Type)
	}
	switch c.Cache.Type {
	case CacheRedis, CacheMemory, CacheNone:
	default:
		return fmt.Errorf("unknown cache type %q", c.Cache.Type)
	}
	switch c.Indexing.Mode {
	case ModeSync, ModeAsync:
	default:
		return fmt.Errorf("unknown indexing mode %q", c.Indexing.Mode)
	}
	switch c.Indexing.Queue {
	case QueueMemory, QueueAsynq:
	default:
		return fmt.Errorf("unknown indexing queue %q", c.Indexing.Queue)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Engine.IndexName == "" {
		return fmt.Errorf("engine.index_name must be set")
	}
	if c.Indexing.MaxAttempts < 1 {
		return fmt.Errorf("indexing.max_attempts must be at least 1")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
