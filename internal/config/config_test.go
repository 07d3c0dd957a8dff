package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
engine:
  type: opensearch
  query_timeout: 3s
  opensearch:
    host: search.example.com
cache:
  type: redis
  ttl: 2m
indexing:
  mode: async
  queue: asynq
  max_attempts: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.BaseURL != "http://127.0.0.1:9000" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Engine.Type != EngineOpenSearch || cfg.Engine.QueryTimeout != 3*time.Second {
		t.Errorf("unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Cache.Type != CacheRedis || cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Indexing.Mode != ModeAsync || cfg.Indexing.Queue != QueueAsynq || cfg.Indexing.MaxAttempts != 5 {
		t.Errorf("unexpected indexing config: %+v", cfg.Indexing)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  upload_dir: "./uploads"
  database_path: "./data/pdfsearch.db"
engine:
  bleve_path: "./data/indices"
inbox:
  directory: "./inbox"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	checks := map[string]string{
		cfg.Storage.UploadDir:    filepath.Join(dir, "uploads"),
		cfg.Storage.DatabasePath: filepath.Join(dir, "data", "pdfsearch.db"),
		cfg.Engine.BlevePath:     filepath.Join(dir, "data", "indices"),
		cfg.Inbox.Directory:      filepath.Join(dir, "inbox"),
	}
	for got, want := range checks {
		if got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 5000 || cfg.Server.Host != "localhost" {
		t.Errorf("server defaults: %+v", cfg.Server)
	}
	if cfg.Server.BaseURL != "http://localhost:5000" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.MaxUploadBytes != 20971520 {
		t.Errorf("MaxUploadBytes = %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Engine.IndexName != "documents" || cfg.Engine.ResultLimit != 10 {
		t.Errorf("engine defaults: %+v", cfg.Engine)
	}
	if cfg.Cache.TTL != 600*time.Second {
		t.Errorf("cache TTL = %v", cfg.Cache.TTL)
	}
	if cfg.Indexing.MaxAttempts != 3 || cfg.Indexing.RetryBaseDelay != time.Second || cfg.Indexing.RetryMaxDelay != 30*time.Second {
		t.Errorf("indexing defaults: %+v", cfg.Indexing)
	}
	if cfg.Inbox.Category != "General" {
		t.Errorf("inbox category = %q", cfg.Inbox.Category)
	}
	if !cfg.Indexing.EmbeddedWorkerOrDefault() {
		t.Error("embedded worker should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate_rejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"engine", func(c *Config) { c.Engine.Type = "solr" }, "engine type"},
		{"cache", func(c *Config) { c.Cache.Type = "memcached" }, "cache type"},
		{"mode", func(c *Config) { c.Indexing.Mode = "later" }, "indexing mode"},
		{"queue", func(c *Config) { c.Indexing.Queue = "kafka" }, "indexing queue"},
		{"attempts", func(c *Config) { c.Indexing.MaxAttempts = -1 }, "max_attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestOpenSearchConfig_ResolvedAddresses(t *testing.T) {
	off := false
	tests := []struct {
		name string
		cfg  OpenSearchConfig
		want string
	}{
		{"localhost is plain http", OpenSearchConfig{Host: "localhost", Port: 9200}, "http://localhost:9200"},
		{"remote uses tls", OpenSearchConfig{Host: "search.example.com", Port: 443}, "https://search.example.com:443"},
		{"explicit override", OpenSearchConfig{Host: "search.example.com", Port: 9200, UseSSL: &off}, "http://search.example.com:9200"},
		{"addresses win", OpenSearchConfig{Addresses: []string{"http://a:1"}, Host: "b", Port: 2}, "http://a:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.ResolvedAddresses()
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("ResolvedAddresses() = %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OPENSEARCH_HOST":     "search.example.com",
		"OPENSEARCH_PORT":     "443",
		"OPENSEARCH_USER":     "reader",
		"OPENSEARCH_PASSWORD": "secret",
		"REDIS_ADDR":          "redis:6379",
		"PDFSEARCH_PORT":      "8081",
		"PDFSEARCH_ENGINE":    "opensearch",
		"PDFSEARCH_CACHE_TTL": "30s",
		"PDFSEARCH_DEBUG":     "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	if err := ApplyEnv(cfg, lookup); err != nil {
		t.Fatal(err)
	}
	osc := cfg.Engine.OpenSearch
	if osc.Host != "search.example.com" || osc.Port != 443 || osc.Username != "reader" || osc.Password != "secret" {
		t.Errorf("opensearch = %+v", osc)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Server.Port != 8081 || cfg.Server.BaseURL != "http://localhost:8081" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Engine.Type != EngineOpenSearch || cfg.Cache.TTL != 30*time.Second || !cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestApplyEnv_explicitBaseURLKept(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = "https://docs.example.com"
	lookup := func(k string) (string, bool) {
		if k == "PDFSEARCH_PORT" {
			return "9999", true
		}
		return "", false
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.BaseURL != "https://docs.example.com" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
}

func TestApplyEnv_invalidNumber(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "OPENSEARCH_PORT" {
			return "ninety", true
		}
		return "", false
	}
	if err := ApplyEnv(Default(), lookup); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PDFSEARCH_TEST_ENV_FILE=loaded\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("PDFSEARCH_TEST_ENV_FILE") })
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("PDFSEARCH_TEST_ENV_FILE"); got != "loaded" {
		t.Errorf("env = %q, want loaded", got)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Engine.Type = EngineOpenSearch
	cfg.Cache.TTL = 90 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Engine.Type != EngineOpenSearch || loaded.Cache.TTL != 90*time.Second {
		t.Errorf("loaded = %+v", loaded)
	}
}
