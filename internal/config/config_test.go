package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TRUSTLINE_API_BASE_URL", "TRUSTLINE_FEATURE_BASE_URL", "TRUSTLINE_AUTH_BASE_URL",
		"TRUSTLINE_DEBUG", "TRUSTLINE_STRICT_EXPIRY", "TRUSTLINE_STORAGE_BACKEND",
		"TRUSTLINE_TOKEN_FILE", "TRUSTLINE_REDIS_ADDR", "TRUSTLINE_REQUEST_TIMEOUT_SEC",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "https://api.trustline.app" {
		t.Fatalf("api base = %q", cfg.APIBaseURL)
	}
	if cfg.AuthBaseURL != cfg.APIBaseURL {
		t.Fatalf("auth base should default to the api base, got %q", cfg.AuthBaseURL)
	}
	if cfg.StorageBackend != StorageMemory {
		t.Fatalf("backend = %q, want memory", cfg.StorageBackend)
	}
	if cfg.RequestTimeoutSec != 30 || cfg.RefreshTimeoutSec != 15 {
		t.Fatalf("timeouts = %d/%d", cfg.RequestTimeoutSec, cfg.RefreshTimeoutSec)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "config.yaml", `
api_base_url: https://api.example.com
feature_base_url: https://features.example.com
strict_expiry: true
request_timeout_sec: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Fatalf("api base = %q", cfg.APIBaseURL)
	}
	if cfg.AuthBaseURL != "https://api.example.com" {
		t.Fatalf("auth base = %q", cfg.AuthBaseURL)
	}
	if !cfg.StrictExpiry {
		t.Fatal("strict_expiry not parsed")
	}
	if cfg.RequestTimeoutSec != 10 {
		t.Fatalf("request timeout = %d", cfg.RequestTimeoutSec)
	}
}

func TestLoadJSONFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "config.json", `{"api_base_url":"https://api.example.com","redis_addr":"localhost:6379","storage_backend":"redis"}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StorageBackend != StorageRedis || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.RedisPrefix != "trustline:" {
		t.Fatalf("redis prefix default missing, got %q", cfg.RedisPrefix)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "config.yaml", "api_base_url: https://file.example.com\n")
	t.Setenv("TRUSTLINE_API_BASE_URL", "https://env.example.com")
	t.Setenv("TRUSTLINE_STRICT_EXPIRY", "true")
	t.Setenv("TRUSTLINE_REQUEST_TIMEOUT_SEC", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "https://env.example.com" {
		t.Fatalf("env should win over file, got %q", cfg.APIBaseURL)
	}
	if !cfg.StrictExpiry || cfg.RequestTimeoutSec != 7 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "config.yaml", "api_base_url: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML must fail loudly, not fall back to defaults")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"relative api url", func(c *Config) { c.APIBaseURL = "/relative" }, true},
		{"empty feature url", func(c *Config) { c.FeatureBaseURL = "" }, true},
		{"unknown backend", func(c *Config) { c.StorageBackend = "s3" }, true},
		{"file backend without path", func(c *Config) { c.StorageBackend = StorageFile }, true},
		{"file backend with path", func(c *Config) {
			c.StorageBackend = StorageFile
			c.TokenFile = "/tmp/tokens.json"
		}, false},
		{"redis backend without addr", func(c *Config) { c.StorageBackend = StorageRedis }, true},
		{"redis backend with addr", func(c *Config) {
			c.StorageBackend = StorageRedis
			c.RedisAddr = "localhost:6379"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTokenFileImpliesFileBackend(t *testing.T) {
	clearEnv(t)
	cfg := &Config{TokenFile: "/tmp/tokens.json"}
	applyDefaults(cfg)
	if cfg.StorageBackend != StorageFile {
		t.Fatalf("backend = %q, want file when token_file is set", cfg.StorageBackend)
	}
}

func TestReloadKeepsOriginsAndStorage(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "config.yaml", "api_base_url: https://api.one.example.com\ndebug: false\n")

	m, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	var reloaded *Config
	m.OnReload(func(c *Config) { reloaded = c })

	// Force the mtime check to see the rewrite as newer.
	m.mu.Lock()
	m.lastMod = m.lastMod.Add(-time.Hour)
	m.mu.Unlock()

	if err := os.WriteFile(path, []byte("api_base_url: https://api.two.example.com\ndebug: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m.checkAndReload()

	if reloaded == nil {
		t.Fatal("reload callback not invoked")
	}
	cfg := m.Config()
	if !cfg.Debug {
		t.Fatal("behavior settings should reload")
	}
	if cfg.APIBaseURL != "https://api.one.example.com" {
		t.Fatalf("origin changed across reload: %q", cfg.APIBaseURL)
	}
}
