package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Storage backend identifiers for the credential store.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Config holds the runtime configuration for the client pipeline.
type Config struct {
	// Backend origins. APIBaseURL and FeatureBaseURL both validate the same
	// bearer token; AuthBaseURL hosts the refresh endpoint.
	APIBaseURL     string `yaml:"api_base_url" json:"api_base_url"`
	FeatureBaseURL string `yaml:"feature_base_url" json:"feature_base_url"`
	AuthBaseURL    string `yaml:"auth_base_url" json:"auth_base_url"`

	// Behavior settings.
	Debug             bool   `yaml:"debug" json:"debug"`
	LogFile           string `yaml:"log_file" json:"log_file"`
	StrictExpiry      bool   `yaml:"strict_expiry" json:"strict_expiry"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec" json:"request_timeout_sec"`
	RefreshTimeoutSec int    `yaml:"refresh_timeout_sec" json:"refresh_timeout_sec"`
	ProxyURL          string `yaml:"proxy_url" json:"proxy_url"`

	// Credential persistence.
	StorageBackend string `yaml:"storage_backend" json:"storage_backend"`
	TokenFile      string `yaml:"token_file" json:"token_file"`
	RedisAddr      string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword  string `yaml:"redis_password" json:"redis_password"`
	RedisDB        int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix    string `yaml:"redis_prefix" json:"redis_prefix"`
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"api_base_url":     c.APIBaseURL,
		"feature_base_url": c.FeatureBaseURL,
		"auth_base_url":    c.AuthBaseURL,
	} {
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("%s is required", name)
		}
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	switch c.StorageBackend {
	case StorageMemory, StorageFile, StorageRedis:
	default:
		return fmt.Errorf("unknown storage_backend %q", c.StorageBackend)
	}
	if c.StorageBackend == StorageFile && strings.TrimSpace(c.TokenFile) == "" {
		return fmt.Errorf("token_file is required for the file storage backend")
	}
	if c.StorageBackend == StorageRedis && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("redis_addr is required for the redis storage backend")
	}
	return nil
}
