package config

import (
	"os"
	"strconv"
	"strings"
)

// mergeEnvVars overlays TRUSTLINE_* environment variables onto cfg.
// Environment values win over file values.
func mergeEnvVars(cfg *Config) {
	if v := os.Getenv("TRUSTLINE_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("TRUSTLINE_FEATURE_BASE_URL"); v != "" {
		cfg.FeatureBaseURL = v
	}
	if v := os.Getenv("TRUSTLINE_AUTH_BASE_URL"); v != "" {
		cfg.AuthBaseURL = v
	}
	if v := os.Getenv("TRUSTLINE_DEBUG"); v != "" {
		cfg.Debug = !(v == "false" || v == "0")
	}
	if v := os.Getenv("TRUSTLINE_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("TRUSTLINE_STRICT_EXPIRY"); v != "" {
		cfg.StrictExpiry = !(v == "false" || v == "0")
	}
	if v := os.Getenv("TRUSTLINE_REQUEST_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeoutSec = n
		}
	}
	if v := os.Getenv("TRUSTLINE_REFRESH_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RefreshTimeoutSec = n
		}
	}
	if v := os.Getenv("TRUSTLINE_PROXY_URL"); v != "" {
		cfg.ProxyURL = v
	}
	if v := os.Getenv("TRUSTLINE_STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = strings.ToLower(v)
	}
	if v := os.Getenv("TRUSTLINE_TOKEN_FILE"); v != "" {
		cfg.TokenFile = v
	}
	if v := os.Getenv("TRUSTLINE_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("TRUSTLINE_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("TRUSTLINE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("TRUSTLINE_REDIS_PREFIX"); v != "" {
		cfg.RedisPrefix = v
	}
}
