package config

func defaultConfig() *Config {
	return &Config{
		APIBaseURL:        "https://api.trustline.app",
		FeatureBaseURL:    "https://features.trustline.app",
		AuthBaseURL:       "https://api.trustline.app",
		RequestTimeoutSec: 30,
		RefreshTimeoutSec: 15,
		StorageBackend:    StorageFile,
		TokenFile:         "",
		RedisPrefix:       "trustline:",
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = def.APIBaseURL
	}
	if cfg.FeatureBaseURL == "" {
		cfg.FeatureBaseURL = def.FeatureBaseURL
	}
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = cfg.APIBaseURL
	}
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = def.RequestTimeoutSec
	}
	if cfg.RefreshTimeoutSec <= 0 {
		cfg.RefreshTimeoutSec = def.RefreshTimeoutSec
	}
	if cfg.StorageBackend == "" {
		if cfg.TokenFile != "" {
			cfg.StorageBackend = StorageFile
		} else {
			cfg.StorageBackend = StorageMemory
		}
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = def.RedisPrefix
	}
}
