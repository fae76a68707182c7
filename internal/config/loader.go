package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Manager owns the loaded configuration and its live reload lifecycle.
type Manager struct {
	mu         sync.RWMutex
	configPath string
	config     *Config
	lastMod    time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	onReload []func(*Config)
}

// Load reads, defaults, env-merges and validates a standalone configuration.
// A missing file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg, _, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	mergeEnvVars(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewManager loads the configuration and returns a manager that can watch it.
func NewManager(path string) (*Manager, error) {
	cfg, mod, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	mergeEnvVars(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		configPath: path,
		config:     cfg,
		lastMod:    mod,
		stopCh:     make(chan struct{}),
	}, nil
}

func loadFile(path string) (*Config, time.Time, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, time.Time{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		if yamlErr := yaml.Unmarshal(data, cfg); yamlErr != nil {
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				return nil, time.Time{}, fmt.Errorf("failed to parse config file (tried YAML and JSON)")
			}
		}
	}

	var mod time.Time
	if info, err := os.Stat(path); err == nil {
		mod = info.ModTime()
	}

	log.WithField("path", path).Info("configuration loaded")
	return cfg, mod, nil
}

// Config returns the current configuration snapshot.
func (m *Manager) Config() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnReload registers a callback invoked after every successful reload.
func (m *Manager) OnReload(fn func(*Config)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.onReload = append(m.onReload, fn)
	m.mu.Unlock()
}

// Stop terminates the watcher goroutine, if any.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Manager) checkAndReload() {
	m.mu.RLock()
	path := m.configPath
	lastMod := m.lastMod
	m.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if !info.ModTime().After(lastMod) {
		return
	}

	cfg, mod, err := loadFile(path)
	if err != nil {
		log.WithError(err).Warn("config reload failed, keeping previous configuration")
		return
	}
	applyDefaults(cfg)
	mergeEnvVars(cfg)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Warn("reloaded config is invalid, keeping previous configuration")
		return
	}

	m.mu.Lock()
	prev := m.config
	// Origin and storage changes cannot be applied to a live pipeline; keep
	// the values the process started with.
	if cfg.APIBaseURL != prev.APIBaseURL || cfg.FeatureBaseURL != prev.FeatureBaseURL || cfg.AuthBaseURL != prev.AuthBaseURL {
		log.Warn("origin changes in config file require a restart; ignoring")
		cfg.APIBaseURL = prev.APIBaseURL
		cfg.FeatureBaseURL = prev.FeatureBaseURL
		cfg.AuthBaseURL = prev.AuthBaseURL
	}
	if cfg.StorageBackend != prev.StorageBackend || cfg.TokenFile != prev.TokenFile || cfg.RedisAddr != prev.RedisAddr {
		log.Warn("storage changes in config file require a restart; ignoring")
		cfg.StorageBackend = prev.StorageBackend
		cfg.TokenFile = prev.TokenFile
		cfg.RedisAddr = prev.RedisAddr
		cfg.RedisPassword = prev.RedisPassword
		cfg.RedisDB = prev.RedisDB
		cfg.RedisPrefix = prev.RedisPrefix
	}
	m.config = cfg
	m.lastMod = mod
	callbacks := append(([]func(*Config))(nil), m.onReload...)
	m.mu.Unlock()

	log.Info("configuration reloaded")
	for _, fn := range callbacks {
		fn(cfg)
	}
}
