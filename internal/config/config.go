package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
)

const (
	DefaultPort           = 8000
	DefaultHost           = "127.0.0.1"
	DefaultConfigFilename = "config.json"
	DefaultProvider       = "deepseek"
)

// ProviderSettings carries per-provider credentials and overrides. Empty
// fields fall back to the provider profile defaults.
type ProviderSettings struct {
	APIKey          string `json:"api_key,omitempty"`
	BaseURL         string `json:"base_url,omitempty"`
	Model           string `json:"model,omitempty"`
	NativeStreaming *bool  `json:"native_streaming,omitempty"`
}

// AgentConfig toggles the server-side tool loop and conversation memory.
type AgentConfig struct {
	Enabled       bool `json:"enabled"`
	MaxIterations int  `json:"max_iterations,omitempty"`
	MemoryWindow  int  `json:"memory_window,omitempty"`
}

type Config struct {
	Host                    string                      `json:"host,omitempty"`
	Port                    int                         `json:"port,omitempty"`
	APIKey                  string                      `json:"api_key,omitempty"`
	Provider                string                      `json:"provider"`
	Providers               map[string]ProviderSettings `json:"providers"`
	Agent                   AgentConfig                 `json:"agent"`
	UpstreamTimeoutSeconds  int                         `json:"upstream_timeout_seconds,omitempty"`
	StreamInactivitySeconds int                         `json:"stream_inactivity_seconds,omitempty"`
}

type Manager struct {
	configPath  string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		configPath: filepath.Join(baseDir, DefaultConfigFilename),
	}
}

// Load reads the config file, layers environment overrides on top and
// installs the result as the current snapshot. A missing file is not an
// error: the defaults plus environment are enough to run.
func (m *Manager) Load() (*Config, error) {
	// .env next to the config file first, then the working directory.
	// Both are optional; real environment variables win over either.
	_ = godotenv.Load(filepath.Join(filepath.Dir(m.configPath), ".env"))
	_ = godotenv.Load()

	cfg := &Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Provider: DefaultProvider,
	}

	data, err := os.ReadFile(m.configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	case os.IsNotExist(err):
		// fall through to env overrides
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnv(cfg)

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderSettings{}
	}

	m.configValue.Store(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		return &Config{
			Host:      DefaultHost,
			Port:      DefaultPort,
			Provider:  DefaultProvider,
			Providers: map[string]ProviderSettings{},
		}
	}
	return cfg
}

func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.configValue.Store(cfg)
	return nil
}

func (m *Manager) GetPath() string {
	return m.configPath
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

// applyEnv folds environment variables into cfg. Per-provider keys use
// the <PROVIDER>_API_KEY / _BASE_URL / _MODEL convention.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("AGENT_ENABLED"); v != "" {
		cfg.Agent.Enabled = v == "1" || strings.EqualFold(v, "true")
	}

	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderSettings{}
	}
	for _, name := range []string{"deepseek", "gemini", "openai"} {
		prefix := strings.ToUpper(name)
		settings := cfg.Providers[name]
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			settings.APIKey = v
		}
		if v := os.Getenv(prefix + "_BASE_URL"); v != "" {
			settings.BaseURL = v
		}
		if v := os.Getenv(prefix + "_MODEL"); v != "" {
			settings.Model = v
		}
		cfg.Providers[name] = settings
	}
}
