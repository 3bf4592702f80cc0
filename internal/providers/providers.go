// Package providers maintains the static table of known model
// backends and the active provider selection. A resolved Config is an
// immutable value captured per request; switching providers installs a
// new value and never mutates one in flight.
package providers

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Profile describes one known backend family: its default endpoint,
// default model, and the models it serves.
type Profile struct {
	Name            string
	Owner           string
	DefaultBaseURL  string
	DefaultModel    string
	Models          []string
	NativeStreaming bool
}

var profiles = []Profile{
	{
		Name:            "deepseek",
		Owner:           "deepseek",
		DefaultBaseURL:  "https://api.deepseek.com/v1",
		DefaultModel:    "deepseek-chat",
		Models:          []string{"deepseek-chat", "deepseek-reasoner"},
		NativeStreaming: true,
	},
	{
		Name:            "gemini",
		Owner:           "google",
		DefaultBaseURL:  "https://generativelanguage.googleapis.com/v1beta",
		DefaultModel:    "gemini-2.0-flash-exp",
		Models:          []string{"gemini-2.0-flash-exp", "gemini-1.5-pro", "gemini-1.5-flash"},
		NativeStreaming: true,
	},
	{
		Name:            "openai",
		Owner:           "openai",
		DefaultBaseURL:  "https://api.openai.com/v1",
		DefaultModel:    "gpt-4",
		Models:          []string{"gpt-4", "gpt-4-turbo", "gpt-3.5-turbo"},
		NativeStreaming: true,
	},
}

// Lookup returns the profile for a provider family name.
func Lookup(name string) (Profile, bool) {
	for _, p := range profiles {
		if p.Name == strings.ToLower(name) {
			return p, true
		}
	}
	return Profile{}, false
}

// Names lists the known provider families.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	return names
}

// Config is a fully resolved backend selection. It is immutable once
// captured for a request; a provider switch produces a new value.
type Config struct {
	Provider        string
	APIKey          string
	BaseURL         string
	Model           string
	NativeStreaming bool
}

// Endpoint returns the chat-completions URL for this backend. The
// gemini family speaks the OpenAI dialect under an /openai suffix of
// its generative-language base.
func (c Config) Endpoint() string {
	base := strings.TrimSuffix(c.BaseURL, "/")
	if c.Provider == "gemini" && strings.Contains(base, "generativelanguage.googleapis.com") &&
		!strings.HasSuffix(base, "/openai") {
		base += "/openai"
	}
	return base + "/chat/completions"
}

// ModelList returns the model catalog advertised for this backend's
// family, falling back to the configured model for unknown families.
func (c Config) ModelList() (models []string, owner string) {
	if p, ok := Lookup(c.Provider); ok {
		return p.Models, p.Owner
	}
	return []string{c.Model}, c.Provider
}

// Settings is the per-provider configuration material (keys, base URL
// and model overrides) injected at startup. NativeStreaming overrides
// the profile default when set, for OpenAI-compatible backends that
// cannot stream.
type Settings struct {
	APIKey          string
	BaseURL         string
	Model           string
	NativeStreaming *bool
}

// Registry resolves and holds the active backend. Reads are lock-free
// snapshots; Switch installs a whole new Config.
type Registry struct {
	settings map[string]Settings
	active   atomic.Pointer[Config]
}

// NewRegistry builds a registry from per-provider settings and
// activates the named provider.
func NewRegistry(settings map[string]Settings, active string) (*Registry, error) {
	r := &Registry{settings: settings}
	if _, err := r.Switch(active, "", ""); err != nil {
		return nil, err
	}
	return r, nil
}

// Active returns the current backend selection by value.
func (r *Registry) Active() Config {
	return *r.active.Load()
}

// Switch resolves the named provider and installs it as the active
// backend. apiKey and model override the stored settings when
// non-empty. Requests already holding a Config are unaffected.
func (r *Registry) Switch(provider, apiKey, model string) (Config, error) {
	profile, ok := Lookup(provider)
	if !ok {
		return Config{}, fmt.Errorf("unknown provider %q (known: %s)", provider, strings.Join(Names(), ", "))
	}

	stored := r.settings[profile.Name]

	cfg := Config{
		Provider:        profile.Name,
		APIKey:          stored.APIKey,
		BaseURL:         stored.BaseURL,
		Model:           stored.Model,
		NativeStreaming: profile.NativeStreaming,
	}
	if stored.NativeStreaming != nil {
		cfg.NativeStreaming = *stored.NativeStreaming
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = profile.DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = profile.DefaultModel
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if model != "" {
		cfg.Model = model
	}

	r.active.Store(&cfg)
	return cfg, nil
}
