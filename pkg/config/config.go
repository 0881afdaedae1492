package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `yaml:"app"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Browser   BrowserConfig             `yaml:"browser"`
	Session   SessionConfig             `yaml:"session"`
	Gateways  map[string]GatewayConfig  `yaml:"gateways"`
	Logging   LoggingConfig             `yaml:"logging"`
	Panel     PanelConfig               `yaml:"panel"`
	Research  ResearchConfig            `yaml:"research"`
	Prompts   PromptsConfig             `yaml:"prompts"`
}

type AppConfig struct {
	Name string `yaml:"name"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// BrowserConfig says how to reach Chrome. With DebuggerURL empty and Launch
// set, a local Chrome is started.
type BrowserConfig struct {
	DebuggerURL  string        `yaml:"debugger_url"`
	Launch       bool          `yaml:"launch"`
	Headless     bool          `yaml:"headless"`
	StartURL     string        `yaml:"start_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type SessionConfig struct {
	// Path is a sqlite DSN. ":memory:" keeps the session for the process lifetime only.
	Path string `yaml:"path"`
}

type GatewayConfig struct {
	Token   string `yaml:"token"`
	Enabled bool   `yaml:"enabled"`
	// ChatID restricts the gateway to one chat. Zero serves whoever writes first.
	ChatID  int64  `yaml:"chat_id"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

type PanelConfig struct {
	ContextPollInterval time.Duration `yaml:"context_poll_interval"`
	ErrorBanner         time.Duration `yaml:"error_banner"`
	InfoBanner          time.Duration `yaml:"info_banner"`
}

type ResearchConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxResults int  `yaml:"max_results"`
}

type PromptsConfig struct {
	// Dir overrides the built-in prompt templates file by file.
	Dir string `yaml:"dir"`
}

func DefaultConfig() Config {
	return Config{
		App: AppConfig{Name: "consolenano"},
		Providers: map[string]ProviderConfig{
			"ollama": {Model: "gemma3n", BaseURL: "http://localhost:11434"},
		},
		Browser: BrowserConfig{
			Launch:       true,
			StartURL:     "https://console.aws.amazon.com/",
			PollInterval: time.Second,
		},
		Session: SessionConfig{Path: ":memory:"},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Panel: PanelConfig{
			ContextPollInterval: 5 * time.Second,
			ErrorBanner:         10 * time.Second,
			InfoBanner:          15 * time.Second,
		},
		Research: ResearchConfig{MaxResults: 5},
	}
}

// Load reads YAML config from disk over DefaultConfig. A missing file is not
// an error: the defaults are returned.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	for name, p := range c.Providers {
		if !p.Enabled {
			continue
		}
		switch name {
		case "openai", "openrouter":
			if p.APIKey == "" {
				errs = append(errs, fmt.Errorf("providers.%s: api_key is required", name))
			}
		case "ollama":
		default:
			errs = append(errs, fmt.Errorf("providers.%s: unsupported provider", name))
		}
	}
	if tg, ok := c.Gateways["telegram"]; ok && tg.Enabled && tg.Token == "" {
		errs = append(errs, errors.New("gateways.telegram: token is required"))
	}
	if c.Panel.ContextPollInterval <= 0 {
		errs = append(errs, errors.New("panel.context_poll_interval must be positive"))
	}
	if c.Browser.PollInterval <= 0 {
		errs = append(errs, errors.New("browser.poll_interval must be positive"))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// GetDefaultProvider returns the first enabled provider in name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled {
		return tg, true
	}
	return GatewayConfig{}, false
}
