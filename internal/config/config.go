package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Server   Server   `yaml:"server"`
	Storage  Storage  `yaml:"storage"`
	Curation Curation `yaml:"curation"`
	Sources  Sources  `yaml:"sources"`
	Chat     Chat     `yaml:"chat"`
	Billing  Billing  `yaml:"billing"`
}

type Server struct {
	Port int `yaml:"port"`
	// SchedulerTokenEnv names the env var holding the shared secret the
	// external scheduler presents when triggering a curation run.
	SchedulerTokenEnv string `yaml:"scheduler_token_env"`
}

type Storage struct {
	DataDir string `yaml:"data_dir"`
}

type Curation struct {
	BatchSize         int `yaml:"batch_size"`
	MaxArticlesPerDay int `yaml:"max_articles_per_day"`
	MaxPerRun         int `yaml:"max_per_run"`
	MinRelevanceScore int `yaml:"min_relevance_score"`
	MaxRetries        int `yaml:"max_retries"`
	ActiveWindowDays  int `yaml:"active_window_days"`
}

type Sources struct {
	Feeds   []Feed        `yaml:"feeds"`
	NewsAPI NewsAPIConfig `yaml:"newsapi"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type NewsAPIConfig struct {
	Enabled       bool   `yaml:"enabled"`
	APIKeyEnv     string `yaml:"api_key_env"`
	LookbackHours int    `yaml:"lookback_hours"`
	PageSize      int    `yaml:"page_size"`
}

type Chat struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	MaxTokens int    `yaml:"max_tokens"`
}

type Billing struct {
	SecretKeyEnv string `yaml:"secret_key_env"`
	PriceID      string `yaml:"price_id"`
	SuccessURL   string `yaml:"success_url"`
	CancelURL    string `yaml:"cancel_url"`
	PortalReturn string `yaml:"portal_return_url"`
}

// ConfigDir returns the XDG config directory for mindclone.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "mindclone")
}

// DataDir returns the XDG data directory for mindclone.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "mindclone")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $XDG_CONFIG_HOME/mindclone/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'mindclone init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: Server{
			Port:              8080,
			SchedulerTokenEnv: "MINDCLONE_SCHEDULER_TOKEN",
		},
		Curation: Curation{
			BatchSize:         10,
			MaxArticlesPerDay: 10,
			MaxPerRun:         5,
			MinRelevanceScore: 60,
			MaxRetries:        2,
			ActiveWindowDays:  7,
		},
		Sources: Sources{
			NewsAPI: NewsAPIConfig{
				Enabled:       true,
				APIKeyEnv:     "NEWSAPI_KEY",
				LookbackHours: 48,
				PageSize:      25,
			},
		},
		Chat: Chat{
			Model:     "claude-sonnet-4-20250514",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			MaxTokens: 1024,
		},
		Billing: Billing{
			SecretKeyEnv: "STRIPE_SECRET_KEY",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

// SchedulerToken resolves the scheduler shared secret from the environment.
// Empty means the curation trigger endpoint is disabled.
func (c *Config) SchedulerToken() string {
	if c.Server.SchedulerTokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Server.SchedulerTokenEnv)
}
