package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the persisted client state: where the platform lives, who is
// logged in, and which child is currently selected. Tokens are written back
// whenever the transport refreshes them.
type Config struct {
	BaseURL       string `yaml:"base_url"`
	AccessToken   string `yaml:"access_token"`
	RefreshToken  string `yaml:"refresh_token"`
	SelectedChild string `yaml:"selected_child"`
	DefaultTrials int    `yaml:"default_trials"`
	TimeLimitMS   int    `yaml:"time_limit_ms"`
	Narration     bool   `yaml:"narration"`
	Theme         string `yaml:"theme"`
	LogFile       string `yaml:"log_file"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://localhost:8000",
		DefaultTrials: 10,
		TimeLimitMS:   10000,
		Narration:     true,
	}
}

func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "therapyctl", "config.yaml")
}

// Load reads the config file, applies defaults for missing fields, then
// lets a .env file and the environment override. A missing file is not an
// error; callers get the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DefaultTrials <= 0 {
		cfg.DefaultTrials = 10
	}
	if cfg.TimeLimitMS <= 0 {
		cfg.TimeLimitMS = 10000
	}

	// .env is optional and never fatal.
	_ = godotenv.Load()
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("THERAPYCTL_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("THERAPYCTL_ACCESS_TOKEN"); v != "" {
		c.AccessToken = v
	}
	if v := os.Getenv("THERAPYCTL_REFRESH_TOKEN"); v != "" {
		c.RefreshToken = v
	}
	if v := os.Getenv("THERAPYCTL_CHILD"); v != "" {
		c.SelectedChild = v
	}
	if v := os.Getenv("THERAPYCTL_THEME"); v != "" {
		c.Theme = v
	}
	if os.Getenv("THERAPYCTL_NO_NARRATION") == "1" {
		c.Narration = false
	}
}

func Save(cfg Config, path string) error {
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	// Tokens live in here, keep it private.
	return os.WriteFile(path, data, 0600)
}
