package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Storage StorageConfig
	Monitor MonitorConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host       string
	Port       int
	AdminToken string
}

type AIConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

type StorageConfig struct {
	DataDir string
}

type MonitorConfig struct {
	WindowDays  int
	Concurrency int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4100,
		},
		AI: AIConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "google/gemini-2.0-flash-exp",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Monitor: MonitorConfig{
			WindowDays:  7,
			Concurrency: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/vita/config.json, with VITA_* environment variables
// overriding file values. Secrets (model API key, admin token) are
// environment-only and never touch the file.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.AI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: model API key. Set it via environment variable VITA_AI_API_KEY")
	}
	if cfg.Server.AdminToken == "" {
		return Config{}, fmt.Errorf("missing required config: admin token. Set it via environment variable VITA_ADMIN_TOKEN")
	}

	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "vita-data"
		}
	}
	return filepath.Join(dir, "vita")
}
