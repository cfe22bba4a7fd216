// Package config loads runtime configuration from the environment,
// optionally seeded from a .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	HuggingFace HuggingFaceConfig
	Matching    MatchingConfig
	Storage     StorageConfig
	API         APIConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port int
}

type HuggingFaceConfig struct {
	BaseURL  string
	Model    string
	APIToken string
	Timeout  time.Duration
}

type MatchingConfig struct {
	SemanticThreshold float64
	LexicalThreshold  float64
}

type StorageConfig struct {
	DataDir string
}

type APIConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "faqbot-data"
		}
	}
	return filepath.Join(dir, "faqbot")
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		HuggingFace: HuggingFaceConfig{
			BaseURL: "https://router.huggingface.co/hf-inference",
			Model:   "sentence-transformers/all-MiniLM-L6-v2",
			Timeout: 10 * time.Second,
		},
		Matching: MatchingConfig{
			SemanticThreshold: 0.5,
			LexicalThreshold:  0.7,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from FAQBOT_* environment variables on top
// of built-in defaults. A .env file in the working directory is loaded
// first if present; real environment variables win over .env entries.
//
// The HuggingFace token is optional: without it the service degrades
// to lexical-only matching.
func Load() (Config, error) {
	// godotenv does not override variables that are already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := defaults()
	applyEnvOverrides(&cfg)

	// HF_API_TOKEN is the conventional name used by the HuggingFace
	// tooling; accept it as a fallback.
	if cfg.HuggingFace.APIToken == "" {
		cfg.HuggingFace.APIToken = os.Getenv("HF_API_TOKEN")
	}

	return cfg, nil
}

// RequireAPIToken returns an error when no admin API token is
// configured. Called by the serve command; the admin API must never
// come up unauthenticated.
func (c Config) RequireAPIToken() error {
	if c.API.Token == "" {
		return fmt.Errorf("missing required config: admin API token. Set it via environment variable FAQBOT_API_TOKEN")
	}
	return nil
}
