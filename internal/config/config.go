// Package config provides configuration loading and structs for the honyaku server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Model       ModelConfig       `yaml:"model"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Translation TranslationConfig `yaml:"translation"`
	Query       QueryConfig       `yaml:"query"`
	Upload      UploadConfig      `yaml:"upload"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for knowledge-base stores, uploads, and
// translation output, plus the orphan-sweep interval in seconds (0 disables).
type StorageConfig struct {
	RootPath          string `yaml:"root_path"`
	UploadDir         string `yaml:"upload_dir"`
	TranslationsDir   string `yaml:"translations_dir"`
	SweepIntervalSecs int    `yaml:"sweep_interval_secs"`
}

// ModelConfig holds completion model settings. APIKey and BaseURL fall back to
// the API_KEY and API_URL environment variables (a .env file is honored).
type ModelConfig struct {
	Name   string `yaml:"name"`
	APIKey string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// TranslationConfig holds language pair, locale, and chunking settings.
type TranslationConfig struct {
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`
	Country    string `yaml:"country"`
	ChunkSize  int    `yaml:"chunk_size"`
}

// QueryConfig holds retrieval defaults.
type QueryConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// UploadConfig holds upload restrictions.
type UploadConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and fills API credentials from the environment (.env honored).
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.RootPath = expandPath(cfg.Storage.RootPath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Storage.TranslationsDir = expandPath(cfg.Storage.TranslationsDir, configDir)

	applyEnv(&cfg)

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg
}

// applyEnv fills credentials from the environment when not set in the file.
// A .env in the working directory is loaded first; missing .env is not an error.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("API_KEY")
	}
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = os.Getenv("API_URL")
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
