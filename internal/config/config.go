// Package config provides configuration loading and structs for the osusume server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv overrides poster.api_key when set.
const APIKeyEnv = "TMDB_API_KEY"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Recommend RecommendConfig `yaml:"recommend"`
	Poster    PosterConfig    `yaml:"poster"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	// CORSOrigins enables CORS on the JSON API for these origins. Empty disables it.
	CORSOrigins []string `yaml:"cors_origins" validate:"dive,required"`
	// RateLimit caps API requests per client IP per minute. Zero disables it.
	RateLimit int `yaml:"rate_limit" validate:"min=0"`
}

// CatalogConfig locates the catalog table and similarity matrix.
type CatalogConfig struct {
	CatalogPath string `yaml:"catalog_path" validate:"required"`
	MatrixPath  string `yaml:"matrix_path" validate:"required"`
	Watch       bool   `yaml:"watch"`
}

// RecommendConfig holds ranking settings.
type RecommendConfig struct {
	Limit int `yaml:"limit" validate:"min=1,max=100"`
}

// PosterConfig holds metadata API settings for poster lookups.
type PosterConfig struct {
	Enabled            *bool         `yaml:"enabled"`
	BaseURL            string        `yaml:"base_url" validate:"required,url"`
	ImageBaseURL       string        `yaml:"image_base_url" validate:"required,url"`
	APIKey             string        `yaml:"api_key"`
	Language           string        `yaml:"language" validate:"required"`
	Timeout            time.Duration `yaml:"timeout" validate:"gt=0"`
	NoImagePlaceholder string        `yaml:"no_image_placeholder" validate:"required"`
	ErrorPlaceholder   string        `yaml:"error_placeholder" validate:"required"`
}

// EnabledOrDefault returns whether poster lookups are on; defaults to true when unset.
func (p *PosterConfig) EnabledOrDefault() bool {
	if p.Enabled != nil {
		return *p.Enabled
	}
	return true
}

// Load reads and parses the config file at path, applies defaults and the environment,
// expands paths, and validates the result.
// Returns an error if the file cannot be read or parsed, or fails validation.
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
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Catalog.CatalogPath = expandPath(cfg.Catalog.CatalogPath, configDir)
	cfg.Catalog.MatrixPath = expandPath(cfg.Catalog.MatrixPath, configDir)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with defaults and the environment applied, for running without a file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)
	return &cfg
}

// ApplyEnv applies environment overrides. Only the API key is read from the environment.
func ApplyEnv(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		cfg.Poster.APIKey = key
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints declared in the struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the config to path. The API key is not written.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Poster.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" paths are relative to the home directory; other relative paths are left as given.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
