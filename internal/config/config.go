package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Server   ServerConfig   `toml:"server"`
	Facebook FacebookConfig `toml:"facebook"`
	Analysis AnalysisConfig `toml:"analysis"`
	ImageGen ImageGenConfig `toml:"image_generation"`
	Pricing  PricingConfig  `toml:"pricing"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

type ServerConfig struct {
	Addr       string `toml:"addr"`
	AccessCode string `toml:"access_code"`
	DataDir    string `toml:"data_dir"`
}

type FacebookConfig struct {
	CacheTTLHours  int     `toml:"cache_ttl_hours"`
	SpendThreshold float64 `toml:"spend_threshold"`
	CPAThreshold   float64 `toml:"cpa_threshold"`
	SortBy         string  `toml:"sort_by"` // "roas_desc" or "cpa_asc"
	WindowDays     int     `toml:"window_days"`
}

type AnalysisConfig struct {
	Provider       string   `toml:"provider"` // "gemini" or "anthropic"
	APIKey         string   `toml:"api_key"`
	Model          string   `toml:"model"`
	FallbackModels []string `toml:"fallback_models"` // at most two are tried
	UploadTimeout  int      `toml:"upload_timeout_seconds"`
}

type ImageGenConfig struct {
	Enabled   bool   `toml:"enabled"`
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxImages int    `toml:"max_images"`
}

// PricingConfig holds the constants used to estimate report cost in USD.
type PricingConfig struct {
	InputPerMillion  float64 `toml:"input_tokens_per_million"`
	OutputPerMillion float64 `toml:"output_tokens_per_million"`
	PerImage         float64 `toml:"per_generated_image"`
}

type PipelineConfig struct {
	Workers  int  `toml:"workers"`
	Headless bool `toml:"headless"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:    "127.0.0.1:5001",
			DataDir: "data",
		},
		Facebook: FacebookConfig{
			CacheTTLHours:  24,
			SpendThreshold: 3000,
			CPAThreshold:   600,
			SortBy:         "roas_desc",
			WindowDays:     30,
		},
		Analysis: AnalysisConfig{
			Provider:      "gemini",
			Model:         "gemini-2.0-flash",
			UploadTimeout: 300,
		},
		ImageGen: ImageGenConfig{
			Enabled:   false,
			Model:     "imagen-3.0-generate-002",
			MaxImages: 3,
		},
		Pricing: PricingConfig{
			InputPerMillion:  0.10,
			OutputPerMillion: 0.40,
			PerImage:         0.03,
		},
		Pipeline: PipelineConfig{
			Workers:  2,
			Headless: true,
		},
	}
}

// Load reads the config file at path, applying environment overrides.
// A missing file yields the defaults; a missing .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ADWIN_ACCESS_CODE"); v != "" {
		cfg.Server.AccessCode = v
	}
	if v := os.Getenv("ADWIN_DATA_DIR"); v != "" {
		cfg.Server.DataDir = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Analysis.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL_NAME"); v != "" {
		cfg.Analysis.Model = v
	}
	if v := os.Getenv("IMAGEN_API_KEY"); v != "" {
		cfg.ImageGen.APIKey = v
	}
	if v := os.Getenv("IMAGEN_MODEL_NAME"); v != "" {
		cfg.ImageGen.Model = v
	}
}

// Validate checks invariants that would otherwise surface mid-pipeline.
func (c *Config) Validate() error {
	if c.Server.DataDir == "" {
		return fmt.Errorf("server.data_dir must not be empty")
	}
	switch c.Facebook.SortBy {
	case "roas_desc", "cpa_asc":
	default:
		return fmt.Errorf("facebook.sort_by must be %q or %q, got %q", "roas_desc", "cpa_asc", c.Facebook.SortBy)
	}
	switch c.Analysis.Provider {
	case "gemini", "anthropic":
	default:
		return fmt.Errorf("analysis.provider must be %q or %q, got %q", "gemini", "anthropic", c.Analysis.Provider)
	}
	if len(c.Analysis.FallbackModels) > 2 {
		return fmt.Errorf("analysis.fallback_models allows at most 2 entries, got %d", len(c.Analysis.FallbackModels))
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Facebook.WindowDays < 1 {
		return fmt.Errorf("facebook.window_days must be at least 1, got %d", c.Facebook.WindowDays)
	}
	return nil
}

// Save writes config to disk
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// DataPath joins elem onto the configured data directory.
func (c *Config) DataPath(elem ...string) string {
	return filepath.Join(append([]string{c.Server.DataDir}, elem...)...)
}

// EnsureDirectories creates the data subdirectories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Server.DataDir,
		c.DataPath("facebook_cache"),
		c.DataPath("analysis_cache"),
		c.DataPath("tmp", "media"),
		c.DataPath("storage"),
		c.DataPath("reports"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
