// Package config provides configuration loading and structs for the medmatch server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Device values accepted by model.device.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Sampling values accepted by classify.sampling.
const (
	// SamplingProcess seeds the phrase sampler once per process; repeated requests may
	// draw different subsets when a disease has more than max_phrases lines.
	SamplingProcess = "process"
	// SamplingRequest reseeds per request from the image bytes, so identical requests
	// draw identical subsets.
	SamplingRequest = "request"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Model    ModelConfig    `yaml:"model"`
	Classify ClassifyConfig `yaml:"classify"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// UploadDir, when set, keeps a copy of every uploaded image under a random name.
	UploadDir string `yaml:"upload_dir"`
	// MaxUploadBytes bounds multipart bodies.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// StorageConfig holds the disease catalog database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ModelConfig holds encoder artifacts and runtime settings.
type ModelConfig struct {
	VisionModelPath        string `yaml:"vision_model_path"`
	TextModelPath          string `yaml:"text_model_path"`
	LogitScalePath         string `yaml:"logit_scale_path"`
	TokenizerPath          string `yaml:"tokenizer_path"`
	ORTLibraryPath         string `yaml:"ort_library_path"`
	Dimensions             int    `yaml:"dimensions"`
	MaxTokens              int    `yaml:"max_tokens"`
	Device                 string `yaml:"device"`
	Seed                   int64  `yaml:"seed"`
	CacheSize              int    `yaml:"cache_size"`
	MaxConcurrentInference int    `yaml:"max_concurrent_inference"`
}

// ClassifyConfig holds pipeline defaults.
type ClassifyConfig struct {
	DefaultMaxPhrases int    `yaml:"default_max_phrases"`
	DefaultTopK       int    `yaml:"default_top_k"`
	MaxTopK           int    `yaml:"max_top_k"`
	Sampling          string `yaml:"sampling"`
	// MaxImagePixels rejects uploads whose header claims more pixels.
	MaxImagePixels int `yaml:"max_image_pixels"`
}

// CatalogConfig points at an optional seed file, or directory of seed files,
// imported at startup.
type CatalogConfig struct {
	SeedFile string `yaml:"seed_file"`
	// Watch re-imports SeedFile whenever it changes on disk.
	Watch bool `yaml:"watch"`
}

// Load reads and parses the config file at path, overlays environment variables
// (including a .env file next to the config, if present), expands paths, applies
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Server.UploadDir = expandPath(cfg.Server.UploadDir, configDir)
	cfg.Model.VisionModelPath = expandPath(cfg.Model.VisionModelPath, configDir)
	cfg.Model.TextModelPath = expandPath(cfg.Model.TextModelPath, configDir)
	cfg.Model.LogitScalePath = expandPath(cfg.Model.LogitScalePath, configDir)
	cfg.Model.TokenizerPath = expandPath(cfg.Model.TokenizerPath, configDir)
	cfg.Model.ORTLibraryPath = expandPath(cfg.Model.ORTLibraryPath, configDir)
	cfg.Catalog.SeedFile = expandPath(cfg.Catalog.SeedFile, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides config values from MEDMATCH_* environment variables.
// MEDMATCH_MODEL_DIR rebases every model artifact onto one directory using the
// default file names.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("MEDMATCH_DEVICE"); v != "" {
		cfg.Model.Device = strings.ToLower(v)
	}
	if v := os.Getenv("MEDMATCH_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MEDMATCH_SEED must be an integer, got %q", v)
		}
		cfg.Model.Seed = seed
	}
	if v := os.Getenv("MEDMATCH_DEBUG"); v != "" {
		cfg.Debug = v == "true" || v == "1"
	}
	if dir := os.Getenv("MEDMATCH_MODEL_DIR"); dir != "" {
		cfg.Model.VisionModelPath = filepath.Join(dir, defaultVisionModelFile)
		cfg.Model.TextModelPath = filepath.Join(dir, defaultTextModelFile)
		cfg.Model.LogitScalePath = filepath.Join(dir, defaultLogitScaleFile)
		cfg.Model.TokenizerPath = filepath.Join(dir, defaultTokenizerFile)
	}
	return nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Model.Device {
	case DeviceAuto, DeviceCPU, DeviceCUDA:
	default:
		return fmt.Errorf("model.device must be auto, cpu or cuda, got %q", c.Model.Device)
	}
	switch c.Classify.Sampling {
	case SamplingProcess, SamplingRequest:
	default:
		return fmt.Errorf("classify.sampling must be process or request, got %q", c.Classify.Sampling)
	}
	if c.Classify.DefaultMaxPhrases < 1 {
		return fmt.Errorf("classify.default_max_phrases must be >= 1, got %d", c.Classify.DefaultMaxPhrases)
	}
	if c.Classify.DefaultTopK < 1 {
		return fmt.Errorf("classify.default_top_k must be >= 1, got %d", c.Classify.DefaultTopK)
	}
	if c.Model.MaxConcurrentInference < 1 {
		return fmt.Errorf("model.max_concurrent_inference must be >= 1, got %d", c.Model.MaxConcurrentInference)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
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
