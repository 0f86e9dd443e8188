package config

import (
	"github.com/hyperjump/medmatch/internal/imaging"
	"github.com/hyperjump/medmatch/internal/models"
)

const (
	defaultModelDir        = "/usr/local/var/medmatch/models"
	defaultVisionModelFile = "vision_encoder.onnx"
	defaultTextModelFile   = "text_encoder.onnx"
	defaultLogitScaleFile  = "logit_scale.txt"
	defaultTokenizerFile   = "tokenizer.json"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/medmatch/data/catalog.db"
	}
	if cfg.Model.VisionModelPath == "" {
		cfg.Model.VisionModelPath = defaultModelDir + "/" + defaultVisionModelFile
	}
	if cfg.Model.TextModelPath == "" {
		cfg.Model.TextModelPath = defaultModelDir + "/" + defaultTextModelFile
	}
	if cfg.Model.LogitScalePath == "" {
		cfg.Model.LogitScalePath = defaultModelDir + "/" + defaultLogitScaleFile
	}
	if cfg.Model.TokenizerPath == "" {
		cfg.Model.TokenizerPath = defaultModelDir + "/" + defaultTokenizerFile
	}
	if cfg.Model.Dimensions == 0 {
		cfg.Model.Dimensions = 256
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 128
	}
	if cfg.Model.Device == "" {
		cfg.Model.Device = DeviceAuto
	}
	if cfg.Model.Seed == 0 {
		cfg.Model.Seed = 42
	}
	if cfg.Model.CacheSize == 0 {
		cfg.Model.CacheSize = 10000
	}
	if cfg.Model.MaxConcurrentInference == 0 {
		cfg.Model.MaxConcurrentInference = 2
	}
	if cfg.Classify.DefaultMaxPhrases == 0 {
		cfg.Classify.DefaultMaxPhrases = models.DefaultMaxPhrases
	}
	if cfg.Classify.DefaultTopK == 0 {
		cfg.Classify.DefaultTopK = models.DefaultTopK
	}
	if cfg.Classify.MaxTopK == 0 {
		cfg.Classify.MaxTopK = 50
	}
	if cfg.Classify.MaxImagePixels == 0 {
		cfg.Classify.MaxImagePixels = imaging.DefaultMaxPixels
	}
	if cfg.Classify.Sampling == "" {
		cfg.Classify.Sampling = SamplingProcess
	}
}
