package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/medmatch/internal/classify"
	"github.com/hyperjump/medmatch/internal/config"
	"github.com/hyperjump/medmatch/internal/embedding"
	"github.com/hyperjump/medmatch/internal/lifecycle"
	"github.com/hyperjump/medmatch/internal/models"
	"github.com/hyperjump/medmatch/internal/server"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after image are moved first",
			args:     []string{"chest.png", "-top-k", "3"},
			expected: []string{"-top-k", "3", "chest.png"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-top-k", "3", "chest.png"},
			expected: []string{"-top-k", "3", "chest.png"},
		},
		{
			name:     "positional only returns unchanged",
			args:     []string{"chest.png"},
			expected: []string{"chest.png"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, `
debug: true
storage:
  database_path: "./catalog.db"
`)
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, `
server:
  host: "127.0.0.1"
  port: 9000
`)
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestModelLoader_missingArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Model.VisionModelPath = filepath.Join(dir, "vision.onnx")
	cfg.Model.TextModelPath = filepath.Join(dir, "text.onnx")
	cfg.Model.LogitScalePath = filepath.Join(dir, "logit_scale.txt")

	m := lifecycle.New(lifecycle.Options{Loader: modelLoader(cfg), Device: config.DeviceCPU})
	if err := m.Initialize(context.Background()); err == nil {
		t.Fatal("expected initialization failure for missing model files")
	}
	if m.Initialized() {
		t.Error("manager should not report initialized")
	}
}

func TestInitializeComponentsAndDirectStatus(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "catalog.db")

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := components.Catalog.CreateDisease(context.Background(), models.DiseaseInput{Name: "Pneumonia", Description: "Consolidation"}); err != nil {
		t.Fatal(err)
	}
	components.Close()

	status, err := directStatus(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if status["diseases"].(int64) != 1 {
		t.Errorf("diseases = %v", status["diseases"])
	}
}

func TestClassifyViaHTTP(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "catalog.db")

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()
	// Swap the ONNX loader for the mock so the test runs without model files.
	components.Manager = lifecycle.New(lifecycle.Options{
		Device: config.DeviceCPU,
		Loader: func(ctx context.Context, device string) (embedding.Provider, error) {
			return embedding.NewMockProvider(8), nil
		},
	})
	components.Engine = newMockEngine(components, cfg)

	for _, in := range []models.DiseaseInput{
		{Name: "Pneumonia", Description: "Bilateral infiltrates\nConsolidation in lower lobes"},
		{Name: "Fracture", Description: "Cortical discontinuity\nDisplaced fragment"},
	} {
		if _, err := components.Catalog.CreateDisease(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}

	srv := server.NewServer(components.Engine, components.Catalog, components.Manager, cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	imgPath := filepath.Join(dir, "scan.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(imgPath, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	resp, err := classifyViaHTTP(ts.URL, imgPath, 12, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("results = %+v", resp.Results)
	}

	if _, err := classifyViaHTTP(ts.URL, filepath.Join(dir, "missing.png"), 0, 0); err == nil {
		t.Error("expected error for missing image")
	}
}

func newMockEngine(c *Components, cfg *config.Config) *classify.Engine {
	return classify.NewEngine(c.Manager, c.Catalog, classify.Options{
		DefaultMaxPhrases: cfg.Classify.DefaultMaxPhrases,
		DefaultTopK:       cfg.Classify.DefaultTopK,
		MaxTopK:           cfg.Classify.MaxTopK,
	}, zap.NewNop())
}
