// Package main is the medmatch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/medmatch/internal/catalog"
	"github.com/hyperjump/medmatch/internal/classify"
	"github.com/hyperjump/medmatch/internal/cli"
	"github.com/hyperjump/medmatch/internal/config"
	"github.com/hyperjump/medmatch/internal/embedding"
	"github.com/hyperjump/medmatch/internal/lifecycle"
	"github.com/hyperjump/medmatch/internal/models"
	"github.com/hyperjump/medmatch/internal/server"
	"github.com/hyperjump/medmatch/internal/storage"
	"github.com/hyperjump/medmatch/internal/watcher"
	"github.com/hyperjump/medmatch/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/medmatch/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default and config.yaml
// exists in the current directory, that file is used instead so running from a
// checkout picks up the project config. Returns the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "classify":
		runClassify()
	case "diseases":
		runDiseases()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("medmatch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-phrase scores, watcher events)")
	eager := fs.Bool("eager", false, "load the model at startup instead of on the first request")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if seed := cfg.Catalog.SeedFile; seed != "" {
		importSeed(ctx, components.Catalog, seed, logger)
		if cfg.Catalog.Watch {
			w := watcher.NewFileWatcher(seed, func(path string) {
				importSeed(context.Background(), components.Catalog, path, logger)
			}, watcher.WithLogger(utils.Named(logger, "watcher")))
			if err := w.Start(ctx); err != nil {
				logger.Fatal("Failed to start catalog watcher", zap.Error(err))
			}
			defer w.Stop()
		}
	}

	if *eager {
		if err := components.Manager.Initialize(ctx); err != nil {
			logger.Fatal("Failed to load model", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Engine, components.Catalog, components.Manager, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func importSeed(ctx context.Context, cat storage.Catalog, path string, logger *zap.Logger) {
	res, err := catalog.Import(ctx, cat, path)
	if err != nil {
		logger.Warn("catalog import failed", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("catalog imported",
		zap.String("path", path),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged))
}

// argsReorder moves flags that appear after the positional arguments to the front
// so flag.Parse sees them: "medmatch classify scan.png --top-k 3".
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printClassifyUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: medmatch classify [flags] <image>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Scores are relative to the other candidates in the same request, not calibrated
probabilities. The confidence label in text output is a rough guide only.

Examples:
  medmatch classify chest.png
  medmatch classify --top-k 3 --output json lesion.jpg
  medmatch classify --server "" chest.png        # run the model in-process
`)
}

func runClassify() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = run the pipeline in-process)")
	maxPhrases := fs.Int("max-phrases", 0, "phrases sampled per disease (0 = configured default)")
	topK := fs.Int("top-k", 0, "number of diseases returned (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printClassifyUsage(fs) }
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		printClassifyUsage(fs)
		os.Exit(1)
	}
	imagePath := fs.Arg(0)
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var resp *models.ClassificationResponse
	if *serverURL != "" {
		resp, err = classifyViaHTTP(*serverURL, imagePath, *maxPhrases, *topK)
	} else {
		resp, err = classifyDirect(*configPath, imagePath, *maxPhrases, *topK)
	}
	if err != nil {
		fatalf("Classification failed: %v", err)
	}
	if err := cli.WriteClassification(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func classifyDirect(configPath, imagePath string, maxPhrases, topK int) (*models.ClassificationResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Engine.ClassifyFile(context.Background(), imagePath, maxPhrases, topK)
}

// newClassifyRequest builds the multipart upload for POST /api/v1/classify.
func newClassifyRequest(serverURL, imagePath string, maxPhrases, topK int) (*http.Request, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(imagePath)))
	h.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	q := url.Values{}
	if maxPhrases > 0 {
		q.Set("max_phrases", strconv.Itoa(maxPhrases))
	}
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}
	target := serverURL + "/api/v1/classify"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequest(http.MethodPost, target, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func classifyViaHTTP(serverURL, imagePath string, maxPhrases, topK int) (*models.ClassificationResponse, error) {
	req, err := newClassifyRequest(serverURL, imagePath, maxPhrases, topK)
	if err != nil {
		return nil, err
	}
	var out models.ClassificationResponse
	if err := doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func doJSON(req *http.Request, out interface{}) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runDiseases() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("diseases "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	name := fs.String("name", "", "disease name (add)")
	description := fs.String("description", "", "disease description, one phrase per line (add)")
	descriptionFile := fs.String("description-file", "", "read the description from a file (add)")
	_ = fs.Parse(argsReorder(os.Args[3:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	cat, err := storage.NewSQLiteCatalog(cfg.Storage.DatabasePath)
	if err != nil {
		fatalf("Failed to open catalog: %v", err)
	}
	defer cat.Close()
	ctx := context.Background()

	switch sub {
	case "list":
		diseases, err := cat.ListDiseases(ctx)
		if err != nil {
			fatalf("List failed: %v", err)
		}
		if err := cli.WriteDiseases(os.Stdout, diseases, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	case "add":
		desc := *description
		if *descriptionFile != "" {
			b, err := os.ReadFile(*descriptionFile)
			if err != nil {
				fatalf("Failed to read description: %v", err)
			}
			desc = string(b)
		}
		d, err := cat.CreateDisease(ctx, models.DiseaseInput{Name: *name, Description: desc})
		if err != nil {
			fatalf("Add failed: %v", err)
		}
		fmt.Printf("Disease added: [%d] %s\n", d.ID, d.Name)
	case "import":
		if fs.NArg() != 1 {
			fatalf("Usage: medmatch diseases import [flags] <file.yaml|file.xlsx|file.pdf>")
		}
		res, err := catalog.Import(ctx, cat, fs.Arg(0))
		if err != nil {
			fatalf("Import failed: %v", err)
		}
		fmt.Printf("Imported %s: %d created, %d updated, %d unchanged\n",
			fs.Arg(0), res.Created, res.Updated, res.Unchanged)
	default:
		fmt.Printf("Unknown diseases command: %s\n", sub)
		printUsage()
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the catalog directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	status := map[string]interface{}{}
	if *serverURL != "" {
		req, err := http.NewRequest(http.MethodGet, *serverURL+"/api/v1/status", nil)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		if err := doJSON(req, &status); err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		status, err = directStatus(cfg)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// directStatus reports what can be known without loading the model.
func directStatus(cfg *config.Config) (map[string]interface{}, error) {
	cat, err := storage.NewSQLiteCatalog(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer cat.Close()
	count, err := cat.CountDiseases(context.Background())
	if err != nil {
		return nil, err
	}
	status := map[string]interface{}{
		"diseases":    count,
		"initialized": false,
	}
	usage, err := storage.MeasureDiskUsage(map[string]string{
		"database":     cfg.Storage.DatabasePath,
		"vision_model": cfg.Model.VisionModelPath,
		"text_model":   cfg.Model.TextModelPath,
		"tokenizer":    cfg.Model.TokenizerPath,
	})
	if err == nil {
		status["disk_usage_bytes"] = usage.Total()
	}
	status["config"] = map[string]interface{}{
		"device":        cfg.Model.Device,
		"seed":          cfg.Model.Seed,
		"sampling":      cfg.Classify.Sampling,
		"database_path": cfg.Storage.DatabasePath,
	}
	return status, nil
}

// Components holds initialized services.
type Components struct {
	Catalog storage.Catalog
	Manager *lifecycle.Manager
	Engine  *classify.Engine
}

func (c *Components) Close() {
	if c.Manager != nil {
		_ = c.Manager.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

// modelLoader returns the loader the lifecycle manager runs once. The ONNX
// provider is wrapped so at most MaxConcurrentInference encoder calls run at once.
func modelLoader(cfg *config.Config) lifecycle.Loader {
	return func(ctx context.Context, device string) (embedding.Provider, error) {
		p, err := embedding.NewONNXProvider(embedding.ONNXConfig{
			VisionModelPath: cfg.Model.VisionModelPath,
			TextModelPath:   cfg.Model.TextModelPath,
			LogitScalePath:  cfg.Model.LogitScalePath,
			TokenizerPath:   cfg.Model.TokenizerPath,
			LibraryPath:     cfg.Model.ORTLibraryPath,
			Dimensions:      cfg.Model.Dimensions,
			MaxTokens:       cfg.Model.MaxTokens,
			CacheSize:       cfg.Model.CacheSize,
			Device:          device,
		})
		if err != nil {
			return nil, err
		}
		return embedding.NewBoundedProvider(p, cfg.Model.MaxConcurrentInference), nil
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	cat, err := storage.NewSQLiteCatalog(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	manager := lifecycle.New(lifecycle.Options{
		Loader:      modelLoader(cfg),
		DeviceProbe: func() bool { return embedding.CUDAAvailable(cfg.Model.ORTLibraryPath) },
		Device:      cfg.Model.Device,
		Seed:        cfg.Model.Seed,
		Sampling:    cfg.Classify.Sampling,
		Logger:      logger,
	})

	engine := classify.NewEngine(manager, cat, classify.Options{
		DefaultMaxPhrases: cfg.Classify.DefaultMaxPhrases,
		DefaultTopK:       cfg.Classify.DefaultTopK,
		MaxTopK:           cfg.Classify.MaxTopK,
		MaxImagePixels:    cfg.Classify.MaxImagePixels,
	}, logger)

	return &Components{
		Catalog: cat,
		Manager: manager,
		Engine:  engine,
	}, nil
}

func printUsage() {
	fmt.Println(`medmatch - Match clinical images against a free-text disease catalog

Usage:
  medmatch server [flags]                 Start the HTTP server
  medmatch classify [flags] <image>       Rank diseases for an image
  medmatch diseases list [flags]          List catalog diseases
  medmatch diseases add [flags]           Add a disease (--name, --description)
  medmatch diseases import [flags] <file> Import diseases from .yaml, .xlsx or .pdf
  medmatch status [flags]                 Show model and catalog status
  medmatch version                        Show version
  medmatch help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/medmatch/config.yaml)
  --debug            Enable debug logging (per-phrase scores, watcher events)
  --eager            Load the model at startup

Classify Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to run in-process.
  --max-phrases int  Phrases sampled per disease (default from config, 12)
  --top-k int        Diseases returned (default from config, 5)
  --output string    Output format: text or json (default: text)

Diseases Flags:
  --config string            Config file path
  --name string              Disease name (add)
  --description string       Description, one phrase per line (add)
  --description-file string  Read the description from a file (add)
  --output string            Output format: text or json (list)

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read the catalog directly.
  --output string    Output format: text or json (default: text)

Examples:
  medmatch server --eager
  medmatch diseases import catalog.yaml
  medmatch diseases add --name Pneumonia --description "Bilateral infiltrates"
  medmatch classify --top-k 3 chest.png
  medmatch classify --output json --server "" chest.png
  medmatch status --output json`)
}
