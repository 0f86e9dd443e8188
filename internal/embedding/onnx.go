//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/medmatch/internal/imaging"
	"github.com/hyperjump/medmatch/pkg/utils"
)

// ONNXConfig locates the exported encoder halves and runtime settings.
type ONNXConfig struct {
	VisionModelPath string
	TextModelPath   string
	LogitScalePath  string
	TokenizerPath   string
	LibraryPath     string
	Dimensions      int
	MaxTokens       int
	CacheSize       int
	// Device is "cpu" or "cuda".
	Device string
}

// ONNXProvider runs the vision and text encoders with ONNX Runtime. It requires CGO
// and the onnxruntime shared library.
type ONNXProvider struct {
	vision      *ort.DynamicAdvancedSession
	text        *ort.DynamicAdvancedSession
	tokenizer   Tokenizer
	cache       *PhraseCache
	dimensions  int
	maxTokens   int
	temperature float64
}

var envMu sync.Mutex

func ensureEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	return nil
}

// CUDAAvailable reports whether the CUDA execution provider can be created.
func CUDAAvailable(libraryPath string) bool {
	if err := ensureEnvironment(libraryPath); err != nil {
		return false
	}
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return false
	}
	_ = opts.Destroy()
	return true
}

// NewONNXProvider checks that every artifact exists, then loads both sessions,
// the tokenizer, and the learned temperature.
func NewONNXProvider(cfg ONNXConfig) (*ONNXProvider, error) {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 256
	}
	if cfg.MaxTokens <= 2 {
		cfg.MaxTokens = 128
	}
	for _, p := range []string{cfg.VisionModelPath, cfg.TextModelPath, cfg.LogitScalePath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrModelNotFound, p, err)
		}
	}
	temperature, err := readLogitScale(cfg.LogitScalePath)
	if err != nil {
		return nil, err
	}

	var tok Tokenizer = &SimpleTokenizer{}
	if cfg.TokenizerPath != "" {
		hf, err := NewHFTokenizer(cfg.TokenizerPath)
		if err != nil {
			return nil, err
		}
		tok = hf
	}

	if err := ensureEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if cfg.Device == "cuda" {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to create CUDA provider options: %w", err)
		}
		defer cudaOpts.Destroy()
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("failed to enable CUDA: %w", err)
		}
	}

	vision, err := ort.NewDynamicAdvancedSession(cfg.VisionModelPath,
		[]string{"pixel_values"}, []string{"image_embeds"}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision session: %w", err)
	}
	text, err := ort.NewDynamicAdvancedSession(cfg.TextModelPath,
		[]string{"input_ids", "attention_mask"}, []string{"text_embeds"}, opts)
	if err != nil {
		_ = vision.Destroy()
		return nil, fmt.Errorf("failed to create text session: %w", err)
	}
	cache, err := NewPhraseCache(cfg.CacheSize)
	if err != nil {
		_ = vision.Destroy()
		_ = text.Destroy()
		return nil, fmt.Errorf("failed to create phrase cache: %w", err)
	}

	return &ONNXProvider{
		vision:      vision,
		text:        text,
		tokenizer:   tok,
		cache:       cache,
		dimensions:  cfg.Dimensions,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
	}, nil
}

// EmbedImage runs the vision encoder on one preprocessed image.
func (p *ONNXProvider) EmbedImage(ctx context.Context, tensor *imaging.Tensor) ([]float32, error) {
	input, err := ort.NewTensor(ort.NewShape(tensor.Shape()...), tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create image tensor: %w", err)
	}
	defer input.Destroy()
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(p.dimensions)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := p.vision.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("vision inference failed: %w", err)
	}
	emb := make([]float32, p.dimensions)
	copy(emb, output.GetData())
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedPhrases serves cached phrases from memory and encodes the rest in a single run.
func (p *ONNXProvider) EmbedPhrases(ctx context.Context, phrases []string) ([][]float32, error) {
	out := make([][]float32, len(phrases))
	keys := make([]string, len(phrases))
	var missing []int
	for i, phrase := range phrases {
		keys[i] = NormalizeText(phrase)
		if v, ok := p.cache.Get(keys[i]); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	n := len(missing)
	ids := make([]int64, 0, n*p.maxTokens)
	mask := make([]int64, 0, n*p.maxTokens)
	for _, i := range missing {
		rowIDs, rowMask, err := p.tokenizer.Tokenize(keys[i], p.maxTokens)
		if err != nil {
			return nil, err
		}
		ids = append(ids, rowIDs...)
		mask = append(mask, rowMask...)
	}

	shape := ort.NewShape(int64(n), int64(p.maxTokens))
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(n), int64(p.dimensions)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := p.text.Run([]ort.Value{idsTensor, maskTensor}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("text inference failed: %w", err)
	}
	data := output.GetData()
	for row, i := range missing {
		emb := make([]float32, p.dimensions)
		copy(emb, data[row*p.dimensions:(row+1)*p.dimensions])
		utils.NormalizeL2(emb)
		p.cache.Set(keys[i], emb)
		out[i] = emb
	}
	return out, nil
}

// Temperature returns the learned log-scale read at load time.
func (p *ONNXProvider) Temperature() float64 { return p.temperature }

// Dimensions returns the embedding dimension.
func (p *ONNXProvider) Dimensions() int { return p.dimensions }

// Close destroys both sessions.
func (p *ONNXProvider) Close() error {
	var err error
	if p.vision != nil {
		err = p.vision.Destroy()
		p.vision = nil
	}
	if p.text != nil {
		if e := p.text.Destroy(); err == nil {
			err = e
		}
		p.text = nil
	}
	return err
}

func readLogitScale(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrModelNotFound, path, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid logit scale in %s: %w", path, err)
	}
	return v, nil
}
