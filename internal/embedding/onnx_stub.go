//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/medmatch/internal/imaging"
)

// ONNXConfig mirrors the cgo build so callers compile either way.
type ONNXConfig struct {
	VisionModelPath string
	TextModelPath   string
	LogitScalePath  string
	TokenizerPath   string
	LibraryPath     string
	Dimensions      int
	MaxTokens       int
	CacheSize       int
	Device          string
}

// ONNXProvider stub type when built without CGO (see onnx.go for the real implementation).
type ONNXProvider struct{}

// CUDAAvailable is always false without CGO.
func CUDAAvailable(string) bool { return false }

// NewONNXProvider returns an error when built without CGO.
func NewONNXProvider(ONNXConfig) (*ONNXProvider, error) {
	return nil, fmt.Errorf("%w: build with CGO_ENABLED=1 and onnxruntime", ErrRuntimeUnavailable)
}

func (p *ONNXProvider) EmbedImage(context.Context, *imaging.Tensor) ([]float32, error) {
	return nil, ErrRuntimeUnavailable
}

func (p *ONNXProvider) EmbedPhrases(context.Context, []string) ([][]float32, error) {
	return nil, ErrRuntimeUnavailable
}

func (p *ONNXProvider) Temperature() float64 { return 0 }
func (p *ONNXProvider) Dimensions() int      { return 0 }
func (p *ONNXProvider) Close() error         { return nil }
