// Package embedding provides the image and phrase encoders the classifier scores
// against: an ONNX Runtime implementation, a deterministic mock, a phrase cache,
// and a concurrency-bounded wrapper.
package embedding

import (
	"context"
	"errors"

	"github.com/hyperjump/medmatch/internal/imaging"
)

var (
	// ErrModelNotFound is returned when a required model artifact is missing.
	ErrModelNotFound = errors.New("model artifact not found")
	// ErrRuntimeUnavailable is returned when the binary was built without ONNX Runtime support.
	ErrRuntimeUnavailable = errors.New("onnx runtime unavailable")
)

// Provider embeds images and phrases into a shared space. Every returned vector has
// unit L2 norm and Dimensions() entries.
type Provider interface {
	EmbedImage(ctx context.Context, tensor *imaging.Tensor) ([]float32, error)
	// EmbedPhrases embeds all phrases as one batch, preserving order.
	EmbedPhrases(ctx context.Context, phrases []string) ([][]float32, error)
	// Temperature returns the learned log-scale; similarity multiplies by its exponential.
	Temperature() float64
	Dimensions() int
	Close() error
}
