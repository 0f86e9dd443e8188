package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/medmatch/internal/imaging"
)

// BoundedProvider caps how many encoder calls run at once across all requests.
// Callers beyond the limit wait until a slot frees or their context ends.
type BoundedProvider struct {
	inner Provider
	sem   *semaphore.Weighted
}

// NewBoundedProvider wraps inner with a limit of maxConcurrent calls (minimum 1).
func NewBoundedProvider(inner Provider, maxConcurrent int) *BoundedProvider {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &BoundedProvider{
		inner: inner,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func (b *BoundedProvider) EmbedImage(ctx context.Context, tensor *imaging.Tensor) ([]float32, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for inference slot: %w", err)
	}
	defer b.sem.Release(1)
	return b.inner.EmbedImage(ctx, tensor)
}

func (b *BoundedProvider) EmbedPhrases(ctx context.Context, phrases []string) ([][]float32, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for inference slot: %w", err)
	}
	defer b.sem.Release(1)
	return b.inner.EmbedPhrases(ctx, phrases)
}

func (b *BoundedProvider) Temperature() float64 { return b.inner.Temperature() }
func (b *BoundedProvider) Dimensions() int      { return b.inner.Dimensions() }
func (b *BoundedProvider) Close() error         { return b.inner.Close() }
