package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/medmatch/internal/imaging"
	"github.com/hyperjump/medmatch/pkg/utils"
)

// MockProvider is a deterministic Provider for tests. Phrase vectors are derived
// from the text hash; the image vector is derived from the tensor contents. Both can
// be pinned with SetImageVector and SetPhraseVector.
type MockProvider struct {
	dimensions int

	mu            sync.RWMutex
	temperature   float64
	imageVector   []float32
	phraseVectors map[string][]float32
	imageErr      error
	phraseErr     error

	imageCalls  atomic.Int64
	phraseCalls atomic.Int64
}

// NewMockProvider returns a provider producing unit vectors of the given dimensions.
// Temperature defaults to log(1/0.07), the usual CLIP initialization.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &MockProvider{
		dimensions:    dimensions,
		temperature:   math.Log(1 / 0.07),
		phraseVectors: make(map[string][]float32),
	}
}

// SetTemperature overrides the learned log-scale.
func (m *MockProvider) SetTemperature(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temperature = t
}

// SetImageVector pins the vector returned by EmbedImage. It is normalized on the way in.
func (m *MockProvider) SetImageVector(v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageVector = normalizedCopy(v)
}

// SetPhraseVector pins the vector returned for phrase. It is normalized on the way in.
func (m *MockProvider) SetPhraseVector(phrase string, v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phraseVectors[phrase] = normalizedCopy(v)
}

// FailImages makes EmbedImage return err.
func (m *MockProvider) FailImages(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageErr = err
}

// FailPhrases makes EmbedPhrases return err.
func (m *MockProvider) FailPhrases(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phraseErr = err
}

// ImageCalls reports how many times EmbedImage ran.
func (m *MockProvider) ImageCalls() int64 { return m.imageCalls.Load() }

// PhraseCalls reports how many batches EmbedPhrases received.
func (m *MockProvider) PhraseCalls() int64 { return m.phraseCalls.Load() }

// EmbedImage returns the pinned image vector or one folded from the tensor data.
func (m *MockProvider) EmbedImage(ctx context.Context, tensor *imaging.Tensor) ([]float32, error) {
	m.imageCalls.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.imageErr != nil {
		return nil, m.imageErr
	}
	if m.imageVector != nil {
		return append([]float32(nil), m.imageVector...), nil
	}
	if tensor == nil || len(tensor.Data) == 0 {
		return nil, fmt.Errorf("empty image tensor")
	}
	emb := make([]float32, m.dimensions)
	for i, v := range tensor.Data {
		emb[i%m.dimensions] += v * float32(math.Sin(float64(i+1)))
	}
	emb[0] += 1e-3
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedPhrases returns pinned vectors where set and hash-derived vectors otherwise.
func (m *MockProvider) EmbedPhrases(ctx context.Context, phrases []string) ([][]float32, error) {
	m.phraseCalls.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.phraseErr != nil {
		return nil, m.phraseErr
	}
	out := make([][]float32, len(phrases))
	for i, p := range phrases {
		if v, ok := m.phraseVectors[p]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		out[i] = m.hashVector(p)
	}
	return out, nil
}

func (m *MockProvider) hashVector(text string) []float32 {
	h := HashString(text)
	emb := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// Temperature returns the configured log-scale.
func (m *MockProvider) Temperature() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.temperature
}

// Dimensions returns the embedding dimension.
func (m *MockProvider) Dimensions() int { return m.dimensions }

// Close is a no-op.
func (m *MockProvider) Close() error { return nil }

func normalizedCopy(v []float32) []float32 {
	out := append([]float32(nil), v...)
	utils.NormalizeL2(out)
	return out
}
