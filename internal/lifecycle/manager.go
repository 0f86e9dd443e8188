// Package lifecycle owns the one-time load of the embedding provider and the
// seeded phrase sampler shared by every classification request.
package lifecycle

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/medmatch/internal/config"
	"github.com/hyperjump/medmatch/internal/embedding"
	"github.com/hyperjump/medmatch/internal/phrase"
	"github.com/hyperjump/medmatch/pkg/utils"
)

// ErrNotInitialized is returned by Provider before Initialize has succeeded.
var ErrNotInitialized = errors.New("model not initialized")

// Loader builds the provider for the selected device ("cpu" or "cuda").
type Loader func(ctx context.Context, device string) (embedding.Provider, error)

// Options configures a Manager.
type Options struct {
	Loader Loader
	// DeviceProbe reports whether an accelerator is usable. Nil means never.
	DeviceProbe func() bool
	// Device is "auto", "cpu" or "cuda". Empty means auto.
	Device   string
	Seed     int64
	Sampling string
	Logger   *zap.Logger
}

// Manager loads the provider exactly once. Construct it in main and pass it to
// whatever needs the model.
type Manager struct {
	opts   Options
	logger *zap.Logger

	once     sync.Once
	mu       sync.RWMutex
	provider embedding.Provider
	device   string
	sampler  *phrase.RandSampler
	err      error
	loads    atomic.Int64
}

// New returns an uninitialized manager.
func New(opts Options) *Manager {
	if opts.Device == "" {
		opts.Device = config.DeviceAuto
	}
	if opts.Sampling == "" {
		opts.Sampling = config.SamplingProcess
	}
	return &Manager{opts: opts, logger: utils.Named(opts.Logger, "lifecycle")}
}

// Initialize selects the device, seeds the sampler and loads the provider. Only the
// first call does any work; later calls return the first call's result, including a
// failure, which is fatal for the process.
func (m *Manager) Initialize(ctx context.Context) error {
	m.once.Do(func() {
		p, device, err := m.load(ctx)
		m.mu.Lock()
		m.provider, m.device, m.err = p, device, err
		m.sampler = phrase.NewSampler(m.opts.Seed)
		m.mu.Unlock()
	})
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

func (m *Manager) load(ctx context.Context) (embedding.Provider, string, error) {
	device := m.selectDevice()
	if m.opts.Loader == nil {
		return nil, device, errors.New("no model loader configured")
	}
	m.loads.Add(1)
	m.logger.Info("loading model", zap.String("device", device), zap.Int64("seed", m.opts.Seed))
	p, err := m.opts.Loader(ctx, device)
	if err != nil {
		m.logger.Error("model load failed", zap.Error(err))
		return nil, device, fmt.Errorf("failed to load model: %w", err)
	}
	m.logger.Info("model loaded", zap.Int("dimensions", p.Dimensions()))
	return p, device, nil
}

func (m *Manager) selectDevice() string {
	switch m.opts.Device {
	case config.DeviceCPU, config.DeviceCUDA:
		return m.opts.Device
	}
	if m.opts.DeviceProbe != nil && m.opts.DeviceProbe() {
		return config.DeviceCUDA
	}
	return config.DeviceCPU
}

// Provider returns the loaded provider.
func (m *Manager) Provider() (embedding.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.provider == nil {
		if m.err != nil {
			return nil, m.err
		}
		return nil, ErrNotInitialized
	}
	return m.provider, nil
}

// Initialized reports whether a provider is loaded.
func (m *Manager) Initialized() bool {
	_, err := m.Provider()
	return err == nil
}

// Device returns the selected device, or "" before Initialize.
func (m *Manager) Device() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.device
}

// Loads reports how many times the loader ran.
func (m *Manager) Loads() int64 { return m.loads.Load() }

// Sampler returns the sampler for a request. In process mode every request shares
// the generator seeded at Initialize, so repeated identical requests may draw
// different subsets. In request mode the seed is derived from the image bytes.
func (m *Manager) Sampler(image []byte) phrase.Sampler {
	if m.opts.Sampling == config.SamplingRequest {
		return phrase.NewSampler(RequestSeed(m.opts.Seed, image))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sampler == nil {
		return phrase.NewSampler(m.opts.Seed)
	}
	return m.sampler
}

// RequestSeed hashes the base seed and the image bytes with FNV-64a.
func RequestSeed(seed int64, image []byte) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	h.Write(image)
	return int64(h.Sum64())
}

// Close releases the provider if one was loaded.
func (m *Manager) Close() error {
	p, err := m.Provider()
	if err != nil {
		return nil
	}
	return p.Close()
}
