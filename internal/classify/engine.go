// Package classify runs the image-to-disease pipeline: decode, embed, build the
// phrase corpus, score, aggregate, and rank.
package classify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/medmatch/internal/imaging"
	"github.com/hyperjump/medmatch/internal/lifecycle"
	"github.com/hyperjump/medmatch/internal/models"
	"github.com/hyperjump/medmatch/internal/phrase"
	"github.com/hyperjump/medmatch/internal/ranking"
	"github.com/hyperjump/medmatch/internal/similarity"
	"github.com/hyperjump/medmatch/pkg/utils"
)

// DiseaseLister supplies the diseases to classify against.
type DiseaseLister interface {
	ListDiseases(ctx context.Context) ([]models.Disease, error)
}

// Options holds pipeline defaults.
type Options struct {
	DefaultMaxPhrases int
	DefaultTopK       int
	// MaxTopK caps top_k. Zero means no cap.
	MaxTopK int
	// MaxImagePixels bounds decoded image size. Zero uses imaging.DefaultMaxPixels.
	MaxImagePixels int
}

// Request is one classification call. Zero MaxPhrases or TopK take the defaults.
type Request struct {
	Image      io.Reader
	MaxPhrases int
	TopK       int
	// RequestID is generated when empty.
	RequestID string
}

// Engine classifies images. It is safe for concurrent use.
type Engine struct {
	manager  *lifecycle.Manager
	diseases DiseaseLister
	opts     Options
	logger   *zap.Logger
}

// NewEngine wires the pipeline.
func NewEngine(manager *lifecycle.Manager, diseases DiseaseLister, opts Options, logger *zap.Logger) *Engine {
	if opts.DefaultMaxPhrases < 1 {
		opts.DefaultMaxPhrases = models.DefaultMaxPhrases
	}
	if opts.DefaultTopK < 1 {
		opts.DefaultTopK = models.DefaultTopK
	}
	return &Engine{
		manager:  manager,
		diseases: diseases,
		opts:     opts,
		logger:   utils.Named(logger, "classify"),
	}
}

// Classify returns the ranked diseases for req.Image. When no disease has a usable
// phrase the response carries an empty result list and no error.
func (e *Engine) Classify(ctx context.Context, req Request) (*models.ClassificationResponse, error) {
	start := time.Now()
	opts := models.ClassifyOptions{MaxPhrases: req.MaxPhrases, TopK: req.TopK}
	if opts.MaxPhrases == 0 {
		opts.MaxPhrases = e.opts.DefaultMaxPhrases
	}
	if opts.TopK == 0 {
		opts.TopK = e.opts.DefaultTopK
	}
	if err := opts.Validate(e.opts.MaxTopK); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.Image == nil {
		return nil, fmt.Errorf("%w: no image", ErrInvalidRequest)
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := e.logger.With(zap.String("request_id", requestID))
	log.Debug("classify started", zap.Int("max_phrases", opts.MaxPhrases), zap.Int("top_k", opts.TopK))

	if err := e.manager.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	provider, err := e.manager.Provider()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	raw, err := io.ReadAll(req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	tensor, err := imaging.LoadLimit(bytes.NewReader(raw), e.opts.MaxImagePixels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	imageVec, err := provider.EmbedImage(ctx, tensor)
	if err != nil {
		return nil, fmt.Errorf("%w: image: %w", ErrEncoding, err)
	}

	diseases, err := e.diseases.ListDiseases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list diseases: %w", err)
	}
	phrases := phrase.Build(diseases, opts.MaxPhrases, e.manager.Sampler(raw))
	log.Debug("phrase corpus built",
		zap.Int("diseases", len(diseases)),
		zap.Int("usable_diseases", phrase.CountDiseases(phrases)),
		zap.Int("phrases", len(phrases)))

	resp := &models.ClassificationResponse{
		Results:   []models.ClassificationResult{},
		RequestID: requestID,
	}
	if len(phrases) == 0 {
		log.Warn("no phrases to compare against", zap.Int("diseases", len(diseases)))
		resp.QueryTime = time.Since(start).Milliseconds()
		return resp, nil
	}

	phraseVecs, err := provider.EmbedPhrases(ctx, phrase.Texts(phrases))
	if err != nil {
		return nil, fmt.Errorf("%w: phrases: %w", ErrEncoding, err)
	}
	if len(phraseVecs) != len(phrases) {
		return nil, fmt.Errorf("%w: got %d phrase embeddings for %d phrases", ErrEncoding, len(phraseVecs), len(phrases))
	}

	scores, err := similarity.Score(imageVec, phraseVecs, provider.Temperature())
	if err != nil {
		if errors.Is(err, similarity.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
		}
		return nil, err
	}
	if log.Core().Enabled(zap.DebugLevel) {
		for _, b := range ranking.Breakdown(phrases, scores) {
			log.Debug("phrase scores", zap.String("disease", b.Disease), zap.Strings("phrases", b.Texts), zap.Float64s("scores", b.Scores))
		}
	}

	results, err := ranking.Rank(phrases, scores, opts.TopK)
	if err != nil {
		return nil, err
	}
	resp.Results = results
	resp.QueryTime = time.Since(start).Milliseconds()

	for i, r := range results {
		log.Info("classification result",
			zap.Int("rank", i+1),
			zap.String("disease", r.DiseaseName),
			zap.Float64("score", r.Score),
			zap.String("confidence", ranking.ConfidenceLabel(r.Score)),
			zap.String("best_phrase", r.BestPhrase))
	}
	return resp, nil
}

// ClassifyFile opens path and classifies it.
func (e *Engine) ClassifyFile(ctx context.Context, path string, maxPhrases, topK int) (*models.ClassificationResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer f.Close()
	return e.Classify(ctx, Request{Image: f, MaxPhrases: maxPhrases, TopK: topK})
}
