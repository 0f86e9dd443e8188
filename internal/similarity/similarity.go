// Package similarity scores an image embedding against a batch of phrase
// embeddings and rescales the scores jointly into [0,1].
package similarity

import (
	"errors"
	"fmt"
	"math"

	"github.com/hyperjump/medmatch/pkg/utils"
)

// Epsilon keeps min-max rescaling finite when every logit is equal.
const Epsilon = 1e-8

// ErrDimensionMismatch is returned when a phrase vector and the image vector differ in length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Logits returns exp(temperature) * <image, phrase_i> for every phrase.
func Logits(image []float32, phrases [][]float32, temperature float64) ([]float64, error) {
	scale := math.Exp(temperature)
	out := make([]float64, len(phrases))
	for i, p := range phrases {
		if len(p) != len(image) {
			return nil, fmt.Errorf("%w: phrase %d has %d dims, image has %d",
				ErrDimensionMismatch, i, len(p), len(image))
		}
		out[i] = scale * utils.Dot(image, p)
	}
	return out, nil
}

// MinMax rescales raw over the whole batch: (x - min) / (max - min + Epsilon).
// A single value maps to 1.0. An empty input returns an empty slice.
func MinMax(raw []float64) []float64 {
	out := make([]float64, len(raw))
	if len(raw) == 0 {
		return out
	}
	if len(raw) == 1 {
		out[0] = 1
		return out
	}
	lo, hi := raw[0], raw[0]
	for _, v := range raw[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	den := hi - lo + Epsilon
	for i, v := range raw {
		out[i] = clamp((v - lo) / den)
	}
	return out
}

// Score computes normalized scores aligned with phrases.
func Score(image []float32, phrases [][]float32, temperature float64) ([]float64, error) {
	raw, err := Logits(image, phrases, temperature)
	if err != nil {
		return nil, err
	}
	return MinMax(raw), nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
