package models

import "fmt"

const (
	// DefaultMaxPhrases caps how many phrases are scored per disease.
	DefaultMaxPhrases = 12
	// DefaultTopK is how many ranked diseases are returned.
	DefaultTopK = 5
)

// ClassificationResult is one ranked disease. Score is the mean of the disease's
// normalized phrase scores and lies in [0,1].
type ClassificationResult struct {
	DiseaseName string  `json:"disease_name"`
	Score       float64 `json:"score"`
	BestPhrase  string  `json:"best_phrase"`
}

// ClassifyOptions holds the per-request knobs of the pipeline.
type ClassifyOptions struct {
	MaxPhrases int `json:"max_phrases,omitempty"`
	TopK       int `json:"top_k,omitempty"`
}

// Validate rejects values below 1 and caps TopK at maxTopK when maxTopK > 0.
// Zero values must be defaulted by the caller before validation.
func (o *ClassifyOptions) Validate(maxTopK int) error {
	if o.MaxPhrases < 1 {
		return fmt.Errorf("max_phrases must be >= 1, got %d", o.MaxPhrases)
	}
	if o.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", o.TopK)
	}
	if maxTopK > 0 && o.TopK > maxTopK {
		o.TopK = maxTopK
	}
	return nil
}

// ClassificationResponse is the response for a classification request.
// Results are ordered by descending score; an empty list means there was nothing
// to compare against.
type ClassificationResponse struct {
	Results   []ClassificationResult `json:"results"`
	RequestID string                 `json:"request_id,omitempty"`
	QueryTime int64                  `json:"query_time_ms"`
}
