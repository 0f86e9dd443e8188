// Package ranking groups normalized phrase scores by disease, ranks diseases by
// their mean score, and labels scores for diagnostics.
package ranking

import (
	"fmt"
	"sort"

	"github.com/hyperjump/medmatch/internal/models"
)

// Aggregate groups scores by owning disease in order of first appearance. Each
// disease's score is the arithmetic mean of its phrase scores and its best phrase
// is the first phrase holding the maximum score.
func Aggregate(phrases []models.Phrase, scores []float64) ([]DiseaseScore, error) {
	if len(phrases) != len(scores) {
		return nil, fmt.Errorf("got %d scores for %d phrases", len(scores), len(phrases))
	}
	index := make(map[string]int)
	var out []DiseaseScore
	for i, p := range phrases {
		pos, ok := index[p.Disease]
		if !ok {
			pos = len(out)
			index[p.Disease] = pos
			out = append(out, DiseaseScore{
				Disease:    p.Disease,
				BestPhrase: p.Text,
				BestScore:  scores[i],
				firstSeen:  i,
			})
		}
		ds := &out[pos]
		ds.Score += scores[i]
		ds.Phrases++
		if scores[i] > ds.BestScore {
			ds.BestScore = scores[i]
			ds.BestPhrase = p.Text
		}
	}
	for i := range out {
		out[i].Score /= float64(out[i].Phrases)
	}
	return out, nil
}

// Sort orders diseases by descending score. Equal scores keep first-appearance order.
func Sort(diseases []DiseaseScore) {
	sort.SliceStable(diseases, func(i, j int) bool {
		if diseases[i].Score != diseases[j].Score {
			return diseases[i].Score > diseases[j].Score
		}
		return diseases[i].firstSeen < diseases[j].firstSeen
	})
}

// Rank aggregates, sorts, and truncates to topK results. Empty input yields an
// empty, non-nil slice.
func Rank(phrases []models.Phrase, scores []float64, topK int) ([]models.ClassificationResult, error) {
	diseases, err := Aggregate(phrases, scores)
	if err != nil {
		return nil, err
	}
	Sort(diseases)
	if topK > 0 && len(diseases) > topK {
		diseases = diseases[:topK]
	}
	results := make([]models.ClassificationResult, len(diseases))
	for i, d := range diseases {
		results[i] = models.ClassificationResult{
			DiseaseName: d.Disease,
			Score:       d.Score,
			BestPhrase:  d.BestPhrase,
		}
	}
	return results, nil
}

// Breakdown returns the per-phrase scores of each disease in first-appearance order.
func Breakdown(phrases []models.Phrase, scores []float64) []ScoreBreakdown {
	index := make(map[string]int)
	var out []ScoreBreakdown
	for i, p := range phrases {
		pos, ok := index[p.Disease]
		if !ok {
			pos = len(out)
			index[p.Disease] = pos
			out = append(out, ScoreBreakdown{Disease: p.Disease})
		}
		out[pos].Texts = append(out[pos].Texts, p.Text)
		if i < len(scores) {
			out[pos].Scores = append(out[pos].Scores, scores[i])
		}
	}
	return out
}
