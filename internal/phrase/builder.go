// Package phrase turns disease descriptions into the flat, disease-tagged phrase
// sequence the classifier scores.
package phrase

import (
	"strings"

	"github.com/hyperjump/medmatch/internal/models"
)

// Split returns the trimmed, non-empty lines of description in order.
func Split(description string) []string {
	lines := strings.Split(description, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Build concatenates every disease's phrases in disease order. A disease with more
// than maxPhrases lines contributes exactly maxPhrases of them, drawn without
// replacement and kept in sampling order. Diseases without phrases are skipped, so
// the result is empty when no disease has any.
func Build(diseases []models.Disease, maxPhrases int, sampler Sampler) []models.Phrase {
	if maxPhrases < 1 {
		maxPhrases = models.DefaultMaxPhrases
	}
	var out []models.Phrase
	for _, d := range diseases {
		lines := Split(d.Description)
		if len(lines) > maxPhrases {
			lines = sample(lines, maxPhrases, sampler)
		}
		for _, line := range lines {
			out = append(out, models.Phrase{Text: line, Disease: d.Name})
		}
	}
	return out
}

func sample(lines []string, k int, sampler Sampler) []string {
	idx := sampler.Perm(len(lines))[:k]
	picked := make([]string, k)
	for i, j := range idx {
		picked[i] = lines[j]
	}
	return picked
}

// Texts returns the phrase texts in order, the batch handed to the text encoder.
func Texts(phrases []models.Phrase) []string {
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = p.Text
	}
	return out
}

// CountDiseases reports how many distinct diseases own at least one phrase.
func CountDiseases(phrases []models.Phrase) int {
	seen := make(map[string]struct{})
	for _, p := range phrases {
		seen[p.Disease] = struct{}{}
	}
	return len(seen)
}
