package embedding

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer produces padded token IDs and an attention mask for BERT-style text encoders.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64, err error)
}

const (
	clsTokenID = 101
	sepTokenID = 102
)

// SimpleTokenizer is a whitespace tokenizer with hash-based token IDs, used when no
// tokenizer.json is configured.
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces [CLS] words [SEP] padded to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64, err error) {
	if maxTokens <= 2 {
		maxTokens = 128
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1

	pos := 1
	for _, word := range strings.Fields(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word)%30000) + 1000
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sepTokenID
	attentionMask[pos] = 1
	return inputIDs, attentionMask, nil
}

// HashString returns a deterministic non-negative hash.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 {
		return 0
	}
	return h
}

// NormalizeText applies NFKC, trims, and strips control characters so that visually
// identical phrases tokenize, and cache, identically.
func NormalizeText(text string) string {
	normed := strings.TrimSpace(norm.NFKC.String(text))
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
}

// padIDs converts ids to a fixed-length row, truncating and keeping the final
// [SEP] when the encoding is too long.
func padIDs(ids, mask []int, maxTokens int) ([]int64, []int64) {
	outIDs := make([]int64, maxTokens)
	outMask := make([]int64, maxTokens)
	n := len(ids)
	truncated := n > maxTokens
	if truncated {
		n = maxTokens
	}
	for i := 0; i < n; i++ {
		outIDs[i] = int64(ids[i])
		if i < len(mask) {
			outMask[i] = int64(mask[i])
		} else {
			outMask[i] = 1
		}
	}
	if truncated && len(ids) > 0 {
		outIDs[maxTokens-1] = int64(ids[len(ids)-1])
		outMask[maxTokens-1] = 1
	}
	return outIDs, outMask
}
