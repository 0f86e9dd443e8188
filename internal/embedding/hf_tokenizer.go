package embedding

import (
	"fmt"
	"os"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HFTokenizer wraps a HuggingFace tokenizer.json (e.g. Bio_ClinicalBERT's WordPiece).
type HFTokenizer struct {
	tk *tokenizer.Tokenizer
}

// NewHFTokenizer loads the tokenizer definition at path.
func NewHFTokenizer(path string) (*HFTokenizer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: tokenizer %s: %v", ErrModelNotFound, path, err)
	}
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &HFTokenizer{tk: tk}, nil
}

// Tokenize encodes text with special tokens and pads or truncates to maxTokens.
func (h *HFTokenizer) Tokenize(text string, maxTokens int) ([]int64, []int64, error) {
	enc, err := h.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, nil, fmt.Errorf("tokenize %q: %w", text, err)
	}
	ids, mask := padIDs(enc.Ids, enc.AttentionMask, maxTokens)
	return ids, mask, nil
}
