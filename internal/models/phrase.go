package models

// Phrase is one non-empty line of a disease description, tagged with the disease
// it came from. Phrases are built per request and never persisted.
type Phrase struct {
	Text    string `json:"text"`
	Disease string `json:"disease"`
}
