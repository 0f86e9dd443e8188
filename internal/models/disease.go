// Package models defines core data structures for diseases, phrases, and classification results.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Disease is a catalog entry described only by free text. Each non-empty line of
// Description is a candidate phrase for matching.
type Disease struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DiseaseInput is the input for creating a disease or replacing its description.
type DiseaseInput struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Validate trims the name and rejects an empty one.
func (in *DiseaseInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("disease name cannot be empty")
	}
	return nil
}
