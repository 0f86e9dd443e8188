// Package storage defines the persistence interface for the disease catalog.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/medmatch/internal/models"
)

var (
	// ErrDiseaseNotFound is returned when no disease matches an id or name.
	ErrDiseaseNotFound = errors.New("disease not found")
	// ErrDiseaseExists is returned when creating a disease whose name is taken.
	ErrDiseaseExists = errors.New("disease already exists")
)

// Catalog defines disease persistence operations. The classifier only reads it.
type Catalog interface {
	// ListDiseases returns every disease ordered by id, which is the order the
	// classifier iterates them.
	ListDiseases(ctx context.Context) ([]models.Disease, error)
	GetDisease(ctx context.Context, id int64) (*models.Disease, error)
	GetDiseaseByName(ctx context.Context, name string) (*models.Disease, error)
	CreateDisease(ctx context.Context, in models.DiseaseInput) (*models.Disease, error)
	UpdateDescription(ctx context.Context, id int64, description string) error
	DeleteDisease(ctx context.Context, id int64) error
	CountDiseases(ctx context.Context) (int64, error)

	Close() error
}
