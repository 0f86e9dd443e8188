package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/medmatch/internal/models"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	cat, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "sub", "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func TestSQLiteCatalog_CRUD(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	d, err := cat.CreateDisease(ctx, models.DiseaseInput{
		Name:        " Pneumonia ",
		Description: "Bilateral infiltrates\nConsolidation in lower lobes",
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.ID == 0 || d.Name != "Pneumonia" || d.CreatedAt.IsZero() {
		t.Errorf("created %+v", d)
	}

	got, err := cat.GetDisease(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != d.Description {
		t.Errorf("description = %q", got.Description)
	}

	byName, err := cat.GetDiseaseByName(ctx, "Pneumonia")
	if err != nil || byName.ID != d.ID {
		t.Errorf("GetDiseaseByName = %+v, %v", byName, err)
	}

	if err := cat.UpdateDescription(ctx, d.ID, "Lobar consolidation"); err != nil {
		t.Fatal(err)
	}
	got, _ = cat.GetDisease(ctx, d.ID)
	if got.Description != "Lobar consolidation" {
		t.Errorf("expected updated description, got %q", got.Description)
	}

	n, err := cat.CountDiseases(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountDiseases = %d, %v", n, err)
	}

	if err := cat.DeleteDisease(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.GetDisease(ctx, d.ID); !errors.Is(err, ErrDiseaseNotFound) {
		t.Errorf("expected ErrDiseaseNotFound, got %v", err)
	}
}

func TestSQLiteCatalog_duplicateName(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	if _, err := cat.CreateDisease(ctx, models.DiseaseInput{Name: "Fracture"}); err != nil {
		t.Fatal(err)
	}
	_, err := cat.CreateDisease(ctx, models.DiseaseInput{Name: "Fracture", Description: "x"})
	if !errors.Is(err, ErrDiseaseExists) {
		t.Errorf("expected ErrDiseaseExists, got %v", err)
	}
}

func TestSQLiteCatalog_rejectsBlankName(t *testing.T) {
	cat := newTestCatalog(t)
	if _, err := cat.CreateDisease(context.Background(), models.DiseaseInput{Name: "  "}); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestSQLiteCatalog_ListOrder(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	for _, name := range []string{"Zoster", "Acne", "Melanoma"} {
		if _, err := cat.CreateDisease(ctx, models.DiseaseInput{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := cat.ListDiseases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Zoster", "Acne", "Melanoma"}
	if len(list) != len(want) {
		t.Fatalf("len = %d", len(list))
	}
	for i, d := range list {
		if d.Name != want[i] {
			t.Errorf("position %d = %s, want %s", i, d.Name, want[i])
		}
	}
}

func TestSQLiteCatalog_missing(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	if err := cat.UpdateDescription(ctx, 99, "x"); !errors.Is(err, ErrDiseaseNotFound) {
		t.Errorf("UpdateDescription err = %v", err)
	}
	if err := cat.DeleteDisease(ctx, 99); !errors.Is(err, ErrDiseaseNotFound) {
		t.Errorf("DeleteDisease err = %v", err)
	}
	if _, err := cat.GetDiseaseByName(ctx, "nope"); !errors.Is(err, ErrDiseaseNotFound) {
		t.Errorf("GetDiseaseByName err = %v", err)
	}
}
