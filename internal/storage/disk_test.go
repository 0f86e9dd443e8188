package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMeasureDiskUsage(t *testing.T) {
	dir := t.TempDir()

	db := filepath.Join(dir, "catalog.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	models := filepath.Join(dir, "models")
	if err := os.MkdirAll(filepath.Join(models, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(models, "nested", "text.onnx"), []byte("1234567"), 0644); err != nil {
		t.Fatal(err)
	}

	usage, err := MeasureDiskUsage(map[string]string{
		"database": db,
		"models":   models,
		"missing":  filepath.Join(dir, "nope"),
		"unset":    "",
	})
	if err != nil {
		t.Fatal(err)
	}
	if usage["database"] != 8 {
		t.Errorf("database = %d, want 8", usage["database"])
	}
	if usage["models"] != 7 {
		t.Errorf("models = %d, want 7", usage["models"])
	}
	if usage["missing"] != 0 || usage["unset"] != 0 {
		t.Errorf("missing/unset = %d/%d, want 0", usage["missing"], usage["unset"])
	}
	if usage.Total() != 15 {
		t.Errorf("Total() = %d, want 15", usage.Total())
	}
}
