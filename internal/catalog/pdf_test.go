package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// minimalPDF builds a one-page PDF showing each line with Helvetica.
func minimalPDF(lines []string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 14 TL 72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", line)
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func writePDF(t *testing.T, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, minimalPDF(lines), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRead_pdf(t *testing.T) {
	path := writePDF(t, "Pleural_effusion.pdf", []string{"Blunted costophrenic angle", "Meniscus sign"})

	records, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Name != "Pleural effusion" {
		t.Errorf("Name = %q, want %q", records[0].Name, "Pleural effusion")
	}
	for _, want := range []string{"Blunted costophrenic angle", "Meniscus sign"} {
		if !strings.Contains(records[0].Description, want) {
			t.Errorf("Description %q missing %q", records[0].Description, want)
		}
	}
}

func TestImport_pdf(t *testing.T) {
	path := writePDF(t, "Pneumothorax.pdf", []string{"Visceral pleural line", "Absent lung markings"})
	cat := newCatalog(t)
	ctx := context.Background()

	res, err := Import(ctx, cat, path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 {
		t.Errorf("import = %+v, want one created", res)
	}
	d, err := cat.GetDiseaseByName(ctx, "Pneumothorax")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(d.Description, "Visceral pleural line") {
		t.Errorf("Description = %q", d.Description)
	}

	res, err = Import(ctx, cat, path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Unchanged != 1 {
		t.Errorf("second import = %+v, want one unchanged", res)
	}
}

func TestRead_corruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\nnot really"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("expected error for corrupt PDF")
	}
}

func TestImport_directoryOfPDFs(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]string{
		"Pneumothorax.pdf":     {"Visceral pleural line"},
		"Pleural_effusion.pdf": {"Blunted costophrenic angle", "Meniscus sign"},
		"notes.txt":            {"ignored"},
	}
	for name, lines := range files {
		if err := os.WriteFile(filepath.Join(dir, name), minimalPDF(lines), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cat := newCatalog(t)
	ctx := context.Background()

	res, err := Import(ctx, cat, dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 2 {
		t.Errorf("import = %+v, want two created", res)
	}
	for _, name := range []string{"Pneumothorax", "Pleural effusion"} {
		if _, err := cat.GetDiseaseByName(ctx, name); err != nil {
			t.Errorf("GetDiseaseByName(%q): %v", name, err)
		}
	}
}
