// Package catalog loads disease records from YAML, Excel, or PDF files into a storage.Catalog.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/medmatch/internal/models"
	"github.com/hyperjump/medmatch/internal/storage"
)

// ErrUnsupportedFormat is returned for files that are not .yaml, .yml, .xlsx or .pdf.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Result summarizes an import.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	// Unchanged counts records whose description already matched.
	Unchanged int `json:"unchanged"`
}

type yamlFile struct {
	Diseases []models.DiseaseInput `yaml:"diseases"`
}

// Read parses disease records from path, choosing the parser by extension.
// A directory is read file by file in name order, skipping unsupported files.
func Read(path string) ([]models.DiseaseInput, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return readDir(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return readYAML(path)
	case ".xlsx":
		return readExcel(path)
	case ".pdf":
		return readPDF(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func readDir(dir string) ([]models.DiseaseInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	var out []models.DiseaseInput
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		records, err := Read(filepath.Join(dir, e.Name()))
		if errors.Is(err, ErrUnsupportedFormat) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, records...)
	}
	return out, nil
}

func readYAML(path string) ([]models.DiseaseInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return f.Diseases, nil
}

// readExcel reads the first sheet. The header row must contain "name" and may
// contain "description"; other columns are ignored.
func readExcel(path string) ([]models.DiseaseInput, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	nameCol, descCol := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name":
			nameCol = i
		case "description":
			descCol = i
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("sheet %q has no name column", sheets[0])
	}

	var out []models.DiseaseInput
	for _, row := range rows[1:] {
		in := models.DiseaseInput{Name: cell(row, nameCol), Description: cell(row, descCol)}
		if strings.TrimSpace(in.Name) == "" {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// readPDF treats the file as a single disease: the file stem is the name and the
// page text, one phrase per line, is the description.
func readPDF(path string) ([]models.DiseaseInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	text, err := extractPDF(content)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	return []models.DiseaseInput{{Name: name, Description: text}}, nil
}

func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(strings.ReplaceAll(text, "\r\n", "\n"))
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Import reads path and upserts every record by name: new names are created,
// existing ones get their description replaced.
func Import(ctx context.Context, cat storage.Catalog, path string) (*Result, error) {
	records, err := Read(path)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for _, in := range records {
		if err := in.Validate(); err != nil {
			return res, err
		}
		existing, err := cat.GetDiseaseByName(ctx, in.Name)
		switch {
		case errors.Is(err, storage.ErrDiseaseNotFound):
			if _, err := cat.CreateDisease(ctx, in); err != nil {
				return res, fmt.Errorf("create %s: %w", in.Name, err)
			}
			res.Created++
		case err != nil:
			return res, err
		case existing.Description == in.Description:
			res.Unchanged++
		default:
			if err := cat.UpdateDescription(ctx, existing.ID, in.Description); err != nil {
				return res, fmt.Errorf("update %s: %w", in.Name, err)
			}
			res.Updated++
		}
	}
	return res, nil
}
