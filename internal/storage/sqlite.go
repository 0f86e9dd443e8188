package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/medmatch/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS diseases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_diseases_name ON diseases(name);
	`
	_, err := db.Exec(schema)
	return err
}

const diseaseColumns = `id, name, description, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDisease(row scanner) (*models.Disease, error) {
	var d models.Disease
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDiseases returns all diseases ordered by id.
func (s *SQLiteCatalog) ListDiseases(ctx context.Context) ([]models.Disease, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+diseaseColumns+` FROM diseases ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Disease
	for rows.Next() {
		d, err := scanDisease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetDisease returns a disease by id.
func (s *SQLiteCatalog) GetDisease(ctx context.Context, id int64) (*models.Disease, error) {
	d, err := scanDisease(s.db.QueryRowContext(ctx,
		`SELECT `+diseaseColumns+` FROM diseases WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrDiseaseNotFound, id)
	}
	return d, err
}

// GetDiseaseByName returns a disease by its unique name.
func (s *SQLiteCatalog) GetDiseaseByName(ctx context.Context, name string) (*models.Disease, error) {
	d, err := scanDisease(s.db.QueryRowContext(ctx,
		`SELECT `+diseaseColumns+` FROM diseases WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDiseaseNotFound, name)
	}
	return d, err
}

// CreateDisease inserts a disease. A duplicate name returns ErrDiseaseExists.
func (s *SQLiteCatalog) CreateDisease(ctx context.Context, in models.DiseaseInput) (*models.Disease, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO diseases (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		in.Name, in.Description, now, now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: %s", ErrDiseaseExists, in.Name)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Disease{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateDescription replaces a disease's description.
func (s *SQLiteCatalog) UpdateDescription(ctx context.Context, id int64, description string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE diseases SET description = ?, updated_at = ? WHERE id = ?`,
		description, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrDiseaseNotFound, id)
	}
	return nil
}

// DeleteDisease removes a disease by id.
func (s *SQLiteCatalog) DeleteDisease(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM diseases WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrDiseaseNotFound, id)
	}
	return nil
}

// CountDiseases returns the total number of diseases.
func (s *SQLiteCatalog) CountDiseases(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diseases`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}
