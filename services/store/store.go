// Package store persists resolved records to sqlite, one table per catalog.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/spf13/afero"

	"anisync/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var (
	ErrInvalidType   = errors.New("invalid media type")
	ErrNoConnectors  = errors.New("record has no connectors")
	ErrEmptyRecordID = errors.New("record has no id")
)

// Store wraps the sqlite database holding resolved records.
type Store struct {
	db        *sql.DB
	fs        afero.Fs
	exportDir string
}

// Open opens (creating if needed) the sqlite database at path and applies
// pending migrations. Export dumps are written below exportDir.
func Open(path, exportDir string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db, fs: afero.NewOsFs(), exportDir: exportDir}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SetFs swaps the filesystem used for export dumps. Tests use an in-memory
// filesystem.
func (s *Store) SetFs(fs afero.Fs) { s.fs = fs }

func tableFor(t models.MediaType) (string, error) {
	switch t {
	case models.TypeAnime:
		return "anime", nil
	case models.TypeManga:
		return "manga", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
}

// Get returns the stored record for an ID, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string, t models.MediaType) (*models.Record, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, media, connectors FROM %s WHERE id = ?`, table), id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return record, nil
}

// likeEscaper neutralizes LIKE metacharacters so a user query only ever
// matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search returns stored records whose title contains the query,
// case-insensitively. An empty result is (nil, nil).
func (s *Store) Search(ctx context.Context, query string, t models.MediaType) ([]models.Record, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, media, connectors FROM %s WHERE title LIKE ? ESCAPE '\' ORDER BY id`, table),
		"%"+likeEscaper.Replace(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", table, err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// Insert persists records, skipping IDs already present. Records must carry
// at least one connector; insertion is atomic per record via INSERT OR
// IGNORE, so two concurrent resolutions of the same ID cannot interleave a
// partial write.
func (s *Store) Insert(ctx context.Context, records []models.Record, t models.MediaType) error {
	table, err := tableFor(t)
	if err != nil {
		return err
	}

	stmt, err := s.db.PrepareContext(ctx,
		fmt.Sprintf(`INSERT OR IGNORE INTO %s (id, title, media, connectors) VALUES (?, ?, ?, ?)`, table))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	for _, record := range records {
		if record.ID == "" {
			return ErrEmptyRecordID
		}
		if len(record.Connectors) == 0 {
			return fmt.Errorf("%w: id %s", ErrNoConnectors, record.ID)
		}
		mediaJSON, err := json.Marshal(record.Media)
		if err != nil {
			return fmt.Errorf("marshal media %s: %w", record.ID, err)
		}
		connectorsJSON, err := json.Marshal(record.Connectors)
		if err != nil {
			return fmt.Errorf("marshal connectors %s: %w", record.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, record.ID, record.Media.Title.Preferred(), mediaJSON, connectorsJSON); err != nil {
			return fmt.Errorf("insert %s/%s: %w", table, record.ID, err)
		}
	}
	return nil
}

// Export dumps every record of a catalog to a timestamped JSON file and
// returns its path.
func (s *Store) Export(ctx context.Context, t models.MediaType) (string, error) {
	table, err := tableFor(t)
	if err != nil {
		return "", err
	}

	records, err := s.Search(ctx, "", t)
	if err != nil {
		return "", err
	}
	if records == nil {
		records = []models.Record{}
	}

	if err := s.fs.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure export dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", table, time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(s.exportDir, name)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		id             string
		mediaJSON      []byte
		connectorsJSON []byte
	)
	if err := row.Scan(&id, &mediaJSON, &connectorsJSON); err != nil {
		return nil, err
	}

	var record models.Record
	record.ID = id
	if err := json.Unmarshal(mediaJSON, &record.Media); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	if err := json.Unmarshal(connectorsJSON, &record.Connectors); err != nil {
		return nil, fmt.Errorf("decode connectors: %w", err)
	}
	return &record, nil
}
