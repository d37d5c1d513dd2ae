// Package storage provides SQLite implementation of the CatalogStore interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/osusume/internal/models"
)

// SQLiteCatalog implements CatalogStore using SQLite.
type SQLiteCatalog struct {
	db       *sql.DB
	readOnly bool
}

// NewSQLiteCatalog opens or creates a SQLite catalog at dbPath and initializes the schema.
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

	// Single-file database; OpenSQLiteCatalog reads it with mode=ro.
	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

// OpenSQLiteCatalog opens an existing catalog database read-only. The schema is not created;
// reads against a database without catalog tables return ErrNoSchema.
func OpenSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteCatalog{db: db, readOnly: true}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		position INTEGER PRIMARY KEY,
		id INTEGER NOT NULL,
		title TEXT NOT NULL,
		extra TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_id ON items(id);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion))
	return err
}

func (s *SQLiteCatalog) hasSchema(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('meta', 'items')`,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 2, nil
}

// SchemaVersion returns the schema_version recorded in the meta table.
func (s *SQLiteCatalog) SchemaVersion(ctx context.Context) (int, error) {
	ok, err := s.hasSchema(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNoSchema
	}
	var value string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("schema_version not recorded")
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid schema_version %q", value)
	}
	return v, nil
}

// ReadItems returns all items ordered by position.
func (s *SQLiteCatalog) ReadItems(ctx context.Context) ([]models.Item, error) {
	ok, err := s.hasSchema(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSchema
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, id, title, extra FROM items ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var (
			position  int
			item      models.Item
			extraJSON sql.NullString
		)
		if err := rows.Scan(&position, &item.ID, &item.Title, &extraJSON); err != nil {
			return nil, err
		}
		if position != len(items) {
			return nil, fmt.Errorf("item positions are not contiguous: got %d, want %d", position, len(items))
		}
		if extraJSON.Valid && extraJSON.String != "" {
			if err := json.Unmarshal([]byte(extraJSON.String), &item.Extra); err != nil {
				return nil, fmt.Errorf("failed to unmarshal extra for item %d: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// WriteItems replaces the items table with items in a single transaction.
func (s *SQLiteCatalog) WriteItems(ctx context.Context, items []models.Item) error {
	if s.readOnly {
		return fmt.Errorf("catalog database is read-only")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (position, id, title, extra) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, item := range items {
		var extra sql.NullString
		if len(item.Extra) > 0 {
			b, err := json.Marshal(item.Extra)
			if err != nil {
				return fmt.Errorf("failed to marshal extra: %w", err)
			}
			extra = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, i, item.ID, item.Title, extra); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountItems returns the number of rows in the items table.
func (s *SQLiteCatalog) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}
