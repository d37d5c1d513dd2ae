package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/storage"
)

// TableVersion is the only JSON catalog table version this build reads and writes.
const TableVersion = 1

var (
	idColumns   = []string{"id", "movie_id"}
	titleColumn = "title"
)

// jsonTable is the column-oriented catalog table: every column holds one value per item.
type jsonTable struct {
	Version int                          `json:"version"`
	Columns map[string][]json.RawMessage `json:"columns"`
}

// ReadTable reads a catalog table; the format is chosen by file extension
// (.json, .csv, .xlsx, .db or .sqlite).
func ReadTable(ctx context.Context, path string) ([]models.Item, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: catalog table %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("stat catalog table: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return readJSONTable(path)
	case ".csv":
		return readCSVTable(path)
	case ".xlsx":
		return readXLSXTable(path)
	case ".db", ".sqlite", ".sqlite3":
		return readSQLiteTable(ctx, path)
	default:
		return nil, fmt.Errorf("%w: unsupported catalog table format %q", ErrSchema, filepath.Ext(path))
	}
}

// WriteTable writes items as a .json or SQLite (.db, .sqlite) catalog table.
func WriteTable(ctx context.Context, path string, items []models.Item) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return writeJSONTable(path, items)
	case ".db", ".sqlite", ".sqlite3":
		store, err := storage.NewSQLiteCatalog(path)
		if err != nil {
			return err
		}
		if err := writeStoreItems(ctx, store, items); err != nil {
			_ = store.Close()
			return err
		}
		return store.Close()
	default:
		return fmt.Errorf("unsupported output table format %q (use .json or .db)", filepath.Ext(path))
	}
}

func readJSONTable(path string) ([]models.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog table: %w", err)
	}
	var table jsonTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: parse catalog table: %v", ErrSchema, err)
	}
	if table.Version != TableVersion {
		return nil, fmt.Errorf("%w: unsupported catalog table version %d", ErrSchema, table.Version)
	}

	names := make([]string, 0, len(table.Columns))
	for name := range table.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	n := -1
	for _, name := range names {
		if n >= 0 && len(table.Columns[name]) != n {
			return nil, fmt.Errorf("%w: column %q has %d values, want %d", ErrSchema, name, len(table.Columns[name]), n)
		}
		n = len(table.Columns[name])
	}

	header := make([]string, len(names))
	rows := make([][]string, max(n, 0))
	for c, name := range names {
		header[c] = name
		for r, raw := range table.Columns[name] {
			if rows[r] == nil {
				rows[r] = make([]string, len(names))
			}
			cell, err := jsonCell(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: column %q row %d: %v", ErrSchema, name, r, err)
			}
			rows[r][c] = cell
		}
	}
	return itemsFromRows(header, rows)
}

// jsonCell renders a scalar JSON value as text. null becomes "".
func jsonCell(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return "", nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case trimmed[0] == '{' || trimmed[0] == '[':
		return "", errors.New("nested values are not supported")
	default:
		return string(trimmed), nil
	}
}

func writeJSONTable(path string, items []models.Item) error {
	table := jsonTable{Version: TableVersion, Columns: map[string][]json.RawMessage{}}
	extraNames := map[string]bool{}
	for _, item := range items {
		for k := range item.Extra {
			extraNames[k] = true
		}
	}
	ids := make([]json.RawMessage, len(items))
	titles := make([]json.RawMessage, len(items))
	for i, item := range items {
		ids[i] = json.RawMessage(strconv.Itoa(item.ID))
		b, err := json.Marshal(item.Title)
		if err != nil {
			return err
		}
		titles[i] = b
	}
	table.Columns["id"] = ids
	table.Columns[titleColumn] = titles
	for name := range extraNames {
		col := make([]json.RawMessage, len(items))
		for i, item := range items {
			v, ok := item.Extra[name]
			if !ok {
				col[i] = json.RawMessage("null")
				continue
			}
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			col[i] = b
		}
		table.Columns[name] = col
	}
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("marshal catalog table: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func readCSVTable(path string) ([]models.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog table: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var header []string
	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse csv: %v", ErrSchema, err)
		}
		if header == nil {
			header = record
			continue
		}
		rows = append(rows, record)
	}
	if header == nil {
		return nil, fmt.Errorf("%w: csv catalog table has no header", ErrSchema)
	}
	return itemsFromRows(header, rows)
}

func readXLSXTable(path string) ([]models.Item, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open Excel: %v", ErrSchema, err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrSchema)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: get rows for sheet %q: %v", ErrSchema, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no header", ErrSchema, sheets[0])
	}
	return itemsFromRows(rows[0], rows[1:])
}

func readSQLiteTable(ctx context.Context, path string) ([]models.Item, error) {
	store, err := storage.OpenSQLiteCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	defer store.Close()
	return readStoreItems(ctx, store)
}

// readStoreItems reads all items from a store after checking its table version.
func readStoreItems(ctx context.Context, store storage.CatalogStore) ([]models.Item, error) {
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if version != storage.SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported catalog table version %d", ErrSchema, version)
	}
	items, err := store.ReadItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return items, nil
}

// writeStoreItems replaces the store's items and checks every row was written.
func writeStoreItems(ctx context.Context, store storage.CatalogStore, items []models.Item) error {
	if err := store.WriteItems(ctx, items); err != nil {
		return fmt.Errorf("write catalog table: %w", err)
	}
	n, err := store.CountItems(ctx)
	if err != nil {
		return fmt.Errorf("count catalog rows: %w", err)
	}
	if n != int64(len(items)) {
		return fmt.Errorf("catalog table has %d rows after write, want %d", n, len(items))
	}
	return nil
}

// itemsFromRows maps a header and its records to items. The header must name an id
// column (id or movie_id) and a title column; other columns go to Item.Extra.
func itemsFromRows(header []string, rows [][]string) ([]models.Item, error) {
	idCol, titleCol := -1, -1
	names := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			// Spreadsheet exports often start with a UTF-8 byte order mark.
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.ToLower(strings.TrimSpace(h))
		names[i] = name
		if name == titleColumn && titleCol < 0 {
			titleCol = i
		}
	}
	for _, want := range idColumns {
		for i, name := range names {
			if name == want && idCol < 0 {
				idCol = i
			}
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("%w: catalog table has no id column (want one of %v)", ErrSchema, idColumns)
	}
	if titleCol < 0 {
		return nil, fmt.Errorf("%w: catalog table has no %q column", ErrSchema, titleColumn)
	}

	items := make([]models.Item, 0, len(rows))
	for r, row := range rows {
		cell := func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}
		id, err := parseID(cell(idCol))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrSchema, r, err)
		}
		title := cell(titleCol)
		if title == "" {
			return nil, fmt.Errorf("%w: row %d (id %d) has no title", ErrSchema, r, id)
		}
		item := models.Item{ID: id, Title: title}
		for i, name := range names {
			if i == idCol || i == titleCol || name == "" {
				continue
			}
			if v := cell(i); v != "" {
				if item.Extra == nil {
					item.Extra = make(map[string]string)
				}
				item.Extra[name] = v
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// parseID accepts integer text, including integral floats such as "19995.0".
func parseID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing id")
	}
	if id, err := strconv.Atoi(s); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("id %q is not an integer", s)
	}
	return int(f), nil
}
