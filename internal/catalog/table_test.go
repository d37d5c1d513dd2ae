package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/storage"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadTable_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movies.json", `{
		"version": 1,
		"columns": {
			"movie_id": [19995, "285", 206647.0],
			"title": ["Avatar", "Pirates of the Caribbean: At World's End", "Spectre"],
			"tags": ["space", null, "spy"]
		}
	}`)
	items, err := ReadTable(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].ID != 19995 || items[1].ID != 285 || items[2].ID != 206647 {
		t.Errorf("ids: got %d %d %d", items[0].ID, items[1].ID, items[2].ID)
	}
	if items[2].Title != "Spectre" || items[2].Extra["tags"] != "spy" {
		t.Errorf("item 2: got %+v", items[2])
	}
	if items[1].Extra != nil {
		t.Errorf("null extra values should be dropped, got %v", items[1].Extra)
	}
}

func TestReadTable_JSONErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"version": 1, "columns": `},
		{"no version", `{"columns": {"id": [1], "title": ["A"]}}`},
		{"future version", `{"version": 2, "columns": {"id": [1], "title": ["A"]}}`},
		{"missing title", `{"version": 1, "columns": {"id": [1, 2]}}`},
		{"missing id", `{"version": 1, "columns": {"title": ["A"]}}`},
		{"ragged columns", `{"version": 1, "columns": {"id": [1, 2], "title": ["A"]}}`},
		{"non-integer id", `{"version": 1, "columns": {"id": ["x"], "title": ["A"]}}`},
		{"null title", `{"version": 1, "columns": {"id": [1], "title": [null]}}`},
		{"nested value", `{"version": 1, "columns": {"id": [1], "title": [["A"]]}}`},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "t"+string(rune('a'+i))+".json", tt.content)
			_, err := ReadTable(context.Background(), path)
			if !errors.Is(err, ErrSchema) {
				t.Errorf("got %v, want ErrSchema", err)
			}
		})
	}
}

func TestReadTable_CSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "movies.csv",
		"movie_id,title,overview\n19995,Avatar,\"In the 22nd century, a paraplegic Marine\"\n285,Spectre\n")
	items, err := ReadTable(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Extra["overview"] != "In the 22nd century, a paraplegic Marine" {
		t.Errorf("overview: got %q", items[0].Extra["overview"])
	}
	if items[1].ID != 285 || items[1].Title != "Spectre" {
		t.Errorf("short row: got %+v", items[1])
	}

	noTitle := writeFile(t, t.TempDir(), "bad.csv", "id,name\n1,A\n")
	if _, err := ReadTable(context.Background(), noTitle); !errors.Is(err, ErrSchema) {
		t.Errorf("csv without title: got %v, want ErrSchema", err)
	}
	empty := writeFile(t, t.TempDir(), "empty.csv", "")
	if _, err := ReadTable(context.Background(), empty); !errors.Is(err, ErrSchema) {
		t.Errorf("empty csv: got %v, want ErrSchema", err)
	}
}

func TestReadTable_CSVWithByteOrderMark(t *testing.T) {
	path := writeFile(t, t.TempDir(), "movies.csv", "\ufeffmovie_id,title\n603,The Matrix\n")
	items, err := ReadTable(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(items) != 1 || items[0].ID != 603 || items[0].Title != "The Matrix" {
		t.Errorf("got %+v", items)
	}
}

func TestReadTable_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.xlsx")
	f := excelize.NewFile()
	_ = f.SetSheetRow("Sheet1", "A1", &[]interface{}{"id", "title", "genres"})
	_ = f.SetSheetRow("Sheet1", "A2", &[]interface{}{1, "Inception", "Sci-Fi"})
	_ = f.SetSheetRow("Sheet1", "A3", &[]interface{}{2, "Heat", "Crime"})
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	items, err := ReadTable(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Title != "Inception" || items[1].ID != 2 {
		t.Errorf("got %+v", items)
	}
	if items[1].Extra["genres"] != "Crime" {
		t.Errorf("genres: got %v", items[1].Extra)
	}
}

func TestReadTable_UnknownFormatAndMissing(t *testing.T) {
	path := writeFile(t, t.TempDir(), "movies.pkl", "not a table")
	if _, err := ReadTable(context.Background(), path); !errors.Is(err, ErrSchema) {
		t.Errorf("unknown extension: got %v, want ErrSchema", err)
	}
	if _, err := ReadTable(context.Background(), filepath.Join(t.TempDir(), "nope.json")); !errors.Is(err, ErrMissingFile) {
		t.Errorf("missing: got %v, want ErrMissingFile", err)
	}
}

func TestWriteTable_RoundTrip(t *testing.T) {
	items := []models.Item{
		{ID: 10, Title: "Alien", Extra: map[string]string{"tags": "space horror"}},
		{ID: 11, Title: "Aliens"},
	}
	for _, name := range []string{"movies.json", "movies.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			ctx := context.Background()
			if err := WriteTable(ctx, path, items); err != nil {
				t.Fatal(err)
			}
			got, err := ReadTable(ctx, path)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 || got[0].Title != "Alien" || got[1].ID != 11 {
				t.Fatalf("got %+v", got)
			}
			if got[0].Extra["tags"] != "space horror" {
				t.Errorf("extra: got %v", got[0].Extra)
			}
		})
	}
	if err := WriteTable(context.Background(), filepath.Join(t.TempDir(), "movies.csv"), items); err == nil {
		t.Error("expected error for unsupported output format")
	}
}

type stubStore struct {
	version int
	items   []models.Item
	count   int64
}

func (s *stubStore) ReadItems(context.Context) ([]models.Item, error) { return s.items, nil }

func (s *stubStore) WriteItems(_ context.Context, items []models.Item) error {
	s.items = items
	return nil
}

func (s *stubStore) SchemaVersion(context.Context) (int, error) { return s.version, nil }

func (s *stubStore) CountItems(context.Context) (int64, error) { return s.count, nil }

func (s *stubStore) Close() error { return nil }

func TestReadStoreItems_Version(t *testing.T) {
	items := []models.Item{{ID: 1, Title: "Heat"}}
	got, err := readStoreItems(context.Background(), &stubStore{version: storage.SchemaVersion, items: items})
	if err != nil || len(got) != 1 {
		t.Fatalf("readStoreItems: %v, %v", got, err)
	}
	_, err = readStoreItems(context.Background(), &stubStore{version: storage.SchemaVersion + 1, items: items})
	if !errors.Is(err, ErrSchema) {
		t.Errorf("newer table version: got %v, want ErrSchema", err)
	}
}

func TestWriteStoreItems_CountMismatch(t *testing.T) {
	items := []models.Item{{ID: 1, Title: "Heat"}, {ID: 2, Title: "Alien"}}
	if err := writeStoreItems(context.Background(), &stubStore{count: 2}, items); err != nil {
		t.Errorf("matching count: %v", err)
	}
	if err := writeStoreItems(context.Background(), &stubStore{count: 1}, items); err == nil {
		t.Error("expected error when the table holds fewer rows than written")
	}
}
