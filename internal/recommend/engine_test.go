package recommend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/keyword"
	"github.com/hyperjump/osusume/internal/models"
)

func writeCatalogFiles(t *testing.T, dir string, titles []string, rows [][]float64) Paths {
	t.Helper()
	items := make([]models.Item, len(titles))
	for i, title := range titles {
		items[i] = models.Item{ID: 100 + i, Title: title}
	}
	p := Paths{
		Catalog: filepath.Join(dir, "movies.json"),
		Matrix:  filepath.Join(dir, "similarity.bin"),
	}
	if err := catalog.WriteTable(context.Background(), p.Catalog, items); err != nil {
		t.Fatal(err)
	}
	if err := catalog.WriteMatrix(p.Matrix, rows); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestEngine_ReloadAndRecommend(t *testing.T) {
	dir := t.TempDir()
	paths := writeCatalogFiles(t, dir, []string{"Inception", "Interstellar", "Heat"}, [][]float64{
		{1, 0.9, 0.1},
		{0.9, 1, 0.2},
		{0.1, 0.2, 1},
	})
	e := NewEngine(paths, 5, nil)
	defer e.Close()

	if _, _, err := e.Recommend("Inception"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("before load: got %v, want ErrUnavailable", err)
	}
	if err := e.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	item, recs, err := e.Recommend("inception")
	if err != nil {
		t.Fatal(err)
	}
	if item.ID != 100 {
		t.Errorf("item: got %+v", item)
	}
	if len(recs) != 2 || recs[0].Item.Title != "Interstellar" || recs[1].Item.Title != "Heat" {
		t.Errorf("recs: got %+v", recs)
	}
	if _, _, err := e.Recommend("Titanic"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown: got %v, want ErrNotFound", err)
	}

	st := e.Stats()
	if !st.Loaded || st.Items != 3 || st.MatrixDim != 3 || st.LastError != "" {
		t.Errorf("stats: %+v", st)
	}
}

func TestEngine_FailedReloadKeepsSnapshot(t *testing.T) {
	dir := t.TempDir()
	paths := writeCatalogFiles(t, dir, []string{"A", "B"}, [][]float64{{1, 0.5}, {0.5, 1}})
	e := NewEngine(paths, 5, nil)
	defer e.Close()
	if err := e.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Replace the matrix with one of the wrong size.
	if err := catalog.WriteMatrix(paths.Matrix, [][]float64{{1}}); err != nil {
		t.Fatal(err)
	}
	err := e.Reload(context.Background())
	if !errors.Is(err, catalog.ErrSchema) {
		t.Fatalf("reload: got %v, want ErrSchema", err)
	}
	if _, recs, err := e.Recommend("A"); err != nil || len(recs) != 1 {
		t.Errorf("previous snapshot should keep serving: %v %v", recs, err)
	}
	if st := e.Stats(); st.LastError == "" || !st.Loaded {
		t.Errorf("stats after failed reload: %+v", st)
	}

	// A good reload clears the error.
	_ = os.Remove(paths.Matrix)
	if err := catalog.WriteMatrix(paths.Matrix, [][]float64{{1, 0.1}, {0.1, 1}}); err != nil {
		t.Fatal(err)
	}
	if err := e.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, recs, _ := e.Recommend("A"); len(recs) != 1 || recs[0].Score != 0.1 {
		t.Errorf("after reload: %+v", recs)
	}
	if st := e.Stats(); st.LastError != "" {
		t.Errorf("LastError should be cleared, got %q", st.LastError)
	}
}

func TestEngine_MissingFiles(t *testing.T) {
	e := NewEngine(Paths{Catalog: "/nonexistent/movies.json", Matrix: "/nonexistent/similarity.bin"}, 5, nil)
	err := e.Reload(context.Background())
	if !errors.Is(err, catalog.ErrMissingFile) {
		t.Errorf("got %v, want ErrMissingFile", err)
	}
	_, _, err = e.Recommend("A")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
	if _, err := e.Titles(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Titles: got %v, want ErrUnavailable", err)
	}
}

func TestEngine_TitlesSearchSuggest(t *testing.T) {
	c := newCatalog(t, []string{"The Dark Knight", "Inception", "Interstellar"}, [][]float64{
		{1, 0.5, 0.4},
		{0.5, 1, 0.8},
		{0.4, 0.8, 1},
	})
	e, err := NewEngineFromCatalog(c, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	titles, err := e.Titles()
	if err != nil {
		t.Fatal(err)
	}
	if len(titles) != 3 || titles[2].Title != "Interstellar" || titles[2].Position != 2 || titles[2].ID != 3 {
		t.Errorf("Titles: %+v", titles)
	}

	hits, err := e.SearchTitles(context.Background(), "knight", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Title != "The Dark Knight" {
		t.Errorf("SearchTitles: %+v", hits)
	}

	sugg := e.Suggest(context.Background(), "Intersteller")
	if len(sugg) == 0 || sugg[0] != "Interstellar" {
		t.Errorf("Suggest: %v", sugg)
	}

	item, ok, err := e.ItemByID(2)
	if err != nil || !ok || item.Title != "Inception" {
		t.Errorf("ItemByID(2) = %+v %v %v", item, ok, err)
	}
	if _, ok, _ := e.ItemByID(99); ok {
		t.Error("ItemByID(99) should not be found")
	}
}

type countingSearcher struct {
	count uint64
	err   error
}

func (s countingSearcher) Search(context.Context, string, int, bool) ([]keyword.TitleHit, error) {
	return nil, nil
}

func (s countingSearcher) DocCount() (uint64, error) { return s.count, s.err }

func (s countingSearcher) Close() error { return nil }

func TestCheckIndexed(t *testing.T) {
	tests := []struct {
		name    string
		titles  keyword.TitleSearcher
		n       int
		wantErr bool
	}{
		{"complete", countingSearcher{count: 3}, 3, false},
		{"empty catalog", countingSearcher{}, 0, false},
		{"missing titles", countingSearcher{count: 2}, 3, true},
		{"count error", countingSearcher{err: errors.New("closed")}, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkIndexed(tt.titles, tt.n)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkIndexed() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
