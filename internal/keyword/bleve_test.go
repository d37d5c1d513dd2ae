package keyword

import (
	"context"
	"testing"
)

var sampleTitles = []string{
	"The Dark Knight",
	"Inception",
	"The Dark Knight Rises",
	"Interstellar",
	"Batman Begins",
}

func newTestIndex(t *testing.T) *TitleIndex {
	t.Helper()
	idx, err := NewTitleIndex(sampleTitles)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestTitleIndex_DocCount(t *testing.T) {
	idx := newTestIndex(t)
	n, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != uint64(len(sampleTitles)) {
		t.Errorf("DocCount: got %d, want %d", n, len(sampleTitles))
	}
}

func TestTitleIndex_Search(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Search(context.Background(), "knight", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2: %+v", len(hits), hits)
	}
	for _, h := range hits {
		if h.Position != 0 && h.Position != 2 {
			t.Errorf("unexpected hit position %d", h.Position)
		}
	}

	hits, err = idx.Search(context.Background(), "INCEPTION", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Position != 1 {
		t.Errorf("case-insensitive search: got %+v", hits)
	}
}

func TestTitleIndex_SearchFuzzy(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Search(context.Background(), "intersteller", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("exact search for misspelling should not match, got %+v", hits)
	}
	hits, err = idx.Search(context.Background(), "intersteller", 10, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].Position != 3 {
		t.Errorf("fuzzy search: got %+v, want Interstellar first", hits)
	}
}

func TestTitleIndex_SearchLimitAndEmpty(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Search(context.Background(), "the dark knight", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("limit 1: got %d hits", len(hits))
	}
	hits, err = idx.Search(context.Background(), "   ", 10, false)
	if err != nil || hits != nil {
		t.Errorf("empty query: got %v, %v", hits, err)
	}
	hits, err = idx.Search(context.Background(), "knight", 0, false)
	if err != nil || hits != nil {
		t.Errorf("zero limit: got %v, %v", hits, err)
	}
}

func TestTokenizeQuery(t *testing.T) {
	got := tokenizeQuery("  The Dark, Knight!  ")
	want := []string{"the", "dark", "knight"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("term %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
