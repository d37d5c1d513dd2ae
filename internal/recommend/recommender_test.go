package recommend

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/models"
)

func newCatalog(t *testing.T, titles []string, rows [][]float64) *catalog.Catalog {
	t.Helper()
	items := make([]models.Item, len(titles))
	for i, title := range titles {
		items[i] = models.Item{ID: i + 1, Title: title}
	}
	m, err := catalog.NewMatrix(rows)
	if err != nil {
		t.Fatal(err)
	}
	c, err := catalog.New(items, m)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// exampleCatalog is the six-item catalog A..F; only row A carries meaningful scores.
func exampleCatalog(t *testing.T) *catalog.Catalog {
	rows := make([][]float64, 6)
	rows[0] = []float64{1.0, 0.9, 0.9, 0.1, 0.5, 0.2}
	for i := 1; i < 6; i++ {
		rows[i] = make([]float64, 6)
		rows[i][i] = 1
	}
	return newCatalog(t, []string{"A", "B", "C", "D", "E", "F"}, rows)
}

func titlesOf(recs []models.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Item.Title
	}
	return out
}

func TestRecommend_Example(t *testing.T) {
	r := NewRecommender(exampleCatalog(t), 0)
	recs, err := r.Recommend("A")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"B", "C", "E", "F", "D"}
	if got := titlesOf(recs); !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend(A) = %v, want %v", got, want)
	}
	for i, rec := range recs {
		if rec.Rank != i+1 {
			t.Errorf("rank %d: got %d", i, rec.Rank)
		}
	}
	if recs[0].Score != 0.9 || recs[0].Item.ID != 2 {
		t.Errorf("first result: got %+v", recs[0])
	}
}

func TestRecommend_CaseInsensitive(t *testing.T) {
	c := newCatalog(t, []string{"Inception", "Heat", "Alien"}, [][]float64{
		{1, 0.2, 0.8},
		{0.2, 1, 0.1},
		{0.8, 0.1, 1},
	})
	r := NewRecommender(c, 5)
	a, err := r.Recommend("Inception")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Recommend("inception")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Recommend(Inception) = %v, Recommend(inception) = %v", a, b)
	}
	if _, err := r.Recommend("INCEPTION"); err != nil {
		t.Errorf("upper case: %v", err)
	}
}

func TestRecommend_NotFound(t *testing.T) {
	r := NewRecommender(exampleCatalog(t), 5)
	for _, q := range []string{"Z", "z", "", " A"} {
		if _, err := r.Recommend(q); !errors.Is(err, ErrNotFound) {
			t.Errorf("Recommend(%q): got %v, want ErrNotFound", q, err)
		}
	}
}

func TestRecommend_ExcludesSelfAndCount(t *testing.T) {
	for n := 1; n <= 8; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			titles := make([]string, n)
			rows := make([][]float64, n)
			for i := range titles {
				titles[i] = fmt.Sprintf("Movie %d", i)
				rows[i] = make([]float64, n)
				for j := range rows[i] {
					// Self is not the top score on purpose.
					rows[i][j] = float64((i*7+j*3)%5) / 5
				}
				rows[i][i] = 0
			}
			r := NewRecommender(newCatalog(t, titles, rows), DefaultLimit)
			for i, title := range titles {
				recs, err := r.Recommend(title)
				if err != nil {
					t.Fatal(err)
				}
				if len(recs) != min(DefaultLimit, n-1) {
					t.Errorf("%s: got %d results, want %d", title, len(recs), min(DefaultLimit, n-1))
				}
				for k, rec := range recs {
					if rec.Item.ID == i+1 {
						t.Errorf("%s: result includes the queried item", title)
					}
					if k > 0 && rec.Score > recs[k-1].Score {
						t.Errorf("%s: results not sorted descending at %d", title, k)
					}
				}
			}
		})
	}
}

func TestRecommend_StableTies(t *testing.T) {
	rows := [][]float64{
		{1, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
	}
	for i := 1; i < 7; i++ {
		row := make([]float64, 7)
		row[i] = 1
		rows = append(rows, row)
	}
	c := newCatalog(t, []string{"Q", "T1", "T2", "T3", "T4", "T5", "T6"}, rows)
	recs, err := NewRecommender(c, 5).Recommend("q")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"T1", "T2", "T3", "T4", "T5"}
	if got := titlesOf(recs); !reflect.DeepEqual(got, want) {
		t.Errorf("ties: got %v, want %v", got, want)
	}
}

func TestRecommend_SelfNotFirstInRow(t *testing.T) {
	// A neighbour scoring above the item itself must still be returned, and the
	// item itself must not.
	c := newCatalog(t, []string{"A", "B", "C"}, [][]float64{
		{0.5, 0.9, 0.1},
		{0.9, 1, 0.2},
		{0.1, 0.2, 1},
	})
	recs, err := NewRecommender(c, 5).Recommend("A")
	if err != nil {
		t.Fatal(err)
	}
	if got := titlesOf(recs); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("got %v, want [B C]", got)
	}
}

func TestRecommend_NearEqualScoresOrderByScore(t *testing.T) {
	c := newCatalog(t, []string{"A", "B", "C"}, [][]float64{
		{1, 0.300000001, 0.300000002},
		{0.300000001, 1, 0.5},
		{0.300000002, 0.5, 1},
	})
	recs, err := NewRecommender(c, 5).Recommend("A")
	if err != nil {
		t.Fatal(err)
	}
	if got := titlesOf(recs); !reflect.DeepEqual(got, []string{"C", "B"}) {
		t.Errorf("got %v, want [C B]", got)
	}
}

func TestRecommend_DuplicateTitleFirstWins(t *testing.T) {
	c := newCatalog(t, []string{"Heat", "Alien", "heat"}, [][]float64{
		{1, 0.7, 0.3},
		{0.7, 1, 0.9},
		{0.3, 0.9, 1},
	})
	r := NewRecommender(c, 5)
	item, idx, err := r.Lookup("HEAT")
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 || item.ID != 1 {
		t.Errorf("Lookup(HEAT) = %+v at %d, want first occurrence", item, idx)
	}
	recs, _ := r.Recommend("heat")
	if got := titlesOf(recs); !reflect.DeepEqual(got, []string{"Alien", "heat"}) {
		t.Errorf("got %v", got)
	}
}

func TestRecommend_CustomLimit(t *testing.T) {
	r := NewRecommender(exampleCatalog(t), 2)
	if r.Limit() != 2 {
		t.Errorf("Limit: got %d", r.Limit())
	}
	recs, err := r.Recommend("A")
	if err != nil {
		t.Fatal(err)
	}
	if got := titlesOf(recs); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("got %v", got)
	}
}
