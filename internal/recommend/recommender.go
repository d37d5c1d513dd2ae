// Package recommend ranks catalog items by precomputed similarity.
package recommend

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/models"
)

// DefaultLimit is the number of recommendations returned per query.
const DefaultLimit = 5

// ErrNotFound is returned when no catalog title matches the query.
var ErrNotFound = errors.New("title not found")

// Recommender answers top-k similarity lookups over one catalog. It holds no mutable
// state and is safe for concurrent use.
type Recommender struct {
	catalog *catalog.Catalog
	limit   int
}

// NewRecommender returns a recommender over c. limit <= 0 means DefaultLimit.
func NewRecommender(c *catalog.Catalog, limit int) *Recommender {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recommender{catalog: c, limit: limit}
}

// Limit returns the maximum number of results per query.
func (r *Recommender) Limit() int {
	return r.limit
}

// Lookup returns the item matching title (case-insensitive, first occurrence wins)
// and its catalog position.
func (r *Recommender) Lookup(title string) (models.Item, int, error) {
	i, ok := r.catalog.IndexOfTitle(title)
	if !ok {
		return models.Item{}, -1, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	return r.catalog.Item(i), i, nil
}

// Recommend returns the items most similar to title, highest score first.
// The queried item is never included. Equal scores keep catalog order.
// Fewer than the limit are returned when the catalog is small.
func (r *Recommender) Recommend(title string) ([]models.Recommendation, error) {
	_, idx, err := r.Lookup(title)
	if err != nil {
		return nil, err
	}
	return r.RecommendAt(idx), nil
}

// RecommendAt ranks neighbours of the item at catalog position idx.
func (r *Recommender) RecommendAt(idx int) []models.Recommendation {
	row := r.catalog.Row(idx)
	type scored struct {
		pos   int
		score float64
	}
	candidates := make([]scored, 0, len(row))
	for j, s := range row {
		if j == idx {
			continue
		}
		candidates = append(candidates, scored{pos: j, score: s})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	k := min(r.limit, len(candidates))
	out := make([]models.Recommendation, k)
	for i := 0; i < k; i++ {
		out[i] = models.Recommendation{
			Rank:  i + 1,
			Item:  r.catalog.Item(candidates[i].pos),
			Score: candidates[i].score,
		}
	}
	return out
}
