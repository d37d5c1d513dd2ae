package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/keyword"
	"github.com/hyperjump/osusume/internal/metrics"
	"github.com/hyperjump/osusume/internal/models"
)

// MaxSuggestions is the number of "did you mean" titles offered for an unknown title.
const MaxSuggestions = 5

// ErrUnavailable is returned when no catalog has been loaded successfully.
var ErrUnavailable = errors.New("catalog not loaded")

// Paths locates the catalog table and the similarity matrix on disk.
type Paths struct {
	Catalog string
	Matrix  string
}

// Snapshot is one immutable loaded catalog with everything derived from it.
type Snapshot struct {
	Catalog     *catalog.Catalog
	Recommender *Recommender
	Titles      keyword.TitleSearcher
	LoadedAt    time.Time
}

// Stats describes the state of the engine.
type Stats struct {
	Loaded      bool      `json:"loaded"`
	Items       int       `json:"items"`
	MatrixDim   int       `json:"matrix_dim"`
	Limit       int       `json:"limit"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	CatalogPath string    `json:"catalog_path"`
	MatrixPath  string    `json:"matrix_path"`
	LastError   string    `json:"last_error,omitempty"`
}

// Engine is the explicit application context: it owns the current snapshot and is
// passed to every caller that needs to query it. Reload swaps in a new snapshot;
// a failed reload leaves the previous one serving.
type Engine struct {
	paths  Paths
	limit  int
	logger *zap.Logger

	mu      sync.RWMutex
	current *Snapshot
	lastErr error

	reloadMu sync.Mutex
}

// NewEngine creates an engine. Call Reload to load the catalog.
func NewEngine(paths Paths, limit int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Engine{paths: paths, limit: limit, logger: logger}
}

// NewEngineFromCatalog creates an engine serving c directly, without file paths.
func NewEngineFromCatalog(c *catalog.Catalog, limit int, logger *zap.Logger) (*Engine, error) {
	e := NewEngine(Paths{}, limit, logger)
	snap, err := e.build(c)
	if err != nil {
		return nil, err
	}
	e.current = snap
	metrics.CatalogItems.Set(float64(c.Len()))
	return e, nil
}

func (e *Engine) build(c *catalog.Catalog) (*Snapshot, error) {
	titles, err := keyword.NewTitleIndex(c.Titles())
	if err != nil {
		return nil, fmt.Errorf("build title index: %w", err)
	}
	if err := checkIndexed(titles, c.Len()); err != nil {
		_ = titles.Close()
		return nil, err
	}
	return &Snapshot{
		Catalog:     c,
		Recommender: NewRecommender(c, e.limit),
		Titles:      titles,
		LoadedAt:    time.Now(),
	}, nil
}

// checkIndexed verifies that every catalog title made it into the title index.
func checkIndexed(titles keyword.TitleSearcher, n int) error {
	count, err := titles.DocCount()
	if err != nil {
		return fmt.Errorf("count indexed titles: %w", err)
	}
	if count != uint64(n) {
		return fmt.Errorf("title index has %d entries, want %d", count, n)
	}
	return nil
}

// Reload loads the catalog and matrix from disk and swaps them in.
func (e *Engine) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	c, err := catalog.Load(ctx, e.paths.Catalog, e.paths.Matrix)
	var snap *Snapshot
	if err == nil {
		snap, err = e.build(c)
	}
	if err != nil {
		metrics.CatalogReloads.WithLabelValues("failure").Inc()
		e.mu.Lock()
		e.lastErr = err
		serving := e.current != nil
		e.mu.Unlock()
		e.logger.Warn("catalog load failed",
			zap.String("catalog_path", e.paths.Catalog),
			zap.String("matrix_path", e.paths.Matrix),
			zap.Bool("previous_snapshot_serving", serving),
			zap.Error(err))
		return err
	}

	e.mu.Lock()
	old := e.current
	e.current = snap
	e.lastErr = nil
	e.mu.Unlock()
	// Readers hold the read lock for the whole lookup, so nobody uses old past this point.
	if old != nil && old.Titles != nil {
		_ = old.Titles.Close()
	}

	metrics.CatalogReloads.WithLabelValues("success").Inc()
	metrics.CatalogItems.Set(float64(c.Len()))
	e.logger.Info("catalog loaded",
		zap.Int("items", c.Len()),
		zap.String("catalog_path", e.paths.Catalog),
		zap.String("matrix_path", e.paths.Matrix),
		zap.Duration("took", time.Since(start)))
	return nil
}

// view runs fn against the current snapshot under the read lock.
func (e *Engine) view(fn func(s *Snapshot) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		if e.lastErr != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, e.lastErr)
		}
		return ErrUnavailable
	}
	return fn(e.current)
}

// Recommend returns the matched item and its top-k neighbours.
func (e *Engine) Recommend(title string) (models.Item, []models.Recommendation, error) {
	start := time.Now()
	var (
		item models.Item
		recs []models.Recommendation
	)
	err := e.view(func(s *Snapshot) error {
		var idx int
		var err error
		item, idx, err = s.Recommender.Lookup(title)
		if err != nil {
			return err
		}
		recs = s.Recommender.RecommendAt(idx)
		return nil
	})
	metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.RecommendRequests.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrNotFound):
		metrics.RecommendRequests.WithLabelValues("not_found").Inc()
	default:
		metrics.RecommendRequests.WithLabelValues("unavailable").Inc()
	}
	if err != nil {
		return models.Item{}, nil, err
	}
	e.logger.Debug("recommendation",
		zap.String("title", title),
		zap.Int("item_id", item.ID),
		zap.Int("results", len(recs)))
	return item, recs, nil
}

// Titles lists every title in catalog order.
func (e *Engine) Titles() ([]models.TitleEntry, error) {
	var out []models.TitleEntry
	err := e.view(func(s *Snapshot) error {
		out = make([]models.TitleEntry, s.Catalog.Len())
		for i := range out {
			item := s.Catalog.Item(i)
			out[i] = models.TitleEntry{Position: i, ID: item.ID, Title: item.Title}
		}
		return nil
	})
	return out, err
}

// SearchTitles runs a title search and returns matching entries by relevance.
func (e *Engine) SearchTitles(ctx context.Context, query string, limit int, fuzzy bool) ([]models.TitleEntry, error) {
	var out []models.TitleEntry
	err := e.view(func(s *Snapshot) error {
		hits, err := s.Titles.Search(ctx, query, limit, fuzzy)
		if err != nil {
			return err
		}
		out = make([]models.TitleEntry, 0, len(hits))
		for _, h := range hits {
			if h.Position < 0 || h.Position >= s.Catalog.Len() {
				continue
			}
			item := s.Catalog.Item(h.Position)
			out = append(out, models.TitleEntry{Position: h.Position, ID: item.ID, Title: item.Title, Score: h.Score})
		}
		return nil
	})
	return out, err
}

// Suggest returns up to MaxSuggestions catalog titles close to title. Errors yield no suggestions.
func (e *Engine) Suggest(ctx context.Context, title string) []string {
	entries, err := e.SearchTitles(ctx, title, MaxSuggestions, true)
	if err != nil {
		e.logger.Debug("suggestions unavailable", zap.String("title", title), zap.Error(err))
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, en := range entries {
		out = append(out, en.Title)
	}
	return out
}

// ItemByID returns the first item with the given id.
func (e *Engine) ItemByID(id int) (models.Item, bool, error) {
	var (
		item models.Item
		ok   bool
	)
	err := e.view(func(s *Snapshot) error {
		item, _, ok = s.Catalog.ItemByID(id)
		return nil
	})
	return item, ok, err
}

// Paths returns the configured file locations.
func (e *Engine) Paths() Paths {
	return e.paths
}

// Stats reports the current snapshot and the last load error, if any.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := Stats{
		Limit:       e.limit,
		CatalogPath: e.paths.Catalog,
		MatrixPath:  e.paths.Matrix,
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	if e.current != nil {
		st.Loaded = true
		st.Items = e.current.Catalog.Len()
		st.MatrixDim = e.current.Catalog.Dim()
		st.LoadedAt = e.current.LoadedAt
	}
	return st
}

// Close releases the current snapshot.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil && e.current.Titles != nil {
		err := e.current.Titles.Close()
		e.current = nil
		return err
	}
	e.current = nil
	return nil
}
