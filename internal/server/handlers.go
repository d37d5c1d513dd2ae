package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/recommend"
	"github.com/hyperjump/osusume/internal/storage"
)

// NotFoundMessage is shown when the requested title is not in the catalog.
const NotFoundMessage = "Selected movie not found in the database. Try another movie."

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 1000
)

func (s *Server) handleTitles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	fuzzy := parseBool(q.Get("fuzzy"), false)

	var entries []models.TitleEntry
	if strings.TrimSpace(query) == "" {
		entries, err = s.engine.Titles()
		if err == nil && limit > 0 && limit < len(entries) {
			entries = entries[:limit]
		}
	} else {
		if limit == 0 {
			limit = defaultSearchLimit
		}
		s.logger.Debug("title search request", zap.String("query", query), zap.Int("limit", limit), zap.Bool("fuzzy", fuzzy))
		entries, err = s.engine.SearchTitles(r.Context(), query, limit, fuzzy)
	}
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []models.TitleEntry{}
	}
	s.respondJSON(w, http.StatusOK, models.TitleListResponse{
		Query:  query,
		Fuzzy:  fuzzy && query != "",
		Total:  len(entries),
		Titles: entries,
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title := q.Get("title")
	if title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	start := time.Now()
	item, recs, err := s.engine.Recommend(title)
	if err != nil {
		if errors.Is(err, recommend.ErrNotFound) {
			s.respondJSON(w, http.StatusNotFound, models.ErrorResponse{
				Error:       NotFoundMessage,
				Suggestions: s.engine.Suggest(r.Context(), title),
			})
			return
		}
		s.respondEngineError(w, err)
		return
	}
	if parseBool(q.Get("posters"), true) {
		s.attachPosters(r.Context(), recs)
	}
	if recs == nil {
		recs = []models.Recommendation{}
	}
	s.respondJSON(w, http.StatusOK, models.RecommendResponse{
		Query:     title,
		Item:      item,
		Results:   recs,
		Total:     len(recs),
		QueryTime: time.Since(start).Milliseconds(),
	})
}

// attachPosters fills PosterURL on each recommendation. No-op when posters are disabled.
func (s *Server) attachPosters(ctx context.Context, recs []models.Recommendation) {
	if s.posters == nil || len(recs) == 0 {
		return
	}
	ids := make([]int, len(recs))
	for i, rec := range recs {
		ids[i] = rec.Item.ID
	}
	urls := s.posters.PosterURLs(ctx, ids)
	for i := range recs {
		if i < len(urls) {
			recs[i].PosterURL = urls[i]
		}
	}
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	item, ok, err := s.engine.ItemByID(id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

type statusResponse struct {
	recommend.Stats
	PostersEnabled bool                `json:"posters_enabled"`
	Files          []storage.FileUsage `json:"files,omitempty"`
	DiskUsageBytes int64               `json:"disk_usage_bytes"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Stats:          s.engine.Stats(),
		PostersEnabled: s.posters != nil,
	}
	paths := s.engine.Paths()
	files, total, err := storage.DiskUsage(paths.Catalog, paths.Matrix)
	if err != nil {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	} else {
		resp.Files = files
		resp.DiskUsageBytes = total
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("reload request")
	if err := s.engine.Reload(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrMissingFile) || errors.Is(err, catalog.ErrSchema) {
			status = http.StatusUnprocessableEntity
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, recommend.ErrUnavailable) {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}

func parseLimit(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return min(n, maxSearchLimit), nil
}

func parseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
