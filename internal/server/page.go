package server

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/recommend"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageResult struct {
	Title     string
	PosterURL string
	Score     float64
}

type pageData struct {
	Titles      []string
	Selected    string
	Results     []pageResult
	Message     string
	Suggestions []string
	LoadError   string
}

// handleIndex renders the single recommendation page. With ?title= it also renders the
// recommendations for that title.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{}
	status := http.StatusOK

	entries, err := s.engine.Titles()
	if err != nil {
		data.LoadError = loadErrorMessage(err)
		s.renderPage(w, http.StatusServiceUnavailable, data)
		return
	}
	data.Titles = make([]string, len(entries))
	for i, e := range entries {
		data.Titles[i] = e.Title
	}

	title := r.URL.Query().Get("title")
	if title != "" {
		data.Selected = title
		_, recs, err := s.engine.Recommend(title)
		switch {
		case errors.Is(err, recommend.ErrNotFound):
			status = http.StatusNotFound
			data.Message = NotFoundMessage
			data.Suggestions = s.engine.Suggest(r.Context(), title)
		case err != nil:
			data.LoadError = loadErrorMessage(err)
			s.renderPage(w, http.StatusServiceUnavailable, data)
			return
		default:
			s.attachPosters(r.Context(), recs)
			data.Results = make([]pageResult, len(recs))
			for i, rec := range recs {
				data.Results[i] = pageResult{Title: rec.Item.Title, PosterURL: rec.PosterURL, Score: rec.Score}
			}
		}
	}
	s.renderPage(w, status, data)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("render page failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func loadErrorMessage(err error) string {
	return "Catalog could not be loaded: " + err.Error()
}
