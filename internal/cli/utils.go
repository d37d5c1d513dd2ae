// Package cli provides CLI output helpers for osusume.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hyperjump/osusume/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteRecommendations writes a recommendation response to w in the given format.
// Unknown formats are written as text.
func WriteRecommendations(w io.Writer, response *models.RecommendResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			line := fmt.Sprintf("%d\t%.4f\t%d\t%s", r.Rank, r.Score, r.Item.ID, r.Item.Title)
			if r.PosterURL != "" {
				line += "\t" + r.PosterURL
			}
			fmt.Fprintln(w, line)
		}
		return nil
	default:
		writeRecommendationsText(w, response)
		return nil
	}
}

func writeRecommendationsText(w io.Writer, response *models.RecommendResponse) {
	fmt.Fprintf(w, "\nBecause you picked %q (id %d): %d recommendations in %dms\n\n",
		response.Item.Title, response.Item.ID, response.Total, response.QueryTime)
	for _, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", r.Rank, r.Score)
		fmt.Fprintf(w, "Title: %s\n", r.Item.Title)
		fmt.Fprintf(w, "ID: %d\n", r.Item.ID)
		if tags := r.Item.Extra["tags"]; tags != "" {
			fmt.Fprintf(w, "Tags: %s\n", TruncateWords(tags, 20))
		}
		if overview := r.Item.Extra["overview"]; overview != "" {
			fmt.Fprintf(w, "\n%s\n", Truncate(overview, 200))
		}
		if r.PosterURL != "" {
			fmt.Fprintf(w, "Poster: %s\n", r.PosterURL)
		}
		fmt.Fprintln(w)
	}
}

// WriteTitles writes a title listing to w in the given format.
func WriteTitles(w io.Writer, response *models.TitleListResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, t := range response.Titles {
			fmt.Fprintln(w, t.Title)
		}
		return nil
	default:
		if response.Query != "" {
			fmt.Fprintf(w, "%d titles matching %q\n", response.Total, response.Query)
		} else {
			fmt.Fprintf(w, "%d titles\n", response.Total)
		}
		for _, t := range response.Titles {
			fmt.Fprintf(w, "%6d  %-8d %s\n", t.Position, t.ID, t.Title)
		}
		return nil
	}
}

// WriteNotFound writes the error message and any suggestions for an unknown title.
func WriteNotFound(w io.Writer, response *models.ErrorResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintln(w, response.Error)
	if len(response.Suggestions) > 0 {
		fmt.Fprintln(w, "Did you mean:")
		for _, s := range response.Suggestions {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
