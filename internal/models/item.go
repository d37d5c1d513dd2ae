// Package models defines core data structures for catalog items and recommendations.
package models

// Item is a single recommendable catalog entry. ID is its identity; Extra carries
// every other descriptive column of the catalog table (tags, overview, ...).
type Item struct {
	ID    int               `json:"id"`
	Title string            `json:"title"`
	Extra map[string]string `json:"extra,omitempty"`
}

// TitleEntry is one row of a title listing: the catalog position and the item.
type TitleEntry struct {
	Position int     `json:"position"`
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Score    float64 `json:"score,omitempty"`
}

// TitleListResponse is the response for a title listing or title search.
type TitleListResponse struct {
	Query  string       `json:"query,omitempty"`
	Fuzzy  bool         `json:"fuzzy,omitempty"`
	Total  int          `json:"total"`
	Titles []TitleEntry `json:"titles"`
}
