package models

// Recommendation is one ranked neighbour of the queried item.
type Recommendation struct {
	Rank      int     `json:"rank"`
	Item      Item    `json:"item"`
	Score     float64 `json:"score"`
	PosterURL string  `json:"poster_url,omitempty"`
}

// RecommendResponse is the response for a recommendation request.
type RecommendResponse struct {
	Query     string           `json:"query"`
	Item      Item             `json:"item"`
	Results   []Recommendation `json:"results"`
	Total     int              `json:"total"`
	QueryTime int64            `json:"query_time_ms"`
}

// ErrorResponse is the JSON error body. Suggestions is set for unknown titles.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}
