package config

import "github.com/hyperjump/osusume/internal/poster"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8501
	}
	if cfg.Catalog.CatalogPath == "" {
		cfg.Catalog.CatalogPath = "movie_list.json"
	}
	if cfg.Catalog.MatrixPath == "" {
		cfg.Catalog.MatrixPath = "similarity.bin"
	}
	if cfg.Recommend.Limit == 0 {
		cfg.Recommend.Limit = 5
	}
	if cfg.Poster.BaseURL == "" {
		cfg.Poster.BaseURL = poster.DefaultBaseURL
	}
	if cfg.Poster.ImageBaseURL == "" {
		cfg.Poster.ImageBaseURL = poster.DefaultImageBaseURL
	}
	if cfg.Poster.Language == "" {
		cfg.Poster.Language = poster.DefaultLanguage
	}
	if cfg.Poster.Timeout == 0 {
		cfg.Poster.Timeout = poster.DefaultTimeout
	}
	if cfg.Poster.NoImagePlaceholder == "" {
		cfg.Poster.NoImagePlaceholder = poster.DefaultNoImagePlaceholder
	}
	if cfg.Poster.ErrorPlaceholder == "" {
		cfg.Poster.ErrorPlaceholder = poster.DefaultErrorPlaceholder
	}
	// Enabled defaults to true when unset (nil).
	if cfg.Poster.Enabled == nil {
		t := true
		cfg.Poster.Enabled = &t
	}
}

// PosterOptions converts the poster section into client options.
func (p *PosterConfig) PosterOptions() poster.Options {
	return poster.Options{
		BaseURL:            p.BaseURL,
		ImageBaseURL:       p.ImageBaseURL,
		APIKey:             p.APIKey,
		Language:           p.Language,
		Timeout:            p.Timeout,
		NoImagePlaceholder: p.NoImagePlaceholder,
		ErrorPlaceholder:   p.ErrorPlaceholder,
	}
}
