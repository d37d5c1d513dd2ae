// Package poster resolves poster image URLs for catalog items from the TMDB metadata API.
package poster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/metrics"
)

const (
	DefaultBaseURL            = "https://api.themoviedb.org/3"
	DefaultImageBaseURL       = "https://image.tmdb.org/t/p/w500"
	DefaultLanguage           = "en-US"
	DefaultTimeout            = 10 * time.Second
	DefaultNoImagePlaceholder = "https://via.placeholder.com/500x750?text=No+Image+Available"
	DefaultErrorPlaceholder   = "https://via.placeholder.com/500x750?text=Error+Fetching+Image"

	breakerName  = "tmdb-api"
	maxBodyBytes = 1 << 20
)

// ErrFetch marks a failed metadata request. It never escapes PosterURL.
var ErrFetch = errors.New("poster fetch failed")

// Options configures the metadata API client.
type Options struct {
	BaseURL            string
	ImageBaseURL       string
	APIKey             string
	Language           string
	Timeout            time.Duration
	NoImagePlaceholder string
	ErrorPlaceholder   string
}

func (o *Options) applyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.ImageBaseURL == "" {
		o.ImageBaseURL = DefaultImageBaseURL
	}
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.NoImagePlaceholder == "" {
		o.NoImagePlaceholder = DefaultNoImagePlaceholder
	}
	if o.ErrorPlaceholder == "" {
		o.ErrorPlaceholder = DefaultErrorPlaceholder
	}
}

// Client looks up poster URLs. Every failure degrades to a placeholder URL.
type Client struct {
	opts    Options
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	logger  *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client (the configured timeout is not applied to it).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets a logger for fetch failures and breaker transitions.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client. Zero-valued options take the TMDB defaults.
func NewClient(opts Options, clientOpts ...ClientOption) *Client {
	opts.applyDefaults()
	c := &Client{
		opts:   opts,
		http:   &http.Client{Timeout: opts.Timeout},
		logger: zap.NewNop(),
	}
	for _, o := range clientOpts {
		o(c)
	}
	c.breaker = newBreaker(c.logger)
	return c
}

// Options returns the effective options.
func (c *Client) Options() Options {
	return c.opts
}

// PosterURL returns the poster image URL for a TMDB movie id. It returns the no-image
// placeholder when the movie has no poster and the error placeholder on any failure.
// It never returns an empty string.
func (c *Client) PosterURL(ctx context.Context, id int) string {
	if c.opts.APIKey == "" {
		metrics.PosterFetches.WithLabelValues("error").Inc()
		c.logger.Debug("poster lookup skipped: no api key", zap.Int("id", id))
		return c.opts.ErrorPlaceholder
	}
	path, err := c.breaker.Execute(func() (string, error) {
		return c.fetchPosterPath(ctx, id)
	})
	if err != nil {
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.PosterFetches.WithLabelValues(result).Inc()
		c.logger.Warn("error fetching poster", zap.Int("id", id), zap.String("result", result), zap.Error(err))
		return c.opts.ErrorPlaceholder
	}
	if path == "" {
		metrics.PosterFetches.WithLabelValues("no_image").Inc()
		return c.opts.NoImagePlaceholder
	}
	metrics.PosterFetches.WithLabelValues("found").Inc()
	return c.imageURL(path)
}

// PosterURLs resolves ids one after another, in order.
func (c *Client) PosterURLs(ctx context.Context, ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = c.PosterURL(ctx, id)
	}
	return out
}

func (c *Client) imageURL(posterPath string) string {
	return strings.TrimRight(c.opts.ImageBaseURL, "/") + "/" + strings.TrimLeft(posterPath, "/")
}

func (c *Client) detailsURL(id int) string {
	q := url.Values{}
	q.Set("api_key", c.opts.APIKey)
	q.Set("language", c.opts.Language)
	return strings.TrimRight(c.opts.BaseURL, "/") + "/movie/" + strconv.Itoa(id) + "?" + q.Encode()
}

type movieDetails struct {
	PosterPath *string `json:"poster_path"`
}

// fetchPosterPath returns the movie's poster_path, or "" when the field is missing or null
// or the movie is unknown (404).
func (c *Client) fetchPosterPath(ctx context.Context, id int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.detailsURL(id), nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, redactKey(err, c.opts.APIKey))
	}
	defer resp.Body.Close()
	// An unknown or deleted movie has no poster; it is not an API failure.
	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", fmt.Errorf("%w: metadata API returned %d", ErrFetch, resp.StatusCode)
	}
	var details movieDetails
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&details); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrFetch, err)
	}
	if details.PosterPath == nil {
		return "", nil
	}
	return strings.TrimSpace(*details.PosterPath), nil
}

// redactKey strips the API key from transport errors, which embed the request URL.
func redactKey(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "REDACTED")
}
