// Package googlebooks is a client for the Google Books volumes API, the external
// catalog behind book search. It maps every failure onto a small set of typed
// sentinels and decodes records leniently: a malformed item is skipped, a
// malformed envelope fails the whole request.
package googlebooks

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://www.googleapis.com/books/v1"

	// DefaultFields restricts the payload to what the search pipeline reads.
	DefaultFields = "totalItems,items(id,volumeInfo(title,subtitle,authors,language,description," +
		"publishedDate,pageCount,categories,imageLinks(thumbnail,smallThumbnail),industryIdentifiers))"

	defaultTimeout    = 8 * time.Second
	defaultMaxResults = 20
	maxMaxResults     = 40
	maxBodyBytes      = 4 << 20
	userAgent         = "Bookshelf/1.0"
)

// Cache stores raw response bodies keyed by request. Implementations must be
// safe for concurrent use; failures are the implementation's to log.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client // overrides Timeout when set
	Cache      Cache
	Logger     *slog.Logger
}

// Client issues volumes queries.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	cache   Cache
	logger  *slog.Logger
}

// New creates a client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		cache:   opts.Cache,
		logger:  logger,
	}
}

// Cached answers params from the response cache without touching the
// network. It reports false when no cache is configured or on a miss.
func (c *Client) Cached(ctx context.Context, params SearchParams) (*SearchResult, bool) {
	if c.cache == nil || strings.TrimSpace(params.Query) == "" {
		return nil, false
	}
	body, ok := c.cache.Get(ctx, cacheKey(searchValues(params)))
	if !ok {
		return nil, false
	}
	result, err := decodeSearch(body)
	if err != nil {
		c.logger.Warn("discarding undecodable cached catalog response", "query", params.Query, "error", err)
		return nil, false
	}
	result.Cached = true
	return result, true
}

// Search runs one volumes query, serving from the cache when it can.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, wrapError("search", params.Query, 0, fmt.Errorf("%w: empty query", ErrUpstream))
	}

	if result, ok := c.Cached(ctx, params); ok {
		return result, nil
	}

	query := searchValues(params)
	key := cacheKey(query)

	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	body, err := c.doRequest(ctx, "/volumes", query)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			apiErr.Op, apiErr.Query = "search", params.Query
			return nil, apiErr
		}
		return nil, wrapError("search", params.Query, 0, err)
	}

	result, err := decodeSearch(body)
	if err != nil {
		return nil, wrapError("search", params.Query, http.StatusOK, err)
	}

	if result.Skipped > 0 {
		c.logger.Warn("skipped malformed catalog items", "query", params.Query, "skipped", result.Skipped)
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, body)
	}

	return result, nil
}

// doRequest executes a GET and classifies the outcome.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("catalog request", "path", path, "q", query.Get("q"), "lang", query.Get("langRestrict"))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusForbidden && isQuotaBody(body):
		return nil, &Error{
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        ErrRateLimited,
		}
	default:
		return nil, &Error{Status: resp.StatusCode, Err: ErrUpstream}
	}
}

func searchValues(params SearchParams) url.Values {
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}
	fields := params.Fields
	if fields == "" {
		fields = DefaultFields
	}

	v := url.Values{}
	v.Set("q", params.Query)
	v.Set("maxResults", strconv.Itoa(maxResults))
	v.Set("printType", "books")
	v.Set("fields", fields)
	if params.LangRestrict != "" {
		v.Set("langRestrict", params.LangRestrict)
	}
	return v
}

// cacheKey hashes the encoded query; the api key is never part of it.
func cacheKey(query url.Values) string {
	sum := sha256.Sum256([]byte(query.Encode()))
	return "gb:volumes:" + hex.EncodeToString(sum[:16])
}

func decodeSearch(body []byte) (*SearchResult, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrUpstream, err)
	}

	result := &SearchResult{
		TotalItems: raw.TotalItems,
		Volumes:    make([]Volume, 0, len(raw.Items)),
	}
	for _, item := range raw.Items {
		var rv rawVolume
		if err := json.Unmarshal(item, &rv); err != nil {
			result.Skipped++
			continue
		}
		result.Volumes = append(result.Volumes, rv.toVolume())
	}
	return result, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// isQuotaBody recognizes the 403 variants Google uses for quota exhaustion.
func isQuotaBody(body []byte) bool {
	for _, reason := range []string{"rateLimitExceeded", "dailyLimitExceeded", "userRateLimitExceeded", "quotaExceeded"} {
		if bytes.Contains(body, []byte(reason)) {
			return true
		}
	}
	return false
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
