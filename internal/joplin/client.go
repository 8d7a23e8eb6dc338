// Package joplin implements source.Source against the Joplin Data API
// (the clipper service of a running Joplin desktop application).
package joplin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/fetch"
	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/source"
)

const (
	// DefaultBaseURL is where the Joplin clipper service listens by default.
	DefaultBaseURL = "http://localhost:41184"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default number of requests per second.
	DefaultRateLimit = 50.0

	maxErrorBody = 4 << 10
)

// Client is a rate-limited HTTP client for the Joplin Data API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	baseURL    string
}

var _ source.Source = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the API token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRateLimit sets the sustained request rate (requests per second).
// Non-positive values disable limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// NewClient creates a new Data API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), int(DefaultRateLimit)),
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping checks that the service answers.
func (c *Client) Ping(ctx context.Context) error {
	body, err := c.get(ctx, []string{"ping"}, nil)
	if err != nil {
		return err
	}
	if !strings.Contains(string(body), "JoplinClipperServer") {
		return fmt.Errorf("%w: unexpected ping reply %q", ErrInvalidResponse, body)
	}
	return nil
}

// QueryPage implements source.Source.
func (c *Client) QueryPage(ctx context.Context, q source.Query) (*source.Page, error) {
	metrics.SourceRequests.WithLabelValues("joplin", q.Route()).Inc()

	params := url.Values{}
	if len(q.Fields) > 0 {
		params.Set("fields", strings.Join(q.Fields, ","))
	}
	if q.OrderBy != "" {
		params.Set("order_by", q.OrderBy)
	}
	if q.OrderDir != "" {
		params.Set("order_dir", strings.ToUpper(q.OrderDir))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(min(q.Limit, source.MaxPageSize)))
	}
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	if q.Text != "" {
		params.Set("query", q.Text)
	}

	body, err := c.get(ctx, q.Path, params)
	if err != nil {
		return nil, err
	}
	var page source.Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResponse, q.Resource(), err)
	}
	if page.Items == nil {
		page.Items = []source.Record{}
	}
	return &page, nil
}

// QueryByID implements source.Source.
func (c *Client) QueryByID(ctx context.Context, kind, id string, fields []string) (*source.Record, error) {
	metrics.SourceRequests.WithLabelValues("joplin", kind+"/:id").Inc()

	params := url.Values{}
	if len(fields) > 0 {
		// The id is needed to tell a record from an empty reply.
		if !slices.Contains(fields, source.FieldID) {
			fields = append([]string{source.FieldID}, fields...)
		}
		params.Set("fields", strings.Join(fields, ","))
	}
	body, err := c.get(ctx, []string{kind, id}, params)
	if err != nil {
		return nil, err
	}
	var rec source.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrInvalidResponse, kind, id, err)
	}
	// The service answers some lookups of unknown ids with 200 and a null or
	// empty body.
	if rec.ID == "" {
		return nil, fmt.Errorf("joplin: %s/%s: %w", kind, id, apperr.ErrNotFound)
	}
	return &rec, nil
}

// Backlinks implements source.Source by searching for the note id.
func (c *Client) Backlinks(ctx context.Context, noteID string) ([]string, error) {
	recs, err := fetch.All(ctx, c, source.Query{
		Path:   []string{source.KindSearch},
		Text:   noteID,
		Fields: source.IDFields,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("joplin: backlinks: %w", err)
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.ID != noteID {
			out = append(out, r.ID)
		}
	}
	return out, nil
}

// get issues one rate-limited GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path []string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("joplin: rate limiter: %w", err)
	}

	segments := make([]string, len(path))
	for i, p := range path {
		segments[i] = url.PathEscape(p)
	}
	resource := strings.Join(segments, "/")

	if params == nil {
		params = url.Values{}
	}
	if c.token != "" {
		params.Set("token", c.token)
	}
	u := c.baseURL + "/" + resource
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("joplin: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("joplin: %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, resource); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("joplin: read %s: %w", resource, err)
	}
	return body, nil
}

// checkHTTPErrors maps a non-success status to an error.
func checkHTTPErrors(resp *http.Response, resource string) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("joplin: %s: %w", resource, apperr.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(msg, &payload) == nil && payload.Error != "" {
		msg = []byte(payload.Error)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg)), Path: resource}
}
