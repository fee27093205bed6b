package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/doctrove/enrich-cli/internal/resilience"
)

// Client defines the Paperless-ngx operations used by the enrichment
// pipeline. All reads go through the REST API; writes are PATCHed so
// unrelated fields are never clobbered.
type Client interface {
	// GetDocument fetches a single document by ID.
	GetDocument(ctx context.Context, id int) (*Document, error)
	// DownloadContent returns the extracted text content of a document.
	DownloadContent(ctx context.Context, id int) (string, error)
	// UpdateDocument applies a partial update to a document.
	UpdateDocument(ctx context.Context, id int, update DocumentUpdate) (*Document, error)
	// ListTags returns every tag, following pagination.
	ListTags(ctx context.Context) ([]Tag, error)
	// ListCorrespondents returns every correspondent, following pagination.
	ListCorrespondents(ctx context.Context) ([]Correspondent, error)
	// CreateTag creates a tag. Color is optional; pass "" for the default.
	CreateTag(ctx context.Context, name, color string) (*Tag, error)
	// CreateCorrespondent creates a correspondent.
	CreateCorrespondent(ctx context.Context, name string) (*Correspondent, error)
}

// Option configures the Paperless client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests at rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithPageSize overrides the list page size (for testing pagination).
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		c.pageSize = n
	}
}

type httpClient struct {
	baseURL  string
	token    string
	pageSize int
	limiter  *rate.Limiter
	http     *http.Client
}

// NewClient creates a Paperless-ngx API client. baseURL is the server
// root (e.g. https://paperless.example.com) and token is an API token.
func NewClient(baseURL, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		pageSize: 100,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do executes one API request and returns the body. Non-2xx statuses are
// mapped to the resilience error taxonomy so callers can decide whether
// to retry.
func (c *httpClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, eris.Wrap(err, "paperless: marshal request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, eris.Wrap(err, "paperless: create request")
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &resilience.ConnectionError{Err: eris.Wrap(err, "paperless: "+method+" "+path)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "paperless: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("paperless: %s %s: %s", method, path, excerpt(data))
		return nil, resilience.FromStatusCode(resp.StatusCode, msg)
	}
	return data, nil
}

// excerpt truncates an error body so log lines stay readable.
func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func (c *httpClient) GetDocument(ctx context.Context, id int) (*Document, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d/", id), nil)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrap(err, "paperless: unmarshal document")
	}
	return &doc, nil
}

func (c *httpClient) DownloadContent(ctx context.Context, id int) (string, error) {
	doc, err := c.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

func (c *httpClient) UpdateDocument(ctx context.Context, id int, update DocumentUpdate) (*Document, error) {
	if update.IsEmpty() {
		return c.GetDocument(ctx, id)
	}
	body, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/documents/%d/", id), update)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrap(err, "paperless: unmarshal updated document")
	}
	return &doc, nil
}

func (c *httpClient) ListTags(ctx context.Context) ([]Tag, error) {
	return listAll[Tag](ctx, c, "/api/tags/")
}

func (c *httpClient) ListCorrespondents(ctx context.Context) ([]Correspondent, error) {
	return listAll[Correspondent](ctx, c, "/api/correspondents/")
}

// listAll follows the paginated list endpoint until the server reports
// no next page.
func listAll[T any](ctx context.Context, c *httpClient, path string) ([]T, error) {
	var out []T
	page := 1
	for {
		q := fmt.Sprintf("%s?page=%d&page_size=%d", path, page, c.pageSize)
		body, err := c.do(ctx, http.MethodGet, q, nil)
		if err != nil {
			return nil, err
		}
		var resp listResponse[T]
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, eris.Wrapf(err, "paperless: unmarshal list page %d", page)
		}
		out = append(out, resp.Results...)
		if resp.Next == "" {
			return out, nil
		}
		page++
	}
}

func (c *httpClient) CreateTag(ctx context.Context, name, color string) (*Tag, error) {
	payload := map[string]string{"name": name}
	if color != "" {
		payload["color"] = color
	}
	body, err := c.do(ctx, http.MethodPost, "/api/tags/", payload)
	if err != nil {
		return nil, err
	}
	var tag Tag
	if err := json.Unmarshal(body, &tag); err != nil {
		return nil, eris.Wrap(err, "paperless: unmarshal created tag")
	}
	return &tag, nil
}

func (c *httpClient) CreateCorrespondent(ctx context.Context, name string) (*Correspondent, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/correspondents/", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	var corr Correspondent
	if err := json.Unmarshal(body, &corr); err != nil {
		return nil, eris.Wrap(err, "paperless: unmarshal created correspondent")
	}
	return &corr, nil
}
