package refdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/farmaops/catalog-enricher/pkg/pipeline/core"
	"golang.org/x/time/rate"
)

// Client is a minimal HTTP client for the reference service's query and
// document-retrieval endpoints. All calls share one rate limiter and carry a
// per-call timeout so a stuck remote call degrades instead of hanging a
// worker.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL  string
	Username string
	Password string

	// RateLimitRPS is a global limit across all callers. Set to <=0 to disable.
	RateLimitRPS float64

	// RequestTimeout bounds each remote call. Defaults to 20s.
	RequestTimeout time.Duration
}

// NewClient constructs a client for the reference-service base URL.
func NewClient(cfg ClientConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("refdata base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse refdata base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("refdata base URL must include a host (got %q)", cfg.BaseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &Client{
		baseURL:  u,
		username: strings.TrimSpace(cfg.Username),
		password: strings.TrimSpace(cfg.Password),
		http:     &http.Client{Timeout: 60 * time.Second},
		limiter:  limiter,
		timeout:  timeout,
	}, nil
}

// Limiter exposes the client's rate limiter so a worker pool driving the
// client can share it instead of stacking a second limit on top.
func (c *Client) Limiter() *rate.Limiter { return c.limiter }

// Query runs one equality-filtered, single-page dataset query. The caller's
// credentials fields are overwritten from the client configuration.
func (c *Client) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	if strings.TrimSpace(req.Dataset) == "" {
		return QueryResult{}, fmt.Errorf("dataset is required")
	}
	req.Username = c.username
	req.Password = c.password
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 1
	}

	if err := c.wait(ctx); err != nil {
		return QueryResult{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return QueryResult{}, err
	}

	u := c.resolve("query")
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return QueryResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return QueryResult{}, &core.TransientError{Err: fmt.Errorf("query %s: %w", req.Dataset, err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return QueryResult{}, &core.TransientError{Err: fmt.Errorf("query %s: read response: %w", req.Dataset, err)}
	}
	if resp.StatusCode/100 != 2 {
		return QueryResult{}, classifyStatus("query", resp, b)
	}

	var out QueryResult
	if err := json.Unmarshal(b, &out); err != nil {
		return QueryResult{}, fmt.Errorf("query %s: parse response: %w", req.Dataset, err)
	}
	return out, nil
}

// QueryRecords runs Query and applies the second parse step, returning the
// typed rows of the payload table. A soft miss yields (nil, nil).
func (c *Client) QueryRecords(ctx context.Context, req QueryRequest) ([]Record, error) {
	res, err := c.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	recs, err := ParseTableResult(res.Payload)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", req.Dataset, err)
	}
	return recs, nil
}

// FetchDocument retrieves one binary document (image payload) by dataset and
// filename from the document-retrieval endpoint.
func (c *Client) FetchDocument(ctx context.Context, dataset, filename string) ([]byte, error) {
	dataset = strings.TrimSpace(dataset)
	filename = strings.TrimSpace(filename)
	if dataset == "" || filename == "" {
		return nil, fmt.Errorf("dataset and filename are required")
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.resolve("documents")
	q := url.Values{}
	q.Set("accesskey", c.password)
	q.Set("dataset", dataset)
	q.Set("filename", filename)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &core.TransientError{Err: fmt.Errorf("fetch document %s: %w", filename, err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.TransientError{Err: fmt.Errorf("fetch document %s: read response: %w", filename, err)}
	}
	if resp.StatusCode/100 != 2 {
		return nil, classifyStatus("fetchDocument", resp, b)
	}
	return b, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) resolve(relPath string) *url.URL {
	rel := &url.URL{Path: strings.TrimPrefix(relPath, "/")}
	return c.baseURL.ResolveReference(rel)
}

// classifyStatus maps a non-2xx response to the retry taxonomy: throttling
// gets a capped retry budget, server-side failures are transient, anything
// else is permanent.
func classifyStatus(op string, resp *http.Response, body []byte) error {
	apiErr := newAPIError(op, resp, body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &core.LimitedTransientError{Err: apiErr, ExtraRetries: 2}
	case resp.StatusCode >= 500:
		return &core.TransientError{Err: apiErr}
	default:
		return apiErr
	}
}
