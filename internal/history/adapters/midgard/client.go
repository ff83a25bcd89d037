// Package midgard fetches pool depth history from a Midgard-compatible API.
package midgard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/ports"
	"liquidity-history-service/internal/logging"
)

// Default configuration values.
const (
	DefaultBaseURL  = "https://midgard.ninerealms.com"
	DefaultPool     = "BTC.BTC"
	DefaultInterval = "hour"
	DefaultCount    = 400
	DefaultTimeout  = 30 * time.Second

	maxErrorBody = 512
)

var log = logging.Component("midgard")

// LatencyObserver records request latency; nil disables it.
type LatencyObserver interface {
	ObserveUpstream(d time.Duration, err error)
}

// Client implements ports.UpstreamPort over HTTP.
type Client struct {
	baseURL  string
	pool     string
	interval string
	count    int
	client   *http.Client
	observer LatencyObserver
}

var _ ports.UpstreamPort = (*Client)(nil)

type ClientOption func(*Client)

func WithPool(pool string) ClientOption {
	return func(c *Client) {
		if pool != "" {
			c.pool = pool
		}
	}
}

func WithInterval(interval string) ClientOption {
	return func(c *Client) {
		if interval != "" {
			c.interval = interval
		}
	}
}

// WithCount sets the page size requested per call.
func WithCount(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.count = n
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

func WithLatencyObserver(o LatencyObserver) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pool:     DefaultPool,
		interval: DefaultInterval,
		count:    DefaultCount,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) depthsURL(from int64) string {
	q := url.Values{}
	q.Set("interval", c.interval)
	q.Set("count", strconv.Itoa(c.count))
	q.Set("from", strconv.FormatInt(from, 10))
	return c.baseURL + "/v2/history/depths/" + url.PathEscape(c.pool) + "?" + q.Encode()
}

// FetchDepths requests one page of intervals starting at from.
func (c *Client) FetchDepths(ctx context.Context, from int64) (*ports.DepthPage, error) {
	started := time.Now()
	page, err := c.fetch(ctx, from)
	if c.observer != nil {
		c.observer.ObserveUpstream(time.Since(started), err)
	}
	return page, err
}

func (c *Client) fetch(ctx context.Context, from int64) (*ports.DepthPage, error) {
	endpoint := c.depthsURL(from)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamStatus, resp.StatusCode, snippet)
	}

	log.Debug("fetched depth page", "from", from, "bytes", len(body))
	return ParseDepthPage(body)
}

// ParseDepthPage decodes an upstream depth history body. Numeric fields are
// kept as text whether they arrive as JSON strings or numbers; a missing
// field becomes "". Time keys must parse as unix seconds.
func ParseDepthPage(body []byte) (*ports.DepthPage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", domain.ErrMalformedPayload)
	}
	doc := gjson.ParseBytes(body)

	intervals := doc.Get("intervals")
	if !intervals.IsArray() {
		return nil, fmt.Errorf("%w: missing intervals array", domain.ErrMalformedPayload)
	}
	meta := doc.Get("meta")
	if !meta.IsObject() {
		return nil, fmt.Errorf("%w: missing meta object", domain.ErrMalformedPayload)
	}
	endTime, ok := unixSeconds(meta.Get("endTime"))
	if !ok {
		return nil, fmt.Errorf("%w: meta.endTime %q is not a unix timestamp", domain.ErrMalformedPayload, meta.Get("endTime").Raw)
	}

	items := intervals.Array()
	page := &ports.DepthPage{
		Intervals: make([]domain.DepthRecord, 0, len(items)),
		EndTime:   endTime,
	}
	for i, item := range items {
		rec, err := parseInterval(item)
		if err != nil {
			return nil, fmt.Errorf("interval %d: %w", i, err)
		}
		page.Intervals = append(page.Intervals, rec)
	}
	return page, nil
}

func parseInterval(item gjson.Result) (domain.DepthRecord, error) {
	var rec domain.DepthRecord

	start, ok := unixSeconds(item.Get(domain.UpstreamName(domain.FieldStartTime)))
	if !ok {
		return rec, fmt.Errorf("%w: bad startTime", domain.ErrMalformedPayload)
	}
	end, ok := unixSeconds(item.Get(domain.UpstreamName(domain.FieldEndTime)))
	if !ok {
		return rec, fmt.Errorf("%w: bad endTime", domain.ErrMalformedPayload)
	}
	rec.StartTime = time.Unix(start, 0).UTC()
	rec.EndTime = time.Unix(end, 0).UTC()

	for _, f := range domain.NumericFields {
		rec.SetNumericValue(f, item.Get(domain.UpstreamName(f)).String())
	}
	return rec, nil
}

func unixSeconds(v gjson.Result) (int64, bool) {
	if !v.Exists() {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
