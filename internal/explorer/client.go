// Package explorer calls etherscan-style explorer APIs and keeps a short-lived
// in-memory copy of every reply.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pendergraft/explorer-cache/internal/observability/metrics"
)

const (
	// DefaultTransientTTL is how long a raw reply is served from memory.
	DefaultTransientTTL = time.Hour
	// DefaultUserAgent is sent on every explorer call; some explorers reject Go's default.
	DefaultUserAgent = "Mozilla/5.0"

	maxResponseBytes = 64 << 20
)

// KeyRotator supplies the API key for the next call to a provider.
type KeyRotator interface {
	Next(provider string) (string, error)
}

// Options configures a Client.
type Options struct {
	HTTPClient          *http.Client
	UserAgent           string
	TransientTTL        time.Duration
	TransientMaxEntries int // 0 means unbounded
	Logger              *slog.Logger
}

// Client fetches explorer replies through a TTL cache.
//
// The cache is not guarded against concurrent misses: two callers missing the
// same request at once may both hit the network. Deduplication happens one
// layer up, around the durable cache.
type Client struct {
	urls      map[string]string
	keys      KeyRotator
	http      *http.Client
	userAgent string
	transient *expirable.LRU[Request, Response]
	logger    *slog.Logger
}

// NewClient creates a client for the given provider name → base URL map.
func NewClient(urls map[string]string, keys KeyRotator, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.TransientTTL <= 0 {
		opts.TransientTTL = DefaultTransientTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		urls:      urls,
		keys:      keys,
		http:      opts.HTTPClient,
		userAgent: opts.UserAgent,
		transient: expirable.NewLRU[Request, Response](opts.TransientMaxEntries, nil, opts.TransientTTL),
		logger:    opts.Logger,
	}
}

// Fetch returns the explorer's reply for req, from memory when a copy younger
// than the TTL exists. Every successful network reply is cached, whatever its
// content.
func (c *Client) Fetch(ctx context.Context, req Request) (Response, error) {
	if resp, ok := c.transient.Get(req); ok {
		metrics.TransientCacheLookup("hit")
		return resp, nil
	}
	metrics.TransientCacheLookup("miss")

	resp, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	c.transient.Add(req, resp)
	return resp, nil
}

func (c *Client) fetch(ctx context.Context, req Request) (Response, error) {
	base, ok := c.urls[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, req.Provider)
	}

	apiKey, err := c.keys.Next(req.Provider)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing url for provider %s: %w", req.Provider, err)
	}
	q := u.Query()
	q.Set("module", req.Module)
	q.Set("action", req.Action)
	q.Set("address", req.Address)
	q.Set("apiKey", apiKey)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("fetching", "provider", req.Provider, "action", req.Action, "address", req.Address)

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.UpstreamRequest(req.Provider, "error", time.Since(start))
		return nil, &UpstreamError{Provider: req.Provider, Err: err}
	}
	defer httpResp.Body.Close()
	metrics.UpstreamRequest(req.Provider, strconv.Itoa(httpResp.StatusCode), time.Since(start))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxResponseBytes))
		return nil, &UpstreamError{Provider: req.Provider, StatusCode: httpResp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UpstreamError{Provider: req.Provider, Err: fmt.Errorf("reading body: %w", err)}
	}
	if !json.Valid(body) {
		return nil, &UpstreamError{Provider: req.Provider, Err: errors.New("response is not valid JSON")}
	}

	return Response(body), nil
}
