// Package client provides a Go client for the explorer-cache HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to an explorer-cache server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a client. apiKey is only needed for Invalidate when the
// server runs with AUTH_TYPE=api-key.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Envelope is an etherscan-style reply.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// SourceCode is one element of a getsourcecode result.
type SourceCode struct {
	SourceCode           string `json:"SourceCode"`
	ABI                  string `json:"ABI"`
	ContractName         string `json:"ContractName"`
	CompilerVersion      string `json:"CompilerVersion"`
	OptimizationUsed     string `json:"OptimizationUsed"`
	Runs                 string `json:"Runs"`
	ConstructorArguments string `json:"ConstructorArguments"`
	EVMVersion           string `json:"EVMVersion"`
	Library              string `json:"Library"`
	LicenseType          string `json:"LicenseType"`
	Proxy                string `json:"Proxy"`
	Implementation       string `json:"Implementation"`
}

// Stats is the durable cache summary served at /stats.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Count  int64 `json:"count"`
	Size   int64 `json:"size"`
}

// ConstructorArgs is the answer of the constructor_args endpoint.
type ConstructorArgs struct {
	Address         string `json:"address"`
	ConstructorArgs string `json:"constructor_args"`
}

// ConstructorArgsOptions tunes how the server derives constructor arguments
// for contracts the explorer has not verified.
type ConstructorArgsOptions struct {
	OnChainLookup  bool
	CreationTxHash string
	Bytecode       string
}

// APIError represents an API error response
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Lookup returns the raw explorer reply for one query.
func (c *Client) Lookup(ctx context.Context, provider, module, action, address string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("module", module)
	q.Set("action", action)
	q.Set("address", address)
	return c.getRaw(ctx, "/"+url.PathEscape(provider)+"/api?"+q.Encode())
}

func (c *Client) lookupEnvelope(ctx context.Context, provider, action, address string) (*Envelope, error) {
	raw, err := c.Lookup(ctx, provider, "contract", action, address)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding %s reply: %w", action, err)
	}
	return &env, nil
}

// SourceCode fetches getsourcecode. The slice is empty when the explorer
// answered with a non-array result such as a rate-limit message.
func (c *Client) SourceCode(ctx context.Context, provider, address string) (*Envelope, []SourceCode, error) {
	env, err := c.lookupEnvelope(ctx, provider, "getsourcecode", address)
	if err != nil {
		return nil, nil, err
	}
	var entries []SourceCode
	if err := json.Unmarshal(env.Result, &entries); err != nil {
		return env, nil, nil
	}
	return env, entries, nil
}

// ABI fetches getabi. For verified contracts Result holds the ABI as a JSON
// encoded string.
func (c *Client) ABI(ctx context.Context, provider, address string) (*Envelope, error) {
	return c.lookupEnvelope(ctx, provider, "getabi", address)
}

// Invalidate drops every cached entry for the contract and returns how many
// were removed.
func (c *Client) Invalidate(ctx context.Context, provider, address string) (int, error) {
	path := "/" + url.PathEscape(provider) + "/api?address=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// Stats returns durable cache statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var resp Stats
	if err := c.get(ctx, "/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConstructorArgs returns the ABI-encoded constructor arguments of a contract.
func (c *Client) ConstructorArgs(ctx context.Context, provider, address string, opts ConstructorArgsOptions) (*ConstructorArgs, error) {
	q := url.Values{}
	if opts.OnChainLookup {
		q.Set("on_chain_lookup", strconv.FormatBool(true))
	}
	if opts.CreationTxHash != "" {
		q.Set("creation_tx_hash", opts.CreationTxHash)
	}
	if opts.Bytecode != "" {
		q.Set("bytecode", opts.Bytecode)
	}
	path := fmt.Sprintf("/%s/constructor_args/%s", url.PathEscape(provider), url.PathEscape(address))
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ConstructorArgs
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns nil when the server reports ready.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/readyz", nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.parseError(resp)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return &APIError{StatusCode: resp.StatusCode, Code: "HTTP_ERROR", Message: resp.Status}
	}
	errResp.Error.StatusCode = resp.StatusCode
	return &errResp.Error
}
