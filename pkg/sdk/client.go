// Package sdk is the Go client for the messages HTTP API.
package sdk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/celerix-dev/celerix-messages/pkg/record"
)

const maxAttempts = 3

// Error is a non-2xx answer from the API.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

type Client struct {
	base     *url.URL
	http     *http.Client
	insecure bool
	// Backoff is the wait before the second attempt; it grows linearly after that.
	Backoff time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithInsecureTLS accepts the self-signed certificate a daemon started with TLS_SELF_SIGNED presents.
// The client given to WithHTTPClient is copied, never modified.
func WithInsecureTLS() Option {
	return func(c *Client) { c.insecure = true }
}

// New builds a client for the API rooted at baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{Timeout: 30 * time.Second},
		Backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.insecure {
		c.http = insecureCopy(c.http)
	}
	return c, nil
}

// insecureCopy returns a copy of hc whose transport skips certificate verification.
// A custom RoundTripper that is not an *http.Transport is replaced.
func insecureCopy(hc *http.Client) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if t, ok := hc.Transport.(*http.Transport); ok {
		tr = t.Clone()
	}
	if tr.TLSClientConfig == nil {
		tr.TLSClientConfig = &tls.Config{}
	}
	tr.TLSClientConfig.InsecureSkipVerify = true

	cp := *hc
	cp.Transport = tr
	return &cp
}

type ListOptions struct {
	Skip int64
	// Limit zero leaves the server default of 10; the API answers an explicit limit=0 with no items.
	Limit int64
	Type  string
	Date  string
}

type ListResult struct {
	Items []record.Message
	// Degraded is true when the server answered with an empty page because its store failed.
	Degraded bool
}

type MessageInput struct {
	Date    string `json:"date"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// MessagePatch fields left nil are not sent.
type MessagePatch struct {
	Date    *string `json:"date,omitempty"`
	Message *string `json:"message,omitempty"`
	Type    *string `json:"type,omitempty"`
}

type SeedReport struct {
	Message  string   `json:"message"`
	Deleted  int64    `json:"deleted_count"`
	Inserted int      `json:"inserted_count"`
	Dates    []string `json:"dates"`
	Types    []string `json:"types"`
}

type RepairReport struct {
	Message  string `json:"message"`
	Repaired int    `json:"repaired_count"`
	Skipped  int    `json:"skipped_count"`
	Total    int    `json:"total_messages"`
}

type DatabaseInfo struct {
	DatabaseName         string   `json:"database_name"`
	CurrentCollection    string   `json:"current_collection"`
	AvailableCollections []string `json:"available_collections"`
	DocumentCount        int64    `json:"document_count"`
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
	return err
}

func (c *Client) ListMessages(ctx context.Context, opts ListOptions) (ListResult, error) {
	q := url.Values{}
	q.Set("skip", strconv.FormatInt(opts.Skip, 10))
	if opts.Limit > 0 {
		q.Set("limit", strconv.FormatInt(opts.Limit, 10))
	}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if opts.Date != "" {
		q.Set("date", opts.Date)
	}
	var res ListResult
	hdr, err := c.do(ctx, http.MethodGet, "/messages", q, nil, &res.Items)
	if err != nil {
		return ListResult{}, err
	}
	res.Degraded = hdr.Get("X-Result-Degraded") == "true"
	return res, nil
}

func (c *Client) GetMessage(ctx context.Context, id string) (record.Message, error) {
	var msg record.Message
	_, err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(id), nil, nil, &msg)
	return msg, err
}

func (c *Client) CreateMessage(ctx context.Context, in MessageInput) (record.Message, error) {
	var msg record.Message
	_, err := c.do(ctx, http.MethodPost, "/messages", nil, in, &msg)
	return msg, err
}

func (c *Client) UpdateMessage(ctx context.Context, id string, patch MessagePatch) (record.Message, error) {
	var msg record.Message
	_, err := c.do(ctx, http.MethodPut, "/messages/"+url.PathEscape(id), nil, patch, &msg)
	return msg, err
}

func (c *Client) DeleteMessage(ctx context.Context, id string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	_, err := c.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id), nil, nil, &out)
	return out.Message, err
}

func (c *Client) ListTypes(ctx context.Context) ([]string, error) {
	var out []string
	_, err := c.do(ctx, http.MethodGet, "/messages/types", nil, nil, &out)
	return out, err
}

func (c *Client) ListDates(ctx context.Context) ([]string, error) {
	var out []string
	_, err := c.do(ctx, http.MethodGet, "/messages/dates", nil, nil, &out)
	return out, err
}

func (c *Client) SeedTestData(ctx context.Context) (SeedReport, error) {
	var out SeedReport
	_, err := c.do(ctx, http.MethodGet, "/setup-test-data", nil, nil, &out)
	return out, err
}

func (c *Client) Repair(ctx context.Context) (RepairReport, error) {
	var out RepairReport
	_, err := c.do(ctx, http.MethodGet, "/repair-messages", nil, nil, &out)
	return out, err
}

func (c *Client) DatabaseInfo(ctx context.Context) (DatabaseInfo, error) {
	var out DatabaseInfo
	_, err := c.do(ctx, http.MethodGet, "/db-config", nil, nil, &out)
	return out, err
}

// do sends one request and decodes a JSON answer into out.
// GETs are retried on transport errors with a growing backoff; other methods are sent once.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) (http.Header, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	// path is already escaped; JoinPath keeps it that way.
	u := c.base.JoinPath(path)
	u.RawQuery = q.Encode()

	attempts := 1
	if method == http.MethodGet {
		attempts = maxAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.Backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if !retryable(err) || ctx.Err() != nil {
				break
			}
			continue
		}
		return resp.Header, decodeResponse(resp, out)
	}
	return nil, fmt.Errorf("%s %s failed after %d attempt(s): %w", method, path, attempts, lastErr)
}

func retryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var env struct {
			Error struct {
				Message string `json:"message"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		apiErr := &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		if json.Unmarshal(data, &env) == nil && env.Error.Message != "" {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
