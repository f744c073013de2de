// Package supabase is a minimal PostgREST client for a hosted Supabase project,
// authenticated with the project's service role key.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ClientOptions configures the PostgREST client.
type ClientOptions struct {
	// BaseURL is the project URL, e.g. https://abc.supabase.co. /rest/v1 is appended.
	BaseURL string
	// ServiceRoleKey is sent as both apikey and bearer token.
	ServiceRoleKey string
	// RetryMax is the maximum number of retries. 0 disables retries; negative uses the default of 2.
	RetryMax int
	// Timeout is the per-attempt HTTP timeout (default: 10 seconds).
	Timeout time.Duration
}

// Client talks to the PostgREST endpoint of a Supabase project.
type Client struct {
	restURL    string
	key        string
	httpClient *retryablehttp.Client
}

// NewClient creates a PostgREST client. BaseURL and ServiceRoleKey are required.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("supabase: base URL is required")
	}

	if opts.ServiceRoleKey == "" {
		return nil, errors.New("supabase: service role key is required")
	}

	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	if opts.RetryMax < 0 {
		opts.RetryMax = 2
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil
	// Return the final response instead of a generic "giving up" error so the
	// PostgREST error body can be decoded.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		restURL:    strings.TrimSuffix(opts.BaseURL, "/") + "/rest/v1",
		key:        opts.ServiceRoleKey,
		httpClient: retryClient,
	}, nil
}

// APIError is an error response from PostgREST.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}

	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.StatusCode, e.Code, msg)
	}

	return fmt.Sprintf("supabase: %d: %s", e.StatusCode, msg)
}

// IsConflict reports whether err is a unique violation reported by PostgREST.
func IsConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.StatusCode == http.StatusConflict || apiErr.Code == "23505"
}

// Select reads rows from table into out (a pointer to a slice).
func (c *Client) Select(ctx context.Context, table string, q *Query, out any) error {
	_, err := c.do(ctx, http.MethodGet, table, q, nil, nil, out)

	return err
}

// SelectWithCount reads rows like Select and also returns the total number of rows
// matching the filters, ignoring limit and offset.
func (c *Client) SelectWithCount(ctx context.Context, table string, q *Query, out any) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, table, q, nil, map[string]string{"Prefer": "count=exact"}, out)
	if err != nil {
		return 0, err
	}

	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// Insert writes row (an object or slice of objects). When out is non-nil the
// inserted rows are decoded into it.
func (c *Client) Insert(ctx context.Context, table string, row, out any) error {
	prefer := "return=minimal"
	if out != nil {
		prefer = "return=representation"
	}

	_, err := c.do(ctx, http.MethodPost, table, nil, row, map[string]string{"Prefer": prefer}, out)

	return err
}

// Update patches every row matching q and decodes the changed rows into out.
// Callers count affected rows from the representation.
func (c *Client) Update(ctx context.Context, table string, q *Query, patch, out any) error {
	_, err := c.do(ctx, http.MethodPatch, table, q, patch, map[string]string{"Prefer": "return=representation"}, out)

	return err
}

func (c *Client) do(
	ctx context.Context, method, table string, q *Query, body any, headers map[string]string, out any,
) (*http.Response, error) {
	reqURL := c.restURL + "/" + table
	if q != nil {
		if encoded := q.Encode(); encoded != "" {
			reqURL += "?" + encoded
		}
	}

	var payload []byte

	if body != nil {
		var err error

		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, reqURL, bytesOrNil(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s %s: %w", method, table, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(respBody) > 0 {
			// Non-JSON error bodies (proxies, gateways) keep the status text only.
			_ = json.Unmarshal(respBody, apiErr)
		}

		return nil, apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", table, err)
		}
	}

	return resp, nil
}

// bytesOrNil keeps a nil body nil; retryablehttp treats a typed nil reader as a body.
func bytesOrNil(b []byte) any {
	if b == nil {
		return nil
	}

	return bytes.NewReader(b)
}

// parseContentRangeTotal reads the total from "0-24/573" or "*/0".
func parseContentRangeTotal(header string) (int64, error) {
	_, total, ok := strings.Cut(header, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("supabase: missing total in Content-Range %q", header)
	}

	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("supabase: invalid Content-Range %q: %w", header, err)
	}

	return n, nil
}
