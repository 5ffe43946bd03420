package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	maxErrorBody  = 512
	retryInterval = 50 * time.Millisecond
	maxRetryDelay = 2 * time.Second
)

// Client talks JSON to the benchmark service. Throttled (429) and 5xx
// answers are retried with exponential backoff.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries uint64
	throttled  atomic.Int64
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration, maxRetries uint64) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

// Throttled returns how many 429 answers the client has seen.
func (c *Client) Throttled() int { return int(c.throttled.Load()) }

// Get decodes the JSON answer of GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the answer into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Do performs one request with retries. out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInterval
	b.MaxInterval = maxRetryDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := c.once(ctx, method, path, payload, out)
		var se *StatusError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &se):
			if se.Status == http.StatusTooManyRequests {
				c.throttled.Add(1)
			}
			if se.Retryable() {
				return err
			}
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		default:
			// transport errors are worth another try
			return err
		}
	}, policy)
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, url, err)
	}
	return nil
}
