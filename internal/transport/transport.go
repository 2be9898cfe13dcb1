// internal/transport/transport.go
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

// Error is the single normalized failure value for a transport call.
// Timeouts, connection errors, bad statuses and unparseable bodies all
// end up here so the caller only has to handle one shape.
type Error struct {
	Endpoint string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Options controls one Post call
type Options struct {
	Timeout    time.Duration // per-attempt timeout, must be > 0
	MaxRetries int           // extra attempts after the first, >= 0
	Backoff    time.Duration // fixed delay between attempts
}

// Reply is a parsed 2xx response body
type Reply struct {
	Body map[string]any
}

// Text extracts the reply text from a duck-typed backend body.
// Backends disagree on the field name (content vs response vs message),
// so we accept all three and log anything that matches none.
func (r *Reply) Text() (string, error) {
	for _, key := range []string{"content", "response", "message"} {
		if v, ok := r.Body[key].(string); ok && v != "" {
			return v, nil
		}
	}
	log.Printf("Transport: response body has no content/response/message field (keys: %v)", bodyKeys(r.Body))
	return "", errors.New("no reply text in response body")
}

func bodyKeys(body map[string]any) []string {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	return keys
}

// Client issues JSON POST requests with bounded retries
type Client struct {
	hc *http.Client
}

// NewClient creates a transport client. Connection setup gets its own
// short timeout so a dead host fails fast; the per-call deadline comes
// from Options.Timeout.
func NewClient() *Client {
	return &Client{
		hc: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Post sends payload as JSON to endpoint. On any 2xx with a parseable
// JSON body it returns the reply; otherwise it retries up to
// opts.MaxRetries times with a fixed backoff and returns the last error.
func (c *Client) Post(ctx context.Context, endpoint string, payload any, opts Options) (*Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Message: "encode request: " + err.Error(), Cause: err}
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 && opts.Backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, &Error{Endpoint: endpoint, Message: "cancelled: " + ctx.Err().Error(), Cause: ctx.Err()}
			case <-time.After(opts.Backoff):
			}
		}

		reply, err := c.attempt(ctx, endpoint, body, opts.Timeout)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		// Context gone: retrying cannot help
		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, endpoint string, body []byte, timeout time.Duration) (*Reply, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Message: "build request: " + err.Error(), Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Endpoint: endpoint, Message: "request timed out", Cause: err}
		}
		return nil, &Error{Endpoint: endpoint, Message: "connection failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{
			Endpoint: endpoint,
			Message:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(raw)),
		}
	}

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Endpoint: endpoint, Message: "parse response: " + err.Error(), Cause: err}
	}

	return &Reply{Body: parsed}, nil
}
