// Package fbx implements the Freebox OS management API: the transport
// client, the registration and login handshakes, and the authenticated
// session used for every counter read.
package fbx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	fbxerrors "github.com/Dlizzz/fbxmetrics/internal/errors"
)

// authHeader is the session header mandated by the Freebox API.
const authHeader = "X-Fbx-App-Auth"

// Client is the HTTP transport for Freebox API calls. All responses share
// the `{success, result, error_code, msg}` envelope; Client unwraps it and
// classifies device-reported errors.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client rooted at the endpoint's versioned base URL.
// The rate limiter keeps polling below the device's request-rate protection.
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     timeout,
				MaxIdleConnsPerHost: 2,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// SetBaseURL re-points the client after the endpoint has been re-resolved.
// The device can move between its mDNS address and the stable API domain
// across reconnects.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = baseURL
}

func (c *Client) base() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// envelope is the wrapper around every Freebox API response body.
type envelope struct {
	Success   bool            `json:"success"`
	Msg       string          `json:"msg"`
	ErrorCode string          `json:"error_code"`
	Result    json.RawMessage `json:"result"`
}

// apiError is an error reported by the device itself (success=false).
type apiError struct {
	Code string
	Msg  string
}

func (e *apiError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("freebox api error %s", e.Code)
	}
	return fmt.Sprintf("freebox api error %s: %s", e.Code, e.Msg)
}

// Get performs an unauthenticated GET and returns the raw result.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, path, nil, "")
}

// Post performs an unauthenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, path, body, "")
}

// request performs one API round trip. A non-empty token is attached as the
// session header. The returned error is always classified.
func (c *Client) request(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error) {
	op := "fbx." + method + " " + path

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fbxerrors.E(fbxerrors.KindUnreachable, op, err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fbxerrors.E(fbxerrors.KindUnreachable, op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, reader)
	if err != nil {
		return nil, fbxerrors.E(fbxerrors.KindUnreachable, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(authHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fbxerrors.E(fbxerrors.KindUnreachable, op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fbxerrors.E(fbxerrors.KindUnreachable, op, err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fbxerrors.Errorf(fbxerrors.KindUnreachable, op,
			"unparsable response (status %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		return nil, classify(op, &apiError{Code: env.ErrorCode, Msg: env.Msg})
	}

	return env.Result, nil
}

// classify maps a device-reported error code to the taxonomy. Codes outside
// the authentication family stay transient: the scheduler retries them and
// the collector records them per target.
func classify(op string, apiErr *apiError) error {
	switch apiErr.Code {
	case "auth_required":
		return fbxerrors.E(fbxerrors.KindAuthRequired, op, apiErr)
	case "invalid_token":
		return fbxerrors.E(fbxerrors.KindAuthRejected, op, apiErr)
	default:
		return fbxerrors.E(fbxerrors.KindUnreachable, op, apiErr)
	}
}
