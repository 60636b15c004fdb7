// ABOUTME: HTTP client for the restaurant backend REST API
// ABOUTME: Unwraps {data} envelopes and maps failures onto the typed error taxonomy

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/google/uuid"
)

// Client is the REST client shared by the auth client and dashboard fetcher
type Client struct {
	baseURL        string
	httpClient     *http.Client
	onUnauthorized func(error)
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the overall request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithDialContext routes connections through dial (e.g. the SOCKS5 proxy)
func WithDialContext(dial DialContextFunc) Option {
	return func(c *Client) {
		if dial == nil {
			return
		}
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.DialContext = dial
		c.httpClient.Transport = t
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithOnUnauthorized registers the hook run when an authenticated request gets 401.
// It runs before the error is returned to the caller.
func WithOnUnauthorized(fn func(error)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New creates a new API client with the given base URL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend URL requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetOnUnauthorized replaces the 401 hook after construction
func (c *Client) SetOnUnauthorized(fn func(error)) {
	c.onUnauthorized = fn
}

// Request describes one REST call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Session authenticates the request; a 401 then means the session is no longer valid
	Session *models.Session

	// Reject is the kind used for 4xx responses that carry no more specific signal
	Reject models.Kind
}

// Failure is the error body returned by the backend
type Failure struct {
	Message           string         `json:"message"`
	Error             string         `json:"error"`
	Errors            map[string]any `json:"errors"`
	RetryAfterSeconds int            `json:"retryAfterSeconds"`
	RequireCaptcha    bool           `json:"requireCaptcha"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Do sends req and decodes the envelope's data into out (which may be nil)
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	requestID := httpReq.Header.Get("X-Request-ID")
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Debug("Request failed", "request_id", requestID, "path", req.Path, "error", err)
		return c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	slog.Debug("Request completed",
		"request_id", requestID,
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return models.WrapError(models.ErrServiceUnavailable, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(req, resp, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.WrapError(models.ErrServiceUnavailable, "invalid response from backend", err)
	}
	payload := env.Data
	if len(payload) == 0 {
		payload = body
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return models.WrapError(models.ErrServiceUnavailable, "invalid response from backend", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Session != nil {
		httpReq.Header.Set("Authorization", req.Session.AuthorizationHeader())
	}
	return httpReq, nil
}

// handleRequestError converts transport failures to ServiceUnavailable with user-friendly messages
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return models.WrapError(models.ErrServiceUnavailable, "request canceled", err)
	}
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.WrapError(models.ErrServiceUnavailable, "request timed out", err)
	}
	return models.WrapError(models.ErrServiceUnavailable, fmt.Sprintf("cannot connect to backend at %s", c.baseURL), err)
}

// handleErrorResponse classifies a non-2xx response
func (c *Client) handleErrorResponse(req Request, resp *http.Response, body []byte) error {
	var f Failure
	if len(body) > 0 {
		_ = json.Unmarshal(body, &f) // non-JSON bodies fall back to the status text
	}

	message := f.Message
	if message == "" {
		message = f.Error
	}
	if message == "" {
		message = fmt.Sprintf("backend returned status %d", resp.StatusCode)
	}

	e := &models.Error{
		Message:           message,
		Status:            resp.StatusCode,
		RetryAfterSeconds: f.RetryAfterSeconds,
		RequireCaptcha:    f.RequireCaptcha,
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = models.ErrRateLimited
		if e.RetryAfterSeconds == 0 {
			e.RetryAfterSeconds = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
	case f.RequireCaptcha:
		e.Kind = models.ErrCaptchaRequired
	case resp.StatusCode == http.StatusUnauthorized && req.Session != nil:
		e.Kind = models.ErrUnauthorized
		if c.onUnauthorized != nil {
			c.onUnauthorized(e)
		}
	case resp.StatusCode >= 500:
		e.Kind = models.ErrServiceUnavailable
	case len(f.Errors) > 0 && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity):
		e.Kind = models.ErrValidationFailed
		e.Fields = flattenFieldErrors(f.Errors)
	case req.Reject != "":
		e.Kind = req.Reject
	default:
		e.Kind = models.ErrServiceUnavailable
	}

	return e
}

// parseRetryAfter reads a delta-seconds or HTTP-date Retry-After header
func parseRetryAfter(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return secs
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return int(d.Round(time.Second).Seconds())
		}
	}
	return 0
}

// flattenFieldErrors accepts {"field": "msg"} and {"field": ["a", "b"]}
func flattenFieldErrors(errs map[string]any) map[string]string {
	out := make(map[string]string, len(errs))
	for field, v := range errs {
		switch t := v.(type) {
		case string:
			out[field] = t
		case []any:
			msgs := make([]string, 0, len(t))
			for _, m := range t {
				if s, ok := m.(string); ok {
					msgs = append(msgs, s)
				}
			}
			sort.Strings(msgs)
			out[field] = strings.Join(msgs, "; ")
		default:
			out[field] = fmt.Sprint(t)
		}
	}
	return out
}
