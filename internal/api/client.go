package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/callsight/console/internal/telemetry"
	"github.com/callsight/console/internal/token"
)

const (
	// AccessTokenCookie and RefreshTokenCookie are the credential cookies
	// set by the API server. They live only in the client's cookie jar;
	// nothing outside this package reads their values.
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	requestIDHeader = "X-Request-Id"
	defaultTimeout  = 30 * time.Second

	tracerName = "github.com/callsight/console/internal/api"
)

// Client is the single chokepoint for every call to the CallSight API.
// It resolves the base URL, carries the credential cookies automatically
// and normalizes non-2xx responses into *Error values.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The credential jar
// is still installed on it so cookies keep flowing.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCachingTransport installs an in-memory RFC 7234 cache in front of
// the transport, so cacheable GETs (the server sets Cache-Control on call
// listings) are served locally.
func WithCachingTransport() Option {
	return func(c *Client) {
		c.httpClient.Transport = newCachingTransport(c.httpClient.Transport)
	}
}

// New creates a gateway client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: invalid base URL %q: %w", baseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: base URL %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: failed to create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}

	return c, nil
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// RequestOptions controls a single API request.
type RequestOptions struct {
	Method string
	Header http.Header

	// Body is JSON-encoded unless RawBody is set. RawBody is passed
	// through untouched, for payloads such as multipart uploads where the
	// caller owns the content type.
	Body    any
	RawBody io.Reader

	// Out receives the decoded JSON response. Left untouched on 204 or
	// when nil.
	Out any
}

// Do performs a single request against the API. Credentials attach
// automatically via the cookie jar. Non-2xx responses come back as
// *Error; transport failures are returned wrapped, never absorbed.
// There is no refresh-and-retry here: renewing the session is the session
// manager's job, not the gateway's.
func (c *Client) Do(ctx context.Context, path string, opts RequestOptions) error {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}

	target := c.baseURL.JoinPath(path)

	var body io.Reader
	contentType := ""
	switch {
	case opts.RawBody != nil:
		body = opts.RawBody
	case opts.Body != nil:
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("api: failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, target.String(), body)
	if err != nil {
		return fmt.Errorf("api: failed to create request: %w", err)
	}

	// Copy rather than alias so callers mutating their header after the
	// call cannot touch the in-flight request.
	for name, values := range opts.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	ctx, span := otel.Tracer(tracerName).Start(ctx, opts.Method+" "+path)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", opts.Method),
		attribute.String("url.path", path),
	)
	req = req.WithContext(ctx)

	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.GetMetrics().APIRequestErrorsTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return fmt.Errorf("api: %s %s failed: %w", opts.Method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	telemetry.GetMetrics().APIRequestsTotal.Add(ctx, 1)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	logEvent := log.Debug().
		Str("method", opts.Method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started))
	if access := c.cookieValue(AccessTokenCookie); access != "" {
		// Never log the raw token, only its fingerprint.
		logEvent = logEvent.Str("token_fp", Fingerprint(access))
	}
	logEvent.Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return c.errorFromResponse(resp)
	}

	if resp.StatusCode == http.StatusNoContent || opts.Out == nil {
		// No body guaranteed, nothing to decode.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(opts.Out); err != nil {
		return fmt.Errorf("api: failed to decode %s %s response: %w", opts.Method, path, err)
	}

	return nil
}

// Get performs a GET request, decoding the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, path, RequestOptions{Method: http.MethodGet, Out: out})
}

// Post performs a POST request with a JSON body, decoding the response
// into out. Both body and out may be nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, path, RequestOptions{Method: http.MethodPost, Body: body, Out: out})
}

// Ping reports whether the API is reachable at all. Any HTTP response,
// including 401, counts as reachable; only transport failures are errors.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath("/auth/me").String(), nil)
	if err != nil {
		return fmt.Errorf("api: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: unreachable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// HasAccessToken reports whether an access credential is currently held.
// This is a presence check only; expiry is the server's call.
func (c *Client) HasAccessToken() bool {
	return c.cookieValue(AccessTokenCookie) != ""
}

// HasRefreshToken reports whether a refresh credential is currently held.
func (c *Client) HasRefreshToken() bool {
	return c.cookieValue(RefreshTokenCookie) != ""
}

// AccessClaims decodes the claims of the held access token, or nil if no
// token is held or it does not parse. Used for diagnostics only.
func (c *Client) AccessClaims() *token.Claims {
	return token.Decode(c.cookieValue(AccessTokenCookie))
}

// ClearCredentials drops both credential cookies from the jar. Used when
// the session is torn down locally after the server has already been told
// to log out.
func (c *Client) ClearCredentials() {
	expired := []*http.Cookie{
		{Name: AccessTokenCookie, MaxAge: -1, Path: "/"},
		{Name: RefreshTokenCookie, MaxAge: -1, Path: "/"},
	}
	c.httpClient.Jar.SetCookies(c.baseURL, expired)
}

func (c *Client) cookieValue(name string) string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		raw = nil
	}

	message := fmt.Sprintf("request failed with status %d", resp.StatusCode)

	var parsed errorBody
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Detail != "" {
			message = parsed.Detail
		}
	}

	return &Error{
		Status:  resp.StatusCode,
		Message: message,
		Body:    raw,
	}
}
