// Package rest is the HTTP adapter for the document-management backend.
//
// Every call goes through a two-stage pipeline around net/http:
//
//   - request hooks run before sending; the bearer hook attaches the stored token
//   - the response hook runs on arrival; on a 401 it refreshes the token once
//     and replays the request
//
// A request is replayed at most once. When the refresh fails, the token store
// is cleared, the session-expired callback fires, and the caller receives the
// original 401 wrapped in *session.SessionExpiredError.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/docdesk/docdesk/internal/ctxkey"
	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/session"
	"github.com/docdesk/docdesk/internal/port/outbound"
)

// DefaultTimeout is the per-call transport budget.
const DefaultTimeout = 10 * time.Second

// maxResponseBody caps how much of a response is read into memory.
const maxResponseBody = 32 << 20

const tracerName = "github.com/docdesk/docdesk/internal/adapter/outbound/rest"

// Request is one backend call. Body is kept as bytes so the request can be replayed.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string

	// NoRefresh exempts the request from refresh-on-401. Set for the
	// credential endpoints, whose 401 means bad credentials.
	NoRefresh bool

	retried   bool
	sentToken string
}

// Op returns "METHOD /path" for logs and errors.
func (r *Request) Op() string {
	return r.Method + " " + r.Path
}

// Retried reports whether the request has already been replayed after a refresh.
func (r *Request) Retried() bool {
	return r.retried
}

// Response is a fully read backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// RequestHook runs on every outgoing request before it is sent.
type RequestHook func(ctx context.Context, httpReq *http.Request, req *Request)

// ResponseHook runs on every response. It may replace the response, for
// example with the result of a replay, or fail the call.
type ResponseHook func(ctx context.Context, req *Request, resp *Response) (*Response, error)

// Client is the backend REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tokens     session.TokenStore
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer

	before []RequestHook
	after  ResponseHook

	refreshGroup singleflight.Group
	onRefreshed  []func(ctx context.Context, grant *auth.Grant)
	onExpired    []func(ctx context.Context)
}

var _ outbound.AuthBackend = (*Client)(nil)

// New creates a Client for the backend at baseURL, reading and writing the
// bearer token through tokens.
func New(baseURL string, tokens session.TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		tokens:  tokens,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.tracer == nil {
		c.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	c.before = append([]RequestHook{c.requestIDHook, c.bearerHook}, c.before...)
	c.after = c.refreshHook
	return c
}

// OnTokenRefreshed registers fn to run after every successful refresh,
// whether triggered by a 401 or called explicitly.
// Register callbacks before the client is shared between goroutines.
func (c *Client) OnTokenRefreshed(fn func(ctx context.Context, grant *auth.Grant)) {
	c.onRefreshed = append(c.onRefreshed, fn)
}

// OnSessionExpired registers fn to run when a 401 could not be recovered by a
// refresh. fn is the redirect-to-login side effect.
// Register callbacks before the client is shared between goroutines.
func (c *Client) OnSessionExpired(fn func(ctx context.Context)) {
	c.onExpired = append(c.onExpired, fn)
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do runs req through the pipeline. Any status >= 400 left after the
// response hook is returned as a taxonomy error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err = c.after(ctx, req, resp)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, statusError(resp)
	}
	return resp, nil
}

// call runs req and decodes a JSON response into out, if out is non-nil.
func (c *Client) call(ctx context.Context, req *Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", req.Op(), err)
	}
	return nil
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(method, path string, body any) (*Request, error) {
	req := &Request{Method: method, Path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		req.Body = data
		req.ContentType = "application/json"
	}
	return req, nil
}

// send performs one HTTP round trip for req, with request hooks applied.
// Transport failures, including timeouts, become *session.NetworkError.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "backend "+req.Op(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.Bool("docdesk.retried", req.retried),
		))
	defer span.End()

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: create request: %w", req.Op(), err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for _, hook := range c.before {
		hook(ctx, httpReq, req)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(req, "network_error", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "network failure")
		c.log(ctx).Warn("backend unreachable", "op", req.Op(), "error", err, "duration", elapsed)
		return nil, &session.NetworkError{Op: req.Op(), Cause: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		c.observe(req, "network_error", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, &session.NetworkError{Op: req.Op(), Cause: fmt.Errorf("read response body: %w", err)}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", httpResp.StatusCode))
	if httpResp.StatusCode >= 500 {
		span.SetStatus(codes.Error, http.StatusText(httpResp.StatusCode))
	}
	c.observe(req, outcomeFor(httpResp.StatusCode), elapsed)
	c.log(ctx).Debug("backend call",
		"op", req.Op(),
		"status", httpResp.StatusCode,
		"duration", elapsed,
		"retried", req.retried,
	)

	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

// requestIDHook forwards the request ID from ctx, or a fresh one, as X-Request-ID.
func (c *Client) requestIDHook(ctx context.Context, httpReq *http.Request, _ *Request) {
	id, _ := ctx.Value(ctxkey.RequestIDKey{}).(string)
	if id == "" {
		id = uuid.New().String()
	}
	httpReq.Header.Set("X-Request-ID", id)
}

// bearerHook attaches the stored token as a bearer credential. No-op when absent.
func (c *Client) bearerHook(ctx context.Context, httpReq *http.Request, req *Request) {
	token, ok := c.tokens.Get(ctx)
	if !ok {
		req.sentToken = ""
		return
	}
	req.sentToken = token
	httpReq.Header.Set("Authorization", "Bearer "+token)
}

// refreshHook recovers a 401 by refreshing the token and replaying req once.
func (c *Client) refreshHook(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	if resp.Status != http.StatusUnauthorized || req.NoRefresh {
		return resp, nil
	}
	original := statusError(resp)

	if req.retried {
		// The replay carried a fresh token and was still rejected.
		c.expire(ctx, req)
		return nil, &session.SessionExpiredError{Cause: original}
	}
	req.retried = true

	// Another caller may have refreshed while this request was in flight.
	current, ok := c.tokens.Get(ctx)
	if !ok || current == req.sentToken {
		if _, err := c.Refresh(ctx); err != nil {
			c.log(ctx).Info("token refresh failed, ending session", "op", req.Op(), "error", err)
			c.expire(ctx, req)
			return nil, &session.SessionExpiredError{Cause: original}
		}
	}

	replayed, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.refreshHook(ctx, req, replayed)
}

// Refresh trades the current token for a new one via POST /api/refresh and
// stores it. Concurrent callers, including 401 recovery, share one backend call.
func (c *Client) Refresh(ctx context.Context) (*auth.Grant, error) {
	leader := false
	v, err, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		leader = true
		// Detached so one caller's cancellation does not fail the others;
		// the transport timeout still bounds the call.
		return c.refresh(context.WithoutCancel(ctx))
	})
	// Do reports shared to the leader too; only joiners count here.
	if shared && !leader {
		c.metrics.refresh("shared")
	}
	if err != nil {
		return nil, err
	}
	g := *v.(*auth.Grant)
	return &g, nil
}

func (c *Client) refresh(ctx context.Context) (*auth.Grant, error) {
	ctx, span := c.tracer.Start(ctx, "backend token refresh")
	defer span.End()

	var grant auth.Grant
	err := c.call(ctx, &Request{Method: http.MethodPost, Path: "/api/refresh", NoRefresh: true}, &grant)
	if err == nil && grant.Token == "" {
		err = fmt.Errorf("POST /api/refresh: response carried no token")
	}
	if err != nil {
		c.metrics.refresh("failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return nil, err
	}

	c.tokens.Set(ctx, grant.Token)
	c.metrics.refresh("success")
	c.log(ctx).Debug("token refreshed", "fingerprint", auth.Fingerprint(grant.Token))
	for _, fn := range c.onRefreshed {
		fn(ctx, &grant)
	}
	return &grant, nil
}

// expire clears the token store and fires the session-expired callbacks.
func (c *Client) expire(ctx context.Context, req *Request) {
	c.tokens.Clear(ctx)
	c.metrics.expired()
	c.log(ctx).Warn("session expired", "op", req.Op())
	for _, fn := range c.onExpired {
		fn(ctx)
	}
}

func (c *Client) observe(req *Request, outcome string, elapsed time.Duration) {
	c.metrics.request(req.Method, outcome, elapsed)
}

// log returns the request-scoped logger from ctx, or the client's logger.
func (c *Client) log(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return c.logger
}

func outcomeFor(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return "ok"
	}
}
