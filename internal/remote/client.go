// Package remote is the HTTP client for the storefront API. It attaches the
// bearer token to non-public paths, normalizes every failure into *Error and
// never retries.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const headerRequestID = "X-Request-ID"

// TokenSource yields the current bearer token, or "" when anonymous.
type TokenSource interface {
	Token(ctx context.Context) string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// BreakerFailures consecutive transport or 5xx failures open the breaker
	// for BreakerCooldown. Zero disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Response is a raw successful response.
type Response struct {
	Status int
	Body   []byte
	// JSON is set when the response declared a JSON content type.
	JSON bool
}

type Client struct {
	http    *resty.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	log     *slog.Logger
}

func NewClient(cfg Config, tokens TokenSource, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport))

	c := &Client{
		http:   rc,
		tokens: tokens,
		log:    log.With("component", "remote"),
	}

	if cfg.BreakerFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
			Name:        "storefront-api",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return c
}

// serverError makes 5xx responses count as breaker failures while keeping
// the response for the caller.
type serverError struct {
	resp *resty.Response
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error %d", e.resp.StatusCode())
}

// Do sends a JSON request. body may be nil.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	req := c.request(ctx, method, path)
	req.SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	return c.send(ctx, req, method, path)
}

// File is one part of a multipart upload.
type File struct {
	Field    string
	Name     string
	Contents io.Reader
}

// Upload sends a multipart form. The multipart content type is set by the
// encoder; no JSON content type is forced.
func (c *Client) Upload(ctx context.Context, method, path string, fields map[string]string, files ...File) (*Response, error) {
	req := c.request(ctx, method, path)
	if len(fields) > 0 {
		req.SetFormData(fields)
	}
	for _, f := range files {
		req.SetFileReader(f.Field, f.Name, f.Contents)
	}
	return c.send(ctx, req, method, path)
}

func (c *Client) request(ctx context.Context, method, path string) *resty.Request {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader(headerRequestID, requestID(ctx))

	if c.tokens != nil && !IsPublic(method, path) {
		if token := c.tokens.Token(ctx); token != "" {
			req.SetAuthToken(token)
		}
	}
	return req
}

func (c *Client) send(ctx context.Context, req *resty.Request, method, path string) (*Response, error) {
	start := time.Now()
	resp, err := c.execute(req, method, path)
	if err != nil {
		c.log.WarnContext(ctx, "remote call failed",
			"method", method, "path", path, "error", err, "elapsed", time.Since(start))
		return nil, networkError(err)
	}

	out := &Response{
		Status: resp.StatusCode(),
		Body:   resp.Body(),
		JSON:   strings.Contains(resp.Header().Get("Content-Type"), "application/json"),
	}
	c.log.DebugContext(ctx, "remote call",
		"method", method, "path", path, "status", out.Status, "elapsed", time.Since(start))

	if out.Status < 200 || out.Status > 299 {
		return nil, httpError(out)
	}
	return out, nil
}

func (c *Client) execute(req *resty.Request, method, path string) (*resty.Response, error) {
	if c.breaker == nil {
		return req.Execute(method, path)
	}

	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 500 {
			return resp, &serverError{resp: resp}
		}
		return resp, nil
	})

	var se *serverError
	if errors.As(err, &se) {
		return se.resp, nil
	}
	return resp, err
}

func httpError(resp *Response) *Error {
	e := &Error{Code: CodeHTTP, Status: resp.Status, Message: msgAPIError}
	if !resp.JSON {
		text := string(resp.Body)
		e.Data = text
		if strings.TrimSpace(text) != "" {
			e.Message = text
		}
		return e
	}

	var data any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		e.Data = string(resp.Body)
		return e
	}
	e.Data = data
	if obj, ok := data.(map[string]any); ok {
		if msg, ok := obj["message"].(string); ok && msg != "" {
			e.Message = msg
		}
	}
	return e
}

// IsPublic reports whether a request goes out without credentials: catalog
// reads, image assets and the auth endpoints.
func IsPublic(method, path string) bool {
	switch {
	case strings.HasPrefix(path, "/api/v1/productos") && strings.EqualFold(method, http.MethodGet):
		return true
	case strings.HasPrefix(path, "/api/v1/imagenes"):
		return true
	case strings.HasPrefix(path, "/api/v1/auth/"):
		return true
	}
	return false
}

func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
