package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// maxErrorBody caps how much of a failed response body is kept in a TransportError.
const maxErrorBody = 512

// BreakerConfig configures the HTTP circuit breaker.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration

	// The breaker trips once at least MinRequests were seen in the current
	// interval and the failure ratio reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// HTTP is a Transport that talks to a GraphQL endpoint over HTTP.
type HTTP struct {
	base    *url.URL
	client  *http.Client
	header  http.Header
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	client  *http.Client
	header  http.Header
	breaker BreakerConfig
	logger  *slog.Logger
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(o *httpOptions) { o.client = c }
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) HTTPOption {
	return func(o *httpOptions) { o.header.Add(key, value) }
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg BreakerConfig) HTTPOption {
	return func(o *httpOptions) { o.breaker = cfg }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(o *httpOptions) { o.logger = l }
}

// NewHTTP creates an HTTP transport. Relative endpoints passed to Request are
// resolved against baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTP, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}

	o := httpOptions{
		client:  &http.Client{Timeout: 30 * time.Second},
		header:  http.Header{},
		breaker: DefaultBreakerConfig("graphql-http"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	h := &HTTP{
		base:   base,
		client: o.client,
		header: o.header,
		logger: o.logger,
	}
	h.breaker = newBreaker(o.breaker, o.logger)
	return h, nil
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Client errors say nothing about endpoint health.
			var te *TransportError
			if errors.As(err, &te) && te.StatusCode >= 400 && te.StatusCode < 500 {
				return true
			}
			return err == nil
		},
	})
}

// BreakerState returns the current circuit breaker state.
func (h *HTTP) BreakerState() gobreaker.State {
	return h.breaker.State()
}

// Request posts req to endpoint.
func (h *HTTP) Request(ctx context.Context, endpoint string, req Request, files []File) (*Response, error) {
	target, err := h.resolve(endpoint)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Message: "invalid endpoint", Err: err}
	}

	result, err := h.breaker.Execute(func() (any, error) {
		return h.do(ctx, target, req, files)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Endpoint: target, Message: "circuit open", Err: err}
		}
		return nil, err
	}
	return result.(*Response), nil
}

func (h *HTTP) resolve(endpoint string) (string, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	return h.base.ResolveReference(ref).String(), nil
}

func (h *HTTP) do(ctx context.Context, target string, req Request, files []File) (*Response, error) {
	body, contentType, err := encodeBody(req, files)
	if err != nil {
		return nil, &TransportError{Endpoint: target, Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, &TransportError{Endpoint: target, Message: "build request", Err: err}
	}
	for k, vs := range h.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Endpoint: target, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: target, StatusCode: httpResp.StatusCode, Message: "read body", Err: err}
	}

	h.logger.Debug("graphql request",
		"endpoint", target,
		"mutation", req.IsMutation(),
		"files", len(files),
		"status", httpResp.StatusCode,
		"duration", time.Since(start))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &TransportError{Endpoint: target, StatusCode: httpResp.StatusCode, Message: msg}
	}

	resp, err := DecodeResponse(respBody)
	if err != nil {
		return nil, &TransportError{Endpoint: target, StatusCode: httpResp.StatusCode, Err: err}
	}
	return resp, nil
}

// encodeBody renders the request as JSON, or as multipart/form-data with an
// "operations" part followed by one part per file.
func encodeBody(req Request, files []File) (io.Reader, string, error) {
	operations, err := json.Marshal(req)
	if err != nil {
		return nil, "", err
	}
	if len(files) == 0 {
		return bytes.NewReader(operations), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("operations", string(operations)); err != nil {
		return nil, "", err
	}
	for i, f := range files {
		field := f.Field
		if field == "" {
			field = fmt.Sprintf("file%d", i)
		}
		name := f.Name
		if name == "" {
			name = field
		}
		part, err := createFilePart(mw, field, name, f.ContentType)
		if err != nil {
			return nil, "", err
		}
		if f.Content != nil {
			if _, err := io.Copy(part, f.Content); err != nil {
				return nil, "", fmt.Errorf("copy file %q: %w", name, err)
			}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func createFilePart(mw *multipart.Writer, field, name, contentType string) (io.Writer, error) {
	if contentType == "" {
		return mw.CreateFormFile(field, name)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", contentType)
	return mw.CreatePart(h)
}
