package resclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/aussiebroadwan/skyres/pkg/httpx"
	"github.com/aussiebroadwan/skyres/pkg/idx"
	"github.com/aussiebroadwan/skyres/pkg/slogx"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// RawResponse is what came back over the wire, before classification.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
	RequestID  string
	Duration   time.Duration
}

// Executor turns a Request into one HTTP exchange. It knows nothing about
// retries or tokens beyond attaching the one it is handed.
type Executor struct {
	baseURL            string
	subscriptionKey    string
	subscriptionHeader string
	userAgent          string
	timeout            time.Duration

	httpClient *http.Client
	logger     *slog.Logger
}

// NewExecutor builds the transport stack: optional HTTP/2, the outbound rate
// limiter, then request logging when enabled.
func NewExecutor(cfg Config, logger *slog.Logger) (*Executor, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to configure HTTP/2 transport: %w", err)
		}
	}

	var rt http.RoundTripper = httpx.RateLimitTransport(cfg.RateLimit, transport)
	if cfg.Logging.Enabled {
		rt = slogx.RoundTripper(logger, rt, cfg.SubscriptionHeader)
	}

	return newExecutor(cfg, &http.Client{Transport: rt}, logger), nil
}

func newExecutor(cfg Config, httpClient *http.Client, logger *slog.Logger) *Executor {
	return &Executor{
		baseURL:            cfg.BaseURL,
		subscriptionKey:    cfg.SubscriptionKey,
		subscriptionHeader: cfg.SubscriptionHeader,
		userAgent:          cfg.UserAgent,
		timeout:            cfg.Timeout,
		httpClient:         httpClient,
		logger:             logger,
	}
}

// Execute sends req once. token is attached as a bearer credential unless it
// is empty or req is auth-class. Any failure to obtain a response is a
// *TransportError; any response at all, whatever its status, is returned.
func (e *Executor) Execute(ctx context.Context, req Request, token string) (*RawResponse, error) {
	target, err := req.URL(e.baseURL)
	if err != nil {
		return nil, err
	}

	body, err := req.encodeBody()
	if err != nil {
		return nil, err
	}

	reqID := req.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = idx.New().String()
	}

	ctx = slogx.WithRequestID(ctx, e.logger, reqID)
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	e.setHeaders(httpReq, req, token, reqID)

	start := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{
			Method:  req.Method,
			URL:     target,
			Timeout: isTimeout(err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{
			Method:  req.Method,
			URL:     target,
			Timeout: isTimeout(err),
			Err:     fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        target,
		RequestID:  reqID,
		Duration:   time.Since(start),
	}, nil
}

func (e *Executor) setHeaders(httpReq *http.Request, req Request, token, reqID string) {
	h := httpReq.Header
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-Request-ID", reqID)
	if e.userAgent != "" {
		h.Set("User-Agent", e.userAgent)
	}
	if e.subscriptionKey != "" {
		h.Set(e.subscriptionHeader, e.subscriptionKey)
	}
	if token != "" && !req.AuthClass {
		h.Set("Authorization", "Bearer "+token)
	}

	// Caller headers take precedence
	for key, values := range req.Header {
		h.Del(key)
		for _, v := range values {
			h.Add(key, v)
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
