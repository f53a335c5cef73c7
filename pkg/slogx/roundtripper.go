package slogx

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RoundTripper logs every outbound request with its redacted headers and
// payload, then the status and latency. secretHeaders names additional
// headers to hide, such as a custom subscription key header.
func RoundTripper(base *slog.Logger, next http.RoundTripper, secretHeaders ...string) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{base: base, next: next, secret: secretHeaders}
}

type loggingTransport struct {
	base   *slog.Logger
	next   http.RoundTripper
	secret []string
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := FromContext(req.Context(), t.base).With(
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	logger.Debug("api_request",
		"headers", Headers(req.Header, t.secret...),
		"payload", requestPayload(req),
	)

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("api_transport_error", "error", err, "duration_ms", duration)
		return nil, err
	}

	logger.Info("api_response",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}

func requestPayload(req *http.Request) any {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil
	}
	return Payload(data)
}
