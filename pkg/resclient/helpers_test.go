package resclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testSubscriptionKey = "sub-key-123"
	testTokenPath       = DefaultTokenPath
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// recorder keeps every request the fake API receives.
type recorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (r *recorder) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))

		r.mu.Lock()
		r.reqs = append(r.reqs, recordedRequest{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.RawQuery,
			Header: req.Header.Clone(),
			Body:   body,
		})
		r.mu.Unlock()

		next.ServeHTTP(w, req)
	})
}

func (r *recorder) count(method, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.reqs {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

func (r *recorder) last(method, path string) recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.reqs) - 1; i >= 0; i-- {
		if r.reqs[i].Method == method && r.reqs[i].Path == path {
			return r.reqs[i]
		}
	}
	return recordedRequest{}
}

// sequence lists "METHOD /path" for every request in arrival order.
func (r *recorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.reqs))
	for _, req := range r.reqs {
		out = append(out, req.Method+" "+req.Path)
	}
	return out
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

// sleepRecorder replaces the backoff sleep so tests run instantly.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type testAPI struct {
	client *Client
	rec    *recorder
	sleeps *sleepRecorder
	server *httptest.Server
}

// newTestAPI starts handler behind a recorder and points a Client at it.
func newTestAPI(t *testing.T, handler http.Handler, mutate ...func(*Config)) *testAPI {
	t.Helper()

	rec := &recorder{}
	srv := httptest.NewServer(rec.wrap(handler))
	t.Cleanup(srv.Close)

	cfg := Config{BaseURL: srv.URL, SubscriptionKey: testSubscriptionKey}
	for _, m := range mutate {
		m(&cfg)
	}

	client, err := New(cfg, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	sleeps := &sleepRecorder{}
	client.sleep = sleeps.sleep

	return &testAPI{client: client, rec: rec, sleeps: sleeps, server: srv}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func bearerOf(h http.Header) string {
	const prefix = "Bearer "
	v := h.Get("Authorization")
	if len(v) < len(prefix) || v[:len(prefix)] != prefix {
		return ""
	}
	return v[len(prefix):]
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
