package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/skyres/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestNewRedactsSensitiveAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "test", Level: "debug", Format: "json", Output: &buf})

	logger.Info("login", "password", "hunter2", "username", "alice")

	out := buf.String()
	require.NotContains(t, out, "hunter2")
	require.Contains(t, out, slogx.Redacted)
	require.Contains(t, out, "alice")
}

func TestHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	h.Set("Ocp-Apim-Subscription-Key", "sub-key")
	h.Set("X-Custom-Key", "custom")
	h.Set("Accept", "application/json")

	got := slogx.Headers(h, "x-custom-key")

	require.Equal(t, slogx.Redacted, got["Authorization"])
	require.Equal(t, slogx.Redacted, got["Ocp-Apim-Subscription-Key"])
	require.Equal(t, slogx.Redacted, got["X-Custom-Key"])
	require.Equal(t, "application/json", got["Accept"])
}

func TestPayload(t *testing.T) {
	t.Run("nested credentials", func(t *testing.T) {
		body := []byte(`{"credentials":{"username":"agent","password":"p4ss"},"items":[{"token":"t"}]}`)
		got := slogx.Payload(body)

		raw, err := json.Marshal(got)
		require.NoError(t, err)
		require.NotContains(t, string(raw), "p4ss")
		require.NotContains(t, string(raw), `"t"`)
		require.Contains(t, string(raw), "agent")
	})

	t.Run("non json", func(t *testing.T) {
		require.Equal(t, "<5 bytes>", slogx.Payload([]byte("hello")))
	})

	t.Run("empty", func(t *testing.T) {
		require.Nil(t, slogx.Payload(nil))
	})
}

func TestRoundTripperDoesNotLeakSecrets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := &http.Client{Transport: slogx.RoundTripper(logger, nil, "X-Sub")}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/token",
		strings.NewReader(`{"password":"s3cret"}`))
	require.NoError(t, err)
	req.Header.Set("X-Sub", "subscription-value")
	req.Header.Set("Authorization", "Bearer bearer-value")

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	out := buf.String()
	require.Contains(t, out, "api_request")
	require.Contains(t, out, "api_response")
	require.NotContains(t, out, "s3cret")
	require.NotContains(t, out, "subscription-value")
	require.NotContains(t, out, "bearer-value")
}

func TestFromContextFallback(t *testing.T) {
	base := slogx.Discard()
	require.Same(t, base, slogx.FromContext(context.Background(), base))

	tagged := slogx.Discard()
	ctx := slogx.WithContext(context.Background(), tagged)
	require.Same(t, tagged, slogx.FromContext(ctx, base))
}
