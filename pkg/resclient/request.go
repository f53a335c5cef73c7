package resclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request describes one outbound API call.
type Request struct {
	// Method is the HTTP verb.
	Method string

	// Path is relative to the configured base URL, e.g. "/api/nsk/v4/booking".
	Path string

	// Query is appended to the URL.
	Query url.Values

	// Body is encoded as JSON. []byte and json.RawMessage are sent as-is.
	Body any

	// Header overrides the defaults; caller values win on conflict.
	Header http.Header

	// AuthClass marks identity endpoint calls. They never get the stored
	// bearer token attached and never trigger a refresh, which keeps a
	// refresh from recursing into itself.
	AuthClass bool
}

// URL joins base, path and query.
func (r Request) URL(base string) (string, error) {
	if r.Path == "" {
		return "", fmt.Errorf("request path is empty")
	}

	full := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(r.Path, "/")
	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("invalid request url: %w", err)
	}

	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// encodeBody returns the JSON payload, or nil when there is none.
func (r Request) encodeBody() ([]byte, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
}

// bearer builds an Authorization header for identity calls that must carry
// the current token explicitly.
func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
