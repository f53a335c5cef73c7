package slogx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Redacted replaces secret values in log output.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"authorization":             true,
	"proxy-authorization":       true,
	"ocp-apim-subscription-key": true,
	"subscription_key":          true,
	"subscriptionkey":           true,
	"x-api-key":                 true,
	"api_key":                   true,
	"password":                  true,
	"newpassword":               true,
	"secret":                    true,
	"client_secret":             true,
	"token":                     true,
	"access_token":              true,
	"accesstoken":               true,
	"refresh_token":             true,
}

// IsSensitive reports whether a header, attribute or JSON field name carries
// a credential.
func IsSensitive(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// Headers flattens h for logging. Sensitive headers, plus any names listed in
// extra, are replaced with Redacted.
func Headers(h http.Header, extra ...string) map[string]string {
	hidden := make(map[string]bool, len(extra))
	for _, name := range extra {
		hidden[http.CanonicalHeaderKey(name)] = true
	}

	out := make(map[string]string, len(h))
	for name, values := range h {
		if IsSensitive(name) || hidden[http.CanonicalHeaderKey(name)] {
			out[name] = Redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// Payload decodes a JSON body and redacts sensitive fields at any depth.
// Non-JSON bodies are summarised by size only.
func Payload(body []byte) any {
	if len(body) == 0 {
		return nil
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Sprintf("<%d bytes>", len(body))
	}
	return redactValue(doc)
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			if IsSensitive(k) {
				t[k] = Redacted
				continue
			}
			t[k] = redactValue(inner)
		}
		return t
	case []any:
		for i := range t {
			t[i] = redactValue(t[i])
		}
		return t
	default:
		return v
	}
}
