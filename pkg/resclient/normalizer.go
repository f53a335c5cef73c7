package resclient

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/skyres/pkg/httpx"
	"github.com/aussiebroadwan/skyres/pkg/slogx"
)

const defaultSuccessMessage = "Request successful"

// Normalizer classifies raw responses into an Envelope or a typed *Error.
type Normalizer struct {
	logger    *slog.Logger
	logErrors bool
	now       func() time.Time
}

func NewNormalizer(logger *slog.Logger, logErrors bool) *Normalizer {
	return &Normalizer{logger: logger, logErrors: logErrors, now: time.Now}
}

// Normalize maps 2xx to an Envelope and everything else to an *Error:
// 401 authentication, 400/422 validation, 429 rate limit, other api.
func (n *Normalizer) Normalize(ctx context.Context, req Request, raw *RawResponse) (*Envelope, error) {
	if httpx.IsSuccess(raw.StatusCode) {
		return n.success(req, raw), nil
	}

	err := n.failure(req, raw)
	if n.logErrors {
		slogx.FromContext(ctx, n.logger).Warn("api_error",
			"method", req.Method,
			"endpoint", req.Path,
			"status", raw.StatusCode,
			"kind", err.Kind.String(),
			"message", err.Message,
			"req_id", err.RequestID,
		)
	}
	return nil, err
}

func (n *Normalizer) success(req Request, raw *RawResponse) *Envelope {
	data := decodeData(raw.Body)

	message := defaultSuccessMessage
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		message = body.Message
	}

	return &Envelope{
		Success: true,
		Data:    data,
		Message: message,
		Errors:  []string{},
		Meta: Meta{
			Endpoint:   req.Path,
			Method:     req.Method,
			StatusCode: raw.StatusCode,
			RequestID:  responseRequestID(raw),
			Timestamp:  n.now().UTC(),
		},
	}
}

func (n *Normalizer) failure(req Request, raw *RawResponse) *Error {
	body := parseErrorBody(raw.Body)

	e := &Error{
		StatusCode: raw.StatusCode,
		Message:    body.message(raw.StatusCode),
		Method:     req.Method,
		Endpoint:   req.Path,
		RequestID:  responseRequestID(raw),
	}

	switch raw.StatusCode {
	case http.StatusUnauthorized:
		e.Kind = KindAuthentication
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		e.Kind = KindValidation
		e.Fields = body.fields()
	case http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = httpx.ParseRetryAfter(raw.Header, n.now())
	default:
		e.Kind = KindAPI
	}
	return e
}

// decodeData keeps JSON bodies as they are, maps an empty body to null and
// wraps anything else as a JSON string so Data is always valid JSON.
func decodeData(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return json.RawMessage(quoted)
}

// responseRequestID prefers the id the API reports, falling back to ours.
func responseRequestID(raw *RawResponse) string {
	for _, name := range []string{"X-Request-ID", "Request-Id", "X-Correlation-ID"} {
		if v := raw.Header.Get(name); v != "" {
			return v
		}
	}
	return raw.RequestID
}

// ============================================================================
// Error body parsing
// ============================================================================

// errorBody covers the shapes seen from the reservation API and its gateway:
// {"message": ..., "errors": {...}}, OAuth2 style {"error", "error_description"},
// and {"errors": [{"code", "message"}]}.
type errorBody struct {
	Message          string          `json:"message"`
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Title            string          `json:"title"`
	Errors           json.RawMessage `json:"errors"`
}

type errorItem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field"`
	Key     string `json:"key"`
}

func parseErrorBody(body []byte) errorBody {
	var b errorBody
	_ = json.Unmarshal(body, &b)
	return b
}

func (b errorBody) message(status int) string {
	if b.Message != "" {
		return b.Message
	}
	if b.ErrorDescription != "" {
		return b.ErrorDescription
	}
	if len(b.Error) > 0 {
		var s string
		if json.Unmarshal(b.Error, &s) == nil && s != "" {
			return s
		}
		var item errorItem
		if json.Unmarshal(b.Error, &item) == nil && item.Message != "" {
			return item.Message
		}
	}
	if b.Title != "" {
		return b.Title
	}
	var items []errorItem
	if json.Unmarshal(b.Errors, &items) == nil && len(items) > 0 && items[0].Message != "" {
		return items[0].Message
	}
	return statusMessage(status)
}

// fields flattens the "errors" member into field: message pairs.
func (b errorBody) fields() map[string]string {
	if len(b.Errors) == 0 {
		return nil
	}

	var flat map[string]string
	if json.Unmarshal(b.Errors, &flat) == nil {
		return nonEmpty(flat)
	}

	var multi map[string][]string
	if json.Unmarshal(b.Errors, &multi) == nil {
		out := make(map[string]string, len(multi))
		for k, v := range multi {
			out[k] = strings.Join(v, "; ")
		}
		return nonEmpty(out)
	}

	var items []errorItem
	if json.Unmarshal(b.Errors, &items) == nil {
		out := make(map[string]string, len(items))
		for i, item := range items {
			key := firstNonEmpty(item.Field, item.Key, item.Code, strconv.Itoa(i))
			out[key] = item.Message
		}
		return nonEmpty(out)
	}

	var list []string
	if json.Unmarshal(b.Errors, &list) == nil {
		out := make(map[string]string, len(list))
		for i, msg := range list {
			out[strconv.Itoa(i)] = msg
		}
		return nonEmpty(out)
	}

	return nil
}

func nonEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
