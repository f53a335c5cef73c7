package resclient

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the uniform success result. A Client call returns either a
// non-nil Envelope with Success set, or an error, never both.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
	Meta    Meta            `json:"meta"`
}

// Meta describes where an Envelope came from.
type Meta struct {
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Timestamp  time.Time `json:"timestamp"`
	Attempts   int       `json:"attempts,omitempty"`
	Cached     bool      `json:"cached,omitempty"`
}

// Decode unmarshals the payload into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode envelope data: %w", err)
	}
	return nil
}
