package agentapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is returned when the agent answered with a non-2xx status.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error (%d): %s", e.Status, e.Detail)
}

// TransportError is returned when a request could not complete.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// errorBody is the shape of a FastAPI error reply. Detail is usually a
// string but validation failures carry a list of objects.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// detailText extracts a readable detail from a raw body, or returns fallback.
func detailText(body []byte, fallback string) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, eb.Detail); err != nil {
		return fallback
	}
	if raw := buf.String(); raw != "null" {
		return raw
	}
	return fallback
}
