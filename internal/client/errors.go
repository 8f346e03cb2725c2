package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// APIError is a non-2xx reply from the scan service.
type APIError struct {
	StatusCode int
	// Detail is the server-provided explanation, empty when none was sent.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("Server returned status: %d", e.StatusCode)
}

// errorBody covers both {"detail": ...} and {"message": ...} replies.
// FastAPI validation failures send detail as an array of objects.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Detail: extractDetail(body)}
}

func extractDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}

	detail := bytes.TrimSpace(eb.Detail)
	if len(detail) > 0 && !bytes.Equal(detail, []byte("null")) {
		var s string
		if err := json.Unmarshal(detail, &s); err == nil {
			if s != "" {
				return s
			}
		} else {
			var compact bytes.Buffer
			if err := json.Compact(&compact, detail); err == nil {
				return compact.String()
			}
		}
	}

	return eb.Message
}
