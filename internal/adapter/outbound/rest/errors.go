package rest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/docdesk/docdesk/internal/domain/session"
)

// errorBody is the backend's error envelope. Either field may carry the message.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// statusError maps a >= 400 response onto the error taxonomy.
func statusError(resp *Response) error {
	msg := extractMessage(resp.Body)
	if resp.Status >= http.StatusInternalServerError {
		return &session.ServerError{Status: resp.Status, Message: msg}
	}
	return &session.ClientError{Status: resp.Status, Message: msg}
}

// extractMessage returns the message field of a JSON error body, or "".
func extractMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if m := strings.TrimSpace(eb.Message); m != "" {
		return m
	}
	return strings.TrimSpace(eb.Error)
}
