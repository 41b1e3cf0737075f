package rest

import (
	"bytes"
	"encoding/json"
)

// decodeEnvelope decodes body into out. The backend wraps some payloads as
// {"<key>": payload} and returns others bare; both shapes are accepted.
func decodeEnvelope(body []byte, key string, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			if inner, ok := fields[key]; ok {
				return json.Unmarshal(inner, out)
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}

// passthrough returns body as JSON, quoting it when the backend sent something else.
func passthrough(body []byte) json.RawMessage {
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
