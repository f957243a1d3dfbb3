// Package apiresp unwraps the JSON envelopes returned by the canteen API.
package apiresp

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// envelopeKeys lists the wrapper fields the API has used, in lookup order.
var envelopeKeys = []string{"data", "result"}

// Extract unwraps API responses, returning the JSON payload stored under the
// "data" or "result" field. If no such field exists the original body is
// returned. When the wrapped value is a JSON-encoded string holding a JSON
// document, the inner document is returned.
func Extract(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return append([]byte(nil), trimmed...), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return append([]byte(nil), trimmed...), nil
	}
	var wrapped json.RawMessage
	for _, key := range envelopeKeys {
		if v, ok := envelope[key]; ok {
			wrapped = v
			break
		}
	}
	if wrapped == nil {
		return append([]byte(nil), trimmed...), nil
	}

	var asString string
	if err := json.Unmarshal(wrapped, &asString); err == nil {
		decoded := asString
		for i := 0; i < 4; i++ {
			unquoted, err := strconv.Unquote(decoded)
			if err != nil {
				break
			}
			decoded = unquoted
		}
		var inner json.RawMessage
		if err := json.Unmarshal([]byte(decoded), &inner); err == nil {
			return append([]byte(nil), inner...), nil
		}
	}

	return append([]byte(nil), wrapped...), nil
}

// Decode decodes the JSON payload obtained via Extract into out.
// When the response body is empty, out is populated with a JSON null.
func Decode(body []byte, out any) error {
	payload, err := Extract(body)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return json.Unmarshal(payload, out)
}
