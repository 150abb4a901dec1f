package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedJSON is returned when a payload is not JSON at all. Wrongly
// shaped but well-formed JSON is never an error.
var ErrMalformedJSON = errors.New("malformed json payload")

// Decode parses a raw backend response. A top level that is not an object
// yields an empty Response.
func Decode(data []byte) (Response, error) {
	var resp Response
	if !json.Valid(data) {
		return resp, fmt.Errorf("domain: decode response: %w", ErrMalformedJSON)
	}
	data = bytes.TrimSpace(data)
	if data[0] != '{' {
		return resp, nil
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("domain: decode response: %w", err)
	}
	return resp, nil
}
