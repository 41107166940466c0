// Package util contains small helpers shared by the pushfleet client packages.
package util

import (
	"bytes"
	"encoding/json"
)

// MarshalJSONUnescaped serializes v to compact JSON without escaping HTML
// characters. Both push services receive the payload verbatim, so "<", ">"
// and "&" must survive unmangled. Map keys are emitted in sorted order, which
// keeps the serialized form deterministic; payload size checks and truncation
// depend on that.
func MarshalJSONUnescaped(v interface{}) ([]byte, error) {
	writer := bytes.Buffer{}
	encoder := json.NewEncoder(&writer)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(v)
	if err != nil {
		return nil, err
	}

	// json.Encoder terminates the stream with a newline, which would be
	// counted against the vendor size limit.
	bytes := writer.Bytes()
	return bytes[:len(bytes)-1], nil
}
