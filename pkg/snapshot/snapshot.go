// Package snapshot converts HTTP responses to and from their stored form.
// A snapshot is the HTTP/1.1 wire representation of the response:
// status line, headers, and body.
package snapshot

import (
	"bufio"
	"bytes"
	"net/http"
)

// FromResponse serializes a response to a byte slice.
// Serialization consumes the response body, so the body is re-read from the
// serialized bytes and set back on the response. The caller's in-flight copy
// of the response therefore remains fully usable.
func FromResponse(res *http.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	bts := buf.Bytes()
	cloned, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(bts)), res.Request)
	if err != nil {
		return nil, err
	}
	res.Body = cloned.Body
	return bts, nil
}

// ToResponse converts a stored snapshot back to a http.Response.
// The returned response body reads from the snapshot bytes.
func ToResponse(b []byte) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
}
