package transport

import (
	"encoding/json"
	"io"
)

// Decoder turns a UTF-8 response body into a typed value. It is called at most
// once per call and only for 200 responses; its error is returned unchanged.
type Decoder[T any] func(r io.Reader) (T, error)

// JSONDecoder decodes the body as a single JSON document into T.
func JSONDecoder[T any]() Decoder[T] {
	return func(r io.Reader) (T, error) {
		var v T
		err := json.NewDecoder(r).Decode(&v)
		return v, err
	}
}

// TextDecoder returns the body as a string.
func TextDecoder() Decoder[string] {
	return func(r io.Reader) (string, error) {
		b, err := io.ReadAll(r)
		return string(b), err
	}
}

// BytesDecoder returns the body as raw bytes.
func BytesDecoder() Decoder[[]byte] {
	return func(r io.Reader) ([]byte, error) {
		return io.ReadAll(r)
	}
}

// DiscardDecoder drains the body for endpoints whose payload is irrelevant.
func DiscardDecoder() Decoder[struct{}] {
	return func(r io.Reader) (struct{}, error) {
		_, err := io.Copy(io.Discard, r)
		return struct{}{}, err
	}
}
