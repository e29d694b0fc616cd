package transport

import (
	"maps"
	"strings"
)

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyText
	bodyBinary
)

// Request describes a single HTTP call: an absolute URL that already carries its
// query string, headers sent verbatim, and at most one body (text or binary).
// Requests are values; the constructors copy what they are given.
type Request struct {
	url     string
	headers map[string]string
	kind    bodyKind
	text    string
	binary  []byte
}

// NewRequest builds a request without a body.
func NewRequest(url string, headers map[string]string) Request {
	return Request{url: url, headers: maps.Clone(headers)}
}

// NewTextRequest builds a request whose body is sent as UTF-8 text.
func NewTextRequest(url string, headers map[string]string, content string) Request {
	r := NewRequest(url, headers)
	r.kind = bodyText
	r.text = content
	return r
}

// NewBinaryRequest builds a request whose body is sent as raw bytes.
func NewBinaryRequest(url string, headers map[string]string, content []byte) Request {
	r := NewRequest(url, headers)
	if content != nil {
		r.kind = bodyBinary
		r.binary = append([]byte(nil), content...)
	}
	return r
}

func (r Request) URL() string { return r.url }

// Headers returns a copy of the request headers.
func (r Request) Headers() map[string]string { return maps.Clone(r.headers) }

func (r Request) TextBody() (string, bool) {
	return r.text, r.kind == bodyText
}

func (r Request) BinaryBody() ([]byte, bool) {
	if r.kind != bodyBinary {
		return nil, false
	}
	return append([]byte(nil), r.binary...), true
}

// payload returns the value handed to the HTTP client as the request body.
func (r Request) payload() (any, bool) {
	switch r.kind {
	case bodyText:
		return r.text, true
	case bodyBinary:
		return r.binary, true
	default:
		return nil, false
	}
}

// defaultContentType is sent for a body when the caller set no Content-Type.
func (r Request) defaultContentType() string {
	switch r.kind {
	case bodyText:
		return "text/plain; charset=utf-8"
	case bodyBinary:
		return "application/octet-stream"
	default:
		return ""
	}
}

func (r Request) hasHeader(name string) bool {
	for k := range r.headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
