package transport

import (
	"io"
	"mime"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// bodyReader wraps body so it yields UTF-8 text. The charset comes from the
// Content-Type header; a missing or unknown charset is treated as UTF-8.
func bodyReader(contentType string, body io.Reader) io.Reader {
	enc := responseEncoding(contentType)
	if enc == nil {
		return body
	}
	return transform.NewReader(body, enc.NewDecoder())
}

// responseEncoding returns nil when the body is already UTF-8 or the charset is not recognized.
func responseEncoding(contentType string) encoding.Encoding {
	if strings.TrimSpace(contentType) == "" {
		return nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return nil
	}
	enc, name := charset.Lookup(label)
	if enc == nil || name == "utf-8" {
		return nil
	}
	return enc
}
