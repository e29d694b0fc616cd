package transport

// Response is the envelope returned by every transport call. It is either a
// success carrying decoded content or a failure carrying the raw error body,
// never both. Use Success and Failure to build one.
type Response[T any] struct {
	statusCode    int
	statusMessage string
	meta          Metadata

	ok      bool
	content T
	errText string
}

// Success builds an envelope for a response whose body was decoded.
func Success[T any](statusCode int, statusMessage string, content T, meta Metadata) *Response[T] {
	return &Response[T]{
		statusCode:    statusCode,
		statusMessage: statusMessage,
		meta:          meta,
		ok:            true,
		content:       content,
	}
}

// Failure builds an envelope for a non-200 response.
func Failure[T any](statusCode int, statusMessage, errText string, meta Metadata) *Response[T] {
	return &Response[T]{
		statusCode:    statusCode,
		statusMessage: statusMessage,
		meta:          meta,
		errText:       errText,
	}
}

func (r *Response[T]) StatusCode() int       { return r.statusCode }
func (r *Response[T]) StatusMessage() string { return r.statusMessage }
func (r *Response[T]) Metadata() Metadata    { return r.meta }
func (r *Response[T]) IsSuccess() bool       { return r.ok }

// Content returns the decoded body. ok is false for failure envelopes.
func (r *Response[T]) Content() (content T, ok bool) {
	if !r.ok {
		var zero T
		return zero, false
	}
	return r.content, true
}

// ErrorText returns the raw body of a failure envelope.
func (r *Response[T]) ErrorText() (string, bool) {
	if r.ok {
		return "", false
	}
	return r.errText, true
}

// Index is shorthand for Metadata().Index().
func (r *Response[T]) Index() (uint64, bool) { return r.meta.Index() }

// Err escalates a failure envelope into an *OperationError. It returns nil on success.
func (r *Response[T]) Err() error {
	if r == nil || r.ok {
		return nil
	}
	return &OperationError{
		StatusCode:    r.statusCode,
		StatusMessage: r.statusMessage,
		Body:          r.errText,
	}
}
