package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/samvad-hq/consul-client/pkg/httpclient"
)

// Transport issues GET, PUT and DELETE calls against the agent and wraps each
// answer in a Response envelope. It is safe for concurrent use; the only shared
// state is the connection pool of the underlying client.
type Transport struct {
	client *resty.Client
	log    Logger
}

// New creates a Transport with its own connection pool built from opts.
func New(opts httpclient.Options, log Logger) (*Transport, error) {
	client, err := httpclient.NewPooledRestyClient(opts)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}
	return NewWithClient(client, log), nil
}

// NewWithClient wraps an already configured resty client.
func NewWithClient(client *resty.Client, log Logger) *Transport {
	return &Transport{client: client, log: ensureLogger(log)}
}

// Get performs a GET call.
func Get[T any](ctx context.Context, t *Transport, req Request, decode Decoder[T]) (*Response[T], error) {
	return execute(ctx, t, http.MethodGet, req, decode)
}

// Put performs a PUT call, sending the request's text or binary body if any.
func Put[T any](ctx context.Context, t *Transport, req Request, decode Decoder[T]) (*Response[T], error) {
	return execute(ctx, t, http.MethodPut, req, decode)
}

// Delete performs a DELETE call.
func Delete[T any](ctx context.Context, t *Transport, req Request, decode Decoder[T]) (*Response[T], error) {
	return execute(ctx, t, http.MethodDelete, req, decode)
}

func execute[T any](ctx context.Context, t *Transport, method string, req Request, decode Decoder[T]) (*Response[T], error) {
	if t == nil || t.client == nil {
		return nil, errors.New("transport is not initialized")
	}
	if decode == nil {
		return nil, errors.New("decoder must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r := t.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if len(req.headers) > 0 {
		r.SetHeaders(req.headers)
	}
	if method == http.MethodPut {
		if body, ok := req.payload(); ok {
			r.SetBody(body)
			if !req.hasHeader("Content-Type") {
				r.SetHeader("Content-Type", req.defaultContentType())
			}
		}
	}

	start := time.Now()
	resp, err := r.Execute(method, req.URL())
	if err != nil {
		closeRawBody(resp)
		t.log.WarnObj("consul request failed", "transport_error", map[string]any{
			"method": method,
			"url":    req.URL(),
			"error":  err.Error(),
		})
		return nil, &TransportError{Method: method, URL: req.URL(), Err: err}
	}
	defer closeRawBody(resp)

	code := resp.StatusCode()
	meta := MetadataFromHeader(resp.Header())
	msg := reasonPhrase(resp.Status(), code)

	t.log.DebugObj("consul request completed", "transport_call", map[string]any{
		"method":     method,
		"url":        req.URL(),
		"status":     code,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	body := resp.RawBody()
	if body == nil {
		body = http.NoBody
	}

	if code == http.StatusOK {
		value, err := decode(bodyReader(resp.Header().Get("Content-Type"), body))
		if err != nil {
			return nil, err
		}
		return Success(code, msg, value, meta), nil
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: req.URL(), Err: fmt.Errorf("read error body: %w", err)}
	}
	return Failure[T](code, msg, strings.ToValidUTF8(string(raw), "\uFFFD"), meta), nil
}

// reasonPhrase strips the numeric code from a status line such as "404 Not Found".
func reasonPhrase(status string, code int) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(status), strconv.Itoa(code)))
}

func closeRawBody(resp *resty.Response) {
	if resp == nil || resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return
	}
	_ = resp.RawResponse.Body.Close()
}
