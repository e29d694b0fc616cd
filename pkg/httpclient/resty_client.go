package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// NewPooledRestyClient creates a resty.Client backed by its own connection pool.
// Retries stay disabled; callers own their retry policy.
func NewPooledRestyClient(opts Options) (*resty.Client, error) {
	opts = opts.normalize()

	tlsCfg, err := opts.TLS.tlsConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        opts.MaxConnections,
		MaxIdleConnsPerHost: opts.MaxPerRouteConnections,
		MaxConnsPerHost:     opts.MaxPerRouteConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: opts.ConnectTimeout,
		TLSClientConfig:     tlsCfg,
	}

	c := resty.New()
	c.SetTransport(transport)
	c.SetTimeout(opts.ReadTimeout)
	c.SetRetryCount(0)
	return c, nil
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	return c
}
