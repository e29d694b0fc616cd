package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DefaultMaxConnections         = 1000
	DefaultMaxPerRouteConnections = 500
	DefaultConnectTimeout         = 10 * time.Second

	// DefaultReadTimeout is long on purpose: blocking queries may hold the
	// response for several minutes before the server answers.
	DefaultReadTimeout = 10 * time.Minute
)

// Options describes a pooled HTTP client. It is applied once at construction.
type Options struct {
	// MaxConnections bounds the idle connections kept across all hosts
	// (http.Transport.MaxIdleConns). net/http has no cap on open connections
	// across hosts, so this is not a hard limit on concurrent connections.
	MaxConnections int
	// MaxPerRouteConnections is a hard cap on connections to one host, idle or
	// active (http.Transport.MaxConnsPerHost). It never exceeds MaxConnections.
	MaxPerRouteConnections int
	// ConnectTimeout bounds the TCP dial and the TLS handshake.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the whole call, including a blocking query's wait.
	ReadTimeout time.Duration
	TLS         *TLSOptions
}

// TLSOptions holds optional TLS material for talking to an HTTPS agent.
type TLSOptions struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
}

// DefaultOptions returns the pool settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxConnections:         DefaultMaxConnections,
		MaxPerRouteConnections: DefaultMaxPerRouteConnections,
		ConnectTimeout:         DefaultConnectTimeout,
		ReadTimeout:            DefaultReadTimeout,
	}
}

// normalize fills zero values with defaults.
func (o Options) normalize() Options {
	if o.MaxConnections <= 0 {
		o.MaxConnections = DefaultMaxConnections
	}
	if o.MaxPerRouteConnections <= 0 {
		o.MaxPerRouteConnections = DefaultMaxPerRouteConnections
	}
	if o.MaxPerRouteConnections > o.MaxConnections {
		o.MaxPerRouteConnections = o.MaxConnections
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	return o
}

// tlsConfig builds a tls.Config from the options, or nil when TLS is not configured.
func (t *TLSOptions) tlsConfig() (*tls.Config, error) {
	if t == nil {
		return nil, nil
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // opt-in for dev agents
	}

	if ca := strings.TrimSpace(t.CAFile); ca != "" {
		pem, err := os.ReadFile(ca)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca file %q contains no certificates", ca)
		}
		cfg.RootCAs = pool
	}

	certFile, keyFile := strings.TrimSpace(t.CertFile), strings.TrimSpace(t.KeyFile)
	switch {
	case certFile != "" && keyFile != "":
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case certFile != "" || keyFile != "":
		return nil, fmt.Errorf("tls cert_file and key_file must be set together")
	}

	return cfg, nil
}
