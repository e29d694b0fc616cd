// Package watches loads blocking-query watch definitions (YAML/JSON).
package watches

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/consul-client/pkg/regfile"
)

const tokenHeader = "X-Consul-Token"

// Watch is a single endpoint observed with blocking queries.
type Watch struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Path        string            `json:"path" yaml:"path"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	Token       string            `json:"token" yaml:"token"`
	WaitSeconds int               `json:"wait_seconds" yaml:"wait_seconds"`
	Enabled     *bool             `json:"enabled" yaml:"enabled"`
}

var schema = regfile.Schema[Watch]{
	Section:   "watches",
	ID:        func(w Watch) string { return w.ID },
	Normalize: sanitizeWatch,
	Validate:  validateWatch,
}

// Registry holds the watches declared in a config file.
type Registry struct {
	*regfile.Registry[Watch]
}

// LoadRegistry loads the watch registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	reg, err := regfile.Load(path, schema)
	if err != nil {
		return nil, err
	}
	return &Registry{Registry: reg}, nil
}

// Enabled returns the watches that are enabled.
func (r *Registry) Enabled() []Watch {
	if r == nil {
		return nil
	}
	return r.Filter(Watch.EnabledValue)
}

// IDs returns the ids of the given watches in order.
func IDs(ws []Watch) []string {
	ids := make([]string, 0, len(ws))
	for _, w := range ws {
		ids = append(ids, w.ID)
	}
	return ids
}

func sanitizeWatch(w Watch) Watch {
	w.ID = strings.TrimSpace(w.ID)
	w.Name = strings.TrimSpace(w.Name)
	w.Path = strings.TrimSpace(w.Path)
	w.Token = strings.TrimSpace(w.Token)
	if w.Path != "" && !strings.HasPrefix(w.Path, "/") {
		w.Path = "/" + w.Path
	}
	if w.Name == "" {
		w.Name = w.ID
	}
	if w.Enabled == nil {
		def := true
		w.Enabled = &def
	}
	if len(w.Headers) > 0 {
		headers := make(map[string]string, len(w.Headers))
		for k, v := range w.Headers {
			if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
				headers[k] = v
			}
		}
		w.Headers = headers
	}
	return w
}

func validateWatch(w Watch) error {
	if w.ID == "" {
		return errors.New("id is required")
	}
	if w.Path == "" {
		return fmt.Errorf("path is required for watch %q", w.ID)
	}
	if _, err := url.Parse(w.Path); err != nil {
		return fmt.Errorf("invalid path for watch %q: %w", w.ID, err)
	}
	if w.WaitSeconds < 0 {
		return fmt.Errorf("wait_seconds must not be negative for watch %q", w.ID)
	}
	return nil
}

// EnabledValue returns the enabled flag defaulting to true.
func (w Watch) EnabledValue() bool {
	if w.Enabled == nil {
		return true
	}
	return *w.Enabled
}

// Wait returns the blocking wait for this watch, or fallback when unset.
func (w Watch) Wait(fallback time.Duration) time.Duration {
	if w.WaitSeconds <= 0 {
		return fallback
	}
	return time.Duration(w.WaitSeconds) * time.Second
}

// URL joins the agent address and the watch path, appending the blocking
// query parameters. The path's own query string is kept as written.
func (w Watch) URL(address string, index uint64, wait time.Duration) (string, error) {
	u, err := url.Parse(strings.TrimRight(address, "/") + w.Path)
	if err != nil {
		return "", fmt.Errorf("build url for watch %q: %w", w.ID, err)
	}

	var extra []string
	if index > 0 {
		extra = append(extra, "index="+strconv.FormatUint(index, 10))
	}
	if wait > 0 {
		extra = append(extra, "wait="+strconv.FormatInt(int64(wait/time.Second), 10)+"s")
	}
	if len(extra) > 0 {
		if u.RawQuery != "" {
			u.RawQuery += "&"
		}
		u.RawQuery += strings.Join(extra, "&")
	}
	return u.String(), nil
}

// RequestHeaders returns the headers to send, including the ACL token.
func (w Watch) RequestHeaders() map[string]string {
	headers := make(map[string]string, len(w.Headers)+1)
	for k, v := range w.Headers {
		headers[k] = v
	}
	if w.Token != "" {
		headers[tokenHeader] = w.Token
	}
	return headers
}
