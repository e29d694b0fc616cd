package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samvad-hq/consul-client/pkg/httpclient"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	ConsulAddress string `mapstructure:"consul_address"`
	ConsulToken   string `mapstructure:"consul_token"`

	HTTPMaxConnections         int   `mapstructure:"http_max_connections"`
	HTTPMaxPerRouteConnections int   `mapstructure:"http_max_per_route_connections"`
	HTTPConnectTimeoutSeconds  int64 `mapstructure:"http_connect_timeout_seconds"`
	HTTPReadTimeoutSeconds     int64 `mapstructure:"http_read_timeout_seconds"`

	TLSCAFile             string `mapstructure:"tls_ca_file"`
	TLSCertFile           string `mapstructure:"tls_cert_file"`
	TLSKeyFile            string `mapstructure:"tls_key_file"`
	TLSInsecureSkipVerify bool   `mapstructure:"tls_insecure_skip_verify"`

	WatchesFile       string `mapstructure:"watches_file"`
	PublishersFile    string `mapstructure:"publishers_file"`
	WatchWaitSeconds  int64  `mapstructure:"watch_wait_seconds"`
	WatchRetrySeconds int64  `mapstructure:"watch_retry_seconds"`

	StorageType string `mapstructure:"storage_type"`
	BBoltPath   string `mapstructure:"bbolt_path"`

	HTTPConnectTimeout time.Duration `mapstructure:"-"`
	HTTPReadTimeout    time.Duration `mapstructure:"-"`
	WatchWait          time.Duration `mapstructure:"-"`
	WatchRetry         time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "consul-watch")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("consul_address", "http://127.0.0.1:8500")
	v.SetDefault("consul_token", "")
	v.SetDefault("http_max_connections", httpclient.DefaultMaxConnections)
	v.SetDefault("http_max_per_route_connections", httpclient.DefaultMaxPerRouteConnections)
	v.SetDefault("http_connect_timeout_seconds", int64(httpclient.DefaultConnectTimeout/time.Second))
	v.SetDefault("http_read_timeout_seconds", int64(httpclient.DefaultReadTimeout/time.Second))
	v.SetDefault("tls_ca_file", "")
	v.SetDefault("tls_cert_file", "")
	v.SetDefault("tls_key_file", "")
	v.SetDefault("tls_insecure_skip_verify", false)
	v.SetDefault("watches_file", "./configs/watches.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("watch_wait_seconds", 300)
	v.SetDefault("watch_retry_seconds", 5)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/index.db")
}

// finalize validates the raw values and derives durations.
func (cfg *Config) finalize() error {
	cfg.ConsulAddress = strings.TrimRight(strings.TrimSpace(cfg.ConsulAddress), "/")
	u, err := url.Parse(cfg.ConsulAddress)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid consul_address %q (expected scheme://host:port)", cfg.ConsulAddress)
	}

	if cfg.HTTPMaxConnections <= 0 {
		return fmt.Errorf("invalid http_max_connections (must be positive)")
	}
	if cfg.HTTPMaxPerRouteConnections <= 0 {
		return fmt.Errorf("invalid http_max_per_route_connections (must be positive)")
	}
	if cfg.HTTPConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http_connect_timeout_seconds (must be positive seconds)")
	}
	if cfg.HTTPReadTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http_read_timeout_seconds (must be positive seconds)")
	}
	cfg.HTTPConnectTimeout = time.Duration(cfg.HTTPConnectTimeoutSeconds) * time.Second
	cfg.HTTPReadTimeout = time.Duration(cfg.HTTPReadTimeoutSeconds) * time.Second

	if cfg.WatchWaitSeconds <= 0 {
		return fmt.Errorf("invalid watch_wait_seconds (must be positive seconds)")
	}
	if cfg.WatchRetrySeconds <= 0 {
		return fmt.Errorf("invalid watch_retry_seconds (must be positive seconds)")
	}
	cfg.WatchWait = time.Duration(cfg.WatchWaitSeconds) * time.Second
	cfg.WatchRetry = time.Duration(cfg.WatchRetrySeconds) * time.Second

	if cfg.WatchWait >= cfg.HTTPReadTimeout {
		return fmt.Errorf("watch_wait_seconds (%d) must be shorter than http_read_timeout_seconds (%d)",
			cfg.WatchWaitSeconds, cfg.HTTPReadTimeoutSeconds)
	}

	return nil
}

// HTTPOptions converts the pool and TLS settings into httpclient.Options.
func (cfg *Config) HTTPOptions() httpclient.Options {
	opts := httpclient.Options{
		MaxConnections:         cfg.HTTPMaxConnections,
		MaxPerRouteConnections: cfg.HTTPMaxPerRouteConnections,
		ConnectTimeout:         cfg.HTTPConnectTimeout,
		ReadTimeout:            cfg.HTTPReadTimeout,
	}
	if cfg.TLSCAFile != "" || cfg.TLSCertFile != "" || cfg.TLSKeyFile != "" || cfg.TLSInsecureSkipVerify {
		opts.TLS = &httpclient.TLSOptions{
			CAFile:             cfg.TLSCAFile,
			CertFile:           cfg.TLSCertFile,
			KeyFile:            cfg.TLSKeyFile,
			InsecureSkipVerify: cfg.TLSInsecureSkipVerify,
		}
	}
	return opts
}
