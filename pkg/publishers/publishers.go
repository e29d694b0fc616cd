package publishers

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samvad-hq/consul-client/pkg/regfile"
)

const (
	// Supported publisher types.
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"
	TypeHTTP   = "http"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

// PublisherConfig is one sink declared in the publishers file. WatchIDs limits
// the sink to events from those watches; empty means every watch.
type PublisherConfig struct {
	ID       string                 `json:"id" yaml:"id"`
	Type     string                 `json:"type" yaml:"type"`
	Enabled  *bool                  `json:"enabled" yaml:"enabled"`
	WatchIDs []string               `json:"watch_ids" yaml:"watch_ids"`
	SQS      *SQSPublisherConfig    `json:"sqs" yaml:"sqs"`
	SNS      *SNSPublisherConfig    `json:"sns" yaml:"sns"`
	PubSub   *PubSubPublisherConfig `json:"pubsub" yaml:"pubsub"`
	HTTP     *HTTPPublisherConfig   `json:"http" yaml:"http"`
}

// AWSCredentialsConfig holds optional static AWS keys; empty means the default chain.
type AWSCredentialsConfig struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
}

// SQSPublisherConfig targets an SQS queue.
type SQSPublisherConfig struct {
	QueueURL    string                `json:"uri" yaml:"uri"`
	Region      string                `json:"region" yaml:"region"`
	Endpoint    string                `json:"endpoint" yaml:"endpoint"`
	Credentials *AWSCredentialsConfig `json:"credentials" yaml:"credentials"`
}

// SNSPublisherConfig targets an SNS topic.
type SNSPublisherConfig struct {
	TopicARN    string                `json:"topic_arn" yaml:"topic_arn"`
	Region      string                `json:"region" yaml:"region"`
	Endpoint    string                `json:"endpoint" yaml:"endpoint"`
	Credentials *AWSCredentialsConfig `json:"credentials" yaml:"credentials"`
}

// PubSubPublisherConfig targets a Google Cloud Pub/Sub topic.
type PubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// HTTPPublisherConfig posts events to a webhook.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

var schema = regfile.Schema[PublisherConfig]{
	Section:   "publishers",
	ID:        func(cfg PublisherConfig) string { return cfg.ID },
	Normalize: sanitizePublisherConfig,
	Validate:  validatePublisherConfig,
}

// ConfigRegistry holds the publishers declared in a config file.
type ConfigRegistry struct {
	*regfile.Registry[PublisherConfig]
}

// LoadRegistry loads the publisher registry from a YAML/JSON file.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	reg, err := regfile.Load(path, schema)
	if err != nil {
		return nil, err
	}
	return &ConfigRegistry{Registry: reg}, nil
}

// Enabled returns the publishers that are enabled.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	if r == nil {
		return nil
	}
	return r.Filter(PublisherConfig.EnabledValue)
}

// EnabledValue returns the enabled flag defaulting to true.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// Routes reports whether events of watchID go to this publisher.
func (cfg PublisherConfig) Routes(watchID string) bool {
	return len(cfg.WatchIDs) == 0 || slices.Contains(cfg.WatchIDs, watchID)
}

// CheckRoutes returns an error naming every watch id routed by cfgs that is not
// in known. A typo would otherwise silently drop events.
func CheckRoutes(cfgs []PublisherConfig, known []string) error {
	set := make(map[string]struct{}, len(known))
	for _, id := range known {
		set[id] = struct{}{}
	}
	var errs []error
	for _, cfg := range cfgs {
		for _, id := range cfg.WatchIDs {
			if _, ok := set[id]; !ok {
				errs = append(errs, fmt.Errorf("publisher %q routes unknown watch %q", cfg.ID, id))
			}
		}
	}
	return errors.Join(errs...)
}

func sanitizePublisherConfig(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	cfg.WatchIDs = trimList(cfg.WatchIDs)

	if cfg.SQS != nil {
		c := *cfg.SQS
		trimAll(&c.QueueURL, &c.Region, &c.Endpoint)
		cfg.SQS = &c
	}
	if cfg.SNS != nil {
		c := *cfg.SNS
		trimAll(&c.TopicARN, &c.Region, &c.Endpoint)
		cfg.SNS = &c
	}
	if cfg.PubSub != nil {
		c := *cfg.PubSub
		trimAll(&c.ProjectID, &c.Topic, &c.CredentialsFile, &c.Endpoint)
		cfg.PubSub = &c
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		trimAll(&c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}
	return cfg
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// trimList drops blank and repeated entries.
func trimList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if _, dup := seen[v]; v == "" || dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// required lists the fields each publisher type must carry, keyed by their file names.
func required(cfg PublisherConfig) (section bool, fields map[string]string, ok bool) {
	switch cfg.Type {
	case TypeSQS:
		if cfg.SQS == nil {
			return false, nil, true
		}
		return true, map[string]string{"sqs.uri": cfg.SQS.QueueURL, "sqs.region": cfg.SQS.Region}, true
	case TypeSNS:
		if cfg.SNS == nil {
			return false, nil, true
		}
		return true, map[string]string{"sns.topic_arn": cfg.SNS.TopicARN, "sns.region": cfg.SNS.Region}, true
	case TypePubSub:
		if cfg.PubSub == nil {
			return false, nil, true
		}
		return true, map[string]string{"pubsub.project_id": cfg.PubSub.ProjectID, "pubsub.topic": cfg.PubSub.Topic}, true
	case TypeHTTP:
		if cfg.HTTP == nil {
			return false, nil, true
		}
		return true, map[string]string{"http.url": cfg.HTTP.URL}, true
	default:
		return false, nil, false
	}
}

func validatePublisherConfig(cfg PublisherConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.Type == "" {
		return fmt.Errorf("type is required for publisher %q", cfg.ID)
	}
	present, fields, known := required(cfg)
	if !known {
		return fmt.Errorf("unsupported type %q for publisher %q", cfg.Type, cfg.ID)
	}
	if !present {
		return fmt.Errorf("%s config required for publisher %q", cfg.Type, cfg.ID)
	}
	var missing []string
	for name, v := range fields {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s required for publisher %q", strings.Join(missing, ", "), cfg.ID)
	}
	return nil
}
