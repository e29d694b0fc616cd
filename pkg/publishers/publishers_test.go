package publishers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.yaml")
	raw := `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: http2
    type: http
    enabled: true
    http:
      url: https://example.com/2
  - id: topic
    type: SNS
    watch_ids: [" kv ", kv, ""]
    sns:
      topic_arn: " arn:aws:sns:eu-west-1:123:watch "
      region: eu-west-1
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "http2" || enabled[1].ID != "topic" {
		t.Fatalf("unexpected enabled publishers %#v", enabled)
	}
	if enabled[0].HTTP.Method != "POST" || enabled[0].HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("http defaults not applied: %#v", enabled[0].HTTP)
	}
	topic, ok := reg.ByID("topic")
	if !ok || topic.Type != TypeSNS || topic.SNS.TopicARN != "arn:aws:sns:eu-west-1:123:watch" {
		t.Fatalf("unexpected sns publisher %#v", topic)
	}
	if len(topic.WatchIDs) != 1 || topic.WatchIDs[0] != "kv" {
		t.Fatalf("watch_ids not normalized: %#v", topic.WatchIDs)
	}
	if !topic.Routes("kv") || topic.Routes("health") || !enabled[0].Routes("health") {
		t.Fatalf("unexpected routing")
	}
}

func TestLoadRegistryRejectsUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publishers.json")
	if err := os.WriteFile(path, []byte(`{"publishers":[{"id":"k","type":"kafka"}]}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestCheckRoutes(t *testing.T) {
	cfgs := []PublisherConfig{
		{ID: "a", WatchIDs: []string{"kv"}},
		{ID: "b"},
	}
	if err := CheckRoutes(cfgs, []string{"kv", "health"}); err != nil {
		t.Fatalf("CheckRoutes: %v", err)
	}
	err := CheckRoutes(append(cfgs, PublisherConfig{ID: "c", WatchIDs: []string{"kvv"}}), []string{"kv"})
	if err == nil || !strings.Contains(err.Error(), `"kvv"`) {
		t.Fatalf("expected unknown watch error, got %v", err)
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	cases := map[string]PublisherConfig{
		"missing http":    {ID: "h1", Type: TypeHTTP},
		"missing sqs url": {ID: "q1", Type: TypeSQS, SQS: &SQSPublisherConfig{Region: "us-east-1"}},
		"missing sns arn": {ID: "s1", Type: TypeSNS, SNS: &SNSPublisherConfig{Region: "us-east-1"}},
		"missing topic":   {ID: "p1", Type: TypePubSub, PubSub: &PubSubPublisherConfig{ProjectID: "proj"}},
		"missing id":      {Type: TypeHTTP},
		"unknown type":    {ID: "k1", Type: "kafka"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if err := validatePublisherConfig(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
