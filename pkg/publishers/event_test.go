package publishers

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNewEventAssignsUniqueIDs(t *testing.T) {
	a := NewEvent("w1", "kv", 3, json.RawMessage(`{}`))
	b := NewEvent("w1", "kv", 3, json.RawMessage(`{}`))
	if _, err := uuid.Parse(a.ID); err != nil {
		t.Fatalf("event id %q is not a uuid: %v", a.ID, err)
	}
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q twice", a.ID)
	}
	if a.ObservedAt.IsZero() {
		t.Fatalf("observed_at not set")
	}
}

func TestEventAttributes(t *testing.T) {
	evt := NewEvent("w1", "kv", 42, nil)
	attrs := evt.attributes()
	if attrs["watch_id"] != "w1" || attrs["index"] != "42" || attrs["event_id"] != evt.ID {
		t.Fatalf("unexpected attributes %#v", attrs)
	}

	evt.ID = ""
	if _, ok := evt.attributes()["event_id"]; ok {
		t.Fatalf("empty id must not be sent as an attribute")
	}
}
