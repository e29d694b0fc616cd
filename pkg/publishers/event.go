package publishers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event represents a watch firing, published downstream.
type Event struct {
	ID            string          `json:"id"`
	WatchID       string          `json:"watch_id"`
	WatchName     string          `json:"watch_name"`
	Index         uint64          `json:"index"`
	KnownLeader   *bool           `json:"known_leader,omitempty"`
	LastContactMs *uint64         `json:"last_contact_ms,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	ObservedAt    time.Time       `json:"observed_at"`
}

// NewEvent constructs an Event for the given watch and response payload.
func NewEvent(watchID, watchName string, index uint64, payload json.RawMessage) Event {
	return Event{
		ID:         uuid.NewString(),
		WatchID:    watchID,
		WatchName:  watchName,
		Index:      index,
		Payload:    payload,
		ObservedAt: time.Now().UTC(),
	}
}

// attributes returns the message attributes shared by queue/topic sinks.
// An index reset can fire the same index twice, so consumers dedupe on event_id.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{
		"watch_id": e.WatchID,
		"index":    strconv.FormatUint(e.Index, 10),
	}
	if e.ID != "" {
		attrs["event_id"] = e.ID
	}
	return attrs
}
