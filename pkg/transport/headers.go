package transport

import (
	"net/http"
	"strconv"
)

const (
	HeaderIndex       = "X-Consul-Index"
	HeaderKnownLeader = "X-Consul-Knownleader"
	HeaderLastContact = "X-Consul-Lastcontact"
)

// Metadata carries the protocol headers the agent attaches to a response.
// Each value is independently optional: a missing or malformed header is unset.
type Metadata struct {
	index          uint64
	hasIndex       bool
	knownLeader    bool
	hasKnownLeader bool
	lastContact    uint64
	hasLastContact bool
}

// MetadataFromHeader extracts the consistency index, known-leader flag and
// last-contact value. It never fails.
func MetadataFromHeader(h http.Header) Metadata {
	var m Metadata
	m.index, m.hasIndex = parseUnsigned(h, HeaderIndex)
	m.knownLeader, m.hasKnownLeader = parseLiteralBool(h, HeaderKnownLeader)
	m.lastContact, m.hasLastContact = parseUnsigned(h, HeaderLastContact)
	return m
}

// Index returns the X-Consul-Index value.
func (m Metadata) Index() (uint64, bool) { return m.index, m.hasIndex }

// KnownLeader returns the X-Consul-Knownleader value.
func (m Metadata) KnownLeader() (bool, bool) { return m.knownLeader, m.hasKnownLeader }

// LastContact returns the X-Consul-Lastcontact value in milliseconds.
func (m Metadata) LastContact() (uint64, bool) { return m.lastContact, m.hasLastContact }

func parseUnsigned(h http.Header, name string) (uint64, bool) {
	values := h.Values(name)
	if len(values) == 0 {
		return 0, false
	}
	v, err := strconv.ParseUint(values[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseLiteralBool accepts only the exact literals "true" and "false".
func parseLiteralBool(h http.Header, name string) (bool, bool) {
	values := h.Values(name)
	if len(values) == 0 {
		return false, false
	}
	switch values[0] {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
