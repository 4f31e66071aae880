package types

import (
	"encoding/hex"
	"sort"
	"strconv"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// NewEvent starts an event of the given type with an empty attribute set.
func NewEvent(eventType string) *Event {
	return &Event{Type: eventType, Attributes: make(map[string]string)}
}

// EventType implements events.Event.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// With sets a string attribute and returns the event for chaining.
func (e *Event) With(key, value string) *Event {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithUint sets a decimal attribute.
func (e *Event) WithUint(key string, value uint64) *Event {
	return e.With(key, strconv.FormatUint(value, 10))
}

// WithInt sets a signed decimal attribute.
func (e *Event) WithInt(key string, value int64) *Event {
	return e.With(key, strconv.FormatInt(value, 10))
}

// ID is the keccak digest of the type and sorted attributes. Identical events
// share an id, which lets indexers deduplicate replays.
func (e *Event) ID() string {
	if e == nil {
		return ""
	}
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := []byte(e.Type)
	for _, k := range keys {
		buf = append(buf, 0)
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = append(buf, e.Attributes[k]...)
	}
	return hex.EncodeToString(ethcrypto.Keccak256(buf))
}
