package hub

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags the payload carried by an Event.
type Kind string

const (
	KindDatabaseUpdate        Kind = "database_update"
	KindConnectionCount       Kind = "connection_count"
	KindConnectionEstablished Kind = "connection_established"
	KindPing                  Kind = "ping"
	KindPong                  Kind = "pong"
	KindError                 Kind = "error"
)

// Payload is implemented only by the payload types in this package.
type Payload interface {
	Kind() Kind
	sealed()
}

// Event is one message delivered to sessions. Seq is assigned by the
// Registry and increases across every event it emits.
type Event struct {
	Payload   Payload
	Timestamp time.Time
	Seq       uint64
}

// NewEvent stamps payload with the current time.
func NewEvent(p Payload) Event {
	return Event{Payload: p, Timestamp: time.Now()}
}

// Kind returns the payload kind, or "" for an empty event.
func (e Event) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

type DatabaseUpdate struct {
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
	Replaced   bool      `json:"replaced,omitempty"`
}

type ConnectionCount struct {
	Count int `json:"count"`
}

type ConnectionEstablished struct {
	SessionID   string `json:"session_id"`
	Connections int    `json:"connections"`
}

type Ping struct {
	Connections int `json:"connections"`
}

type Pong struct{}

type Error struct {
	Message string `json:"message"`
}

func (DatabaseUpdate) Kind() Kind        { return KindDatabaseUpdate }
func (ConnectionCount) Kind() Kind       { return KindConnectionCount }
func (ConnectionEstablished) Kind() Kind { return KindConnectionEstablished }
func (Ping) Kind() Kind                  { return KindPing }
func (Pong) Kind() Kind                  { return KindPong }
func (Error) Kind() Kind                 { return KindError }

func (DatabaseUpdate) sealed()        {}
func (ConnectionCount) sealed()       {}
func (ConnectionEstablished) sealed() {}
func (Ping) sealed()                  {}
func (Pong) sealed()                  {}
func (Error) sealed()                 {}

// wireEvent is the JSON form. "type" duplicates "kind" for clients that
// dispatch on either name.
type wireEvent struct {
	Type      Kind            `json:"type"`
	Kind      Kind            `json:"kind"`
	Seq       uint64          `json:"seq"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// MarshalJSON renders the event in its wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("hub: event has no payload")
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("hub: marshal %s payload: %w", e.Payload.Kind(), err)
	}
	return json.Marshal(wireEvent{
		Type:      e.Payload.Kind(),
		Kind:      e.Payload.Kind(),
		Seq:       e.Seq,
		Data:      data,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// UnmarshalJSON decodes the wire form back into a typed payload. Clients
// use it to dispatch on Kind.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	kind := w.Kind
	if kind == "" {
		kind = w.Type
	}

	var p Payload
	switch kind {
	case KindDatabaseUpdate:
		var v DatabaseUpdate
		if err := unmarshalData(w.Data, &v); err != nil {
			return err
		}
		p = v
	case KindConnectionCount:
		var v ConnectionCount
		if err := unmarshalData(w.Data, &v); err != nil {
			return err
		}
		p = v
	case KindConnectionEstablished:
		var v ConnectionEstablished
		if err := unmarshalData(w.Data, &v); err != nil {
			return err
		}
		p = v
	case KindPing:
		var v Ping
		if err := unmarshalData(w.Data, &v); err != nil {
			return err
		}
		p = v
	case KindPong:
		p = Pong{}
	case KindError:
		var v Error
		if err := unmarshalData(w.Data, &v); err != nil {
			return err
		}
		p = v
	default:
		return fmt.Errorf("hub: unknown event kind %q", kind)
	}

	var ts time.Time
	if w.Timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, w.Timestamp)
		if err != nil {
			return fmt.Errorf("hub: timestamp: %w", err)
		}
		ts = t
	}
	*e = Event{Payload: p, Timestamp: ts, Seq: w.Seq}
	return nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
