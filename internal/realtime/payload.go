package realtime

import "encoding/json"

// ─── Actions (Client → Channel) ─────────────────────────────────────

type Action string

const (
	ActionSubscribe Action = "subscribe"
	ActionPing      Action = "ping"
)

// SubscribeRequest asks the channel to stream row events for one topic.
type SubscribeRequest struct {
	Action Action `json:"action"`
	Topic  string `json:"topic"`
}

// PingRequest keeps an otherwise idle channel alive.
type PingRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Channel → Client) ──────────────────────────────────────

type Event string

const (
	EventSubscribed Event = "subscribed"
	EventInsert     Event = "insert"
	EventUpdate     Event = "update"
	EventDelete     Event = "delete"
	EventError      Event = "error"
	EventPong       Event = "pong"
)

// Row is one change event on a subscribed topic. Payload holds the row body
// and is decoded by the subscriber.
type Row struct {
	Event   Event           `json:"event"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// IsChange reports whether the row is a data change rather than a control
// message.
func (r Row) IsChange() bool {
	switch r.Event {
	case EventInsert, EventUpdate, EventDelete:
		return true
	}
	return false
}
