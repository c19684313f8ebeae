package daemon

import (
	"encoding/json"
	"fmt"

	"github.com/b/tabsync/pkg/paths"
	"github.com/b/tabsync/pkg/rowmodel"
)

// MessageType identifies the type of message
type MessageType string

const (
	MsgSubscribe   MessageType = "subscribe"   // Client -> Daemon: start receiving rows
	MsgUnsubscribe MessageType = "unsubscribe" // Client -> Daemon: stop and disconnect
	MsgRows        MessageType = "rows"        // Daemon -> Client: full row list
	MsgAction      MessageType = "action"      // Client -> Daemon: user action on a row
	MsgError       MessageType = "error"       // Daemon -> Client: rejected request
	MsgPing        MessageType = "ping"
	MsgPong        MessageType = "pong"
)

// Action names carried by ActionPayload.
const (
	ActionSelect = "select"
	ActionClose  = "close"
	ActionNewTab = "new_tab"
)

// Message is one newline-delimited JSON frame.
type Message struct {
	Type     MessageType     `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds a message with payload encoded; a nil payload is omitted.
func NewMessage(t MessageType, clientID string, payload interface{}) (Message, error) {
	msg := Message{Type: t, ClientID: clientID}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	msg.Payload = data
	return msg, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// RowPayload is the wire form of one row.
type RowPayload struct {
	ID             string `json:"id"`
	TabID          string `json:"tab_id"`
	Title          string `json:"title"`
	Position       int    `json:"position"`
	Selected       bool   `json:"selected,omitempty"`
	NeedsAttention bool   `json:"needs_attention,omitempty"`
}

// RowsPayload is the full row list at one point in time.
type RowsPayload struct {
	SequenceNum uint64       `json:"seq"` // Monotonic, so clients can drop stale frames
	Mode        string       `json:"mode"`
	Rows        []RowPayload `json:"rows"`
}

// NewRowsPayload converts model rows to their wire form.
func NewRowsPayload(mode string, rows []rowmodel.Row) *RowsPayload {
	out := &RowsPayload{Mode: mode, Rows: make([]RowPayload, len(rows))}
	for i, r := range rows {
		out.Rows[i] = RowPayload{
			ID:             r.ID,
			TabID:          r.TabID,
			Title:          r.Title,
			Position:       r.Position,
			Selected:       r.Selected,
			NeedsAttention: r.NeedsAttention,
		}
	}
	return out
}

// ActionPayload is a user action forwarded from a client.
type ActionPayload struct {
	Action string `json:"action"`
	RowID  string `json:"row_id,omitempty"`
}

// Validate checks that the action is known and carries a row when it needs one.
func (a ActionPayload) Validate() error {
	switch a.Action {
	case ActionSelect, ActionClose:
		if a.RowID == "" {
			return fmt.Errorf("action %q needs a row id", a.Action)
		}
	case ActionNewTab:
	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
	return nil
}

// ErrorPayload explains a rejected request.
type ErrorPayload struct {
	Message string `json:"message"`
}

// SocketPath returns the daemon socket path for a session
func SocketPath(session string) string {
	if session == "" {
		session = "default"
	}
	return paths.SocketPath(session)
}

// PidPath returns the pidfile path for a session
func PidPath(session string) string {
	if session == "" {
		session = "default"
	}
	return paths.PidPath(session)
}
