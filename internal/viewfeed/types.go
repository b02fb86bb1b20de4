package viewfeed

import "encoding/json"

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Message is an inbound frame from the renderer. Type "command" carries a
// command line in Data, e.g. {"type":"command","data":"next"}.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Command returns the command line of a "command" frame.
func (m *Message) Command() (string, bool) {
	if m == nil || m.Type != "command" || len(m.Data) == 0 {
		return "", false
	}
	var line string
	if err := json.Unmarshal(m.Data, &line); err != nil {
		return "", false
	}
	return line, true
}

type MessageCallback func(message *Message)

type StateCallback func(state State)
