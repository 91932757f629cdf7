// internal/protocol/protocol.go
//
// Wire protocol between the town and its observers. Observers connect
// over a websocket, say HELLO, and receive the event stream; COMMAND
// messages drive the playback governor.

package protocol

import (
	"encoding/json"
	"time"

	"github.com/kgang/agenttown/internal/town"
)

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeEvent   = "EVENT"
	TypeStatus  = "STATUS"
	TypeCommand = "COMMAND"
	TypeError   = "ERROR"
)

// Command actions.
const (
	ActionPause    = "pause"
	ActionResume   = "resume"
	ActionStop     = "stop"
	ActionSetSpeed = "set_speed"
	ActionSpeedUp  = "speed_up"
	ActionSlowDown = "slow_down"
)

// BaseMessage routes unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

// DecodeBase extracts the routing envelope.
func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// HELLO (observer -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ObserverName    string `json:"observer_name"`
	// Topic narrows the stream: "all" (default), "region:<id>", or
	// "citizen:<id>".
	Topic string `json:"topic,omitempty"`
}

// WELCOME (server -> observer)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	Phases          int      `json:"phases"`
	Regions         []string `json:"regions"`
	Speed           float64  `json:"speed"`
}

// EVENT (server -> observer)
type EventMsg struct {
	Type  string     `json:"type"`
	Event town.Event `json:"event"`
	Line  string     `json:"line,omitempty"`
}

// STATUS (server -> observer)
type StatusMsg struct {
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	Speed           float64   `json:"speed"`
	PhaseIndex      int       `json:"phase_index"`
	EventsThisPhase int       `json:"events_this_phase"`
	TotalEvents     int       `json:"total_events"`
	LastEmit        time.Time `json:"last_emit,omitempty"`
}

// COMMAND (observer -> server)
type CommandMsg struct {
	Type   string  `json:"type"`
	Action string  `json:"action"`
	Speed  float64 `json:"speed,omitempty"`
}

// ERROR (server -> observer)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an ERROR message.
func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, Code: code, Message: message}
}
