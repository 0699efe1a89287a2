// ABOUTME: Control protocol message definitions
// ABOUTME: JSON envelopes exchanged over the /mixgraph websocket
package control

// ProtocolVersion is sent in hello messages
const ProtocolVersion = 1

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeClientCommand = "client/command"
	TypeServerHello   = "server/hello"
	TypeServerMeters  = "server/meters"
	TypeServerError   = "server/error"
)

// Command actions
const (
	ActionLoad      = "load"
	ActionPlay      = "play"
	ActionStop      = "stop"
	ActionPause     = "pause"
	ActionSeek      = "seek"
	ActionVolume    = "volume"
	ActionBalance   = "balance"
	ActionFrequency = "frequency"
	ActionLoop      = "loop"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello opens a session
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello answers client/hello
type ServerHello struct {
	ServerID string   `json:"server_id"`
	Name     string   `json:"name"`
	Version  int      `json:"version"`
	Software string   `json:"software"`
	Device   string   `json:"device"`
	Mixers   []string `json:"mixers"`
}

// Command addresses a loaded track by Track, or a mixer by Mixer when Track is empty.
// For load, Mixer selects the destination mixer.
type Command struct {
	ID         string  `json:"id,omitempty"`
	Action     string  `json:"action"`
	Track      string  `json:"track,omitempty"`
	Mixer      string  `json:"mixer,omitempty"`
	Value      float64 `json:"value,omitempty"`
	PositionMs int64   `json:"position_ms,omitempty"`
	Restart    bool    `json:"restart,omitempty"`
	Loop       bool    `json:"loop,omitempty"`
}

// Meters is broadcast periodically with the state of every mixer
type Meters struct {
	Timestamp   int64        `json:"timestamp"` // server clock µs
	Device      string       `json:"device"`
	DeviceState string       `json:"device_state"`
	Mixers      []MixerMeter `json:"mixers"`
}

// MixerMeter describes one mixer and its direct track members
type MixerMeter struct {
	Name      string         `json:"name"`
	Volume    float64        `json:"volume"`
	Balance   float64        `json:"balance"`
	Frequency float64        `json:"frequency"`
	Left      float32        `json:"left"`
	Right     float32        `json:"right"`
	Channels  []ChannelMeter `json:"channels"`
}

// ChannelMeter describes one channel
type ChannelMeter struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Playing    bool    `json:"playing"`
	PositionMs int64   `json:"position_ms,omitempty"`
	LengthMs   int64   `json:"length_ms,omitempty"`
	Left       float32 `json:"left"`
	Right      float32 `json:"right"`
}

// Error reports a rejected message or command
type Error struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	CommandID string `json:"command_id,omitempty"`
}

// Error codes
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeDuplicateID = "duplicate_client_id"
	ErrCodeNotFound    = "not_found"
	ErrCodeDisposed    = "disposed"
	ErrCodeUnknown     = "unknown_action"
)
