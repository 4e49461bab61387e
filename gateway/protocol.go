package gateway

import (
	"encoding/json"
	"fmt"
)

// Op is a gateway opcode.
type Op int

const (
	OpDispatch       Op = 0
	OpHeartbeat      Op = 1
	OpIdentify       Op = 2
	OpPresenceUpdate Op = 3
	OpResume         Op = 6
	OpReconnect      Op = 7
	OpInvalidSession Op = 9
	OpHello          Op = 10
	OpHeartbeatAck   Op = 11
)

func (o Op) String() string {
	switch o {
	case OpDispatch:
		return "DISPATCH"
	case OpHeartbeat:
		return "HEARTBEAT"
	case OpIdentify:
		return "IDENTIFY"
	case OpPresenceUpdate:
		return "PRESENCE_UPDATE"
	case OpResume:
		return "RESUME"
	case OpReconnect:
		return "RECONNECT"
	case OpInvalidSession:
		return "INVALID_SESSION"
	case OpHello:
		return "HELLO"
	case OpHeartbeatAck:
		return "HEARTBEAT_ACK"
	default:
		return fmt.Sprintf("OP(%d)", int(o))
	}
}

// Dispatch event types the session core reacts to.
const (
	EventTypeReady   = "READY"
	EventTypeResumed = "RESUMED"
)

// activityTypeCustom marks a custom-status activity.
const activityTypeCustom = 4

// Frame is an inbound gateway message. S and T are only set on dispatch
// frames.
type Frame struct {
	Op Op              `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  string          `json:"t"`
}

// ParseFrame decodes one text message.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// payload is an outbound message. D is always emitted, as null when nil.
type payload struct {
	Op Op  `json:"op"`
	D  any `json:"d"`
}

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type readyData struct {
	SessionID string `json:"session_id"`
}

type identifyData struct {
	Token      string           `json:"token"`
	Properties Properties       `json:"properties"`
	Presence   identifyPresence `json:"presence"`
	Compress   bool             `json:"compress"`
	Intents    int              `json:"intents"`
}

type identifyPresence struct {
	Status string `json:"status"`
	AFK    bool   `json:"afk"`
}

type resumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

type presenceData struct {
	Since      int64      `json:"since"`
	Activities []activity `json:"activities"`
	Status     string     `json:"status"`
	AFK        bool       `json:"afk"`
}

type activity struct {
	Type  int        `json:"type"`
	State string     `json:"state"`
	Name  string     `json:"name"`
	ID    string     `json:"id"`
	Emoji *emojiData `json:"emoji,omitempty"`
}

type emojiData struct {
	Name     string `json:"name"`
	ID       string `json:"id,omitempty"`
	Animated *bool  `json:"animated,omitempty"`
}

func heartbeatPayload(seq *int64) payload {
	if seq == nil {
		return payload{Op: OpHeartbeat}
	}
	return payload{Op: OpHeartbeat, D: *seq}
}

func identifyPayload(id Identity) payload {
	return payload{Op: OpIdentify, D: identifyData{
		Token:      id.Token,
		Properties: id.Properties,
		Presence:   identifyPresence{Status: id.Presence.Status},
	}}
}

func resumePayload(token, sessionID string, seq int64) payload {
	return payload{Op: OpResume, D: resumeData{Token: token, SessionID: sessionID, Seq: seq}}
}

func presencePayload(p Presence) payload {
	act := activity{
		Type:  activityTypeCustom,
		State: p.CustomText,
		Name:  "Custom Status",
		ID:    "custom",
	}
	if p.Emoji != nil && p.Emoji.Name != "" {
		e := &emojiData{Name: p.Emoji.Name}
		if p.Emoji.ID != "" {
			animated := p.Emoji.Animated
			e.ID = p.Emoji.ID
			e.Animated = &animated
		}
		act.Emoji = e
	}
	return payload{Op: OpPresenceUpdate, D: presenceData{
		Activities: []activity{act},
		Status:     p.Status,
	}}
}

// parseHello extracts the heartbeat interval from a hello frame.
func parseHello(f Frame) (int64, error) {
	if f.Op != OpHello {
		return 0, fmt.Errorf("expected %s, got %s", OpHello, f.Op)
	}
	var d helloData
	if len(f.D) == 0 || json.Unmarshal(f.D, &d) != nil {
		return 0, fmt.Errorf("malformed %s payload", OpHello)
	}
	if d.HeartbeatInterval <= 0 {
		return 0, fmt.Errorf("invalid heartbeat_interval %d", d.HeartbeatInterval)
	}
	return d.HeartbeatInterval, nil
}

// parseInvalidSession reports the resumable flag of an invalid-session frame.
// Anything other than a literal true is treated as non-resumable.
func parseInvalidSession(f Frame) bool {
	var resumable bool
	if err := json.Unmarshal(f.D, &resumable); err != nil {
		return false
	}
	return resumable
}
