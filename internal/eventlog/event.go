package eventlog

import (
	"encoding/json"
	"time"
)

// EventType classifies a portal runtime event.
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypePortalEnter
	EventTypeNavigate
	EventTypeWarpStart
	EventTypeWarpStop
	EventTypeAvatarLoaded
	EventTypeAvatarRejected
	EventTypeAvatarFailed
)

// EventVersion is bumped when payload shapes change.
const EventVersion uint8 = 1

// Event is one line of the JSONL log.
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	Source    string          `json:"source"` // portal role or rig name, used for rate limiting
	Payload   json.RawMessage `json:"payload"`
}

func (t EventType) String() string {
	switch t {
	case EventTypePortalEnter:
		return "portal_enter"
	case EventTypeNavigate:
		return "navigate"
	case EventTypeWarpStart:
		return "warp_start"
	case EventTypeWarpStop:
		return "warp_stop"
	case EventTypeAvatarLoaded:
		return "avatar_loaded"
	case EventTypeAvatarRejected:
		return "avatar_rejected"
	case EventTypeAvatarFailed:
		return "avatar_failed"
	default:
		return "unknown"
	}
}

// MarshalText writes the readable name into the JSON log.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// PortalEnterPayload records a containment hit.
type PortalEnterPayload struct {
	Role    string     `json:"role"`
	PlayerX float32    `json:"playerX"`
	PlayerY float32    `json:"playerY"`
	PlayerZ float32    `json:"playerZ"`
	Box     [6]float32 `json:"box"` // expanded volume min xyz, max xyz
}

// NavigatePayload records an outbound navigation.
type NavigatePayload struct {
	Role   string `json:"role"`
	Target string `json:"target"`
}

// WarpPayload records warp state transitions.
type WarpPayload struct {
	CameraSpeed float32 `json:"cameraSpeed"`
}

// AvatarPayload records avatar queue outcomes.
type AvatarPayload struct {
	Rig   string `json:"rig"`
	URL   string `json:"url"`
	Local bool   `json:"local"`
	Error string `json:"error,omitempty"`
}

// EncodePayload marshals a payload to JSON bytes.
func EncodePayload(payload any) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, source string, payload any) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}
