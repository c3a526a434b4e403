// Package models messages.go
package models

import (
	"encoding/json"
)

// Client -> server message types.
const (
	MsgJoin     = "join"
	MsgPosition = "position"
	MsgPing     = "ping"
	MsgShoot    = "shoot"
	MsgHit      = "hit"
)

// Server -> client message types.
const (
	MsgPlayers      = "players"
	MsgPlayerJoined = "player_joined"
	MsgPlayerLeft   = "player_left"
	MsgPlayerShoot  = "player_shoot"
	MsgHitConfirmed = "hit_confirmed"
	MsgPong         = "pong"
	MsgError        = "error"
)

const ErrCodeJoinRateLimited = "join_rate_limited"

// ClientMessage is the tagged union of everything a client may send. The
// vector payloads stay raw so a garbage position does not poison the frame:
// the handler decides per field what to salvage.
type ClientMessage struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	PlaneType  string          `json:"planeType,omitempty"`
	PlaneColor string          `json:"planeColor,omitempty"`
	TargetID   string          `json:"targetId,omitempty"`
	Position   json.RawMessage `json:"position,omitempty"`
	Rotation   json.RawMessage `json:"rotation,omitempty"`
	Velocity   json.RawMessage `json:"velocity,omitempty"`
	Direction  json.RawMessage `json:"direction,omitempty"`
	Throttle   json.RawMessage `json:"throttle,omitempty"`
}

// DecodeClientMessage parses one inbound text frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// DecodeVec decodes a raw {x,y,z} payload. It reports false when the
// payload is absent, malformed, missing a component, or carries a
// non-finite number.
func DecodeVec(raw json.RawMessage) (Vec3, bool) {
	if len(raw) == 0 {
		return Vec3{}, false
	}
	var parts struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
		Z *float64 `json:"z"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return Vec3{}, false
	}
	if parts.X == nil || parts.Y == nil || parts.Z == nil {
		return Vec3{}, false
	}
	v := Vec3{X: *parts.X, Y: *parts.Y, Z: *parts.Z}
	if !v.Finite() {
		return Vec3{}, false
	}
	return v, true
}

// DecodeThrottle decodes a raw throttle payload, substituting the default
// when it is absent or not a number.
func DecodeThrottle(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return DefaultThrottle
	}
	var t float64
	if err := json.Unmarshal(raw, &t); err != nil {
		return DefaultThrottle
	}
	return t
}

// SnapshotMessage is the periodic world broadcast.
type SnapshotMessage struct {
	Type      string            `json:"type"`
	Players   map[string]Player `json:"players"`
	Scores    map[string]int    `json:"scores"`
	Count     int               `json:"count"`
	Timestamp int64             `json:"timestamp"`
}

type PlayerJoinedMessage struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	PlaneType  string `json:"planeType"`
	PlaneColor string `json:"planeColor"`
	Timestamp  int64  `json:"timestamp"`
}

type PlayerLeftMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

type PlayerShootMessage struct {
	Type      string `json:"type"`
	ShooterID string `json:"shooterId"`
	Position  Vec3   `json:"position"`
	Direction Vec3   `json:"direction"`
	Timestamp int64  `json:"timestamp"`
}

type HitConfirmedMessage struct {
	Type         string `json:"type"`
	ShooterID    string `json:"shooterId"`
	TargetID     string `json:"targetId"`
	ShooterScore int    `json:"shooterScore"`
	Timestamp    int64  `json:"timestamp"`
}

type PongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
