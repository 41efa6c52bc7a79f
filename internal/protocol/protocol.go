// Package protocol defines the JSON wire contract between the relay and its
// clients. Every frame is a single JSON object carrying a mandatory "type"
// discriminator; inbound frames are decoded into a closed set of typed
// messages at this boundary so handlers never re-validate raw payloads.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Message type discriminators shared with clients.
const (
	TypeInit            = "init"
	TypePlayerJoined    = "playerJoined"
	TypePlayerLeft      = "playerLeft"
	TypeGameState       = "gameState"
	TypeHeartbeat       = "heartbeat"
	TypePing            = "ping"
	TypePong            = "pong"
	TypeUpdatePosition  = "updatePosition"
	TypeAlienMode       = "alienMode"
	TypePlayerAlienMode = "playerAlienMode"
	TypePlaceBomb       = "placeBomb"
	TypeBombPlaced      = "bombPlaced"
	TypePlanetDestroyed = "planetDestroyed"
	TypeChat            = "chat"
)

const (
	// MaxChatLength bounds relayed chat messages after trimming.
	MaxChatLength = 200
	// DefaultBombCountdown is applied when a placeBomb frame omits the countdown.
	DefaultBombCountdown = 10
)

var (
	// ErrMalformedFrame indicates the frame was not a parseable JSON object.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownType indicates an unrecognised type discriminator.
	ErrUnknownType = errors.New("unknown message type")
	// ErrInvalidPayload indicates a recognised type with unusable fields.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrEmptyChat indicates a chat message that is empty after trimming.
	ErrEmptyChat = errors.New("empty chat message")
	// ErrChatTooLong indicates a chat message exceeding MaxChatLength.
	ErrChatTooLong = errors.New("chat message too long")
)

// Vec3 is a three-component vector as carried on the wire.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Finite reports whether every component is a finite number.
func (v Vec3) Finite() bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// vec3Payload mirrors the wire layout with pointer fields so missing
// components are distinguishable from zeroes.
type vec3Payload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

func (p *vec3Payload) toVec3() (Vec3, error) {
	if p == nil || p.X == nil || p.Y == nil || p.Z == nil {
		return Vec3{}, fmt.Errorf("%w: vector missing components", ErrInvalidPayload)
	}
	v := Vec3{X: *p.X, Y: *p.Y, Z: *p.Z}
	if !v.Finite() {
		return Vec3{}, fmt.Errorf("%w: vector component not finite", ErrInvalidPayload)
	}
	return v, nil
}

// Inbound is the closed set of client-to-server messages.
type Inbound interface {
	MessageType() string
}

// PositionUpdate reports the client's latest pose.
type PositionUpdate struct {
	Position  Vec3
	Rotation  Vec3
	Timestamp int64
}

// MessageType implements Inbound.
func (PositionUpdate) MessageType() string { return TypeUpdatePosition }

// AlienModeChange toggles the dismounted avatar state.
type AlienModeChange struct {
	IsAlienMode bool
	PlanetID    string
}

// MessageType implements Inbound.
func (AlienModeChange) MessageType() string { return TypeAlienMode }

// BombPlacement announces a bomb planted on a planet.
type BombPlacement struct {
	PlanetID  string
	Position  Vec3
	Countdown int
}

// MessageType implements Inbound.
func (BombPlacement) MessageType() string { return TypePlaceBomb }

// PlanetDestruction announces a destroyed planet.
type PlanetDestruction struct {
	PlanetID string
}

// MessageType implements Inbound.
func (PlanetDestruction) MessageType() string { return TypePlanetDestroyed }

// ChatMessage carries a sanitized chat line.
type ChatMessage struct {
	Message string
}

// MessageType implements Inbound.
func (ChatMessage) MessageType() string { return TypeChat }

// PongReply closes a latency probe round trip.
type PongReply struct {
	PingTime  int64
	Timestamp int64
}

// MessageType implements Inbound.
func (PongReply) MessageType() string { return TypePong }

// DecodeInbound parses a raw frame into a validated typed message.
func DecodeInbound(raw []byte) (Inbound, error) {
	//1.- Peel the discriminator first so the switch below is total over known types.
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch head.Type {
	case TypeUpdatePosition:
		return decodePositionUpdate(raw)
	case TypeAlienMode:
		return decodeAlienMode(raw)
	case TypePlaceBomb:
		return decodeBombPlacement(raw)
	case TypePlanetDestroyed:
		return decodePlanetDestruction(raw)
	case TypeChat:
		return decodeChat(raw)
	case TypePong:
		return decodePong(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}

func decodePositionUpdate(raw []byte) (Inbound, error) {
	var payload struct {
		Position  *vec3Payload `json:"position"`
		Rotation  *vec3Payload `json:"rotation"`
		Timestamp int64        `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	//1.- Both vectors must be present with three finite components each.
	position, err := payload.Position.toVec3()
	if err != nil {
		return nil, err
	}
	rotation, err := payload.Rotation.toVec3()
	if err != nil {
		return nil, err
	}
	return PositionUpdate{Position: position, Rotation: rotation, Timestamp: payload.Timestamp}, nil
}

func decodeAlienMode(raw []byte) (Inbound, error) {
	var payload struct {
		IsAlienMode bool   `json:"isAlienMode"`
		PlanetID    string `json:"planetId"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return AlienModeChange{IsAlienMode: payload.IsAlienMode, PlanetID: strings.TrimSpace(payload.PlanetID)}, nil
}

func decodeBombPlacement(raw []byte) (Inbound, error) {
	var payload struct {
		PlanetID  string       `json:"planetId"`
		Position  *vec3Payload `json:"position"`
		Countdown *int         `json:"countdown"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	planetID := strings.TrimSpace(payload.PlanetID)
	if planetID == "" {
		return nil, fmt.Errorf("%w: placeBomb requires a planet id", ErrInvalidPayload)
	}
	position, err := payload.Position.toVec3()
	if err != nil {
		return nil, err
	}
	//1.- Fall back to the shared default so clients may omit the countdown.
	countdown := DefaultBombCountdown
	if payload.Countdown != nil && *payload.Countdown > 0 {
		countdown = *payload.Countdown
	}
	return BombPlacement{PlanetID: planetID, Position: position, Countdown: countdown}, nil
}

func decodePlanetDestruction(raw []byte) (Inbound, error) {
	var payload struct {
		PlanetID string `json:"planetId"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	planetID := strings.TrimSpace(payload.PlanetID)
	if planetID == "" {
		return nil, fmt.Errorf("%w: planetDestroyed requires a planet id", ErrInvalidPayload)
	}
	return PlanetDestruction{PlanetID: planetID}, nil
}

func decodeChat(raw []byte) (Inbound, error) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	sanitized, err := SanitizeChat(payload.Message)
	if err != nil {
		return nil, err
	}
	return ChatMessage{Message: sanitized}, nil
}

func decodePong(raw []byte) (Inbound, error) {
	var payload struct {
		PingTime  int64 `json:"pingTime"`
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if payload.PingTime <= 0 {
		return nil, fmt.Errorf("%w: pong requires the original ping timestamp", ErrInvalidPayload)
	}
	return PongReply{PingTime: payload.PingTime, Timestamp: payload.Timestamp}, nil
}

// SanitizeChat trims, bounds, and HTML-escapes a chat message.
func SanitizeChat(message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", ErrEmptyChat
	}
	if utf8.RuneCountInString(trimmed) > MaxChatLength {
		return "", ErrChatTooLong
	}
	//1.- Only angle brackets are escaped; the relay has no other HTML concerns.
	escaped := strings.ReplaceAll(trimmed, "<", "&lt;")
	escaped = strings.ReplaceAll(escaped, ">", "&gt;")
	return escaped, nil
}
