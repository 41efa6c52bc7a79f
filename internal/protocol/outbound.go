package protocol

// PlanetStub is the minimal seed planet data shared at connect time so every
// client renders a consistent baseline before its own generation takes over.
type PlanetStub struct {
	ID       string  `json:"id"`
	Position Vec3    `json:"position"`
	Size     float64 `json:"size"`
	Type     string  `json:"type"`
}

// PlayerView is the public projection of a session shared with other clients.
type PlayerView struct {
	ID             string  `json:"id"`
	Position       Vec3    `json:"position"`
	Rotation       Vec3    `json:"rotation"`
	Color          string  `json:"color"`
	IsAlienMode    bool    `json:"isAlienMode"`
	LandedPlanetID *string `json:"landedPlanetId"`
}

// SnapshotEntry is the bandwidth-conscious per-session projection carried by
// gameState frames: identity and pose only, no color or timing bookkeeping.
type SnapshotEntry struct {
	ID             string  `json:"id"`
	Position       Vec3    `json:"position"`
	Rotation       Vec3    `json:"rotation"`
	IsAlienMode    bool    `json:"isAlienMode"`
	LandedPlanetID *string `json:"landedPlanetId"`
}

// InitMessage seeds a freshly connected client with its identity, the current
// roster, and the shared planet stubs.
type InitMessage struct {
	Type        string                `json:"type"`
	PlayerID    string                `json:"playerId"`
	PlayerColor string                `json:"playerColor"`
	Players     map[string]PlayerView `json:"players"`
	Planets     []PlanetStub          `json:"planets"`
}

// NewInitMessage constructs an init frame.
func NewInitMessage(playerID, color string, players map[string]PlayerView, planets []PlanetStub) InitMessage {
	return InitMessage{Type: TypeInit, PlayerID: playerID, PlayerColor: color, Players: players, Planets: planets}
}

// PlayerJoinedMessage announces a new participant to everyone else.
type PlayerJoinedMessage struct {
	Type   string     `json:"type"`
	Player PlayerView `json:"player"`
}

// NewPlayerJoinedMessage constructs a playerJoined frame.
func NewPlayerJoinedMessage(player PlayerView) PlayerJoinedMessage {
	return PlayerJoinedMessage{Type: TypePlayerJoined, Player: player}
}

// PlayerLeftMessage announces a departure.
type PlayerLeftMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// NewPlayerLeftMessage constructs a playerLeft frame.
func NewPlayerLeftMessage(playerID string) PlayerLeftMessage {
	return PlayerLeftMessage{Type: TypePlayerLeft, PlayerID: playerID}
}

// GameStateMessage is the periodic full snapshot of all live sessions.
type GameStateMessage struct {
	Type      string                   `json:"type"`
	Players   map[string]SnapshotEntry `json:"players"`
	Timestamp int64                    `json:"timestamp"`
}

// NewGameStateMessage constructs a gameState frame.
func NewGameStateMessage(players map[string]SnapshotEntry, timestamp int64) GameStateMessage {
	return GameStateMessage{Type: TypeGameState, Players: players, Timestamp: timestamp}
}

// HeartbeatMessage is the keepalive frame pushed on a fixed cadence.
type HeartbeatMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// NewHeartbeatMessage constructs a heartbeat frame.
func NewHeartbeatMessage(timestamp int64) HeartbeatMessage {
	return HeartbeatMessage{Type: TypeHeartbeat, Timestamp: timestamp}
}

// PingMessage opens a latency probe round trip.
type PingMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// NewPingMessage constructs a ping frame.
func NewPingMessage(timestamp int64) PingMessage {
	return PingMessage{Type: TypePing, Timestamp: timestamp}
}

// PlayerAlienModeMessage relays an avatar state change.
type PlayerAlienModeMessage struct {
	Type        string  `json:"type"`
	PlayerID    string  `json:"playerId"`
	IsAlienMode bool    `json:"isAlienMode"`
	PlanetID    *string `json:"planetId"`
}

// NewPlayerAlienModeMessage constructs a playerAlienMode frame.
func NewPlayerAlienModeMessage(playerID string, isAlienMode bool, planetID *string) PlayerAlienModeMessage {
	return PlayerAlienModeMessage{Type: TypePlayerAlienMode, PlayerID: playerID, IsAlienMode: isAlienMode, PlanetID: planetID}
}

// BombPlacedMessage relays a bomb placement with its countdown.
type BombPlacedMessage struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId"`
	PlanetID  string `json:"planetId"`
	Position  Vec3   `json:"position"`
	Countdown int    `json:"countdown"`
}

// NewBombPlacedMessage constructs a bombPlaced frame.
func NewBombPlacedMessage(playerID string, placement BombPlacement) BombPlacedMessage {
	return BombPlacedMessage{
		Type:      TypeBombPlaced,
		PlayerID:  playerID,
		PlanetID:  placement.PlanetID,
		Position:  placement.Position,
		Countdown: placement.Countdown,
	}
}

// PlanetDestroyedMessage relays a planet destruction event.
type PlanetDestroyedMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	PlanetID string `json:"planetId"`
}

// NewPlanetDestroyedMessage constructs a planetDestroyed frame.
func NewPlanetDestroyedMessage(playerID, planetID string) PlanetDestroyedMessage {
	return PlanetDestroyedMessage{Type: TypePlanetDestroyed, PlayerID: playerID, PlanetID: planetID}
}

// ChatBroadcastMessage relays a sanitized chat line tagged with sender identity.
type ChatBroadcastMessage struct {
	Type        string `json:"type"`
	PlayerID    string `json:"playerId"`
	PlayerColor string `json:"playerColor"`
	Message     string `json:"message"`
}

// NewChatBroadcastMessage constructs a chat frame.
func NewChatBroadcastMessage(playerID, color, message string) ChatBroadcastMessage {
	return ChatBroadcastMessage{Type: TypeChat, PlayerID: playerID, PlayerColor: color, Message: message}
}
