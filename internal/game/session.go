// Package game implements the relay's authoritative core: the session
// registry, session lifecycle (join, liveness, eviction), the inbound message
// router, the periodic state broadcaster, and the best-effort event fan-out.
package game

import (
	"sync"
	"time"

	"planetfall/relay/internal/protocol"
)

// DefaultSpawn is the fixed pose every session starts from.
var DefaultSpawn = protocol.Vec3{X: 0, Y: 20, Z: 120}

// Conn is the exclusive transport handle a session owns. Implementations must
// be safe for concurrent Send calls; a failed Send reports a missed delivery
// and never blocks.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Session is the server-side record of one connected client.
type Session struct {
	id    string
	color string
	conn  Conn

	mu           sync.Mutex
	position     protocol.Vec3
	rotation     protocol.Vec3
	alienMode    bool
	landedPlanet string
	landed       bool
	lastUpdate   time.Time
	latency      time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession constructs a session at the spawn pose with lastUpdate set to now.
func NewSession(id, color string, conn Conn, now time.Time) *Session {
	return &Session{
		id:         id,
		color:      color,
		conn:       conn,
		position:   DefaultSpawn,
		lastUpdate: now,
		done:       make(chan struct{}),
	}
}

// ID returns the session's routing key.
func (s *Session) ID() string { return s.id }

// Color returns the display color assigned at connect time.
func (s *Session) Color() string { return s.color }

// Send forwards a payload to the session's transport.
func (s *Session) Send(payload []byte) error {
	return s.conn.Send(payload)
}

// Touch refreshes the liveness timestamp.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastUpdate = now
	s.mu.Unlock()
}

// LastUpdate reports the most recent inbound activity timestamp.
func (s *Session) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}

// SetPose overwrites the last reported position and rotation.
func (s *Session) SetPose(position, rotation protocol.Vec3) {
	s.mu.Lock()
	s.position = position
	s.rotation = rotation
	s.mu.Unlock()
}

// Pose returns the last reported position and rotation.
func (s *Session) Pose() (protocol.Vec3, protocol.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.rotation
}

// SetAlienMode records the avatar state and the associated planet, if any.
func (s *Session) SetAlienMode(alienMode bool, planetID string) {
	s.mu.Lock()
	s.alienMode = alienMode
	s.landedPlanet = planetID
	s.landed = planetID != ""
	s.mu.Unlock()
}

// AlienMode reports the avatar state and landed planet id.
func (s *Session) AlienMode() (bool, *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alienMode, s.landedPlanetLocked()
}

// RecordLatency stores the most recent round-trip measurement.
func (s *Session) RecordLatency(latency time.Duration) {
	s.mu.Lock()
	s.latency = latency
	s.mu.Unlock()
}

// Latency returns the most recent round-trip measurement.
func (s *Session) Latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency
}

// View projects the session into its public roster representation.
func (s *Session) View() protocol.PlayerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.PlayerView{
		ID:             s.id,
		Position:       s.position,
		Rotation:       s.rotation,
		Color:          s.color,
		IsAlienMode:    s.alienMode,
		LandedPlanetID: s.landedPlanetLocked(),
	}
}

// Snapshot projects the session into the reduced gameState entry.
func (s *Session) Snapshot() protocol.SnapshotEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.SnapshotEntry{
		ID:             s.id,
		Position:       s.position,
		Rotation:       s.rotation,
		IsAlienMode:    s.alienMode,
		LandedPlanetID: s.landedPlanetLocked(),
	}
}

// landedPlanetLocked clones the landed planet id; callers must hold the mutex.
func (s *Session) landedPlanetLocked() *string {
	if !s.landed {
		return nil
	}
	planet := s.landedPlanet
	return &planet
}

// Done is closed exactly once when the session is torn down; the per-session
// ping loop watches it.
func (s *Session) Done() <-chan struct{} { return s.done }

// close tears down the transport and releases the ping loop.
func (s *Session) close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
