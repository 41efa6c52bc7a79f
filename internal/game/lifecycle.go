package game

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"planetfall/relay/internal/logging"
	"planetfall/relay/internal/protocol"
)

// Journal receives copies of relayed events and broadcast frames for the
// optional flight journal. Implementations must tolerate concurrent calls.
type Journal interface {
	RecordEvent(eventType string, payload []byte)
	RecordFrame(payload []byte)
}

// ManagerConfig carries the lifecycle cadences.
type ManagerConfig struct {
	PingInterval   time.Duration
	SessionTimeout time.Duration
}

// ManagerOption customises optional Manager behaviour at construction time.
type ManagerOption func(*Manager)

// WithManagerClock overrides the wall-clock time source; primarily used in tests.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithJournal attaches a flight journal to the lifecycle manager.
func WithJournal(journal Journal) ManagerOption {
	return func(m *Manager) {
		m.journal = journal
	}
}

// WithPingLoops toggles the per-session ping goroutines; tests disable them to
// drive probes deterministically.
func WithPingLoops(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.pingLoops = enabled
	}
}

// Manager owns session lifecycle: join, liveness probes, timeout eviction,
// and disconnect. It is the only component that creates or destroys sessions,
// and it owns the palette round-robin cursor.
type Manager struct {
	registry *Registry
	fanout   *Fanout
	planets  []protocol.PlanetStub
	log      *logging.Logger
	now      func() time.Time
	journal  Journal

	pingInterval   time.Duration
	sessionTimeout time.Duration
	pingLoops      bool

	mu            sync.Mutex
	paletteCursor int
}

// NewManager constructs the lifecycle manager.
func NewManager(registry *Registry, fanout *Fanout, stubs []protocol.PlanetStub, logger *logging.Logger, cfg ManagerConfig, opts ...ManagerOption) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = logging.L()
	}
	if fanout == nil {
		fanout = NewFanout(logger)
	}
	manager := &Manager{
		registry:       registry,
		fanout:         fanout,
		planets:        stubs,
		log:            logger,
		now:            time.Now,
		pingInterval:   cfg.PingInterval,
		sessionTimeout: cfg.SessionTimeout,
		pingLoops:      true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager
}

// Connect admits a new transport into the registry, seeds it with an init
// frame, and announces it to every other session. A requested id that is
// already live force-closes the previous holder first so no open handle is
// silently abandoned.
func (m *Manager) Connect(conn Conn, requestedID, requestedColor string) *Session {
	now := m.now()

	id := strings.TrimSpace(requestedID)
	if id == "" {
		id = generateSessionID()
	}
	if previous, ok := m.registry.Get(id); ok {
		//1.- Evict the stale holder through the normal departure path before
		// the new session takes the id over.
		m.log.Warn("session id takeover, evicting previous connection",
			logging.String("session_id", id))
		m.evict(previous, "superseded")
	}

	color := strings.TrimSpace(requestedColor)
	if color == "" {
		color = m.nextPaletteColor()
	}

	session := NewSession(id, color, conn, now)
	m.registry.Insert(session)

	//2.- The init frame carries the full current roster, the new session included.
	roster := make(map[string]protocol.PlayerView, m.registry.Len())
	for _, live := range m.registry.Snapshot() {
		roster[live.ID()] = live.View()
	}
	init := protocol.NewInitMessage(id, color, roster, m.planets)
	if data, err := json.Marshal(init); err != nil {
		m.log.Error("failed to encode init frame", logging.Error(err))
	} else if err := session.Send(data); err != nil {
		m.log.Warn("failed to deliver init frame",
			logging.String("session_id", id), logging.Error(err))
	}

	//3.- Everyone else learns about the join; the new session never sees its
	// own playerJoined.
	joined := protocol.NewPlayerJoinedMessage(session.View())
	m.fanout.Deliver(exclude(m.registry.Snapshot(), id), joined)
	m.recordEvent(protocol.TypePlayerJoined, joined)

	if m.pingLoops && m.pingInterval > 0 {
		go m.pingLoop(session)
	}

	m.log.Info("session connected",
		logging.String("session_id", id),
		logging.String("color", color),
		logging.Int("sessions", m.registry.Len()),
	)
	return session
}

// Disconnect removes the session registered under the given id and announces
// the departure. Calling it for an id that is not live is a no-op.
func (m *Manager) Disconnect(sessionID, reason string) {
	session, ok := m.registry.Get(sessionID)
	if !ok {
		return
	}
	m.evict(session, reason)
}

// DisconnectSession removes exactly this session. A session whose id has been
// taken over by a successor is already gone from the registry, so a stale
// connection's read loop can never tear down the successor through here.
func (m *Manager) DisconnectSession(session *Session, reason string) {
	m.evict(session, reason)
}

// evict converges clean disconnects, takeovers, and timeout sweeps onto a
// single departure path: registry removal, transport close, playerLeft. The
// removal is identity-checked so eviction only ever hits the session it was
// asked about.
func (m *Manager) evict(session *Session, reason string) {
	if session == nil {
		return
	}
	if !m.registry.RemoveExact(session) {
		return
	}
	if err := session.close(); err != nil {
		m.log.Debug("transport close failed",
			logging.String("session_id", session.ID()), logging.Error(err))
	}
	left := protocol.NewPlayerLeftMessage(session.ID())
	m.fanout.Deliver(m.registry.Snapshot(), left)
	m.recordEvent(protocol.TypePlayerLeft, left)
	m.log.Info("session departed",
		logging.String("session_id", session.ID()),
		logging.String("reason", reason),
		logging.Int("sessions", m.registry.Len()),
	)
}

// SweepTimeouts evicts every session silent for longer than the timeout.
func (m *Manager) SweepTimeouts() {
	if m.sessionTimeout <= 0 {
		return
	}
	now := m.now()
	for _, session := range m.registry.Snapshot() {
		if now.Sub(session.LastUpdate()) > m.sessionTimeout {
			m.evict(session, "timeout")
		}
	}
}

// HeartbeatTick pushes a keepalive frame to every live session. Send failures
// are logged by the fan-out and never evict; eviction is timeout-driven only.
func (m *Manager) HeartbeatTick() {
	frame := protocol.NewHeartbeatMessage(m.now().UnixMilli())
	m.fanout.Deliver(m.registry.Snapshot(), frame)
}

// RunHeartbeat drives HeartbeatTick on the given cadence until ctx ends.
func (m *Manager) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.HeartbeatTick()
		}
	}
}

// PingTick sends one latency probe to the session. Like heartbeats, a failed
// probe is logged only.
func (m *Manager) PingTick(session *Session) {
	if session == nil {
		return
	}
	frame := protocol.NewPingMessage(m.now().UnixMilli())
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := session.Send(data); err != nil {
		m.log.Debug("ping delivery failed",
			logging.String("session_id", session.ID()), logging.Error(err))
	}
}

// pingLoop owns the per-session probe timer; it exits when the session closes.
func (m *Manager) pingLoop(session *Session) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-session.Done():
			return
		case <-ticker.C:
			m.PingTick(session)
		}
	}
}

// Sessions returns a stable snapshot of the live sessions.
func (m *Manager) Sessions() []*Session {
	return m.registry.Snapshot()
}

// SessionCount reports the current number of live sessions.
func (m *Manager) SessionCount() int {
	return m.registry.Len()
}

// Fanout exposes the shared delivery primitive.
func (m *Manager) Fanout() *Fanout {
	return m.fanout
}

// Now exposes the manager's time source so collaborators share one clock.
func (m *Manager) Now() time.Time {
	return m.now()
}

func (m *Manager) nextPaletteColor() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	color := Palette[m.paletteCursor%len(Palette)]
	m.paletteCursor++
	return color
}

func (m *Manager) recordEvent(eventType string, payload any) {
	if m.journal == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	m.journal.RecordEvent(eventType, data)
}
