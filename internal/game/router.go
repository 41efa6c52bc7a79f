package game

import (
	"time"

	"planetfall/relay/internal/logging"
	"planetfall/relay/internal/protocol"
)

// RouterOption customises optional Router behaviour.
type RouterOption func(*Router)

// WithRouterClock overrides the router's time source for deterministic tests.
func WithRouterClock(clock func() time.Time) RouterOption {
	return func(r *Router) {
		if clock != nil {
			r.now = clock
		}
	}
}

// Router decodes inbound frames at the protocol boundary and dispatches the
// typed result. Malformed or invalid frames are logged and dropped; the
// router never replies with an error frame and never tears down a connection.
type Router struct {
	manager *Manager
	log     *logging.Logger
	now     func() time.Time
}

// NewRouter constructs a router bound to the lifecycle manager.
func NewRouter(manager *Manager, logger *logging.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = logging.L()
	}
	router := &Router{manager: manager, log: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(router)
		}
	}
	return router
}

// HandleFrame processes one inbound frame from the named session.
func (r *Router) HandleFrame(sessionID string, raw []byte) {
	session, ok := r.manager.registry.Get(sessionID)
	if !ok {
		r.log.Debug("frame from unknown session", logging.String("session_id", sessionID))
		return
	}

	now := r.now()
	//1.- Any inbound traffic counts as liveness, valid or not.
	session.Touch(now)

	message, err := protocol.DecodeInbound(raw)
	if err != nil {
		r.log.Debug("dropping inbound frame",
			logging.String("session_id", sessionID), logging.Error(err))
		return
	}

	switch msg := message.(type) {
	case protocol.PositionUpdate:
		//2.- Pose changes are not relayed directly; the next snapshot carries them.
		session.SetPose(msg.Position, msg.Rotation)
	case protocol.AlienModeChange:
		session.SetAlienMode(msg.IsAlienMode, msg.PlanetID)
		_, planetID := session.AlienMode()
		r.relay(protocol.TypePlayerAlienMode,
			protocol.NewPlayerAlienModeMessage(sessionID, msg.IsAlienMode, planetID))
	case protocol.BombPlacement:
		r.relay(protocol.TypeBombPlaced, protocol.NewBombPlacedMessage(sessionID, msg))
	case protocol.PlanetDestruction:
		r.relay(protocol.TypePlanetDestroyed,
			protocol.NewPlanetDestroyedMessage(sessionID, msg.PlanetID))
	case protocol.ChatMessage:
		//3.- Chat goes to everyone including the sender.
		r.relay(protocol.TypeChat,
			protocol.NewChatBroadcastMessage(sessionID, session.Color(), msg.Message))
	case protocol.PongReply:
		session.RecordLatency(now.Sub(time.UnixMilli(msg.PingTime)))
	}
}

// relay fans a discrete event out to every live session immediately.
func (r *Router) relay(eventType string, payload any) {
	r.manager.fanout.Deliver(r.manager.Sessions(), payload)
	r.manager.recordEvent(eventType, payload)
}
