package game

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"planetfall/relay/internal/logging"
	"planetfall/relay/internal/protocol"
)

// BroadcasterOption customises optional Broadcaster behaviour.
type BroadcasterOption func(*Broadcaster)

// WithBroadcasterClock overrides the broadcaster's time source for tests.
func WithBroadcasterClock(clock func() time.Time) BroadcasterOption {
	return func(b *Broadcaster) {
		if clock != nil {
			b.now = clock
		}
	}
}

// Broadcaster pushes a full snapshot of all live sessions to every client on
// a fixed cadence, independent of inbound traffic. Each tick is a complete
// overwrite of client-side peer state, so a single dropped frame self-heals
// on the next tick.
type Broadcaster struct {
	manager  *Manager
	interval time.Duration
	log      *logging.Logger
	now      func() time.Time

	broadcasts atomic.Int64
}

// NewBroadcaster constructs a broadcaster running at the given interval.
func NewBroadcaster(manager *Manager, interval time.Duration, logger *logging.Logger, opts ...BroadcasterOption) *Broadcaster {
	if logger == nil {
		logger = logging.L()
	}
	broadcaster := &Broadcaster{
		manager:  manager,
		interval: interval,
		log:      logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(broadcaster)
		}
	}
	return broadcaster
}

// Run drives Tick on the configured cadence until ctx ends.
func (b *Broadcaster) Run(ctx context.Context) {
	if b.interval <= 0 {
		return
	}
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Tick()
		}
	}
}

// Tick performs one broadcast cycle: sweep, snapshot, fan-out, idle refresh.
func (b *Broadcaster) Tick() {
	//1.- Evict silent sessions first so the snapshot only carries live peers.
	b.manager.SweepTimeouts()

	sessions := b.manager.Sessions()
	if len(sessions) == 0 {
		return
	}
	now := b.now()

	players := make(map[string]protocol.SnapshotEntry, len(sessions))
	for _, session := range sessions {
		players[session.ID()] = session.Snapshot()
	}
	frame := protocol.NewGameStateMessage(players, now.UnixMilli())

	//2.- Each send is attempted independently; one dead peer never stalls the rest.
	failures := b.manager.fanout.Deliver(sessions, frame)
	b.broadcasts.Add(1)

	if b.manager.journal != nil {
		if data, err := json.Marshal(frame); err == nil {
			b.manager.journal.RecordFrame(data)
		}
	}

	//3.- A stationary client that still accepts snapshots should not age
	// toward eviction just because it has nothing to report. Sessions whose
	// send failed this tick get no refresh, so a dead transport keeps aging
	// until the sweep takes it.
	undelivered := make(map[string]struct{}, len(failures))
	for _, failure := range failures {
		undelivered[failure.SessionID] = struct{}{}
	}
	for _, session := range sessions {
		if _, down := undelivered[session.ID()]; down {
			continue
		}
		if now.Sub(session.LastUpdate()) > 2*b.interval {
			session.Touch(now)
		}
	}
}

// Broadcasts reports the cumulative number of completed broadcast cycles.
func (b *Broadcaster) Broadcasts() int64 {
	if b == nil {
		return 0
	}
	return b.broadcasts.Load()
}
