package game

import (
	"encoding/json"
	"sync/atomic"

	"planetfall/relay/internal/logging"
)

// DeliveryFailure records one recipient that missed a fan-out payload.
type DeliveryFailure struct {
	SessionID string
	Err       error
}

// Fanout is the best-effort delivery primitive used for discrete events and
// join/leave notifications. Each send is attempted independently; a dead
// transport is skipped and reported, never retried.
type Fanout struct {
	log      *logging.Logger
	failures atomic.Int64
}

// NewFanout constructs a fan-out helper logging through the provided logger.
func NewFanout(logger *logging.Logger) *Fanout {
	if logger == nil {
		logger = logging.L()
	}
	return &Fanout{log: logger}
}

// Deliver encodes the payload once and attempts delivery to every recipient,
// returning the list of failures instead of swallowing them.
func (f *Fanout) Deliver(recipients []*Session, payload any) []DeliveryFailure {
	if f == nil || len(recipients) == 0 {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		f.log.Error("failed to encode fan-out payload", logging.Error(err))
		return nil
	}
	var failures []DeliveryFailure
	for _, recipient := range recipients {
		if recipient == nil {
			continue
		}
		if err := recipient.Send(data); err != nil {
			//1.- A failed send means that recipient missed this event; unrelated
			// sessions are unaffected.
			failures = append(failures, DeliveryFailure{SessionID: recipient.ID(), Err: err})
			f.failures.Add(1)
			f.log.Debug("fan-out delivery failed",
				logging.String("session_id", recipient.ID()),
				logging.Error(err),
			)
		}
	}
	return failures
}

// Failures reports the cumulative number of missed deliveries.
func (f *Fanout) Failures() int64 {
	if f == nil {
		return 0
	}
	return f.failures.Load()
}

// exclude filters one session id out of a recipient snapshot.
func exclude(sessions []*Session, id string) []*Session {
	out := make([]*Session, 0, len(sessions))
	for _, session := range sessions {
		if session != nil && session.ID() != id {
			out = append(out, session)
		}
	}
	return out
}
