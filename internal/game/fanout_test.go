package game

import (
	"testing"
	"time"

	"planetfall/relay/internal/logging"
	"planetfall/relay/internal/protocol"
)

func TestDeliverReachesEveryRecipient(t *testing.T) {
	fanout := NewFanout(logging.NewTestLogger())
	conns := []*fakeConn{{}, {}, {}}
	sessions := make([]*Session, len(conns))
	for i, conn := range conns {
		sessions[i] = NewSession(string(rune('a'+i)), "#ffffff", conn, time.Now())
	}

	failures := fanout.Deliver(sessions, protocol.NewHeartbeatMessage(42))

	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	for i, conn := range conns {
		if got := conn.framesOfType(t, "heartbeat"); len(got) != 1 {
			t.Fatalf("recipient %d expected one frame, got %d", i, len(got))
		}
	}
}

func TestDeliverContinuesPastDeadTransports(t *testing.T) {
	fanout := NewFanout(logging.NewTestLogger())
	healthy := &fakeConn{}
	broken := &fakeConn{}
	broken.failSends(errConnDown)
	sessions := []*Session{
		NewSession("broken", "#ffffff", broken, time.Now()),
		NewSession("healthy", "#ffffff", healthy, time.Now()),
	}

	failures := fanout.Deliver(sessions, protocol.NewHeartbeatMessage(42))

	//1.- The dead transport is reported; the one after it is still served.
	if len(failures) != 1 || failures[0].SessionID != "broken" {
		t.Fatalf("unexpected failure set: %v", failures)
	}
	if got := healthy.framesOfType(t, "heartbeat"); len(got) != 1 {
		t.Fatalf("healthy recipient missed delivery: %d frames", len(got))
	}
	if fanout.Failures() != 1 {
		t.Fatalf("expected one counted failure, got %d", fanout.Failures())
	}
}

func TestDeliverEmptyRecipientsIsNoop(t *testing.T) {
	fanout := NewFanout(logging.NewTestLogger())
	if failures := fanout.Deliver(nil, protocol.NewHeartbeatMessage(42)); failures != nil {
		t.Fatalf("expected nil failures for empty recipients, got %v", failures)
	}
}

func TestExcludeFiltersOnlyTheNamedID(t *testing.T) {
	sessions := []*Session{
		newBareSession("a"),
		newBareSession("b"),
		newBareSession("c"),
	}

	filtered := exclude(sessions, "b")

	if len(filtered) != 2 {
		t.Fatalf("expected two sessions, got %d", len(filtered))
	}
	for _, session := range filtered {
		if session.ID() == "b" {
			t.Fatal("excluded id survived the filter")
		}
	}
}

func TestGenerateSessionIDShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := generateSessionID()
		if len(id) != generatedIDLength {
			t.Fatalf("unexpected id length: %q", id)
		}
		for _, r := range id {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				t.Fatalf("id %q contains character outside the charset", id)
			}
		}
	}
}
