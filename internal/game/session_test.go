package game

import (
	"testing"
	"time"

	"planetfall/relay/internal/protocol"
)

func TestNewSessionStartsAtSpawn(t *testing.T) {
	now := time.Now()
	session := NewSession("alice", "#ffffff", &fakeConn{}, now)

	position, rotation := session.Pose()
	if position != DefaultSpawn {
		t.Fatalf("expected spawn pose %+v, got %+v", DefaultSpawn, position)
	}
	if rotation != (protocol.Vec3{}) {
		t.Fatalf("expected zero rotation, got %+v", rotation)
	}
	if !session.LastUpdate().Equal(now) {
		t.Fatal("lastUpdate not initialised to the connect time")
	}
}

func TestAlienModeReturnsDetachedPlanetID(t *testing.T) {
	session := NewSession("alice", "#ffffff", &fakeConn{}, time.Now())
	session.SetAlienMode(true, "p1")

	_, first := session.AlienMode()
	_, second := session.AlienMode()
	if first == nil || second == nil || *first != "p1" {
		t.Fatalf("unexpected planet ids: %v %v", first, second)
	}
	//1.- Mutating one caller's copy must not leak into the session or another caller.
	*first = "tampered"
	if *second != "p1" {
		t.Fatal("planet id pointer is shared between callers")
	}
	if view := session.View(); view.LandedPlanetID == nil || *view.LandedPlanetID != "p1" {
		t.Fatal("session state was mutated through a returned pointer")
	}
}

func TestSetAlienModeWithoutPlanetClearsLanding(t *testing.T) {
	session := NewSession("alice", "#ffffff", &fakeConn{}, time.Now())
	session.SetAlienMode(true, "p1")
	session.SetAlienMode(false, "")

	alienMode, planetID := session.AlienMode()
	if alienMode || planetID != nil {
		t.Fatalf("landing not cleared: alienMode=%v planetId=%v", alienMode, planetID)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	session := NewSession("alice", "#ffffff", conn, time.Now())

	if err := session.close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := session.close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	conn.mu.Lock()
	closedCt := conn.closedCt
	conn.mu.Unlock()
	if closedCt != 1 {
		t.Fatalf("transport closed %d times", closedCt)
	}
	select {
	case <-session.Done():
	default:
		t.Fatal("done channel not closed")
	}
}
