package game

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"planetfall/relay/internal/logging"
	"planetfall/relay/internal/protocol"
)

func newTestRouter(manager *Manager, clock *testClock) *Router {
	return NewRouter(manager, logging.NewTestLogger(), WithRouterClock(clock.Now))
}

func TestHandleFramePositionUpdateMutatesPose(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	session := manager.Connect(&fakeConn{}, "alice", "")
	router.HandleFrame("alice", []byte(`{"type":"updatePosition","position":{"x":1,"y":2,"z":3},"rotation":{"x":0.1,"y":0.2,"z":0.3}}`))

	position, rotation := session.Pose()
	if position != (protocol.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("position not applied: %+v", position)
	}
	if rotation != (protocol.Vec3{X: 0.1, Y: 0.2, Z: 0.3}) {
		t.Fatalf("rotation not applied: %+v", rotation)
	}
}

func TestHandleFramePositionUpdateIsNotRelayedDirectly(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	observer := &fakeConn{}
	manager.Connect(observer, "observer", "")
	manager.Connect(&fakeConn{}, "alice", "")
	before := len(observer.framesOfType(t, "updatePosition")) + len(observer.framesOfType(t, "gameState"))

	router.HandleFrame("alice", []byte(`{"type":"updatePosition","position":{"x":1,"y":2,"z":3},"rotation":{"x":0,"y":0,"z":0}}`))

	after := len(observer.framesOfType(t, "updatePosition")) + len(observer.framesOfType(t, "gameState"))
	if after != before {
		t.Fatal("position updates must wait for the next snapshot, not relay immediately")
	}
}

func TestHandleFrameInvalidPositionLeavesPoseUntouched(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	session := manager.Connect(&fakeConn{}, "alice", "")
	router.HandleFrame("alice", []byte(`{"type":"updatePosition","position":{"x":1,"y":2,"z":3},"rotation":{"x":0,"y":0,"z":0}}`))
	router.HandleFrame("alice", []byte(`{"type":"updatePosition","position":{"x":9,"z":9},"rotation":{"x":0,"y":0,"z":0}}`))

	position, _ := session.Pose()
	if position != (protocol.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("invalid frame mutated the pose: %+v", position)
	}
}

func TestHandleFrameMalformedStillCountsAsLiveness(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	session := manager.Connect(&fakeConn{}, "alice", "")
	clock.Advance(20 * time.Second)
	router.HandleFrame("alice", []byte(`{not json`))

	if session.LastUpdate() != clock.Now() {
		t.Fatal("malformed frame did not refresh the liveness timestamp")
	}
}

func TestHandleFrameUnknownSessionIsDropped(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	// Must not panic or create a session.
	router.HandleFrame("ghost", []byte(`{"type":"chat","message":"hi"}`))
	if manager.SessionCount() != 0 {
		t.Fatalf("unexpected session created: %d", manager.SessionCount())
	}
}

func TestHandleFrameChatEchoesToSender(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	aliceConn := &fakeConn{}
	manager.Connect(aliceConn, "alice", "#abcdef")
	bobConn := &fakeConn{}
	manager.Connect(bobConn, "bob", "")

	router.HandleFrame("alice", []byte(`{"type":"chat","message":"  <b>hello</b>  "}`))

	for name, conn := range map[string]*fakeConn{"alice": aliceConn, "bob": bobConn} {
		chats := conn.framesOfType(t, "chat")
		if len(chats) != 1 {
			t.Fatalf("%s expected one chat frame, got %d", name, len(chats))
		}
		if chats[0]["playerId"] != "alice" || chats[0]["playerColor"] != "#abcdef" {
			t.Fatalf("chat frame missing sender identity: %v", chats[0])
		}
		if chats[0]["message"] != "&lt;b&gt;hello&lt;/b&gt;" {
			t.Fatalf("chat message not sanitized: %q", chats[0]["message"])
		}
	}
}

func TestHandleFrameChatRejectsOverlongMessage(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	observer := &fakeConn{}
	manager.Connect(observer, "alice", "")

	long := strings.Repeat("x", protocol.MaxChatLength+1)
	router.HandleFrame("alice", []byte(`{"type":"chat","message":"`+long+`"}`))

	if got := observer.framesOfType(t, "chat"); len(got) != 0 {
		t.Fatalf("overlong chat was relayed: %v", got)
	}
}

func TestHandleFrameAlienModeRelayedToEveryoneIncludingSender(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	aliceConn := &fakeConn{}
	alice := manager.Connect(aliceConn, "alice", "")
	bobConn := &fakeConn{}
	manager.Connect(bobConn, "bob", "")

	router.HandleFrame("alice", []byte(`{"type":"alienMode","isAlienMode":true,"planetId":"p1"}`))

	alienMode, planetID := alice.AlienMode()
	if !alienMode || planetID == nil || *planetID != "p1" {
		t.Fatalf("session state not updated: alienMode=%v planetId=%v", alienMode, planetID)
	}
	for name, conn := range map[string]*fakeConn{"alice": aliceConn, "bob": bobConn} {
		frames := conn.framesOfType(t, "playerAlienMode")
		if len(frames) != 1 {
			t.Fatalf("%s expected one playerAlienMode frame, got %d", name, len(frames))
		}
		if frames[0]["playerId"] != "alice" || frames[0]["isAlienMode"] != true || frames[0]["planetId"] != "p1" {
			t.Fatalf("unexpected playerAlienMode payload: %v", frames[0])
		}
	}
}

func TestHandleFrameAlienModeExitClearsPlanet(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	observer := &fakeConn{}
	alice := manager.Connect(observer, "alice", "")

	router.HandleFrame("alice", []byte(`{"type":"alienMode","isAlienMode":true,"planetId":"p1"}`))
	router.HandleFrame("alice", []byte(`{"type":"alienMode","isAlienMode":false}`))

	alienMode, planetID := alice.AlienMode()
	if alienMode || planetID != nil {
		t.Fatalf("exit did not clear avatar state: alienMode=%v planetId=%v", alienMode, planetID)
	}
	frames := observer.framesOfType(t, "playerAlienMode")
	if len(frames) != 2 {
		t.Fatalf("expected two playerAlienMode frames, got %d", len(frames))
	}
	if frames[1]["planetId"] != nil {
		t.Fatalf("exit relay still carries a planet id: %v", frames[1])
	}
}

func TestHandleFrameBombPlacedAppliesDefaultCountdown(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	observer := &fakeConn{}
	manager.Connect(observer, "alice", "")

	router.HandleFrame("alice", []byte(`{"type":"placeBomb","planetId":"p1","position":{"x":1,"y":1,"z":1}}`))

	frames := observer.framesOfType(t, "bombPlaced")
	if len(frames) != 1 {
		t.Fatalf("expected one bombPlaced frame, got %d", len(frames))
	}
	if frames[0]["countdown"] != float64(protocol.DefaultBombCountdown) {
		t.Fatalf("default countdown not applied: %v", frames[0]["countdown"])
	}
	if frames[0]["playerId"] != "alice" || frames[0]["planetId"] != "p1" {
		t.Fatalf("bombPlaced missing attribution: %v", frames[0])
	}
}

func TestHandleFramePlanetDestroyedRelayed(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	aliceConn := &fakeConn{}
	manager.Connect(aliceConn, "alice", "")
	bobConn := &fakeConn{}
	manager.Connect(bobConn, "bob", "")

	router.HandleFrame("bob", []byte(`{"type":"planetDestroyed","planetId":"p2"}`))

	for name, conn := range map[string]*fakeConn{"alice": aliceConn, "bob": bobConn} {
		frames := conn.framesOfType(t, "planetDestroyed")
		if len(frames) != 1 {
			t.Fatalf("%s expected one planetDestroyed frame, got %d", name, len(frames))
		}
		if frames[0]["playerId"] != "bob" || frames[0]["planetId"] != "p2" {
			t.Fatalf("unexpected planetDestroyed payload: %v", frames[0])
		}
	}
}

func TestHandleFramePongRecordsLatency(t *testing.T) {
	clock := newTestClock()
	manager := newTestManager(clock)
	router := newTestRouter(manager, clock)

	session := manager.Connect(&fakeConn{}, "alice", "")
	pingTime := clock.Now().UnixMilli()
	clock.Advance(40 * time.Millisecond)

	router.HandleFrame("alice", []byte(`{"type":"pong","pingTime":`+strconv.FormatInt(pingTime, 10)+`}`))

	if session.Latency() != 40*time.Millisecond {
		t.Fatalf("expected 40ms latency, got %v", session.Latency())
	}
}
