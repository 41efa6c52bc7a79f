package game

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"planetfall/relay/internal/logging"
	"planetfall/relay/internal/protocol"
)

// fakeConn records delivered frames and can be told to fail sends.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	sendErr  error
	closed   bool
	closedCt int
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	clone := append([]byte(nil), payload...)
	c.frames = append(c.frames, clone)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closedCt++
	return nil
}

func (c *fakeConn) failSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// framesOfType decodes every recorded frame with the given discriminator.
func (c *fakeConn) framesOfType(t *testing.T, msgType string) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, raw := range c.frames {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("recorded frame is not JSON: %v", err)
		}
		if decoded["type"] == msgType {
			out = append(out, decoded)
		}
	}
	return out
}

// testClock is a mutable deterministic time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testPlanets = []protocol.PlanetStub{
	{ID: "p1", Position: protocol.Vec3{X: 0, Y: 0, Z: -100}, Size: 50, Type: "ice"},
	{ID: "p2", Position: protocol.Vec3{X: 200, Y: 0, Z: 100}, Size: 80, Type: "terran"},
}

func newTestManager(clock *testClock) *Manager {
	logger := logging.NewTestLogger()
	return NewManager(NewRegistry(), NewFanout(logger), testPlanets, logger,
		ManagerConfig{PingInterval: 15 * time.Second, SessionTimeout: 30 * time.Second},
		WithManagerClock(clock.Now),
		WithPingLoops(false),
	)
}

var errConnDown = errors.New("transport down")
