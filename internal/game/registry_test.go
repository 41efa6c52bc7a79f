package game

import (
	"testing"
	"time"
)

func newBareSession(id string) *Session {
	return NewSession(id, "#ffffff", &fakeConn{}, time.Now())
}

func TestRegistryInsertGetRemove(t *testing.T) {
	registry := NewRegistry()
	session := newBareSession("alice")

	registry.Insert(session)
	if got, ok := registry.Get("alice"); !ok || got != session {
		t.Fatal("inserted session not retrievable")
	}
	if registry.Len() != 1 {
		t.Fatalf("expected length 1, got %d", registry.Len())
	}

	if !registry.RemoveExact(session) {
		t.Fatal("failed to remove the stored session")
	}
	if _, ok := registry.Get("alice"); ok {
		t.Fatal("session still present after removal")
	}
	if registry.RemoveExact(session) {
		t.Fatal("second removal reported success")
	}
}

func TestRegistrySnapshotPreservesInsertionOrder(t *testing.T) {
	registry := NewRegistry()
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		registry.Insert(newBareSession(id))
	}

	snapshot := registry.Snapshot()
	if len(snapshot) != len(ids) {
		t.Fatalf("expected %d sessions, got %d", len(ids), len(snapshot))
	}
	for i, session := range snapshot {
		if session.ID() != ids[i] {
			t.Fatalf("snapshot order broken at %d: got %q want %q", i, session.ID(), ids[i])
		}
	}
}

func TestRegistrySnapshotIsDetached(t *testing.T) {
	registry := NewRegistry()
	alice := newBareSession("alice")
	registry.Insert(alice)
	registry.Insert(newBareSession("bob"))

	snapshot := registry.Snapshot()
	registry.RemoveExact(alice)

	//1.- The caller's snapshot stays intact while the registry moves on.
	if len(snapshot) != 2 {
		t.Fatalf("snapshot mutated by removal: %d entries", len(snapshot))
	}
	if registry.Len() != 1 {
		t.Fatalf("expected one remaining session, got %d", registry.Len())
	}
}

func TestRegistryInsertReplacesWithoutDuplicatingOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Insert(newBareSession("alice"))
	replacement := newBareSession("alice")
	registry.Insert(replacement)

	if registry.Len() != 1 {
		t.Fatalf("expected a single entry after replacement, got %d", registry.Len())
	}
	snapshot := registry.Snapshot()
	if len(snapshot) != 1 || snapshot[0] != replacement {
		t.Fatal("replacement did not take over the id slot")
	}
}

func TestRegistryRemoveExactRequiresIdentity(t *testing.T) {
	registry := NewRegistry()
	original := newBareSession("alice")
	registry.Insert(original)
	successor := newBareSession("alice")
	registry.Insert(successor)

	//1.- The original lost its slot to the successor; removing it must be a no-op.
	if registry.RemoveExact(original) {
		t.Fatal("removed a session that no longer holds its id")
	}
	if live, ok := registry.Get("alice"); !ok || live != successor {
		t.Fatal("successor was disturbed by the stale removal")
	}

	if !registry.RemoveExact(successor) {
		t.Fatal("failed to remove the current holder")
	}
	if registry.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", registry.Len())
	}
}

func TestRegistryNilReceiverIsSafe(t *testing.T) {
	var registry *Registry
	registry.Insert(newBareSession("alice"))
	if _, ok := registry.Get("alice"); ok {
		t.Fatal("nil registry returned a session")
	}
	if registry.Len() != 0 || registry.Snapshot() != nil {
		t.Fatal("nil registry reported contents")
	}
}
