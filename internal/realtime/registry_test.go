package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/coder/websocket"
)

func TestAdmitRejectsInvalidWorkspace(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{})

	for _, id := range []int64{0, -1} {
		if _, err := r.Admit("10.0.0.1", id, 1, &fakeLink{}); !errors.Is(err, ErrInvalidWorkspace) {
			t.Fatalf("workspace %d: expected ErrInvalidWorkspace, got %v", id, err)
		}
	}
	if r.OriginCount("10.0.0.1") != 0 {
		t.Fatal("rejected admission must not claim an origin slot")
	}
}

func TestAdmitEnforcesOriginCap(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{OriginLimit: 3})

	conns := make([]*Conn, 0, 3)
	for i := int64(1); i <= 3; i++ {
		conns = append(conns, mustAdmit(t, r, "10.0.0.1", 1, i, &fakeLink{}))
	}

	// The 4th concurrent connection from the same origin is over the cap.
	if _, err := r.Admit("10.0.0.1", 1, 4, &fakeLink{}); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("expected ErrTooManyConnections, got %v", err)
	}

	// A different origin is unaffected.
	mustAdmit(t, r, "10.0.0.2", 1, 5, &fakeLink{})

	// Closing a connection frees its slot immediately.
	r.Remove(conns[0])
	mustAdmit(t, r, "10.0.0.1", 1, 4, &fakeLink{})
}

func TestRemoveReleasesSlotExactlyOnce(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{OriginLimit: 1})

	conn := mustAdmit(t, r, "10.0.0.1", 1, 1, &fakeLink{})
	r.Subscribe(conn)

	// Transport defer, broadcast failure and heartbeat may all remove the
	// same connection; only the first call may free the slot.
	r.Remove(conn)
	r.Remove(conn)
	r.Remove(conn)

	next := mustAdmit(t, r, "10.0.0.1", 1, 2, &fakeLink{})
	if _, err := r.Admit("10.0.0.1", 1, 3, &fakeLink{}); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("double release widened the cap: %v", err)
	}
	r.Remove(next)
}

func TestSubscribeEvictsSameIdentity(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{})

	linkA := &fakeLink{}
	tabA := mustAdmit(t, r, "10.0.0.1", 12, 7, linkA)
	r.Subscribe(tabA)

	linkB := &fakeLink{}
	tabB := mustAdmit(t, r, "10.0.0.2", 12, 7, linkB)
	r.Subscribe(tabB)

	code, reason, closed := linkA.closedWith()
	if !closed || code != websocket.StatusNormalClosure || reason != "replaced" {
		t.Fatalf("superseded connection must close 1000 replaced, got %d %q closed=%v", code, reason, closed)
	}

	conns := r.Snapshot(12)
	if len(conns) != 1 || conns[0].ID() != tabB.ID() {
		t.Fatalf("subscriber set must hold only the newest tab, got %d conns", len(conns))
	}
	if tabA.Live() {
		t.Fatal("evicted connection must not keep its slot")
	}
}

func TestSubscribeKeysEvictionOnIdentity(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{})

	// Two different users in the same workspace coexist. This pins the
	// eviction key to the authenticated identity, not the workspace alone.
	alice := mustAdmit(t, r, "10.0.0.1", 12, 7, &fakeLink{})
	r.Subscribe(alice)
	bob := mustAdmit(t, r, "10.0.0.2", 12, 8, &fakeLink{})
	r.Subscribe(bob)

	if n := r.Count(12); n != 2 {
		t.Fatalf("distinct identities must both stay subscribed, got %d", n)
	}

	// The same user in two different workspaces also coexists.
	aliceElsewhere := mustAdmit(t, r, "10.0.0.3", 13, 7, &fakeLink{})
	r.Subscribe(aliceElsewhere)

	if !alice.Live() || r.Count(12) != 2 || r.Count(13) != 1 {
		t.Fatal("same identity in another workspace must not evict")
	}
}

func TestProbeEvictsDeadConnections(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{})

	healthy := &fakeLink{}
	dead := &fakeLink{pingErr: errors.New("broken pipe")}

	alive := mustAdmit(t, r, "10.0.0.1", 1, 1, healthy)
	r.Subscribe(alive)
	gone := mustAdmit(t, r, "10.0.0.2", 1, 2, dead)
	r.Subscribe(gone)

	r.probe(context.Background())

	if gone.Live() {
		t.Fatal("failed probe must remove the connection")
	}
	code, _, closed := dead.closedWith()
	if !closed || code != websocket.StatusInternalError {
		t.Fatalf("dead connection must close 1011, got %d closed=%v", code, closed)
	}
	if !alive.Live() || r.Count(1) != 1 {
		t.Fatal("healthy connection must survive the probe")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{})

	conn := mustAdmit(t, r, "10.0.0.1", 1, 1, &fakeLink{})
	r.Subscribe(conn)

	snap := r.Snapshot(1)
	r.Remove(conn)

	// The snapshot keeps its members even after concurrent removal; only the
	// registry state changes.
	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1", len(snap))
	}
	if r.Count(1) != 0 {
		t.Fatal("registry must drop the removed connection")
	}
}
