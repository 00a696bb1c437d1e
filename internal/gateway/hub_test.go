package gateway

import (
	"testing"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

func TestHubFansOutPerUser(t *testing.T) {
	h := NewHub()
	a1 := newConn("a1", "alice", nil)
	a2 := newConn("a2", "alice", nil)
	b := newConn("b1", "bob", nil)
	h.add(a1)
	h.add(a2)
	h.add(b)

	if !h.Online("alice") || h.Online("carol") || h.Len() != 3 {
		t.Fatalf("unexpected presence online=%v len=%d", h.Online("alice"), h.Len())
	}
	h.Notify("alice", arenadto.EventInQueue, arenadto.InQueue{UserID: "alice", Speed: "blitz"})
	for _, c := range []*Conn{a1, a2} {
		select {
		case env := <-c.send:
			if env.Event != arenadto.EventInQueue {
				t.Fatalf("%s got %s", c.id, env.Event)
			}
		default:
			t.Fatalf("%s got nothing", c.id)
		}
	}
	if len(b.send) != 0 {
		t.Fatalf("bob received alice's frame")
	}

	h.remove(a1)
	h.remove(a2)
	if h.Online("alice") || h.Len() != 1 {
		t.Fatalf("alice still online after removal")
	}
}

func TestClassifyFallsBackToInternal(t *testing.T) {
	code, status := classify(errIdentityMismatch)
	if code != "identity_mismatch" || status != 403 {
		t.Fatalf("got %s %d", code, status)
	}
	code, status = classify(errConnClosed)
	if code != "internal" || status != 500 {
		t.Fatalf("got %s %d", code, status)
	}
}
