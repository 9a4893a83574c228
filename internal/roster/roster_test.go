package roster

import (
	"testing"
	"time"
)

func TestAddOrUpdate(t *testing.T) {
	r := New()
	if res := r.AddOrUpdate("10.0.0.1", "alice"); res != Added {
		t.Fatalf("expected Added, got %v", res)
	}
	if res := r.AddOrUpdate("10.0.0.1", "alice2"); res != Updated {
		t.Fatalf("expected Updated, got %v", res)
	}
	peer, ok := r.GetByIndex(0)
	if !ok || peer.Username != "alice2" {
		t.Fatalf("expected updated username, got %+v ok=%v", peer, ok)
	}
	if r.GetActiveCount() != 1 {
		t.Fatalf("expected 1 active peer, got %d", r.GetActiveCount())
	}
}

func TestAddOrUpdateFullTable(t *testing.T) {
	r := New()
	for i := 0; i < MaxPeers; i++ {
		ip := ipFor(i)
		if res := r.AddOrUpdate(ip, "user"); res != Added {
			t.Fatalf("peer %d: expected Added, got %v", i, res)
		}
	}
	if res := r.AddOrUpdate("10.99.99.99", "overflow"); res != Full {
		t.Fatalf("expected Full once table saturated, got %v", res)
	}
}

func ipFor(i int) string {
	return "10.0." + itoa(i/256) + "." + itoa(i%256)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestMarkInactive(t *testing.T) {
	r := New()
	r.AddOrUpdate("10.0.0.1", "alice")
	if !r.MarkInactive("10.0.0.1") {
		t.Fatal("expected MarkInactive to find the peer")
	}
	if r.MarkInactive("10.0.0.2") {
		t.Fatal("expected MarkInactive to report false for unknown peer")
	}
	if r.GetActiveCount() != 0 {
		t.Fatalf("expected 0 active peers, got %d", r.GetActiveCount())
	}
}

func TestPruneTimedOut(t *testing.T) {
	r := New()
	r.AddOrUpdate("10.0.0.1", "alice")
	time.Sleep(5 * time.Millisecond)
	pruned := r.PruneTimedOut(time.Millisecond)
	if pruned != 1 {
		t.Fatalf("expected 1 peer pruned, got %d", pruned)
	}
	if r.GetActiveCount() != 0 {
		t.Fatalf("expected 0 active peers after prune, got %d", r.GetActiveCount())
	}
	// Row stays in the table, just marked inactive.
	if r.Len() != 1 {
		t.Fatalf("expected row to remain in table, got len %d", r.Len())
	}
}

func TestGetByIndexOutOfRange(t *testing.T) {
	r := New()
	if _, ok := r.GetByIndex(0); ok {
		t.Fatal("expected GetByIndex on empty roster to report false")
	}
}
