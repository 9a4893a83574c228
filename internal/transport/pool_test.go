package transport

import (
	"testing"
)

func TestHandlePoolAllocateCheckFrees(t *testing.T) {
	p := newHandlePool(2)

	h, d, err := p.allocate(OpUDPSend, 0, 1)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if p.outstanding() != 1 {
		t.Fatalf("expected 1 outstanding, got %d", p.outstanding())
	}

	if _, _, err := p.check(h); err != ErrPending {
		t.Fatalf("expected ErrPending before completion, got %v", err)
	}

	p.complete(d, CheckResult{}, UDPReceiveResult{})

	if _, _, err := p.check(h); err != nil {
		t.Fatalf("expected success after completion, got %v", err)
	}
	if p.outstanding() != 0 {
		t.Fatalf("expected 0 outstanding after check frees the slot, got %d", p.outstanding())
	}

	// Second check with the same (now-stale) handle must fail: the
	// generation was bumped on free.
	if _, _, err := p.check(h); err != ErrInvalidParam {
		t.Fatalf("expected ErrInvalidParam on stale handle, got %v", err)
	}
}

func TestHandlePoolExhaustion(t *testing.T) {
	p := newHandlePool(1)
	_, _, err := p.allocate(OpUDPSend, 0, 0)
	if err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	_, _, err = p.allocate(OpUDPSend, 0, 0)
	if err != ErrNoSlots {
		t.Fatalf("expected ErrNoSlots on second allocate, got %v", err)
	}
}

func TestHandlePoolCompleteIsIdempotent(t *testing.T) {
	p := newHandlePool(1)
	h, d, err := p.allocate(OpUDPSend, 0, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	p.complete(d, CheckResult{}, UDPReceiveResult{})
	p.complete(d, CheckResult{}, UDPReceiveResult{}) // must not panic on double-close

	if _, _, err := p.check(h); err != nil {
		t.Fatalf("check after idempotent complete: %v", err)
	}
}

func TestHandlePoolGenerationReuse(t *testing.T) {
	p := newHandlePool(1)
	h1, d1, _ := p.allocate(OpUDPSend, 0, 0)
	p.complete(d1, CheckResult{}, UDPReceiveResult{})
	if _, _, err := p.check(h1); err != nil {
		t.Fatalf("first check: %v", err)
	}

	h2, _, err := p.allocate(OpUDPSend, 0, 0)
	if err != nil {
		t.Fatalf("reallocate: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected reallocated handle to differ (generation bump)")
	}

	// The stale first handle must never validate against the reused slot.
	if _, _, err := p.check(h1); err != ErrInvalidParam {
		t.Fatalf("expected ErrInvalidParam for stale handle against reused slot, got %v", err)
	}
}

func TestHandlePoolCancelFreesWithoutResult(t *testing.T) {
	p := newHandlePool(1)
	h, _, err := p.allocate(OpUDPSend, 0, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	p.cancel(h)
	if p.outstanding() != 0 {
		t.Fatalf("expected cancel to free the slot, got %d outstanding", p.outstanding())
	}
}
