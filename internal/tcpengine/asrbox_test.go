package tcpengine

import (
	"testing"

	"github.com/jabolina/go-lanmsg/internal/transport"
)

// TestAsrInboxDropsSecondEventWhilePending exercises §3's invariant
// directly: an ASR slot already pending=true drops the next arrival
// rather than overwriting it, and the drop is counted.
func TestAsrInboxDropsSecondEventWhilePending(t *testing.T) {
	var b asrInbox

	b.notify(transport.EventTCPTerminate, transport.TerminationLocalAbort, transport.ICMPReport{})
	b.notify(transport.EventTCPClosing, transport.TerminationRemoteReset, transport.ICMPReport{})

	ev, ok := b.drain()
	if !ok {
		t.Fatal("expected the first event to be drainable")
	}
	if ev.code != transport.EventTCPTerminate || ev.reason != transport.TerminationLocalAbort {
		t.Fatalf("expected the first event to survive (second dropped), got %+v", ev)
	}
	if b.dropped != 1 {
		t.Fatalf("expected 1 dropped event, got %d", b.dropped)
	}

	if _, ok := b.drain(); ok {
		t.Fatal("expected nothing left to drain after the single surviving event")
	}
}

// TestAsrInboxAcceptsEventAfterDrain verifies drain() clears pending
// so a subsequent notify is not itself dropped.
func TestAsrInboxAcceptsEventAfterDrain(t *testing.T) {
	var b asrInbox

	b.notify(transport.EventTCPTerminate, transport.TerminationRemoteReset, transport.ICMPReport{})
	if _, ok := b.drain(); !ok {
		t.Fatal("expected first event drainable")
	}

	b.notify(transport.EventTCPClosing, transport.TerminationNone, transport.ICMPReport{})
	ev, ok := b.drain()
	if !ok || ev.code != transport.EventTCPClosing {
		t.Fatalf("expected the post-drain event to be accepted, got ev=%+v ok=%v", ev, ok)
	}
}
