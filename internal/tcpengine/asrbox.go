// Package tcpengine implements the TCP messaging engine: the
// dedicated listen slot (§4.4), the N-entry send pool (§4.5) and the
// outbound message queue (§4.6). Everything here except asrInbox.notify
// runs on the main tick loop, mirroring §5's "single-threaded
// cooperative, main loop is the sole mutator"; notify is called from
// driver goroutines, so asrInbox alone is mutex-guarded.
package tcpengine

import (
	"sync"

	"github.com/jabolina/go-lanmsg/internal/transport"
)

// asrEvent is the snapshot handed from drain() to a state machine.
type asrEvent struct {
	code   transport.EventCode
	reason transport.TerminationReason
}

// asrInbox is the engine-side half of the per-stream ASR event slot
// (§3, §4.3): the driver's notify callback is this box's producer,
// the tick loop's drain() is its sole consumer. A second event
// arriving before drain is dropped, per §3's invariant.
type asrInbox struct {
	mutex   sync.Mutex
	pending bool
	event   asrEvent
	dropped int
}

func (b *asrInbox) notify(code transport.EventCode, reason transport.TerminationReason, _ transport.ICMPReport) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.pending {
		b.dropped++
		return
	}
	b.pending = true
	b.event = asrEvent{code: code, reason: reason}
}

func (b *asrInbox) drain() (asrEvent, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if !b.pending {
		return asrEvent{}, false
	}
	b.pending = false
	return b.event, true
}
