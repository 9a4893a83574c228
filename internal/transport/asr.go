package transport

import (
	"sync"

	"github.com/jabolina/go-lanmsg/internal/types"
)

// notifyFunc is a per-stream ASR handler, matching §3's "Stream-
// notifier registry: ordered sequence mapping stream_ref ->
// notify-callback" verbatim. The handler is expected to be the
// allocator-free, non-reentrant capture-ring discipline §4.3
// describes (drop-if-pending, copy, set-pending-last) — in this repo
// that discipline lives once, in tcpengine's asrInbox, which is what
// every registered notifyFunc ultimately writes into. Keeping the
// drop/copy/set-pending logic in exactly one place (the destination
// mailbox) instead of duplicating it here too is what the "Duplicate
// source trees" note in §9 asks implementations to do.
type notifyFunc func(event EventCode, reason TerminationReason, icmp ICMPReport)

// notifierRegistry is the stream-ref -> notify-callback registry
// (§3, §4.3 step 1): a bounded, ordered sequence the driver's single
// trampoline scans to dispatch to the right per-stream handler.
type notifierRegistry struct {
	mutex   sync.Mutex
	entries []registryEntry
	log     types.Logger
}

type registryEntry struct {
	stream StreamRef
	notify notifyFunc
}

func newNotifierRegistry(log types.Logger) *notifierRegistry {
	return &notifierRegistry{
		entries: make([]registryEntry, 0, types.MaxStreamNotifiers),
		log:     log,
	}
}

// register adds a stream -> notify mapping. Returns false if the
// registry is already at MaxStreamNotifiers capacity.
func (r *notifierRegistry) register(stream StreamRef, notify notifyFunc) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(r.entries) >= types.MaxStreamNotifiers {
		return false
	}
	r.entries = append(r.entries, registryEntry{stream: stream, notify: notify})
	return true
}

// unregister removes a stream's mapping, e.g. at Release time.
func (r *notifierRegistry) unregister(stream StreamRef) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i, e := range r.entries {
		if e.stream == stream {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// trampoline is the single global dispatch point (§4.3 step 1): a
// linear, bounded scan of the registry to find the destination
// handler for stream, then a direct call into it. No allocation, no
// synchronous transport op, no re-entry into main-loop code — exactly
// the constraints §4.3 places on the driver's real interrupt-context
// trampoline.
func (r *notifierRegistry) trampoline(stream StreamRef, event EventCode, reason TerminationReason, icmp ICMPReport) {
	r.mutex.Lock()
	var notify notifyFunc
	for _, e := range r.entries {
		if e.stream == stream {
			notify = e.notify
			break
		}
	}
	r.mutex.Unlock()

	if notify == nil {
		if r.log != nil {
			r.log.Warnf("asr: no registered notifier for stream %d, dropping event %d", stream, event)
		}
		return
	}
	notify(event, reason, icmp)
}
