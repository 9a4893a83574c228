package tcpengine

import (
	"github.com/jabolina/go-lanmsg/internal/transport"
	"github.com/jabolina/go-lanmsg/internal/types"
	"github.com/jabolina/go-lanmsg/internal/wire"
)

type listenState int

const (
	listenIdle listenState = iota
	listenListening
)

// ListenSlot is the dedicated passive-accept TCP stream (§4.4): a
// single stateless-accept state machine on its own stream. It keeps
// no fixed receive buffer: each TCPReceiveNoCopy probe returns data in
// a buffer the driver allocates for that call.
type ListenSlot struct {
	driver transport.Driver
	log    types.Logger
	port   int

	stream transport.StreamRef
	inbox  asrInbox

	state  listenState
	handle transport.Handle
}

// NewListenSlot creates the listen stream once; it persists for the
// process lifetime (§3 Lifecycle).
func NewListenSlot(driver transport.Driver, log types.Logger, port int) (*ListenSlot, error) {
	l := &ListenSlot{driver: driver, log: log, port: port}
	stream, err := driver.TCPCreate(l.inbox.notify)
	if err != nil {
		return nil, err
	}
	l.stream = stream
	return l, nil
}

// beginListen starts a fresh ListenAsync and moves to LISTENING. It
// is idempotent only when called from IDLE — callers are responsible
// for the state check, matching §4.4's explicit transition table.
func (l *ListenSlot) beginListen() {
	h, err := l.driver.TCPListenAsync(l.stream, l.port)
	if err != nil {
		l.log.Warnf("listen: failed starting accept on port %d: %v", l.port, err)
		return
	}
	l.handle = h
	l.state = listenListening
}

// DrainASR drains this stream's ASR inbox (§4.8 step 2a), which must
// run before the pool entries are ticked and before Dispatch runs.
func (l *ListenSlot) DrainASR() {
	ev, ok := l.inbox.drain()
	if !ok {
		return
	}
	switch ev.code {
	case transport.EventTCPTerminate, transport.EventTCPClosing:
		// Restart the listen unless an accept is already in
		// flight — in particular a "ULP close" after our own
		// abort is expected and must not leave the slot silent
		// (§4.4).
		if l.state != listenListening {
			l.beginListen()
		}
	}
}

// Dispatch runs one step of the listen state machine (§4.4, §4.8 step
// 2d). Callers must have already drained this tick's ASR events via
// DrainASR.
func (l *ListenSlot) Dispatch(cb PlatformCallbacks) {
	switch l.state {
	case listenIdle:
		l.beginListen()

	case listenListening:
		result, err := l.driver.TCPCheckAsync(l.handle)
		if err == transport.ErrPending {
			return
		}
		l.handle = 0
		l.state = listenIdle
		if err != nil {
			// Accept failed outright; relisten immediately.
			l.driver.TCPAbort(l.stream)
			l.beginListen()
			return
		}

		probe, _ := l.driver.TCPReceiveNoCopy(l.stream, types.MaxRDSEntries, 0)
		hasData := false
		for _, e := range probe.Entries {
			if len(e.Data) > 0 {
				hasData = true
				break
			}
		}

		// (a) abort, (b) idle, (c) relisten — all BEFORE processing
		// the data. This ordering caps the accept-gap at a few
		// milliseconds and is what lets burst traffic land (§4.4,
		// §8 "burst of K accepts").
		l.driver.TCPAbort(l.stream)
		l.beginListen()

		if hasData {
			l.process(probe, cb)
			_ = l.driver.TCPReturnBuffer(l.stream, probe)
		}
	}
}

// Tick is DrainASR followed by Dispatch, for callers (and tests) that
// don't need to interleave pool/queue work between the two steps.
func (l *ListenSlot) Tick(cb PlatformCallbacks) {
	l.DrainASR()
	l.Dispatch(cb)
}

func (l *ListenSlot) process(probe transport.ReceiveProbe, cb PlatformCallbacks) {
	for _, entry := range probe.Entries {
		if len(entry.Data) == 0 {
			continue
		}
		msg, err := wire.ParseMessage(string(entry.Data))
		if err != nil {
			l.log.Warnf("listen: dropping malformed frame: %v", err)
			continue
		}
		switch msg.Type {
		case types.MessageText:
			if cb.AddOrUpdatePeer != nil {
				cb.AddOrUpdatePeer(msg.SenderIP, msg.SenderName)
			}
			if cb.DisplayTextMessage != nil {
				cb.DisplayTextMessage(msg.SenderName, msg.SenderIP, msg.Content)
			}
		case types.MessageQuit:
			if cb.MarkPeerInactive != nil {
				cb.MarkPeerInactive(msg.SenderIP)
			}
		default:
			l.log.Warnf("listen: unexpected message type %s on TCP", msg.Type)
		}
	}
}

// Outstanding reports whether an accept is currently in flight — used
// by tests asserting the at-most-one-in-flight invariant (§8).
func (l *ListenSlot) Outstanding() bool {
	return l.state == listenListening
}
