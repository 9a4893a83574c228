package tcpengine

import (
	"time"

	"github.com/jabolina/go-lanmsg/internal/transport"
	"github.com/jabolina/go-lanmsg/internal/types"
	"github.com/jabolina/go-lanmsg/internal/wire"
)

type entryState int

const (
	stateUninitialized entryState = iota
	stateIdle
	stateConnectingOut
	stateConnectedOut
	stateSending
	stateClosingGraceful
	stateAborting
	stateReleasing
	stateError
)

// PoolEntry is one reusable outbound TCP connection slot (§3, §4.5):
// an independent state machine with its own stream. It holds no
// receive buffer of its own; the send side never reads from the
// stream.
type PoolEntry struct {
	index  int
	driver transport.Driver
	log    types.Logger

	stream transport.StreamRef
	inbox  asrInbox

	state entryState

	targetIP   string
	targetPort int
	msgType    types.MessageType
	payload    string

	connectHandle transport.Handle
	sendHandle    transport.Handle
	closeHandle   transport.Handle

	connectStart time.Time
	sendStart    time.Time
}

func newPoolEntry(index int, driver transport.Driver, log types.Logger) (*PoolEntry, error) {
	e := &PoolEntry{index: index, driver: driver, log: log}
	stream, err := driver.TCPCreate(e.inbox.notify)
	if err != nil {
		return nil, err
	}
	e.stream = stream
	e.state = stateIdle
	return e, nil
}

// IsIdle reports whether this entry can accept a new
// StartAsyncSendOnPoolEntry call.
func (e *PoolEntry) IsIdle() bool { return e.state == stateIdle }

// StartAsyncSend implements StartAsyncSendOnPoolEntry (§4.5): format
// the wire message, store the fields, and kick off ConnectAsync.
func (e *PoolEntry) StartAsyncSend(peerIP string, port int, msgType types.MessageType, senderName, senderIP, content string, messageID uint32) error {
	if e.state != stateIdle {
		return transport.ErrBusy
	}
	if _, err := transport.ParseDottedQuad(peerIP); err != nil {
		return transport.ErrInvalidParam
	}

	record, err := wire.FormatMessage(types.WireMessage{
		Type:       msgType,
		MessageID:  messageID,
		SenderName: senderName,
		SenderIP:   senderIP,
		Content:    content,
	})
	if err != nil {
		return err
	}

	e.targetIP = peerIP
	e.targetPort = port
	e.msgType = msgType
	e.payload = record
	e.connectStart = time.Now()

	h, err := e.driver.TCPConnectAsync(e.stream, peerIP, port)
	if err != nil {
		// Synchronous error: stay/revert to IDLE (§4.5).
		e.state = stateIdle
		return err
	}
	e.connectHandle = h
	e.state = stateConnectingOut
	return nil
}

// Tick runs one step of the per-entry state machine (§4.5): drain ASR
// first, then the state machine, then the timeout sweep.
func (e *PoolEntry) Tick(timeout time.Duration) {
	e.drainASR()
	e.step()
	e.sweepTimeout(timeout)
}

func (e *PoolEntry) drainASR() {
	ev, ok := e.inbox.drain()
	if !ok {
		return
	}
	if ev.code != transport.EventTCPTerminate && ev.code != transport.EventTCPClosing {
		return
	}

	switch e.state {
	case stateConnectingOut:
		if ev.reason == transport.TerminationRemoteReset {
			// ASR path updates state only; connectHandle is freed
			// exclusively by the next CheckAsync poll (§4.5 "ASR
			// handle discipline").
			e.log.Warnf("pool[%d]: connect to %s refused", e.index, e.targetIP)
			e.state = stateIdle
		}
	case stateSending, stateConnectedOut:
		if ev.reason == transport.TerminationRemoteReset {
			// Expected: stateless one-message protocol, receiver
			// closes after read (§4.5 SENDING -> IDLE). The ASR
			// fires only after the send already completed, so
			// sendHandle is already resolved but not yet polled;
			// go straight to IDLE and leave it for the residual
			// poll rather than routing through finishSendSuccess,
			// which would start a second (close) handle on top of
			// the unpolled send handle.
			e.driver.TCPAbort(e.stream)
			e.state = stateIdle
		}
	}
}

func (e *PoolEntry) step() {
	switch e.state {
	case stateConnectingOut:
		if e.connectHandle == 0 {
			return
		}
		res, err := e.driver.TCPCheckAsync(e.connectHandle)
		if err == transport.ErrPending {
			return
		}
		e.connectHandle = 0
		if err != nil {
			e.log.Warnf("pool[%d]: connect to %s failed: %v", e.index, e.targetIP, err)
			e.state = stateIdle
			return
		}
		_ = res
		h, err := e.driver.TCPSendAsync(e.stream, []byte(e.payload), true)
		if err != nil {
			e.log.Errorf("pool[%d]: send start failed: %v", e.index, err)
			e.driver.TCPAbort(e.stream)
			e.state = stateIdle
			return
		}
		e.sendHandle = h
		e.sendStart = time.Now()
		e.state = stateSending

	case stateSending:
		if e.sendHandle == 0 {
			return
		}
		_, err := e.driver.TCPCheckAsync(e.sendHandle)
		if err == transport.ErrPending {
			return
		}
		e.sendHandle = 0
		if err != nil {
			e.driver.TCPAbort(e.stream)
			e.state = stateIdle
			return
		}
		e.finishSendSuccess()

	case stateClosingGraceful:
		if e.closeHandle == 0 {
			return
		}
		// Must poll to free the handle either way (§4.5).
		_, _ = e.driver.TCPCheckAsync(e.closeHandle)
		e.closeHandle = 0
		e.state = stateIdle

	case stateIdle:
		// ASR may have delivered TCPTerminate before polling ran,
		// leaving a residual handle; free it on the next poll.
		if e.connectHandle != 0 {
			if _, err := e.driver.TCPCheckAsync(e.connectHandle); err != transport.ErrPending {
				e.connectHandle = 0
			}
		}
		if e.sendHandle != 0 {
			if _, err := e.driver.TCPCheckAsync(e.sendHandle); err != transport.ErrPending {
				e.sendHandle = 0
			}
		}
		if e.closeHandle != 0 {
			if _, err := e.driver.TCPCheckAsync(e.closeHandle); err != transport.ErrPending {
				e.closeHandle = 0
			}
		}
	}
}

// finishSendSuccess implements the SENDING -> close-path branch
// (§4.5): QUIT aborts directly, everything else checks connection
// state and either closes gracefully or aborts.
func (e *PoolEntry) finishSendSuccess() {
	if e.msgType == types.MessageQuit {
		e.driver.TCPAbort(e.stream)
		e.state = stateIdle
		return
	}

	status, err := e.driver.TCPStatus(e.stream)
	if err != nil || status.State != transport.ConnStateEstablished {
		e.driver.TCPAbort(e.stream)
		e.state = stateIdle
		return
	}

	h, err := e.driver.TCPCloseAsync(e.stream)
	if err != nil {
		e.driver.TCPAbort(e.stream)
		e.state = stateIdle
		return
	}
	e.closeHandle = h
	e.state = stateClosingGraceful
}

// sweepTimeout implements the per-tick timeout sweeper (§4.5): caps
// stuck peers from consuming pool capacity.
func (e *PoolEntry) sweepTimeout(timeout time.Duration) {
	switch e.state {
	case stateConnectingOut:
		if time.Since(e.connectStart) > timeout {
			e.log.Warnf("pool[%d]: connect to %s timed out", e.index, e.targetIP)
			e.driver.TCPAbort(e.stream)
			e.connectHandle = 0
			e.state = stateIdle
		}
	case stateSending:
		if time.Since(e.sendStart) > timeout {
			e.log.Warnf("pool[%d]: send to %s timed out", e.index, e.targetIP)
			e.driver.TCPAbort(e.stream)
			e.sendHandle = 0
			e.state = stateIdle
		}
	}
}
