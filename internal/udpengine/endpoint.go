// Package udpengine implements the UDP discovery endpoint (§4.7): a
// single endpoint driving three overlapping operations — receive,
// buffer-return, send — each with an at-most-one-in-flight guard, and
// the bounded send FIFO used when the send slot is already busy.
package udpengine

import (
	"time"

	"github.com/jabolina/go-lanmsg/internal/discovery"
	"github.com/jabolina/go-lanmsg/internal/transport"
	"github.com/jabolina/go-lanmsg/internal/types"
	"github.com/jabolina/go-lanmsg/internal/wire"
)

// queuedSend is one UDP send FIFO entry (§3).
type queuedSend struct {
	payload  []byte
	destIP   string
	destPort int
}

// Endpoint is the singleton UDP discovery endpoint state (§3, §4.7).
type Endpoint struct {
	driver transport.Driver
	log    types.Logger

	endpoint transport.EndpointRef
	port     int
	localIP  string

	receiveHandle transport.Handle
	returnHandle  transport.Handle
	sendHandle    transport.Handle

	sendQueue    []queuedSend
	sendCapacity int

	lastBroadcast time.Time

	broadcastIP string
	localName   string
}

// New opens the discovery endpoint.
func New(driver transport.Driver, log types.Logger, port int, localIP, localName, broadcastIP string, sendCapacity int) (*Endpoint, error) {
	ep, err := driver.UDPCreate(port)
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		driver:       driver,
		log:          log,
		endpoint:     ep,
		port:         port,
		localIP:      localIP,
		localName:    localName,
		broadcastIP:  broadcastIP,
		sendCapacity: sendCapacity,
	}, nil
}

func (e *Endpoint) Close() { e.driver.UDPRelease(e.endpoint) }

// enqueueSend implements the bounded UDP send FIFO (§4.7, capacity 8).
func (e *Endpoint) enqueueSend(payload []byte, ip string, port int) bool {
	if len(e.sendQueue) >= e.sendCapacity {
		return false
	}
	e.sendQueue = append(e.sendQueue, queuedSend{payload: payload, destIP: ip, destPort: port})
	return true
}

// send starts a send if the send slot is free, otherwise enqueues
// (§4.7). Returns false only when both the slot is busy and the FIFO
// is full.
func (e *Endpoint) send(payload []byte, ip string, port int) bool {
	if e.sendHandle != 0 {
		return e.enqueueSend(payload, ip, port)
	}
	h, err := e.driver.UDPSendAsync(e.endpoint, ip, port, payload)
	if err != nil {
		e.log.Warnf("udp: send to %s failed to start: %v", ip, err)
		return false
	}
	e.sendHandle = h
	return true
}

func (e *Endpoint) formatPayload(msgType types.MessageType, content string) ([]byte, error) {
	record, err := wire.FormatMessage(types.WireMessage{
		Type:       msgType,
		SenderName: e.localName,
		SenderIP:   e.localIP,
		Content:    content,
	})
	if err != nil {
		return nil, err
	}
	return []byte(record), nil
}

// SendDiscovery broadcasts a DISCOVERY datagram.
func (e *Endpoint) SendDiscovery() bool {
	payload, err := e.formatPayload(types.MessageDiscovery, "")
	if err != nil {
		return false
	}
	return e.send(payload, e.broadcastIP, e.port)
}

// SendResponse replies directly to a peer with a DISCOVERY_RESPONSE.
func (e *Endpoint) SendResponse(destIP string, destPort int) bool {
	payload, err := e.formatPayload(types.MessageDiscoveryResponse, "")
	if err != nil {
		return false
	}
	return e.send(payload, destIP, destPort)
}

// SendQuit sends the best-effort shutdown broadcast. Per §4.7/§5, this
// exceptionally busy-waits (cooperatively, via yield) up to QuitGrace
// for the send slot, then proceeds regardless. It also waits (within
// the same grace budget) for the quit send itself to complete before
// returning, so a caller's subsequent Close doesn't release the
// endpoint out from under an in-flight broadcast write.
func (e *Endpoint) SendQuit(yield func()) {
	payload, err := e.formatPayload(types.MessageQuit, "")
	if err != nil {
		return
	}
	deadline := time.Now().Add(types.QuitGrace)
	waitForSendSlot := func() {
		for e.sendHandle != 0 && time.Now().Before(deadline) {
			if _, pending := e.driver.UDPCheckSendStatus(e.sendHandle); !pending {
				e.sendHandle = 0
				break
			}
			if yield != nil {
				yield()
			} else {
				time.Sleep(time.Millisecond)
			}
		}
	}

	waitForSendSlot()
	e.send(payload, e.broadcastIP, e.port)
	waitForSendSlot()
}

// CheckBroadcast implements the broadcast scheduler (§4.7): if the
// interval elapsed, attempt a broadcast and only advance
// lastBroadcast on successful initiation.
func (e *Endpoint) CheckBroadcast(interval time.Duration, enabled bool) {
	if !enabled {
		return
	}
	if time.Since(e.lastBroadcast) < interval {
		return
	}
	if e.SendDiscovery() {
		e.lastBroadcast = time.Now()
	}
}

// Poll drains UDP async completions, processes any arrived packet,
// restarts a receive if idle, and pumps the send FIFO — the whole of
// §4.7 / §4.8 step 1's PollUDPListener.
func (e *Endpoint) Poll(cb discovery.PlatformCallbacks) {
	e.pollSend()
	e.pollReturn()
	e.pollReceive(cb)

	if e.receiveHandle == 0 && e.returnHandle == 0 {
		h, err := e.driver.UDPReceiveAsync(e.endpoint)
		if err != nil {
			e.log.Warnf("udp: receive restart failed: %v", err)
			return
		}
		e.receiveHandle = h
	}
}

func (e *Endpoint) pollSend() {
	if e.sendHandle == 0 {
		return
	}
	err, pending := e.driver.UDPCheckSendStatus(e.sendHandle)
	if pending {
		return
	}
	e.sendHandle = 0
	if err != nil {
		e.log.Warnf("udp: send failed: %v", err)
	}
	if len(e.sendQueue) > 0 {
		next := e.sendQueue[0]
		e.sendQueue = e.sendQueue[1:]
		e.send(next.payload, next.destIP, next.destPort)
	}
}

func (e *Endpoint) pollReturn() {
	if e.returnHandle == 0 {
		return
	}
	_, pending := e.driver.UDPCheckReturnStatus(e.returnHandle)
	if pending {
		return
	}
	e.returnHandle = 0
}

func (e *Endpoint) pollReceive(cb discovery.PlatformCallbacks) {
	if e.receiveHandle == 0 {
		return
	}
	result, err, pending := e.driver.UDPCheckReceiveStatus(e.receiveHandle)
	if pending {
		return
	}
	e.receiveHandle = 0
	if err != nil {
		e.log.Warnf("udp: receive failed: %v", err)
		return
	}

	if perr := discovery.ProcessPacket(result.Data, result.RemoteIP, result.RemotePort, e.localIP, cb); perr != nil {
		e.log.Debugf("udp: dropping datagram from %s: %v", result.RemoteIP, perr)
	}

	// Buffer-return gating (§4.7, §8 scenario 6): if a previous
	// return is still in flight, skip this tick and retry next tick
	// rather than starting a new receive before it completes.
	if e.returnHandle != 0 {
		return
	}
	h, err := e.driver.UDPReturnBufferAsync(e.endpoint)
	if err != nil {
		e.log.Warnf("udp: buffer return failed to start: %v", err)
		return
	}
	e.returnHandle = h
}

// SendQueueLen reports the UDP send FIFO depth, for tests and metrics.
func (e *Endpoint) SendQueueLen() int { return len(e.sendQueue) }
