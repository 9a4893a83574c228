// Package transport implements the async transport abstraction (§4.1),
// the fixed-size async handle pools (§4.2) and the ASR capture ring
// discipline (§4.3). It is deliberately the lowest layer: tcpengine
// and udpengine drive it but never touch a net.Conn directly.
//
// Grounded on the teacher's Transport interface
// (pkg/mcast/core/transport.go) — kept as the shape of a narrow,
// swappable communication interface with a constructor per backend —
// generalized here from a single Broadcast/Unicast/Listen channel API
// to the much lower-level start/poll/complete async contract §4.1
// requires, because the spec's invariants (at-most-one-in-flight,
// explicit buffer-return, handle-leak freedom) are only expressible
// at that level.
package transport

import "time"

// StreamRef identifies a TCP stream for the lifetime of the process
// (§3 Lifecycle). It is a value, not a pointer, per §9's "Stream
// identifiers are values, not pointers-into-lists".
type StreamRef uint32

// EndpointRef identifies the (singleton) UDP endpoint.
type EndpointRef uint32

// Handle is an opaque async operation handle (§4.1, §4.2): index into
// a pool array packed with a generation counter so a stale handle
// from a freed-and-reused slot is rejected rather than silently
// operating on the wrong descriptor.
type Handle uint64

const invalidHandle Handle = 0

func packHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index+1))
}

func unpackHandle(h Handle) (index uint32, generation uint32, ok bool) {
	if h == invalidHandle {
		return 0, 0, false
	}
	return uint32(h&0xffffffff) - 1, uint32(h >> 32), true
}

// OpKind distinguishes what a pooled async descriptor is doing,
// mirroring the "kind" fields in §3's UDP/TCP descriptor data model.
type OpKind int

const (
	OpNone OpKind = iota
	OpUDPSend
	OpUDPReceive
	OpUDPReturn
	OpTCPListen
	OpTCPConnect
	OpTCPSend
	OpTCPReceive
	OpTCPClose
)

// TerminationReason enumerates the ASR TCPTerminate reasons the spec
// names explicitly. Reason 2 ("remote refused"/"remote disconnect")
// is the one with special handling throughout §4.5.
type TerminationReason int

const (
	TerminationNone TerminationReason = iota
	TerminationLocalAbort
	TerminationRemoteReset
	TerminationNetworkError
)

// EventCode is what an ASR slot records (§3 "ASR event slot").
type EventCode int

const (
	EventNone EventCode = iota
	EventTCPTerminate
	EventTCPClosing
	EventICMPReport
)

// ICMPReport is the fixed-size structure copied byte-by-byte by the
// ASR trampoline for EventICMPReport (§4.3 step 3).
type ICMPReport struct {
	Type uint8
	Code uint8
}

// ConnState is the subset of connection state Status() reports that
// the TCP send pool's SENDING->close-path branch needs (§4.5).
type ConnState int

const (
	ConnStateClosed ConnState = iota
	ConnStateTransitional
	ConnStateEstablished
)

// TCPStatus is the result of Status(stream) (§4.1).
type TCPStatus struct {
	LocalHost   string
	LocalPort   int
	RemoteHost  string
	RemotePort  int
	State       ConnState
	IsConnected bool
	IsListening bool
}

// CheckResult is what CheckAsync(handle) returns on a non-pending
// result (§4.1): a normalized error plus kind-specific data.
type CheckResult struct {
	Err error

	// Populated for OpTCPListen on success: the accepted remote stream.
	AcceptedStream StreamRef
	RemoteIP       string
	RemotePort     int

	// Not populated by either driver: UDP receive data is reported in
	// UDPReceiveResult instead.
	Data []byte
}

// UDPReceiveResult is the richer UDP-specific decoding of CheckAsync
// for a receive handle (§4.1's CheckReceiveStatus).
type UDPReceiveResult struct {
	RemoteIP   string
	RemotePort int
	Data       []byte
}

// RDSEntry is one zero-copy receive descriptor (GLOSSARY RDS).
type RDSEntry struct {
	Data []byte
}

// ReceiveProbe is the result of ReceiveNoCopy (§4.4): whether urgent
// data is present and the RDS entries retrieved, up to MaxRDSEntries.
type ReceiveProbe struct {
	Urgent  bool
	Mark    bool
	Entries []RDSEntry
}

const defaultPollTimeout = 50 * time.Millisecond
