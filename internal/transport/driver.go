package transport

import "time"

// Driver is the operations table selected at init (§4.1): either the
// raw-socket "net" driver or the relt-backed "modern" driver. Every
// operation either starts asynchronously and returns a Handle that
// must be polled via CheckAsync, or is a cheap synchronous utility.
type Driver interface {
	Initialize() (localIP string, err error)
	Shutdown()

	// TCP.
	TCPCreate(notify func(event EventCode, reason TerminationReason, icmp ICMPReport)) (StreamRef, error)
	TCPRelease(stream StreamRef)
	TCPListenAsync(stream StreamRef, port int) (Handle, error)
	TCPConnectAsync(stream StreamRef, ip string, port int) (Handle, error)
	TCPSendAsync(stream StreamRef, data []byte, push bool) (Handle, error)
	TCPReceiveNoCopy(stream StreamRef, maxEntries int, timeout time.Duration) (ReceiveProbe, error)
	TCPReturnBuffer(stream StreamRef, probe ReceiveProbe) error
	TCPCloseAsync(stream StreamRef) (Handle, error)
	TCPAbort(stream StreamRef)
	TCPStatus(stream StreamRef) (TCPStatus, error)
	TCPCheckAsync(handle Handle) (CheckResult, error)
	TCPCancelAsync(handle Handle)

	// UDP.
	UDPCreate(port int) (EndpointRef, error)
	UDPRelease(endpoint EndpointRef)
	UDPSendAsync(endpoint EndpointRef, ip string, port int, data []byte) (Handle, error)
	UDPReceiveAsync(endpoint EndpointRef) (Handle, error)
	UDPReturnBufferAsync(endpoint EndpointRef) (Handle, error)
	UDPCheckSendStatus(handle Handle) (err error, pending bool)
	UDPCheckReceiveStatus(handle Handle) (UDPReceiveResult, error, bool)
	UDPCheckReturnStatus(handle Handle) (err error, pending bool)
	UDPCancelAsync(handle Handle)

	// Utility.
	ResolveAddress(hostname string) (string, error)
	AddressToString(ip uint32) string
	GetImplementationName() string
	IsAvailable() bool
}

// pendingOr wraps an ErrPending outcome so callers distinguish
// "keep polling" from a terminal error, matching §4.1's sentinel.
func pendingOr(err error) (bool, error) {
	if err == ErrPending {
		return true, nil
	}
	return false, err
}
