package transport

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jabolina/go-lanmsg/internal/types"
)

// tcpStream is a stream ref's mutable state: at most one net.Conn (or
// net.Listener while listening) at a time, guarded by mutex so the
// background goroutines servicing concurrent async ops never race
// each other — the spec's single-main-loop-mutator model is emulated
// here by funnelling all driver-side mutation through this lock
// instead of relying on true single-threadedness.
type tcpStream struct {
	mutex    sync.Mutex
	conn     net.Conn
	listener net.Listener
	closed   bool
}

// netDriver is the raw-socket Driver implementation (§4.1's "classic"
// driver), built directly on net.Dial/net.Listen/net.ListenUDP. Every
// exported operation starts a goroutine that performs the real
// blocking syscall and reports completion through the handle pool,
// which is the Go-idiomatic analogue of "asynchronous, poll for
// completion" the spec requires.
type netDriver struct {
	registry *notifierRegistry
	tcpPool  *handlePool
	udpPool  *handlePool

	streamsMu sync.Mutex
	streams   map[StreamRef]*tcpStream
	nextRef   uint32

	udpMu    sync.Mutex
	udpConns map[EndpointRef]*net.UDPConn
	nextEP   uint32

	localIP string
	log     types.Logger
}

// NewNetDriver builds the raw-socket driver.
func NewNetDriver(log types.Logger) Driver {
	return &netDriver{
		registry: newNotifierRegistry(log),
		tcpPool:  newHandlePool(types.TCPPoolSize),
		udpPool:  newHandlePool(types.UDPPoolSize),
		streams:  make(map[StreamRef]*tcpStream),
		udpConns: make(map[EndpointRef]*net.UDPConn),
		log:      log,
	}
}

func (d *netDriver) GetImplementationName() string { return "net" }
func (d *netDriver) IsAvailable() bool              { return true }

func (d *netDriver) Initialize() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", Translate(err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			d.localIP = v4.String()
			return d.localIP, nil
		}
	}
	d.localIP = "127.0.0.1"
	return d.localIP, nil
}

func (d *netDriver) Shutdown() {
	d.streamsMu.Lock()
	for _, s := range d.streams {
		s.mutex.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.mutex.Unlock()
	}
	d.streamsMu.Unlock()

	d.udpMu.Lock()
	for _, c := range d.udpConns {
		_ = c.Close()
	}
	d.udpMu.Unlock()
}

func (d *netDriver) ResolveAddress(hostname string) (string, error) {
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return "", Translate(err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", ErrConnectionFailed
}

func (d *netDriver) AddressToString(ip uint32) string { return AddressToString(ip) }

// ---- TCP ----

func (d *netDriver) TCPCreate(notify func(event EventCode, reason TerminationReason, icmp ICMPReport)) (StreamRef, error) {
	d.streamsMu.Lock()
	defer d.streamsMu.Unlock()
	d.nextRef++
	ref := StreamRef(d.nextRef)
	d.streams[ref] = &tcpStream{}
	if !d.registry.register(ref, notify) {
		delete(d.streams, ref)
		return 0, ErrOutOfMemory
	}
	return ref, nil
}

func (d *netDriver) streamOf(ref StreamRef) *tcpStream {
	d.streamsMu.Lock()
	defer d.streamsMu.Unlock()
	return d.streams[ref]
}

func (d *netDriver) TCPRelease(stream StreamRef) {
	d.TCPAbort(stream)
	d.registry.unregister(stream)
	d.streamsMu.Lock()
	delete(d.streams, stream)
	d.streamsMu.Unlock()
}

// fireASR is the driver's trampoline entry point (§4.3): it dispatches
// through the registry rather than calling a stream's handler
// directly, so the lookup/dispatch discipline is exercised exactly
// once, the same way for every stream.
func (d *netDriver) fireASR(stream StreamRef, event EventCode, reason TerminationReason) {
	d.registry.trampoline(stream, event, reason, ICMPReport{})
}

func (d *netDriver) TCPListenAsync(stream StreamRef, port int) (Handle, error) {
	s := d.streamOf(stream)
	if s == nil {
		return invalidHandle, ErrInvalidParam
	}
	h, desc, err := d.tcpPool.allocate(OpTCPListen, stream, 0)
	if err != nil {
		return invalidHandle, err
	}

	go func() {
		ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
		if err != nil {
			d.tcpPool.complete(desc, CheckResult{Err: Translate(err)}, UDPReceiveResult{})
			return
		}
		s.mutex.Lock()
		s.listener = ln
		s.mutex.Unlock()

		conn, err := ln.Accept()
		if err != nil {
			d.tcpPool.complete(desc, CheckResult{Err: Translate(err)}, UDPReceiveResult{})
			return
		}
		s.mutex.Lock()
		s.conn = conn
		s.mutex.Unlock()

		host, portStr, _ := net.SplitHostPort(conn.RemoteAddr().String())
		remotePort, _ := strconv.Atoi(portStr)
		d.tcpPool.complete(desc, CheckResult{
			AcceptedStream: stream,
			RemoteIP:       host,
			RemotePort:     remotePort,
		}, UDPReceiveResult{})
	}()

	return h, nil
}

func (d *netDriver) TCPConnectAsync(stream StreamRef, ip string, port int) (Handle, error) {
	s := d.streamOf(stream)
	if s == nil {
		return invalidHandle, ErrInvalidParam
	}
	h, desc, err := d.tcpPool.allocate(OpTCPConnect, stream, 0)
	if err != nil {
		return invalidHandle, err
	}

	go func() {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), types.ConnectionTimeout)
		if err != nil {
			d.tcpPool.complete(desc, CheckResult{Err: Translate(err)}, UDPReceiveResult{})
			// Connection refused manifests as an ASR TCPTerminate with
			// reason "remote refused" as well as the CheckAsync
			// failure (§4.5 CONNECTING_OUT -> IDLE transition).
			d.fireASR(stream, EventTCPTerminate, TerminationRemoteReset)
			return
		}
		s.mutex.Lock()
		s.conn = conn
		s.mutex.Unlock()
		d.tcpPool.complete(desc, CheckResult{}, UDPReceiveResult{})
	}()

	return h, nil
}

func (d *netDriver) TCPSendAsync(stream StreamRef, data []byte, push bool) (Handle, error) {
	s := d.streamOf(stream)
	if s == nil {
		return invalidHandle, ErrInvalidParam
	}
	h, desc, err := d.tcpPool.allocate(OpTCPSend, stream, 0)
	if err != nil {
		return invalidHandle, err
	}

	go func() {
		s.mutex.Lock()
		conn := s.conn
		s.mutex.Unlock()
		if conn == nil {
			d.tcpPool.complete(desc, CheckResult{Err: ErrInvalidParam}, UDPReceiveResult{})
			return
		}
		_, err := conn.Write(data)
		d.tcpPool.complete(desc, CheckResult{Err: Translate(err)}, UDPReceiveResult{})
		if err == nil {
			// Stateless one-message protocol: the receiver closes
			// immediately after reading (§4.5 SENDING handling of
			// ASR TCPTerminate reason 2 is expected, not an error).
			d.fireASR(stream, EventTCPTerminate, TerminationRemoteReset)
		}
	}()

	return h, nil
}

func (d *netDriver) TCPReceiveNoCopy(stream StreamRef, maxEntries int, timeout time.Duration) (ReceiveProbe, error) {
	s := d.streamOf(stream)
	if s == nil {
		return ReceiveProbe{}, ErrInvalidParam
	}
	s.mutex.Lock()
	conn := s.conn
	s.mutex.Unlock()
	if conn == nil {
		return ReceiveProbe{}, nil
	}

	if timeout <= 0 {
		timeout = time.Millisecond
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, types.BufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return ReceiveProbe{}, nil
		}
		return ReceiveProbe{}, nil
	}
	if n == 0 {
		return ReceiveProbe{}, nil
	}
	if maxEntries <= 0 {
		maxEntries = types.MaxRDSEntries
	}
	return ReceiveProbe{Entries: []RDSEntry{{Data: buf[:n]}}}, nil
}

func (d *netDriver) TCPReturnBuffer(stream StreamRef, probe ReceiveProbe) error {
	return nil
}

func (d *netDriver) TCPCloseAsync(stream StreamRef) (Handle, error) {
	s := d.streamOf(stream)
	if s == nil {
		return invalidHandle, ErrInvalidParam
	}
	h, desc, err := d.tcpPool.allocate(OpTCPClose, stream, 0)
	if err != nil {
		return invalidHandle, err
	}

	go func() {
		s.mutex.Lock()
		conn := s.conn
		s.conn = nil
		s.mutex.Unlock()
		var err error
		if conn != nil {
			err = conn.Close()
		}
		d.tcpPool.complete(desc, CheckResult{Err: Translate(err)}, UDPReceiveResult{})
	}()

	return h, nil
}

func (d *netDriver) TCPAbort(stream StreamRef) {
	s := d.streamOf(stream)
	if s == nil {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (d *netDriver) TCPStatus(stream StreamRef) (TCPStatus, error) {
	s := d.streamOf(stream)
	if s == nil {
		return TCPStatus{}, ErrInvalidParam
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	status := TCPStatus{}
	if s.listener != nil {
		status.IsListening = true
	}
	if s.conn != nil {
		status.IsConnected = true
		status.State = ConnStateEstablished
		if lh, lp, err := net.SplitHostPort(s.conn.LocalAddr().String()); err == nil {
			status.LocalHost = lh
			status.LocalPort = atoiSafe(lp)
		}
		if rh, rp, err := net.SplitHostPort(s.conn.RemoteAddr().String()); err == nil {
			status.RemoteHost = rh
			status.RemotePort = atoiSafe(rp)
		}
	} else {
		status.State = ConnStateClosed
	}
	return status, nil
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func (d *netDriver) TCPCheckAsync(handle Handle) (CheckResult, error) {
	res, _, err := d.tcpPool.check(handle)
	if err == ErrPending {
		return CheckResult{}, ErrPending
	}
	if err != nil {
		return CheckResult{}, err
	}
	return res, res.Err
}

func (d *netDriver) TCPCancelAsync(handle Handle) { d.tcpPool.cancel(handle) }

// ---- UDP ----

func (d *netDriver) UDPCreate(port int) (EndpointRef, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return 0, Translate(err)
	}
	_ = conn.SetReadBuffer(types.BufferSize * 4)

	d.udpMu.Lock()
	d.nextEP++
	ref := EndpointRef(d.nextEP)
	d.udpConns[ref] = conn
	d.udpMu.Unlock()
	return ref, nil
}

func (d *netDriver) UDPRelease(endpoint EndpointRef) {
	d.udpMu.Lock()
	defer d.udpMu.Unlock()
	if conn, ok := d.udpConns[endpoint]; ok {
		_ = conn.Close()
		delete(d.udpConns, endpoint)
	}
}

func (d *netDriver) udpConnOf(endpoint EndpointRef) *net.UDPConn {
	d.udpMu.Lock()
	defer d.udpMu.Unlock()
	return d.udpConns[endpoint]
}

func (d *netDriver) UDPSendAsync(endpoint EndpointRef, ip string, port int, data []byte) (Handle, error) {
	conn := d.udpConnOf(endpoint)
	if conn == nil {
		return invalidHandle, ErrInvalidParam
	}
	h, desc, err := d.udpPool.allocate(OpUDPSend, 0, endpoint)
	if err != nil {
		return invalidHandle, err
	}
	go func() {
		addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
		_, err := conn.WriteToUDP(data, addr)
		d.udpPool.complete(desc, CheckResult{Err: Translate(err)}, UDPReceiveResult{})
	}()
	return h, nil
}

func (d *netDriver) UDPReceiveAsync(endpoint EndpointRef) (Handle, error) {
	conn := d.udpConnOf(endpoint)
	if conn == nil {
		return invalidHandle, ErrInvalidParam
	}
	h, desc, err := d.udpPool.allocate(OpUDPReceive, 0, endpoint)
	if err != nil {
		return invalidHandle, err
	}
	go func() {
		buf := make([]byte, types.BufferSize)
		_ = conn.SetReadDeadline(time.Time{})
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			d.udpPool.complete(desc, CheckResult{Err: Translate(err)}, UDPReceiveResult{})
			return
		}
		d.udpPool.complete(desc, CheckResult{}, UDPReceiveResult{
			RemoteIP:   remote.IP.String(),
			RemotePort: remote.Port,
			Data:       buf[:n],
		})
	}()
	return h, nil
}

func (d *netDriver) UDPReturnBufferAsync(endpoint EndpointRef) (Handle, error) {
	h, desc, err := d.udpPool.allocate(OpUDPReturn, 0, endpoint)
	if err != nil {
		return invalidHandle, err
	}
	go func() {
		d.udpPool.complete(desc, CheckResult{}, UDPReceiveResult{})
	}()
	return h, nil
}

func (d *netDriver) UDPCheckSendStatus(handle Handle) (error, bool) {
	res, _, chkErr := d.udpPool.check(handle)
	if pending, err := pendingOr(chkErr); pending || err != nil {
		return err, pending
	}
	return res.Err, false
}

func (d *netDriver) UDPCheckReceiveStatus(handle Handle) (UDPReceiveResult, error, bool) {
	res, udpRes, chkErr := d.udpPool.check(handle)
	if pending, err := pendingOr(chkErr); pending || err != nil {
		return UDPReceiveResult{}, err, pending
	}
	return udpRes, res.Err, false
}

func (d *netDriver) UDPCheckReturnStatus(handle Handle) (error, bool) {
	_, _, chkErr := d.udpPool.check(handle)
	pending, err := pendingOr(chkErr)
	return err, pending
}

func (d *netDriver) UDPCancelAsync(handle Handle) { d.udpPool.cancel(handle) }
