package transport

import (
	"context"
	"strconv"

	"github.com/jabolina/relt/pkg/relt"

	"github.com/jabolina/go-lanmsg/internal/types"
)

// reltDriver is the second, "modern" Driver (§4.1, §9 "Duplicate
// source trees") — grounded directly on the teacher's
// pkg/mcast/core/transport.go, which builds a relt.Relt reliable
// multicast group from relt.DefaultReltConfiguration(). TCP and the
// utility operations are unchanged from the raw-socket driver (relt
// only speaks group multicast, not arbitrary TCP streams), so this
// type embeds a *netDriver for everything except the UDP endpoint,
// whose receive/send path it replaces with a relt group.
//
// relt addresses a named exchange, not an arbitrary (ip, port) pair,
// so UDPSendAsync's ip/port arguments are used only to pick the
// group (one relt group per discovery port) — unicast
// discovery-response traffic is delivered to the whole group instead
// of a single host. This trades precise addressing for relt's
// delivery reliability over UDP broadcast's best-effort semantics.
type reltDriver struct {
	*netDriver

	udpPool *handlePool

	endpoints map[EndpointRef]*reltEndpoint
	nextEP    uint32
}

type reltEndpoint struct {
	group  *relt.Relt
	cancel context.CancelFunc
	ctx    context.Context
}

// NewReltDriver builds the relt-backed driver.
func NewReltDriver(log types.Logger) Driver {
	return &reltDriver{
		netDriver: NewNetDriver(log).(*netDriver),
		udpPool:   newHandlePool(types.UDPPoolSize),
		endpoints: make(map[EndpointRef]*reltEndpoint),
	}
}

func (d *reltDriver) GetImplementationName() string { return "relt" }

func (d *reltDriver) UDPCreate(port int) (EndpointRef, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = "lanmsg-discovery"
	conf.Exchange = relt.GroupAddress(portGroupName(port))

	group, err := relt.NewRelt(*conf)
	if err != nil {
		return 0, Translate(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.nextEP++
	ref := EndpointRef(d.nextEP)
	d.endpoints[ref] = &reltEndpoint{group: group, cancel: cancel, ctx: ctx}
	return ref, nil
}

// portGroupName maps a discovery UDP port onto a distinct relt
// exchange name, so two nodes configured with different discovery
// ports never cross-deliver onto the same group.
func portGroupName(port int) string {
	return "lanmsg-discovery-" + strconv.Itoa(port)
}

func (d *reltDriver) UDPRelease(endpoint EndpointRef) {
	ep, ok := d.endpoints[endpoint]
	if !ok {
		return
	}
	ep.cancel()
	_ = ep.group.Close()
	delete(d.endpoints, endpoint)
}

func (d *reltDriver) UDPSendAsync(endpoint EndpointRef, ip string, port int, data []byte) (Handle, error) {
	ep, ok := d.endpoints[endpoint]
	if !ok {
		return invalidHandle, ErrInvalidParam
	}
	h, desc, err := d.udpPool.allocate(OpUDPSend, 0, endpoint)
	if err != nil {
		return invalidHandle, err
	}
	go func() {
		msg := relt.Send{Address: relt.GroupAddress(portGroupName(port)), Data: data}
		err := ep.group.Broadcast(ep.ctx, msg)
		d.udpPool.complete(desc, CheckResult{Err: Translate(err)}, UDPReceiveResult{})
	}()
	return h, nil
}

func (d *reltDriver) UDPReceiveAsync(endpoint EndpointRef) (Handle, error) {
	ep, ok := d.endpoints[endpoint]
	if !ok {
		return invalidHandle, ErrInvalidParam
	}
	h, desc, err := d.udpPool.allocate(OpUDPReceive, 0, endpoint)
	if err != nil {
		return invalidHandle, err
	}
	go func() {
		listener, err := ep.group.Consume()
		if err != nil {
			d.udpPool.complete(desc, CheckResult{Err: Translate(err)}, UDPReceiveResult{})
			return
		}
		select {
		case <-ep.ctx.Done():
			d.udpPool.complete(desc, CheckResult{Err: ErrConnectionClosed}, UDPReceiveResult{})
		case recv, ok := <-listener:
			if !ok {
				d.udpPool.complete(desc, CheckResult{Err: ErrConnectionClosed}, UDPReceiveResult{})
				return
			}
			if recv.Error != nil {
				d.udpPool.complete(desc, CheckResult{Err: Translate(recv.Error)}, UDPReceiveResult{})
				return
			}
			d.udpPool.complete(desc, CheckResult{}, UDPReceiveResult{
				RemoteIP: recv.Origin,
				Data:     recv.Data,
			})
		}
	}()
	return h, nil
}

func (d *reltDriver) UDPReturnBufferAsync(endpoint EndpointRef) (Handle, error) {
	h, desc, err := d.udpPool.allocate(OpUDPReturn, 0, endpoint)
	if err != nil {
		return invalidHandle, err
	}
	go func() { d.udpPool.complete(desc, CheckResult{}, UDPReceiveResult{}) }()
	return h, nil
}

func (d *reltDriver) UDPCheckSendStatus(handle Handle) (error, bool) {
	res, _, chkErr := d.udpPool.check(handle)
	if pending, err := pendingOr(chkErr); pending || err != nil {
		return err, pending
	}
	return res.Err, false
}

func (d *reltDriver) UDPCheckReceiveStatus(handle Handle) (UDPReceiveResult, error, bool) {
	res, udpRes, chkErr := d.udpPool.check(handle)
	if pending, err := pendingOr(chkErr); pending || err != nil {
		return UDPReceiveResult{}, err, pending
	}
	return udpRes, res.Err, false
}

func (d *reltDriver) UDPCheckReturnStatus(handle Handle) (error, bool) {
	_, _, chkErr := d.udpPool.check(handle)
	pending, err := pendingOr(chkErr)
	return err, pending
}

func (d *reltDriver) UDPCancelAsync(handle Handle) { d.udpPool.cancel(handle) }
