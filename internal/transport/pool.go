package transport

import (
	"sync"
)

// descriptor is one async operation descriptor (§3 "Async operation
// descriptor"). completion is written exactly once, by whichever
// background goroutine is servicing the operation; Check reads it,
// and — critically — is the only code path allowed to free the slot,
// per §4.5's "ASR handle discipline" invariant generalized to every
// pool user.
type descriptor struct {
	inUse      bool
	generation uint32
	kind       OpKind
	stream     StreamRef
	endpoint   EndpointRef

	done   chan struct{}
	once   sync.Once
	result CheckResult
	udpRes UDPReceiveResult
}

// handlePool is the fixed-size array of async operation descriptors
// (§4.2). One instance backs UDP (size 4) and a second backs TCP
// (size 8); allocation is a linear scan for the first free slot,
// exhaustion returns ErrNoSlots rather than retrying or blocking.
type handlePool struct {
	mutex sync.Mutex
	slots []descriptor
}

func newHandlePool(size int) *handlePool {
	return &handlePool{slots: make([]descriptor, size)}
}

// allocate finds the first free slot, marks it in-use and returns an
// opaque Handle. Callers must eventually call check (exactly once,
// after completion) to free it.
func (p *handlePool) allocate(kind OpKind, stream StreamRef, endpoint EndpointRef) (Handle, *descriptor, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i := range p.slots {
		if !p.slots[i].inUse {
			p.slots[i].inUse = true
			p.slots[i].kind = kind
			p.slots[i].stream = stream
			p.slots[i].endpoint = endpoint
			p.slots[i].done = make(chan struct{})
			p.slots[i].once = sync.Once{}
			p.slots[i].result = CheckResult{}
			p.slots[i].udpRes = UDPReceiveResult{}
			return packHandle(uint32(i), p.slots[i].generation), &p.slots[i], nil
		}
	}
	return invalidHandle, nil, ErrNoSlots
}

// complete is called by the owning background goroutine exactly once,
// when the driver-level operation finishes. It never frees the slot —
// only check() does, per the ASR handle discipline.
func (p *handlePool) complete(d *descriptor, result CheckResult, udpRes UDPReceiveResult) {
	d.once.Do(func() {
		p.mutex.Lock()
		d.result = result
		d.udpRes = udpRes
		p.mutex.Unlock()
		close(d.done)
	})
}

// check implements CheckAsync (§4.1): returns ErrPending while the
// operation has not completed; on completion, frees the descriptor
// exactly once and returns its result. A stale or invalid handle
// returns ErrInvalidParam.
func (p *handlePool) check(h Handle) (CheckResult, UDPReceiveResult, error) {
	index, generation, ok := unpackHandle(h)
	if !ok {
		return CheckResult{}, UDPReceiveResult{}, ErrInvalidParam
	}

	p.mutex.Lock()
	if int(index) >= len(p.slots) {
		p.mutex.Unlock()
		return CheckResult{}, UDPReceiveResult{}, ErrInvalidParam
	}
	d := &p.slots[index]
	if !d.inUse || d.generation != generation {
		p.mutex.Unlock()
		return CheckResult{}, UDPReceiveResult{}, ErrInvalidParam
	}
	done := d.done
	p.mutex.Unlock()

	select {
	case <-done:
	default:
		return CheckResult{}, UDPReceiveResult{}, ErrPending
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	result := d.result
	udpRes := d.udpRes
	d.inUse = false
	d.generation++
	d.kind = OpNone
	d.stream = 0
	d.endpoint = 0
	return result, udpRes, nil
}

// cancel implements CancelAsync (§4.1): frees the descriptor without
// waiting for the underlying operation, which is left to quiesce in
// the background — most classic drivers cannot truly abort in-flight
// I/O (§4.1 "Cancellation").
func (p *handlePool) cancel(h Handle) {
	index, generation, ok := unpackHandle(h)
	if !ok {
		return
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if int(index) >= len(p.slots) {
		return
	}
	d := &p.slots[index]
	if !d.inUse || d.generation != generation {
		return
	}
	d.inUse = false
	d.generation++
	d.kind = OpNone
}

// outstanding reports the number of in-use descriptors — the handle
// leak counter referenced in §9 "Handle leaks".
func (p *handlePool) outstanding() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	n := 0
	for i := range p.slots {
		if p.slots[i].inUse {
			n++
		}
	}
	return n
}
