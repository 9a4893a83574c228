package tcpengine

import (
	"sync/atomic"
	"time"

	"github.com/jabolina/go-lanmsg/internal/transport"
	"github.com/jabolina/go-lanmsg/internal/types"
)

// SendPool is the N-entry outbound TCP send pool (§4.5).
type SendPool struct {
	entries       []*PoolEntry
	senderName    string
	senderIP      string
	port          int
	timeout       time.Duration
	nextMessageID uint32
}

// NewSendPool builds a pool of size entries, each with its own stream
// (§3 Lifecycle: pool entries are created once).
func NewSendPool(driver transport.Driver, log types.Logger, size int, senderName, senderIP string, port int, timeout time.Duration) (*SendPool, error) {
	p := &SendPool{senderName: senderName, senderIP: senderIP, port: port, timeout: timeout}
	for i := 0; i < size; i++ {
		e, err := newPoolEntry(i, driver, log)
		if err != nil {
			return nil, err
		}
		p.entries = append(p.entries, e)
	}
	return p, nil
}

// AllocatePoolEntry implements the allocation policy (§4.5): linear
// scan for the first IDLE entry, no reservation for any target.
func (p *SendPool) AllocatePoolEntry() *PoolEntry {
	for _, e := range p.entries {
		if e.IsIdle() {
			return e
		}
	}
	return nil
}

func (p *SendPool) nextID() uint32 {
	return atomic.AddUint32(&p.nextMessageID, 1)
}

// StartSend starts a send on the given entry, generating the wire
// message fields from the pool's configured identity.
func (p *SendPool) StartSend(entry *PoolEntry, peerIP string, msgType types.MessageType, content string) error {
	return entry.StartAsyncSend(peerIP, p.port, msgType, p.senderName, p.senderIP, content, p.nextID())
}

// Tick runs every entry's state machine for one tick (§4.8 step 2b).
func (p *SendPool) Tick() {
	for _, e := range p.entries {
		e.Tick(p.timeout)
	}
}

// IdleCount reports how many entries are currently IDLE — used by
// tests.
func (p *SendPool) IdleCount() int {
	n := 0
	for _, e := range p.entries {
		if e.IsIdle() {
			n++
		}
	}
	return n
}

func (p *SendPool) Size() int { return len(p.entries) }
