package tcpengine

import (
	"github.com/jabolina/go-lanmsg/internal/transport"
	"github.com/jabolina/go-lanmsg/internal/types"
)

// queuedMessage is one outbound TCP queue entry (§3).
type queuedMessage struct {
	peerIP  string
	msgType types.MessageType
	content string
}

// OutboundQueue is the bounded FIFO backing QueueMessage
// (§4.6). Enqueue fails rather than blocks when full (§3 invariant).
type OutboundQueue struct {
	capacity int
	items    []queuedMessage
}

// NewOutboundQueue builds an empty queue of the given capacity.
func NewOutboundQueue(capacity int) *OutboundQueue {
	return &OutboundQueue{capacity: capacity, items: make([]queuedMessage, 0, capacity)}
}

func (q *OutboundQueue) enqueue(m queuedMessage) bool {
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, m)
	return true
}

func (q *OutboundQueue) dequeue() (queuedMessage, bool) {
	if len(q.items) == 0 {
		return queuedMessage{}, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

func (q *OutboundQueue) Len() int { return len(q.items) }

// QueueMessage implements §4.6's QueueMessage: try a direct send onto
// an idle pool entry first, otherwise enqueue, otherwise report
// OutOfMemory — the only error surfaced to the caller (§7).
func (q *OutboundQueue) QueueMessage(pool *SendPool, peerIP string, msgType types.MessageType, content string) error {
	if entry := pool.AllocatePoolEntry(); entry != nil {
		return pool.StartSend(entry, peerIP, msgType, content)
	}
	if q.enqueue(queuedMessage{peerIP: peerIP, msgType: msgType, content: content}) {
		return nil
	}
	return transport.ErrOutOfMemory
}

// ProcessMessageQueue implements §4.6's per-tick pump: match one
// dequeued entry with one newly-IDLE pool slot. Repeats until either
// the queue drains or no entry is IDLE, so a burst of relisten-freed
// slots is drained within a single tick rather than one per tick.
func (q *OutboundQueue) ProcessMessageQueue(pool *SendPool) {
	for {
		entry := pool.AllocatePoolEntry()
		if entry == nil {
			return
		}
		m, ok := q.dequeue()
		if !ok {
			return
		}
		if err := pool.StartSend(entry, m.peerIP, m.msgType, m.content); err != nil {
			// Synchronous failure on dequeue: drop, do not requeue —
			// avoids livelock against a broken peer (§7 class 3).
			continue
		}
	}
}
