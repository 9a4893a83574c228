package tcpengine

import (
	"net"
	"testing"
	"time"

	"github.com/jabolina/go-lanmsg/internal/transport"
	"github.com/jabolina/go-lanmsg/internal/types"
)

// drainOne accepts and discards one connection on ln, unblocking a
// CONNECTING_OUT/SENDING entry aimed at it.
func drainOne(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 1024)
		_, _ = conn.Read(buf)
		conn.Close()
	}()
}

func TestQueueMessageDirectSendWhenIdle(t *testing.T) {
	port := freePort(t)
	ln, err := net.Listen("tcp", "127.0.0.1:"+itoa(port))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	drainOne(t, ln)

	driver := transport.NewNetDriver(testLogger())
	pool, err := NewSendPool(driver, testLogger(), 2, "alice", "127.0.0.1", port, time.Second)
	if err != nil {
		t.Fatalf("NewSendPool: %v", err)
	}
	q := NewOutboundQueue(4)

	if err := q.QueueMessage(pool, "127.0.0.1", types.MessageText, "hi"); err != nil {
		t.Fatalf("QueueMessage: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected direct send to bypass the queue, got len %d", q.Len())
	}
	if pool.IdleCount() != 1 {
		t.Fatalf("expected 1 of 2 entries busy, got idle=%d", pool.IdleCount())
	}
}

func TestQueueMessageEnqueuesWhenPoolBusy(t *testing.T) {
	// Port nobody listens on: the one entry stays CONNECTING_OUT.
	port := freePort(t)

	driver := transport.NewNetDriver(testLogger())
	pool, err := NewSendPool(driver, testLogger(), 1, "alice", "127.0.0.1", port, time.Minute)
	if err != nil {
		t.Fatalf("NewSendPool: %v", err)
	}
	q := NewOutboundQueue(4)

	if err := q.QueueMessage(pool, "10.255.255.2", types.MessageText, "first"); err != nil {
		t.Fatalf("first QueueMessage: %v", err)
	}
	if err := q.QueueMessage(pool, "10.255.255.2", types.MessageText, "second"); err != nil {
		t.Fatalf("second QueueMessage should enqueue rather than fail: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected second message to be queued, got len %d", q.Len())
	}
}

func TestQueueMessageOutOfMemoryWhenFull(t *testing.T) {
	port := freePort(t)
	driver := transport.NewNetDriver(testLogger())
	pool, err := NewSendPool(driver, testLogger(), 1, "alice", "127.0.0.1", port, time.Minute)
	if err != nil {
		t.Fatalf("NewSendPool: %v", err)
	}
	q := NewOutboundQueue(1)

	if err := q.QueueMessage(pool, "10.255.255.2", types.MessageText, "first"); err != nil {
		t.Fatalf("first QueueMessage: %v", err)
	}
	if err := q.QueueMessage(pool, "10.255.255.2", types.MessageText, "second"); err != nil {
		t.Fatalf("second QueueMessage should fill the queue, not error: %v", err)
	}
	if err := q.QueueMessage(pool, "10.255.255.2", types.MessageText, "third"); err != transport.ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory once both the pool and the queue are full, got %v", err)
	}
}

func TestProcessMessageQueuePumpsWhenSlotFrees(t *testing.T) {
	port := freePort(t)
	ln, err := net.Listen("tcp", "127.0.0.1:"+itoa(port))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	driver := transport.NewNetDriver(testLogger())
	pool, err := NewSendPool(driver, testLogger(), 1, "alice", "127.0.0.1", port, time.Second)
	if err != nil {
		t.Fatalf("NewSendPool: %v", err)
	}
	q := NewOutboundQueue(4)

	drainOne(t, ln)
	if err := q.QueueMessage(pool, "127.0.0.1", types.MessageText, "first"); err != nil {
		t.Fatalf("first QueueMessage: %v", err)
	}
	if err := q.QueueMessage(pool, "127.0.0.1", types.MessageText, "second"); err != nil {
		t.Fatalf("second QueueMessage should queue: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 queued entry, got %d", q.Len())
	}

	drainOne(t, ln)
	deadline := time.Now().Add(2 * time.Second)
	for q.Len() > 0 && time.Now().Before(deadline) {
		pool.Tick()
		q.ProcessMessageQueue(pool)
		time.Sleep(time.Millisecond)
	}
	if q.Len() != 0 {
		t.Fatalf("expected the queue to drain once the slot freed up, got len %d", q.Len())
	}
}
