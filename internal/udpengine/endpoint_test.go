package udpengine

import (
	"net"
	"testing"
	"time"

	"github.com/jabolina/go-lanmsg/internal/discovery"
	"github.com/jabolina/go-lanmsg/internal/logging"
	"github.com/jabolina/go-lanmsg/internal/transport"
	"github.com/jabolina/go-lanmsg/internal/types"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		t.Fatalf("reserve udp port: %v", err)
	}
	defer l.Close()
	return l.LocalAddr().(*net.UDPAddr).Port
}

func testLogger() types.Logger {
	log := logging.NewDefault()
	log.ToggleDebug(true)
	return log
}

func pumpUntil(t *testing.T, deadline time.Time, fn func() bool) bool {
	t.Helper()
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// TestDiscoveryRoundTrip exercises two endpoints directly at each
// other: A sends DISCOVERY, B replies with DISCOVERY_RESPONSE, and
// both roster-style callbacks fire.
func TestDiscoveryRoundTrip(t *testing.T) {
	portA := freePort(t)
	portB := freePort(t)

	driverA := transport.NewNetDriver(testLogger())
	driverB := transport.NewNetDriver(testLogger())

	// Endpoint identities deliberately differ from the physical
	// loopback address: ProcessPacket suppresses self-discovery by
	// comparing the datagram's source address (127.0.0.1 here) against
	// the local identity, so a local identity of 127.0.0.1 would drop
	// every packet.
	epA, err := New(driverA, testLogger(), portA, "10.0.0.1", "alice", "127.0.0.1", 8)
	if err != nil {
		t.Fatalf("New endpoint A: %v", err)
	}
	defer epA.Close()

	epB, err := New(driverB, testLogger(), portB, "10.0.0.2", "bob", "127.0.0.1", 8)
	if err != nil {
		t.Fatalf("New endpoint B: %v", err)
	}
	defer epB.Close()

	var bSawAlice, aSawBob bool

	cbB := discovery.PlatformCallbacks{
		SendResponse: func(destIP string, destPort int) {
			epB.SendResponse(destIP, destPort)
		},
		AddOrUpdatePeer: func(ip, username string) {
			if username == "alice" {
				bSawAlice = true
			}
		},
	}
	cbA := discovery.PlatformCallbacks{
		AddOrUpdatePeer: func(ip, username string) {
			if username == "bob" {
				aSawBob = true
			}
		},
	}

	// A announces directly at B's port (no real broadcast needed for
	// a two-node loopback test).
	epA.send(mustPayload(t, epA), "127.0.0.1", portB)

	deadline := time.Now().Add(2 * time.Second)
	ok := pumpUntil(t, deadline, func() bool {
		epA.Poll(cbA)
		epB.Poll(cbB)
		return bSawAlice && aSawBob
	})
	if !ok {
		t.Fatalf("discovery round trip did not complete: bSawAlice=%v aSawBob=%v", bSawAlice, aSawBob)
	}
}

func mustPayload(t *testing.T, e *Endpoint) []byte {
	t.Helper()
	payload, err := e.formatPayload(types.MessageDiscovery, "")
	if err != nil {
		t.Fatalf("formatPayload: %v", err)
	}
	return payload
}

func TestSendQueueFIFOWhenSendSlotBusy(t *testing.T) {
	port := freePort(t)
	driver := transport.NewNetDriver(testLogger())
	ep, err := New(driver, testLogger(), port, "127.0.0.1", "alice", "127.0.0.1", 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ep.Close()

	// Force the send slot busy directly so the next two sends enqueue.
	ep.sendHandle = 0xdeadbeef
	if !ep.send([]byte("a"), "127.0.0.1", port) {
		t.Fatal("expected first enqueue to succeed")
	}
	if !ep.send([]byte("b"), "127.0.0.1", port) {
		t.Fatal("expected second enqueue to succeed")
	}
	if ep.send([]byte("c"), "127.0.0.1", port) {
		t.Fatal("expected third send to fail once the FIFO (capacity 2) is full")
	}
	if ep.SendQueueLen() != 2 {
		t.Fatalf("expected queue length 2, got %d", ep.SendQueueLen())
	}
}
