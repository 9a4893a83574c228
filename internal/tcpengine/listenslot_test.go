package tcpengine

import (
	"net"
	"testing"
	"time"

	"github.com/jabolina/go-lanmsg/internal/transport"
	"github.com/jabolina/go-lanmsg/internal/types"
	"github.com/jabolina/go-lanmsg/internal/wire"
)

func TestListenSlotAcceptsAndDispatchesText(t *testing.T) {
	port := freePort(t)
	driver := transport.NewNetDriver(testLogger())
	slot, err := NewListenSlot(driver, testLogger(), port)
	if err != nil {
		t.Fatalf("NewListenSlot: %v", err)
	}

	// Give the first Tick a chance to start accepting.
	slot.Tick(PlatformCallbacks{})
	time.Sleep(50 * time.Millisecond)

	record, err := wire.FormatMessage(types.WireMessage{
		Type:       types.MessageText,
		SenderName: "bob",
		SenderIP:   "127.0.0.1",
		Content:    "hi there",
	})
	if err != nil {
		t.Fatalf("FormatMessage: %v", err)
	}

	conn, err := net.Dial("tcp", "127.0.0.1:"+itoa(port))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte(record)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	var gotUsername, gotIP, gotContent string
	delivered := make(chan struct{}, 1)
	cb := PlatformCallbacks{
		AddOrUpdatePeer: func(ip, username string) {
			gotUsername, gotIP = username, ip
		},
		DisplayTextMessage: func(username, ip, content string) {
			gotContent = content
			delivered <- struct{}{}
		},
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		slot.Tick(cb)
		select {
		case <-delivered:
			if gotUsername != "bob" || gotIP != "127.0.0.1" || gotContent != "hi there" {
				t.Fatalf("unexpected dispatch: user=%s ip=%s content=%q", gotUsername, gotIP, gotContent)
			}
			if !slot.Outstanding() {
				t.Fatal("expected the slot to have relistened after processing")
			}
			return
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatal("timed out waiting for the listen slot to dispatch the message")
}
