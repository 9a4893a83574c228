// Package discovery implements the shared discovery logic
// collaborator (§4.7, §6): a pure function over a received datagram
// and a small set of platform callbacks, independently testable
// without a socket in sight.
package discovery

import (
	"github.com/jabolina/go-lanmsg/internal/types"
	"github.com/jabolina/go-lanmsg/internal/wire"
)

// PlatformCallbacks is DiscoveryPlatformCallbacks (§6).
type PlatformCallbacks struct {
	SendResponse           func(destIP string, destPort int)
	AddOrUpdatePeer         func(ip, username string)
	NotifyPeerListUpdated   func()
	MarkPeerInactive        func(ip string)
}

// ProcessPacket implements discovery_logic_process_packet (§4.7,
// §6): parses the datagram, and for anything that is not a loopback
// of our own announcement, updates the roster and replies as needed.
// localIP lets the caller suppress self-discovery (§4.7 "If the
// source is not this host").
func ProcessPacket(data []byte, remoteIP string, remotePort int, localIP string, cb PlatformCallbacks) error {
	msg, err := wire.ParseMessage(string(data))
	if err != nil {
		// Protocol/format failure: drop the frame, caller continues
		// (§7 class 4).
		return err
	}

	if remoteIP == localIP {
		return nil
	}

	switch msg.Type {
	case types.MessageDiscovery:
		if cb.AddOrUpdatePeer != nil {
			cb.AddOrUpdatePeer(msg.SenderIP, msg.SenderName)
		}
		if cb.NotifyPeerListUpdated != nil {
			cb.NotifyPeerListUpdated()
		}
		if cb.SendResponse != nil {
			cb.SendResponse(remoteIP, remotePort)
		}

	case types.MessageDiscoveryResponse:
		if cb.AddOrUpdatePeer != nil {
			cb.AddOrUpdatePeer(msg.SenderIP, msg.SenderName)
		}
		if cb.NotifyPeerListUpdated != nil {
			cb.NotifyPeerListUpdated()
		}

	case types.MessageQuit:
		if cb.MarkPeerInactive != nil {
			cb.MarkPeerInactive(msg.SenderIP)
		}
		if cb.NotifyPeerListUpdated != nil {
			cb.NotifyPeerListUpdated()
		}

	default:
		// TEXT never arrives over UDP; ignore rather than error.
	}

	return nil
}
