// Package types holds the data model shared across the engine:
// configuration, the wire message shape, ports, tunables and the
// Logger interface the core depends on without owning its
// implementation.
package types

import "time"

// Tick is the host's monotonic counter used for all timeouts and
// intervals. The reference system ran it at 60Hz; here it is driven
// by the engine's own ticker and every timeout below is measured in
// time.Duration.
type Tick uint64

// Default tunables. These are configuration, not invariants — see
// §9 "Queue capacity".
const (
	DefaultPortUDP = 8081
	DefaultPortTCP = 8082

	DefaultBroadcastIP = "255.255.255.255"

	// BufferSize bounds a serialized wire message.
	BufferSize = 1024

	// DefaultTCPPoolSize is N on a standard build (§4.5).
	DefaultTCPPoolSize = 4
	// MinimalTCPPoolSize is N on a memory-constrained build (§4.5).
	MinimalTCPPoolSize = 2

	// MaxQueuedMessages is the outbound TCP queue capacity (§3).
	MaxQueuedMessages = 48

	// MaxUDPSendQueue is the UDP send FIFO capacity (§3).
	MaxUDPSendQueue = 8

	// MaxRDSEntries bounds a single zero-copy receive probe (§4.4).
	MaxRDSEntries = 4

	// MaxStreamNotifiers is sized for 1 listen + N pool + 1 UDP (§3).
	MaxStreamNotifiers = DefaultTCPPoolSize + 2

	// UDPPoolSize and TCPPoolSize are the async handle pool sizes (§4.2).
	UDPPoolSize = 4
	TCPPoolSize = 8

	// ConnectionTimeout is the send-pool sweep deadline (§4.5), 30s on
	// a 60Hz tick clock.
	ConnectionTimeout = 30 * time.Second

	// DiscoveryInterval is the broadcast scheduler period (§4.7).
	DiscoveryInterval = 5 * time.Second

	// RosterPruneInterval is "every ~5s of tick clock" (§4.8 step 4).
	RosterPruneInterval = 5 * time.Second

	// RosterTimeout marks a peer inactive after this much silence.
	RosterTimeout = 15 * time.Second

	// QuitGrace is the busy-wait ceiling for the best-effort QUIT
	// broadcast at shutdown (§4.7, §5).
	QuitGrace = time.Second
)

// EngineConfig is the engine's constructor configuration, built by
// DefaultEngineConfig and overridden field-by-field by callers —
// mirrors the teacher's *types.PeerConfiguration /
// mcast.BaseConfiguration shape.
type EngineConfig struct {
	// LocalUsername is this node's display name, sent in every
	// outbound message and discovery announcement.
	LocalUsername string

	// Driver selects the transport.Driver implementation: "net" for
	// the raw-socket driver, "relt" for the reliable-multicast driver
	// (SPEC_FULL.md DOMAIN STACK).
	Driver string

	PortUDP int
	PortTCP int

	BroadcastIP string

	TCPPoolSize        int
	MaxQueuedMessages  int
	MaxUDPSendQueue    int
	ConnectionTimeout  time.Duration
	DiscoveryInterval  time.Duration
	RosterPruneEvery   time.Duration
	RosterTimeout      time.Duration
	TickInterval       time.Duration

	// BroadcastMode mirrors the UI's "Broadcast mode" checkbox: when
	// false, this node still listens and responds but never initiates
	// its own periodic discovery broadcast.
	BroadcastMode bool

	Logger Logger
}

// DefaultEngineConfig returns the standard-build configuration.
func DefaultEngineConfig(username string) *EngineConfig {
	return &EngineConfig{
		LocalUsername:     username,
		Driver:             "net",
		PortUDP:            DefaultPortUDP,
		PortTCP:            DefaultPortTCP,
		BroadcastIP:        DefaultBroadcastIP,
		TCPPoolSize:        DefaultTCPPoolSize,
		MaxQueuedMessages:  MaxQueuedMessages,
		MaxUDPSendQueue:    MaxUDPSendQueue,
		ConnectionTimeout:  ConnectionTimeout,
		DiscoveryInterval:  DiscoveryInterval,
		RosterPruneEvery:   RosterPruneInterval,
		RosterTimeout:      RosterTimeout,
		TickInterval:       time.Second / 60,
		BroadcastMode:      true,
	}
}
