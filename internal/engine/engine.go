// Package engine wires the transport, TCP engine, UDP engine,
// roster and logging collaborators together behind the tick loop
// described in §4.8 — the scheduler entry a host's main event pump
// calls at every quiet moment.
package engine

import (
	"errors"
	"time"

	"github.com/jabolina/go-lanmsg/internal/discovery"
	"github.com/jabolina/go-lanmsg/internal/logging"
	"github.com/jabolina/go-lanmsg/internal/roster"
	"github.com/jabolina/go-lanmsg/internal/tcpengine"
	"github.com/jabolina/go-lanmsg/internal/transport"
	"github.com/jabolina/go-lanmsg/internal/types"
	"github.com/jabolina/go-lanmsg/internal/udpengine"
)

// ErrAlreadyRunning / ErrNotRunning guard the lifecycle methods.
var (
	ErrAlreadyRunning = errors.New("engine: already running")
	ErrNotRunning     = errors.New("engine: not running")
)

// UICallbacks is the minimal upward hook set a front end (CLI or
// otherwise) can attach; all are optional.
type UICallbacks struct {
	OnTextMessage     func(username, ip, content string)
	OnPeerListUpdated func()
	OnDebugLog        func(prefix, body string)
}

// Engine is the whole node: one UDP discovery endpoint, one TCP
// listen slot, one TCP send pool, the outbound queue and the roster,
// driven by Tick().
type Engine struct {
	cfg    *types.EngineConfig
	log    types.Logger
	driver transport.Driver

	localIP string

	roster *roster.Roster
	listen *tcpengine.ListenSlot
	pool   *tcpengine.SendPool
	queue  *tcpengine.OutboundQueue
	udp    *udpengine.Endpoint

	ui UICallbacks

	lastPrune time.Time
	running   bool
}

// New builds an Engine and opens its UDP endpoint and TCP streams; no
// listen, receive or send is started until Tick runs (§4.8's
// scheduler is driven externally).
func New(cfg *types.EngineConfig) (*Engine, error) {
	if cfg == nil {
		cfg = types.DefaultEngineConfig("anonymous")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.NewDefault()
	}

	var driver transport.Driver
	switch cfg.Driver {
	case "relt":
		driver = transport.NewReltDriver(log.WithCategory(types.CategoryNetworking))
	default:
		driver = transport.NewNetDriver(log.WithCategory(types.CategoryNetworking))
	}

	localIP, err := driver.Initialize()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		log:     log,
		driver:  driver,
		localIP: localIP,
		roster:  roster.New(),
	}

	e.listen, err = tcpengine.NewListenSlot(driver, log.WithCategory(types.CategoryMessaging), cfg.PortTCP)
	if err != nil {
		driver.Shutdown()
		return nil, err
	}

	e.pool, err = tcpengine.NewSendPool(driver, log.WithCategory(types.CategoryMessaging), cfg.TCPPoolSize, cfg.LocalUsername, localIP, cfg.PortTCP, cfg.ConnectionTimeout)
	if err != nil {
		driver.Shutdown()
		return nil, err
	}
	e.queue = tcpengine.NewOutboundQueue(cfg.MaxQueuedMessages)

	e.udp, err = udpengine.New(driver, log.WithCategory(types.CategoryDiscovery), cfg.PortUDP, localIP, cfg.LocalUsername, cfg.BroadcastIP, cfg.MaxUDPSendQueue)
	if err != nil {
		driver.Shutdown()
		return nil, err
	}

	return e, nil
}

// LocalIP reports the address Initialize resolved.
func (e *Engine) LocalIP() string { return e.localIP }

// Roster exposes the peer table for a UI to read (§6).
func (e *Engine) Roster() *roster.Roster { return e.roster }

// SetUICallbacks attaches the optional upward hooks.
func (e *Engine) SetUICallbacks(ui UICallbacks) { e.ui = ui }

// Start marks the engine running; callers still drive Tick() from
// their own loop (§4.8: "called from the host's main event pump").
func (e *Engine) Start() error {
	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	e.lastPrune = time.Now()
	return nil
}

// SendText implements the outward-facing "queue a text message" API
// (§1, §4.6), backing a UI's "send" action.
func (e *Engine) SendText(peerIP, content string) error {
	return e.queue.QueueMessage(e.pool, peerIP, types.MessageText, content)
}

func (e *Engine) tcpCallbacks() tcpengine.PlatformCallbacks {
	return tcpengine.PlatformCallbacks{
		AddOrUpdatePeer: func(ip, username string) {
			e.roster.AddOrUpdate(ip, username)
		},
		DisplayTextMessage: func(username, ip, content string) {
			if e.ui.OnTextMessage != nil {
				e.ui.OnTextMessage(username, ip, content)
			}
		},
		MarkPeerInactive: func(ip string) {
			e.roster.MarkInactive(ip)
		},
	}
}

func (e *Engine) discoveryCallbacks() discovery.PlatformCallbacks {
	return discovery.PlatformCallbacks{
		SendResponse: func(destIP string, destPort int) {
			e.udp.SendResponse(destIP, destPort)
		},
		AddOrUpdatePeer: func(ip, username string) {
			e.roster.AddOrUpdate(ip, username)
		},
		NotifyPeerListUpdated: func() {
			if e.ui.OnPeerListUpdated != nil {
				e.ui.OnPeerListUpdated()
			}
		},
		MarkPeerInactive: func(ip string) {
			e.roster.MarkInactive(ip)
		},
	}
}

// Tick runs exactly one pass of the scheduler (§4.8):
//  1. PollUDPListener
//  2. ProcessTCPStateMachine (listen ASR, pool entries, queue pump, listen dispatch)
//  3. CheckSendBroadcast
//  4. Roster prune (periodic)
func (e *Engine) Tick() {
	e.udp.Poll(e.discoveryCallbacks())

	e.listen.DrainASR()
	e.pool.Tick()
	e.queue.ProcessMessageQueue(e.pool)
	e.listen.Dispatch(e.tcpCallbacks())

	e.udp.CheckBroadcast(e.cfg.DiscoveryInterval, e.cfg.BroadcastMode)

	if time.Since(e.lastPrune) >= e.cfg.RosterPruneEvery {
		e.roster.PruneTimedOut(e.cfg.RosterTimeout)
		e.lastPrune = time.Now()
	}
}

// Run drives Tick() on cfg.TickInterval until stop is closed. This is
// the concrete main loop a cmd/ front end uses instead of integrating
// with a host event pump.
func (e *Engine) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Shutdown performs the best-effort QUIT broadcast (§4.7, §5) and
// releases all transport resources.
func (e *Engine) Shutdown() {
	if !e.running {
		return
	}
	e.udp.SendQuit(nil)
	e.udp.Close()
	e.driver.Shutdown()
	e.running = false
}
