// Package testhelpers builds small engine fixtures for package tests,
// mirroring the teacher's test/testing.go "spin up a cluster, tear it
// down" shape but for a pair of lanmsg nodes on loopback.
package testhelpers

import (
	"net"
	"sync"
	"testing"

	"github.com/jabolina/go-lanmsg/internal/engine"
	"github.com/jabolina/go-lanmsg/internal/logging"
	"github.com/jabolina/go-lanmsg/internal/types"
)

// FreePort asks the kernel for an unused TCP port, so tests never
// collide on the defaults (§4.8 test note).
func FreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("testhelpers: could not reserve a port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// NewTestConfig builds an isolated EngineConfig on loopback with debug
// logging and the default tick interval.
func NewTestConfig(t *testing.T, username string) *types.EngineConfig {
	t.Helper()
	cfg := types.DefaultEngineConfig(username)
	cfg.PortUDP = FreePort(t)
	cfg.PortTCP = FreePort(t)
	cfg.BroadcastIP = "127.0.0.1"
	log := logging.NewDefault()
	log.ToggleDebug(true)
	cfg.Logger = log
	return cfg
}

// NewTestEngine constructs and starts one Engine, registering cleanup
// to shut it down when the test ends.
func NewTestEngine(t *testing.T, username string) *engine.Engine {
	t.Helper()
	cfg := NewTestConfig(t, username)
	e, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("testhelpers: engine.New failed: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("testhelpers: engine.Start failed: %v", err)
	}
	t.Cleanup(e.Shutdown)
	return e
}

// Pair holds two independently configured engines, each on its own
// free UDP/TCP ports; neither is told the other's ports.
type Pair struct {
	A, B *engine.Engine
}

// NewPair builds a two-node fixture.
func NewPair(t *testing.T) *Pair {
	t.Helper()
	return &Pair{
		A: NewTestEngine(t, "alice"),
		B: NewTestEngine(t, "bob"),
	}
}

// RunFor drives both engines' Tick for n iterations, concurrently, a
// crude but deterministic stand-in for a timer-driven main loop inside
// a test.
func (p *Pair) RunFor(n int) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			p.A.Tick()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			p.B.Tick()
		}
	}()
	wg.Wait()
}
