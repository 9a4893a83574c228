// Command lanmsg-node runs one LAN messenger node: it joins discovery,
// accepts incoming messages, and lets an operator send text to a peer
// from the terminal.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/go-lanmsg/internal/engine"
	"github.com/jabolina/go-lanmsg/internal/logging"
	"github.com/jabolina/go-lanmsg/internal/types"
)

var (
	app = kingpin.New("lanmsg-node", "A LAN text messenger node: discovery plus direct messaging.")

	username = app.Flag("username", "Display name announced to peers.").Short('u').Required().String()
	portUDP  = app.Flag("udp-port", "UDP discovery port.").Default(fmt.Sprintf("%d", types.DefaultPortUDP)).Int()
	portTCP  = app.Flag("tcp-port", "TCP messaging port.").Default(fmt.Sprintf("%d", types.DefaultPortTCP)).Int()
	broadcastIP = app.Flag("broadcast", "Subnet broadcast address.").Default(types.DefaultBroadcastIP).String()
	driver      = app.Flag("driver", "Transport driver: net or relt.").Default("net").Enum("net", "relt")
	silent      = app.Flag("silent", "Respond to discovery but never initiate broadcasts.").Bool()
	debug       = app.Flag("debug", "Enable debug logging.").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logging.NewDefault()
	log.ToggleDebug(*debug)

	cfg := types.DefaultEngineConfig(*username)
	cfg.PortUDP = *portUDP
	cfg.PortTCP = *portTCP
	cfg.BroadcastIP = *broadcastIP
	cfg.Driver = *driver
	cfg.BroadcastMode = !*silent
	cfg.Logger = log

	e, err := engine.New(cfg)
	if err != nil {
		color.Red("lanmsg-node: failed to start: %v", err)
		os.Exit(1)
	}

	e.SetUICallbacks(engine.UICallbacks{
		OnTextMessage: func(sender, ip, content string) {
			fmt.Printf("%s %s: %s\n", color.CyanString("[%s]", ip), color.GreenString(sender), content)
		},
		OnPeerListUpdated: func() {
			printRoster(e)
		},
	})

	if err := e.Start(); err != nil {
		color.Red("lanmsg-node: failed to start: %v", err)
		os.Exit(1)
	}
	defer e.Shutdown()

	color.Yellow("lanmsg-node: %s listening on udp/%d tcp/%d (%s driver), local ip %s",
		*username, *portUDP, *portTCP, *driver, e.LocalIP())

	stop := make(chan struct{})
	go e.Run(stop)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
		color.Yellow("lanmsg-node: shutting down")
		// os.Exit skips main's deferred e.Shutdown(), so the
		// best-effort QUIT broadcast must run explicitly here.
		e.Shutdown()
		os.Exit(0)
	}()

	runREPL(e)
}

// runREPL implements the small "Send / Peers / Quit" command
// surface a UI front end would otherwise expose as buttons.
func runREPL(e *engine.Engine) {
	fmt.Println("commands: send <ip> <message> | peers | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		switch fields[0] {
		case "send":
			if len(fields) < 3 {
				color.Red("usage: send <ip> <message>")
				continue
			}
			if err := e.SendText(fields[1], fields[2]); err != nil {
				color.Red("send failed: %v", err)
			}
		case "peers":
			printRoster(e)
		case "quit", "exit":
			return
		default:
			color.Red("unknown command %q", fields[0])
		}
	}
}

func printRoster(e *engine.Engine) {
	roster := e.Roster()
	fmt.Printf("--- %d known peer(s) ---\n", roster.Len())
	for i := 0; ; i++ {
		peer, ok := roster.GetByIndex(i)
		if !ok {
			break
		}
		state := color.RedString("inactive")
		if peer.Active {
			state = color.GreenString("active")
		}
		fmt.Printf("  %-16s %-12s %s (seen %s ago)\n", peer.IP, peer.Username, state,
			time.Since(peer.LastSeen).Round(time.Second))
	}
}
