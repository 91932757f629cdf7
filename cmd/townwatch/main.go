// cmd/townwatch/main.go
//
// Interactive viewer. By default it plays the local .town config inside
// the terminal; with -connect it attaches to a running town's websocket
// endpoint and steers that run instead.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/kgang/agenttown/internal/config"
	"github.com/kgang/agenttown/internal/governor"
	"github.com/kgang/agenttown/internal/grammar"
	"github.com/kgang/agenttown/internal/narrative"
	"github.com/kgang/agenttown/internal/protocol"
	"github.com/kgang/agenttown/internal/sim"
	"github.com/kgang/agenttown/internal/town"
	"github.com/kgang/agenttown/internal/tui"
)

func main() {
	var (
		dir     = flag.String("dir", "", "project directory hosting .town (default: working directory)")
		connect = flag.String("connect", "", "attach to a running town (ws://host:port/watch)")
		topic   = flag.String("topic", "", "narrow a remote stream: region:<id> or citizen:<id>")
	)
	flag.Parse()

	var err error
	if *connect != "" {
		err = watchRemote(*connect, *topic)
	} else {
		err = watchLocal(*dir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "townwatch: %v\n", err)
		os.Exit(1)
	}
}

func watchLocal(dir string) error {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		dir = cwd
	}
	if err := config.InitTownDir(dir); err != nil {
		return err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	m, err := cfg.BuildMesh()
	if err != nil {
		return err
	}
	roster, err := cfg.BuildRoster(m)
	if err != nil {
		return err
	}
	loop, err := sim.New(grammar.Default(), m, roster, sim.NewArchetypeStrategy(cfg.Seed, sim.DefaultRules()), cfg.Phases,
		sim.WithSeed(cfg.Seed),
	)
	if err != nil {
		return err
	}
	gov, err := governor.New(loop, cfg.Timing.GovernorConfig())
	if err != nil {
		return err
	}
	renderer, err := narrative.NewRenderer(func(id town.CitizenID) string {
		if c, ok := roster.Get(id); ok {
			return c.Name
		}
		return ""
	})
	if err != nil {
		return err
	}
	events, err := gov.Run(cfg.Phases)
	if err != nil {
		return err
	}
	return runProgram(tui.NewWatch(events, gov, renderer))
}

func watchRemote(url, topic string) error {
	client, err := dialTown(url, topic)
	if err != nil {
		return err
	}
	defer client.close()
	return runProgram(tui.NewWatch(client.events, client, nil))
}

func runProgram(model tea.Model) error {
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}

// remoteClient adapts a town websocket connection to the viewer's
// event-channel-plus-controller shape. Narrated lines arrive from the
// server, so the viewer runs without a local roster.
type remoteClient struct {
	conn   *websocket.Conn
	events chan town.Event

	mu   sync.Mutex
	snap governor.Snapshot
}

func dialTown(url, topic string) (*remoteClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &remoteClient{
		conn:   conn,
		events: make(chan town.Event, 64),
		snap:   governor.Snapshot{Status: governor.StatusPlaying, Speed: 1.0},
	}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ObserverName:    "townwatch",
		Topic:           topic,
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("hello: %w", err)
	}
	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("welcome: %w", err)
	}
	c.mu.Lock()
	c.snap.Speed = welcome.Speed
	c.mu.Unlock()
	go c.readLoop()
	return c, nil
}

func (c *remoteClient) readLoop() {
	defer close(c.events)
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeEvent:
			var msg protocol.EventMsg
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			c.events <- msg.Event
		case protocol.TypeStatus:
			var msg protocol.StatusMsg
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			c.mu.Lock()
			c.snap = governor.Snapshot{
				Status:          governor.Status(msg.Status),
				Speed:           msg.Speed,
				PhaseIndex:      msg.PhaseIndex,
				EventsThisPhase: msg.EventsThisPhase,
				TotalEvents:     msg.TotalEvents,
				LastEmit:        msg.LastEmit,
			}
			c.mu.Unlock()
		}
	}
}

func (c *remoteClient) command(action string, speed float64) {
	cmd := protocol.CommandMsg{Type: protocol.TypeCommand, Action: action, Speed: speed}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteJSON(cmd)
	// Optimistic local state; the next STATUS reply corrects it.
	switch action {
	case protocol.ActionPause:
		c.snap.Status = governor.StatusPaused
	case protocol.ActionResume:
		c.snap.Status = governor.StatusPlaying
	case protocol.ActionStop:
		c.snap.Status = governor.StatusStopped
	}
}

func (c *remoteClient) Pause()    { c.command(protocol.ActionPause, 0) }
func (c *remoteClient) Resume()   { c.command(protocol.ActionResume, 0) }
func (c *remoteClient) Stop()     { c.command(protocol.ActionStop, 0) }
func (c *remoteClient) SpeedUp()  { c.command(protocol.ActionSpeedUp, 0) }
func (c *remoteClient) SlowDown() { c.command(protocol.ActionSlowDown, 0) }

func (c *remoteClient) Status() governor.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *remoteClient) close() {
	_ = c.conn.Close()
}
