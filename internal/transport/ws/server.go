// internal/transport/ws/server.go
//
// Websocket endpoint for observers. Each connection says HELLO, gets a
// WELCOME, then receives the event stream for its chosen topic; COMMAND
// messages steer the playback governor. A dead or slow observer only
// loses its own connection.

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kgang/agenttown/internal/eventbridge"
	"github.com/kgang/agenttown/internal/governor"
	"github.com/kgang/agenttown/internal/narrative"
	"github.com/kgang/agenttown/internal/protocol"
	"github.com/kgang/agenttown/internal/town"
)

const (
	writeTimeout     = 5 * time.Second
	readIdleTimeout  = 60 * time.Second
	handshakeTimeout = 5 * time.Second
)

// Controller is the slice of the governor the transport drives.
type Controller interface {
	Pause()
	Resume()
	Stop()
	SetSpeed(speed float64)
	SpeedUp()
	SlowDown()
	Status() governor.Snapshot
}

// Logger records connection diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// TownInfo fills the WELCOME message.
type TownInfo struct {
	RunID   string
	Phases  int
	Regions []string
}

// Server serves the observer protocol over websockets.
type Server struct {
	router    *eventbridge.Router
	governor  Controller
	renderer  *narrative.Renderer
	validator *protocol.Validator
	info      TownInfo
	logger    Logger
	upgrader  websocket.Upgrader
}

// NewServer wires the observer endpoint. The renderer and logger may be
// nil.
func NewServer(router *eventbridge.Router, gov Controller, renderer *narrative.Renderer, info TownInfo, logger Logger) (*Server, error) {
	validator, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Server{
		router:    router,
		governor:  gov,
		renderer:  renderer,
		validator: validator,
		info:      info,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}, nil
}

// obsConn serializes writes; the event stream goroutine and the reader's
// replies share one socket.
type obsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *obsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Handler returns the http handler for the websocket endpoint.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		raw, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer raw.Close()
		s.serve(&obsConn{conn: raw})
	}
}

func (s *Server) serve(conn *obsConn) {
	hello, ok := s.handshake(conn)
	if !ok {
		return
	}
	topic := eventbridge.Topic(hello.Topic)
	if topic == "" {
		topic = eventbridge.TopicAll
	}
	sub := s.router.Subscribe(topic)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Writer goroutine: event stream only; reader replies stay on the
	// reader side.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, open := <-sub.Events:
				if !open {
					return
				}
				if err := conn.writeJSON(s.eventMsg(evt)); err != nil {
					s.logger.Printf("ws: %s: write event: %v", hello.ObserverName, err)
					cancel()
					return
				}
			}
		}
	}()

	for {
		_ = conn.conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		_, msg, err := conn.conn.ReadMessage()
		if err != nil {
			cancel()
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeCommand {
			continue
		}
		cmd, err := s.validator.ValidateCommand(msg)
		if err != nil {
			s.logger.Printf("ws: %s: rejected command: %v", hello.ObserverName, err)
			_ = conn.writeJSON(protocol.NewError("bad_command", err.Error()))
			continue
		}
		s.applyCommand(cmd)
		_ = conn.writeJSON(s.statusMsg())
	}
}

func (s *Server) handshake(conn *obsConn) (protocol.HelloMsg, bool) {
	_ = conn.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.conn.ReadMessage()
	if err != nil {
		return protocol.HelloMsg{}, false
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.closePolicy(conn, "expected HELLO")
		return protocol.HelloMsg{}, false
	}
	hello, err := s.validator.ValidateHello(msg)
	if err != nil {
		s.closePolicy(conn, "invalid HELLO")
		return protocol.HelloMsg{}, false
	}
	if hello.ProtocolVersion != protocol.Version {
		s.closePolicy(conn, "bad protocol_version")
		return protocol.HelloMsg{}, false
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		RunID:           s.info.RunID,
		Phases:          s.info.Phases,
		Regions:         s.info.Regions,
		Speed:           s.governor.Status().Speed,
	}
	if err := conn.writeJSON(welcome); err != nil {
		return protocol.HelloMsg{}, false
	}
	return hello, true
}

func (s *Server) applyCommand(cmd protocol.CommandMsg) {
	switch cmd.Action {
	case protocol.ActionPause:
		s.governor.Pause()
	case protocol.ActionResume:
		s.governor.Resume()
	case protocol.ActionStop:
		s.governor.Stop()
	case protocol.ActionSetSpeed:
		s.governor.SetSpeed(cmd.Speed)
	case protocol.ActionSpeedUp:
		s.governor.SpeedUp()
	case protocol.ActionSlowDown:
		s.governor.SlowDown()
	}
}

func (s *Server) eventMsg(evt town.Event) protocol.EventMsg {
	msg := protocol.EventMsg{Type: protocol.TypeEvent, Event: evt}
	if s.renderer != nil {
		msg.Line = s.renderer.Render(evt)
	}
	return msg
}

func (s *Server) statusMsg() protocol.StatusMsg {
	snap := s.governor.Status()
	return protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		Status:          string(snap.Status),
		Speed:           snap.Speed,
		PhaseIndex:      snap.PhaseIndex,
		EventsThisPhase: snap.EventsThisPhase,
		TotalEvents:     snap.TotalEvents,
		LastEmit:        snap.LastEmit,
	}
}

func (s *Server) closePolicy(conn *obsConn, reason string) {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.conn.WriteControl(websocket.CloseMessage, msg, deadline)
}
