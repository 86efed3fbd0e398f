package server

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oszuidwest/hearingai/internal/engine"
	"github.com/oszuidwest/hearingai/internal/types"
)

// Session timing and buffer sizes.
const (
	sendBuffer     = 16
	levelsInterval = 100 * time.Millisecond  // 10 fps for level meters
	statusInterval = 3000 * time.Millisecond // Status updates every 3s
	readLimit      = 64 * 1024
)

// WebSocketConn is the interface for WebSocket connection operations.
type WebSocketConn interface {
	io.Closer
	WriteJSON(v any) error
	ReadJSON(v any) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin reports whether the WebSocket connection origin is allowed.
// Only loopback, private and same-host origins may connect.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Same-origin requests omit the Origin header
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected WebSocket connection: invalid origin URL", "origin", origin)
		return false
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}

	requestHost := r.Host
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if host == requestHost {
		return true
	}

	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
		return true
	}

	slog.Warn("rejected WebSocket connection", "origin", origin, "host", host)
	return false
}

// UpgradeConnection upgrades an HTTP connection to WebSocket.
func UpgradeConnection(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

// Session serves one WebSocket client: it pushes analysis events, levels and
// status, and dispatches incoming commands.
type Session struct {
	conn     WebSocketConn
	commands *CommandHandler
	status   func() types.WSStatusResponse
	levels   func() types.WSLevelsResponse
	events   <-chan engine.Event
}

// NewSession creates a session. events carries the analysis events to push.
func NewSession(conn WebSocketConn, commands *CommandHandler, events <-chan engine.Event,
	status func() types.WSStatusResponse, levels func() types.WSLevelsResponse,
) *Session {
	return &Session{
		conn:     conn,
		commands: commands,
		status:   status,
		levels:   levels,
		events:   events,
	}
}

// Run serves the client until the connection closes.
func (s *Session) Run() {
	// Only the writer goroutine writes to the connection.
	send := make(chan any, sendBuffer)
	done := make(chan struct{})
	statusUpdate := make(chan struct{}, 1)

	go s.runWriter(send, done)
	go s.runReader(send, done, statusUpdate)

	s.runEventLoop(send, done, statusUpdate)
}

// runWriter writes messages from the send channel to the connection until the
// reader is done. send is never closed: async command results may still arrive.
func (s *Session) runWriter(send <-chan any, done <-chan struct{}) {
	defer func() {
		if err := s.conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for {
		select {
		case msg := <-send:
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// runReader reads commands from the connection and dispatches them.
func (s *Session) runReader(send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd WSCommand
		if err := s.conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send, func() { requestStatus(statusUpdate) })
	}
}

func requestStatus(statusUpdate chan<- struct{}) {
	select {
	case statusUpdate <- struct{}{}:
	default:
	}
}

// runEventLoop pushes analysis events and periodic updates until done closes.
func (s *Session) runEventLoop(send chan<- any, done <-chan struct{}, statusUpdate chan struct{}) {
	levelsTicker := time.NewTicker(levelsInterval)
	statusTicker := time.NewTicker(statusInterval)
	defer levelsTicker.Stop()
	defer statusTicker.Stop()

	// push returns false once done is closed
	push := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	if !push(s.status()) {
		return
	}

	for {
		var msg any
		select {
		case <-done:
			return
		case ev := <-s.events:
			if ev.Type == engine.EventState {
				requestStatus(statusUpdate)
				continue
			}
			if msg = eventMessage(&ev); msg == nil {
				continue
			}
		case <-statusUpdate:
			msg = s.status()
		case <-levelsTicker.C:
			msg = s.levels()
		case <-statusTicker.C:
			msg = s.status()
		}
		if !push(msg) {
			return
		}
	}
}

// eventMessage converts an analysis event to its push message.
func eventMessage(ev *engine.Event) any {
	switch ev.Type {
	case engine.EventChannelActive:
		return types.WSChannelActive{Type: "channel_active", Channel: ev.Channel, Timestamp: ev.At}
	case engine.EventDetection:
		return types.WSDetection{Type: "detection", Detection: ev.Detection}
	case engine.EventDevice:
		return types.WSDeviceMessage{Type: "device", Message: ev.Message}
	default:
		return nil
	}
}
