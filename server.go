package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/oszuidwest/hearingai/internal/config"
	"github.com/oszuidwest/hearingai/internal/engine"
	"github.com/oszuidwest/hearingai/internal/eventlog"
	"github.com/oszuidwest/hearingai/internal/metrics"
	"github.com/oszuidwest/hearingai/internal/server"
	"github.com/oszuidwest/hearingai/internal/types"
	"github.com/oszuidwest/hearingai/internal/util"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	wsEventBuffer     = 64 // queued analysis events per WebSocket client
)

// Server is the HTTP control surface: the WebSocket hub, the REST endpoints
// and the optional metrics endpoint.
type Server struct {
	config   *config.Config
	engine   *engine.Analyzer
	events   *eventlog.Logger
	commands *server.CommandHandler
	version  *VersionChecker
	exporter *metrics.Exporter

	mu    sync.Mutex
	conns map[server.WebSocketConn]struct{}
}

// NewServer returns a new Server. notifier and exporter may be nil.
func NewServer(cfg *config.Config, eng *engine.Analyzer, events *eventlog.Logger,
	notifier server.GraphInvalidator, version *VersionChecker, exporter *metrics.Exporter,
) *Server {
	return &Server{
		config:   cfg,
		engine:   eng,
		events:   events,
		commands: server.NewCommandHandler(cfg, eng, events, notifier),
		version:  version,
		exporter: exporter,
		conns:    make(map[server.WebSocketConn]struct{}),
	}
}

// handleWebSocket serves one WebSocket client until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	s.track(conn, true)
	defer s.track(conn, false)

	obs := engine.NewChannelObserver("websocket", wsEventBuffer, false)
	unsubscribe := s.engine.Subscribe(obs)
	defer unsubscribe()

	slog.Debug("WebSocket client connected", "remote", r.RemoteAddr)
	server.NewSession(conn, s.commands, obs.Events(), s.buildWSStatus, s.buildWSLevels).Run()
	slog.Debug("WebSocket client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) track(conn server.WebSocketConn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// closeConnections closes every open WebSocket so sessions end on shutdown.
func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}
}

// buildWSStatus returns the current status message.
func (s *Server) buildWSStatus() types.WSStatusResponse {
	return types.WSStatusResponse{
		Type:    "status",
		Engine:  s.engine.Status(),
		Devices: s.listDevices(),
		Config:  s.buildConfigView(),
		Version: s.version.Info(),
	}
}

// buildWSLevels returns the current level meter message.
func (s *Server) buildWSLevels() types.WSLevelsResponse {
	return types.WSLevelsResponse{Type: "levels", Levels: s.engine.Levels()}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/status", s.handleAPIStatus)
	mux.HandleFunc("/api/devices", s.handleAPIDevices)
	mux.HandleFunc("/api/events", s.handleAPIEvents)

	if s.exporter != nil && s.config.Snapshot().Metrics {
		mux.Handle("/metrics", s.exporter.Handler())
	}

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Run serves HTTP on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.config.Snapshot()
	addr := net.JoinHostPort(cfg.Listen, strconv.Itoa(cfg.Port))

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv.RegisterOnShutdown(s.closeConnections)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("starting web server", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return util.WrapError("serve HTTP", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return util.WrapError("shut down HTTP server", err)
	}
	slog.Info("web server stopped")
	return nil
}
