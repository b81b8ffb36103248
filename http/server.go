package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/services"
	websocketbridge "github.com/kychandar/hammer/services/websocketBridge"
	slogctx "github.com/veqryn/slog-context"
)

const (
	pongWait       = 60 * time.Second
	maxMessageSize = 1 << 20
)

type server struct {
	wsWriteChanManager services.WsWriteChanManager
	wsBridgeFactory    websocketbridge.Factory
	logger             *slog.Logger
	metricsRegistry    services.MetricsRegistry
	httpServer         *http.Server
	healthServer       *http.Server
	config             *config.Config
	healthChecker      *HealthChecker
	shutdownWg         sync.WaitGroup
	// workspaces counts live websocket handlers; Shutdown does not track
	// hijacked connections.
	workspaces sync.WaitGroup
}

func New(
	wsBridgeFactory websocketbridge.Factory,
	wsWriteChanManager services.WsWriteChanManager,
	metricsRegistry services.MetricsRegistry,
	logger *slog.Logger,
	cfg *config.Config) *server {

	s := &server{
		wsBridgeFactory:    wsBridgeFactory,
		wsWriteChanManager: wsWriteChanManager,
		logger:             logger,
		metricsRegistry:    metricsRegistry,
		config:             cfg,
		healthChecker:      NewHealthChecker(logger, "1.0.0"),
	}
	s.healthChecker.ReportConnections(wsWriteChanManager.Len)
	return s
}

// Handler is the main mux: the websocket endpoint and metrics.
func (server *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.ServeHTTP)
	mux.Handle("/metrics", server.metricsRegistry.GetHandler())
	return mux
}

// Start serves until ctx ends. The health server, when enabled, runs on its
// own port.
func (server *server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", server.config.Server.Host, server.config.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return server.Serve(ctx, ln)
}

// Serve is Start on an existing listener. Websocket workspaces end with ctx.
func (server *server) Serve(ctx context.Context, ln net.Listener) error {
	baseCtx := slogctx.NewCtx(ctx, server.logger)
	server.httpServer = &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	if server.config.Server.TLS.Enabled {
		tlsConfig, err := server.loadTLSConfig()
		if err != nil {
			return fmt.Errorf("failed to load TLS config: %w", err)
		}
		server.httpServer.TLSConfig = tlsConfig
		server.logger.Info("TLS enabled for HTTP server")
	}

	if server.config.Health.Enabled {
		server.startHealth()
	}

	server.healthChecker.SetReady(true)

	server.shutdownWg.Add(1)
	go func() {
		defer server.shutdownWg.Done()
		<-ctx.Done()
		server.logger.Info("Shutting down HTTP server...")
		if err := server.shutdownServers(context.Background()); err != nil {
			server.logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	server.logger.Info("Starting HTTP server", "address", ln.Addr().String(), "tls", server.config.Server.TLS.Enabled)

	var err error
	if server.config.Server.TLS.Enabled {
		err = server.httpServer.ServeTLS(ln, server.config.Server.TLS.CertFile, server.config.Server.TLS.KeyFile)
	} else {
		err = server.httpServer.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	server.shutdownWg.Wait()
	return nil
}

func (server *server) startHealth() {
	h := server.config.Health
	server.healthServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", server.config.Server.Host, h.Port),
		Handler:           server.healthChecker.Mux(h.ReadinessPath, h.LivenessPath, server.metricsRegistry.GetHandler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		server.logger.Info("Starting health server", "address", server.healthServer.Addr)
		if err := server.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.logger.Error("health server error", "error", err)
		}
	}()
}

func (server *server) loadTLSConfig() (*tls.Config, error) {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.CurveP256,
			tls.X25519,
		},
	}, nil
}

// shutdownServers stops accepting connections and waits for open
// workspaces to close their sessions.
func (server *server) shutdownServers(ctx context.Context) error {
	server.healthChecker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(server.config.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	var errs []error
	if server.httpServer != nil {
		if err := server.httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if server.healthServer != nil {
		if err := server.healthServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		server.workspaces.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		server.logger.Warn("Shutdown timeout exceeded, forcing shutdown")
		errs = append(errs, shutdownCtx.Err())
	}
	return errors.Join(errs...)
}

func (server *server) Shutdown(ctx context.Context) error {
	server.logger.Info("Initiating graceful shutdown...")
	return server.shutdownServers(ctx)
}

func (server *server) GetHealthChecker() *HealthChecker {
	return server.healthChecker
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ServeHTTP runs one inspector workspace for the lifetime of the websocket.
func (server *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		server.logger.Warn("upgrade error", "error", err)
		return
	}

	server.workspaces.Add(1)
	defer server.workspaces.Done()
	server.metricsRegistry.IncWsConnectionCount()
	wsConnID := uuid.New().String()
	logger := server.logger.With("ws-conn-id", wsConnID)

	server.wsWriteChanManager.SetConnectionForClientID(wsConnID, conn)
	ctx, cancel := context.WithCancel(r.Context())
	ctx = slogctx.NewCtx(ctx, logger)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	bridge := server.wsBridgeFactory(ctx, wsConnID, conn)
	done := make(chan struct{})
	go func() {
		defer close(done)
		bridge.ProcessMessagesFromServer(ctx)
		// Unblocks the reader when the workspace ends first.
		conn.Close()
	}()

	logger.InfoContext(ctx, "websocket workspace opened")
	bridge.ProcessMessagesFromClient(ctx)

	cancel()
	<-done
	server.wsWriteChanManager.DeleteClientID(wsConnID)
	conn.Close()
	server.metricsRegistry.DecWsConnectionCount()
	logger.InfoContext(ctx, "websocket workspace closed")
}
