package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/wink-bridge/internal/audit"
	"github.com/nerrad567/wink-bridge/internal/bridges/wink"
	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/wink-bridge/internal/process"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// WebSocket defaults, in bytes and seconds.
const (
	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30
	defaultWSPongTimeout    = 10
)

const defaultMetricsPath = "/metrics"

// Commands is the write path shared with the MQTT bridge.
type Commands interface {
	SetAttribute(ctx context.Context, source string, deviceID, attributeID uint32, text string) (device.Value, error)
	StartDiscovery(ctx context.Context, source, radio string) (process.Result, error)
	Raw(ctx context.Context, source, command string) (process.Result, error)
}

// BridgeMetricsProvider exposes MQTT bridge statistics.
type BridgeMetricsProvider interface {
	GetMetrics() wink.Metrics
}

// HTTPObserver records request metrics.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Commands Commands

	// Optional.
	Audit          audit.Repository
	Bridge         BridgeMetricsProvider
	Observer       HTTPObserver
	MetricsHandler http.Handler
	MetricsPath    string // default /metrics
	Version        string
}

// Server is the HTTP API server for the wink bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg            config.APIConfig
	wsCfg          config.WebSocketConfig
	logger         *logging.Logger
	registry       *device.Registry
	commands       Commands
	audit          audit.Repository
	bridge         BridgeMetricsProvider
	observer       HTTPObserver
	metricsHandler http.Handler
	metricsPath    string
	version        string
	startTime      time.Time

	server *http.Server
	addr   net.Addr
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The WebSocket hub is created here and registered as a registry listener,
// so snapshot changes reach clients as soon as the server starts.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("commands are required")
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = defaultMetricsPath
	}
	if deps.WS.MaxMessageSize <= 0 {
		deps.WS.MaxMessageSize = defaultWSMaxMessageSize
	}
	if deps.WS.PingInterval <= 0 {
		deps.WS.PingInterval = defaultWSPingInterval
	}
	if deps.WS.PongTimeout <= 0 {
		deps.WS.PongTimeout = defaultWSPongTimeout
	}

	s := &Server{
		cfg:            deps.Config,
		wsCfg:          deps.WS,
		logger:         deps.Logger,
		registry:       deps.Registry,
		commands:       deps.Commands,
		audit:          deps.Audit,
		bridge:         deps.Bridge,
		observer:       deps.Observer,
		metricsHandler: deps.MetricsHandler,
		metricsPath:    deps.MetricsPath,
		version:        deps.Version,
		startTime:      time.Now(),
		hub:            NewHub(deps.WS, deps.Logger),
	}
	s.registry.OnReplace(s.hub.ObserveReplace)
	return s, nil
}

// Start binds the listener and serves in a background goroutine. The server
// can be stopped with Close().
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.addr = ln.Addr()
	s.logger.Info("API server starting", "address", s.addr.String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
