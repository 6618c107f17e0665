package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// LoginMetrics records the outcome and duration of each login attempt.
type LoginMetrics interface {
	WriteLogin(success bool, duration time.Duration, at time.Time)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	RateLimit     config.RateLimitConfig
	Logger        *logging.Logger
	Authenticator *auth.Authenticator
	Guard         *auth.Guard
	AuditRepo     audit.Repository // optional: GET /audit answers 503 without it
	Recorder      *audit.Recorder  // optional: outcomes are not audited without it
	Metrics       LoginMetrics     // optional
	Version       string
}

// Server is the HTTP API server for Gatehouse.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket hub
// that streams audit events. The server is created with New() and started
// with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	authn     *auth.Authenticator
	guard     *auth.Guard
	auditRepo audit.Repository
	recorder  *audit.Recorder
	metrics   LoginMetrics
	limiter   *loginLimiter
	tickets   *ticketStore
	hub       *Hub
	version   string
	now       func() time.Time
	server    *http.Server
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The hub is created here and, when a Recorder is supplied, registered
// as one of its sinks so audit events reach WebSocket subscribers.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if deps.Guard == nil {
		return nil, fmt.Errorf("guard is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger.With("component", "api"),
		authn:     deps.Authenticator,
		guard:     deps.Guard,
		auditRepo: deps.AuditRepo,
		recorder:  deps.Recorder,
		metrics:   deps.Metrics,
		tickets:   newTicketStore(),
		version:   deps.Version,
		now:       time.Now,
	}
	s.hub = NewHub(s.wsCfg, s.logger)

	if deps.RateLimit.Enabled {
		s.limiter = newLoginLimiter(deps.RateLimit.RequestsPerMinute, deps.RateLimit.Burst)
	}
	if s.recorder != nil {
		s.recorder.AddSink("websocket", s.hub)
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the hub and the ticket and limiter cleanup loops, then
// launches the listener in a background goroutine. Stop it with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)
	if s.limiter != nil {
		go s.limiter.cleanupLoop(srvCtx)
	}

	read, write, idle := s.cfg.Timeouts.Durations()
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
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
