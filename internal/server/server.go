// Package server wires the A2A protocol stack behind an HTTP/WebSocket front.
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/babylon-market/a2a/internal/audit"
	"github.com/babylon-market/a2a/internal/backend"
	"github.com/babylon-market/a2a/internal/chain"
	"github.com/babylon-market/a2a/internal/coalition"
	"github.com/babylon-market/a2a/internal/config"
	"github.com/babylon-market/a2a/internal/health"
	"github.com/babylon-market/a2a/internal/logging"
	"github.com/babylon-market/a2a/internal/markets"
	"github.com/babylon-market/a2a/internal/metrics"
	"github.com/babylon-market/a2a/internal/payments"
	"github.com/babylon-market/a2a/internal/ratelimit"
	"github.com/babylon-market/a2a/internal/realtime"
	"github.com/babylon-market/a2a/internal/router"
	"github.com/babylon-market/a2a/internal/security"
	"github.com/babylon-market/a2a/internal/session"
	"github.com/babylon-market/a2a/internal/validation"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Server owns the protocol stack: registries, payment manager, router,
// WebSocket hub, and the HTTP front.
type Server struct {
	cfg          *config.Config
	sessions     *session.Registry
	limiter      *ratelimit.Limiter
	subs         *markets.SubscriptionRegistry
	analyses     *markets.AnalysisRegistry
	coalitions   *coalition.Registry
	payments     *payments.Manager
	paymentTimer *payments.Timer
	verifier     payments.ChainVerifier
	backend      backend.Service
	auditRec     audit.Recorder
	rt           *router.Router
	hub          *realtime.Hub
	db           *sql.DB // nil if using in-memory audit
	checks       *health.Checks
	engine       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc

	ready atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithBackend injects a business-logic service (the in-memory reference
// backend is used otherwise).
func WithBackend(b backend.Service) Option {
	return func(s *Server) { s.backend = b }
}

// WithChainVerifier injects a chain-query capability (for testing).
func WithChainVerifier(v payments.ChainVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithAudit injects an audit recorder.
func WithAudit(rec audit.Recorder) Option {
	return func(s *Server) { s.auditRec = rec }
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Audit store: Postgres when configured, in-memory otherwise.
	if s.auditRec == nil {
		if cfg.DatabaseURL != "" {
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to open database: %w", err)
			}
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)
			if err := db.Ping(); err != nil {
				return nil, fmt.Errorf("failed to connect to database: %w", err)
			}
			s.db = db
			s.auditRec = audit.NewPostgresStore(db)
			s.logger.Info("audit store: PostgreSQL", "url", maskDSN(cfg.DatabaseURL))
		} else {
			s.auditRec = audit.NewMemoryStore()
			s.logger.Info("audit store: in-memory")
		}
	}

	// Chain verifier: dialled only when x402 is on and no test double
	// was injected. A nil verifier makes every proof submission fail
	// with a configuration error rather than crashing.
	if s.verifier == nil && cfg.X402Enabled && cfg.RPCURL != "" {
		v, err := chain.New(chain.Config{
			RPCURL:   cfg.RPCURL,
			ChainID:  cfg.ChainID,
			Contract: cfg.USDCContract,
		})
		if err != nil {
			return nil, fmt.Errorf("chain verifier: %w", err)
		}
		s.verifier = v
		s.logger.Info("chain verifier connected", "chainId", cfg.ChainID, "contract", cfg.USDCContract)
	}

	mgr, err := payments.NewManager(payments.Config{
		MinAmount: cfg.MinPayment,
		Timeout:   cfg.PaymentTimeout,
	}, s.verifier)
	if err != nil {
		return nil, err
	}
	s.payments = mgr
	s.paymentTimer = payments.NewTimer(mgr, time.Minute, s.logger)

	s.sessions = session.NewRegistry(cfg.AuthTimeout, cfg.MaxConnections)
	s.limiter = ratelimit.New(ratelimit.Config{
		Limit:           cfg.RateLimit,
		Window:          cfg.RateWindow,
		CleanupInterval: 5 * time.Minute,
	})
	s.subs = markets.NewSubscriptionRegistry()
	s.analyses = markets.NewAnalysisRegistry()
	s.coalitions = coalition.NewRegistry()

	if s.backend == nil {
		s.backend = backend.NewMemory()
	}

	rt, err := router.New(router.Config{
		X402Enabled:       cfg.X402Enabled,
		CoalitionsEnabled: cfg.CoalitionsEnabled,
		SessionTTL:        cfg.AuthTimeout,
	}, router.Deps{
		Sessions:   s.sessions,
		Limiter:    s.limiter,
		Subs:       s.subs,
		Analyses:   s.analyses,
		Coalitions: s.coalitions,
		Payments:   s.payments,
		Backend:    s.backend,
		Audit:      s.auditRec,
		Logger:     s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.rt = rt

	s.hub = realtime.NewHub(rt, s.sessions, s.logger)
	rt.SetNotifier(s.hub)

	s.checks = health.New()
	if s.db != nil {
		db := s.db
		s.checks.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}
	s.checks.Register("websocket_hub", func(ctx context.Context) health.Status {
		return health.Status{
			Name:    "websocket_hub",
			Healthy: true,
			Detail:  fmt.Sprintf("clients=%v", s.hub.Stats()["connectedClients"]),
		}
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Dispatcher exposes the JSON-RPC router for in-process callers.
func (s *Server) Dispatcher() *router.Router {
	return s.rt
}

func (s *Server) setupMiddleware() {
	s.engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.engine.Use(security.HeadersMiddleware())
	s.engine.Use(security.CORSMiddleware([]string{"*"}))
	s.engine.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.engine.Use(s.requestIDMiddleware())
	s.engine.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func (s *Server) setupRoutes() {
	s.engine.POST("/api/a2a", s.handleA2A)
	s.engine.GET("/api/a2a/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	s.engine.GET("/healthz", s.livenessHandler)
	s.engine.GET("/readyz", s.readinessHandler)
	s.engine.GET("/metrics", metrics.Handler())
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	report := s.checks.Run(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":      readyStatus(report.Healthy),
		"connections": s.sessions.Count(),
		"websocket":   s.hub.Stats(),
		"checks":      report.Subsystems,
	})
}

func readyStatus(healthy bool) string {
	if healthy {
		return "ready"
	}
	return "degraded"
}

// Run starts the HTTP server and background sweepers, blocking until a
// shutdown signal or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"methods", router.MethodCount,
			"x402", s.cfg.X402Enabled,
			"coalitions", s.cfg.CoalitionsEnabled,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.hub.Run(runCtx)
	go s.paymentTimer.Start(runCtx)
	go s.idleSweeper(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// idleSweeper disconnects agents idle past the auth timeout.
func (s *Server) idleSweeper(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := s.sessions.SweepIdle(s.cfg.AuthTimeout); len(dropped) > 0 {
				s.logger.Info("idle sessions disconnected", "count", len(dropped))
				for _, agentID := range dropped {
					if err := s.auditRec.Record(ctx, &audit.Event{
						AgentID:   agentID,
						EventType: audit.EventSessionClosed,
					}); err != nil {
						s.logger.Warn("audit record failed", "error", err)
					}
				}
			}
		}
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel background goroutines (hub, payment timer, idle sweeper)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.paymentTimer.Stop()
	s.limiter.Stop()

	if closer, ok := s.verifier.(interface{ Close() }); ok && closer != nil {
		closer.Close()
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// generateRequestID creates a random request ID.
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// maskDSN hides credentials in a database URL for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.Redacted()
}
