package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/logging"
	"github.com/hupe1980/agentstream/observability"
	"github.com/hupe1980/agentstream/runner"
)

const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// ServiceName names the otelgin server spans.
	ServiceName string

	// Metrics records stream outcomes. Defaults to instruments on a private
	// registry.
	Metrics *observability.Metrics

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration

	Logger logging.Logger
}

// Server is the HTTP transport for a runner.
type Server struct {
	runner   *runner.Runner
	opts     Options
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the router. The runner is shared by both transports.
func New(r *runner.Runner, optFns ...func(o *Options)) *Server {
	opts := Options{
		ServiceName:     "agentstream",
		Gatherer:        prometheus.DefaultGatherer,
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{
		runner: r,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(s.requestLogger())

	router.GET("/chat_stream/:message", s.handleChatStream)
	router.GET("/chat_ws", s.handleChatWebSocket)
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	s.router = router
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Open streams are cancelled through their request contexts.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.opts.Logger.Info("server.shutdown", "active_runs", s.runner.Active())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_runs": s.runner.Active()})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.opts.Logger.Debug("server.request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// reject answers a request that failed before streaming began.
func (s *Server) reject(c *gin.Context, transport string, err error) {
	code, status := rejectStatus(err)
	s.opts.Metrics.RequestRejected(transport, status)
	s.opts.Logger.Warn("server.request.rejected", "transport", transport, "status", status, "error", err.Error())
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func rejectStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrSessionBusy):
		return http.StatusConflict, "busy"
	default:
		return http.StatusInternalServerError, "error"
	}
}

// outcome labels a finished stream.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

// drain discards remaining records after the client went away.
func drain(st *runner.Stream) {
	for range st.Records() {
	}
}
