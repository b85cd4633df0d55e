// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crxhost/crxhost/internal/core/serverbase"
	"github.com/crxhost/crxhost/pkg/protocol"
)

const (
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeForbidden   = "forbidden"
	outcomeInactive    = "inactive"
	outcomeError       = "error"

	shutdownTimeout = 5 * time.Second
)

type (
	// Bridge serves protocol resources over HTTP.
	Bridge struct {
		base     *serverbase.Base
		registry *protocol.Registry
		scheme   string
		logger   *log.Logger
		metrics  *Metrics
		engine   *gin.Engine

		mu       sync.Mutex
		server   *http.Server
		listener net.Listener
	}

	// Option configures a Bridge.
	Option func(*Bridge)
)

// WithScheme sets the protocol scheme requests are dispatched to.
func WithScheme(scheme string) Option {
	return func(b *Bridge) {
		b.scheme = scheme
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// New creates a stopped bridge dispatching into registry.
func New(registry *protocol.Registry, opts ...Option) *Bridge {
	b := &Bridge{
		registry: registry,
		scheme:   protocol.DefaultScheme,
		base:     serverbase.NewBase(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.New(io.Discard)
	}
	if b.metrics == nil {
		b.metrics = NewMetrics(nil)
	}
	b.engine = b.routes()
	return b
}

// Handler returns the HTTP handler, for embedding or tests.
func (b *Bridge) Handler() http.Handler {
	return b.engine
}

func (b *Bridge) routes() *gin.Engine {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(b.observe())

	router.GET("/healthz", b.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(b.metrics.Registry, promhttp.HandlerOpts{})))
	router.GET("/app/:namespace/*path", b.resource)
	return router
}

// observe records request durations per route.
func (b *Bridge) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		b.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (b *Bridge) health(c *gin.Context) {
	if !b.registry.Registered(b.scheme) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "inactive", "scheme": b.scheme})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "scheme": b.scheme})
}

func (b *Bridge) resource(c *gin.Context) {
	address := b.address(c.Param("namespace"), c.Param("path"), c.Request.URL.RawQuery)

	resp, err := b.registry.Dispatch(c.Request.Context(), address)
	if err != nil {
		status, outcome := statusFor(err)
		b.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
		if status == http.StatusInternalServerError {
			b.logger.Error("resource request failed", "address", address, "err", err)
		}
		c.String(status, http.StatusText(status))
		return
	}

	b.metrics.RequestsTotal.WithLabelValues(outcomeOK).Inc()
	b.metrics.ResponseSize.Observe(float64(len(resp.Data)))
	if resp.Generated {
		c.Header("Cache-Control", "no-cache")
	}
	c.Data(http.StatusOK, resp.MIMEType, resp.Data)
}

// address rebuilds the protocol address. gin hands over the decoded path,
// so it is escaped again before the protocol decodes it.
func (b *Bridge) address(namespace, path, rawQuery string) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	address := protocol.FormatAddress(b.scheme, namespace, escaped)
	if rawQuery != "" {
		address += "?" + rawQuery
	}
	return address
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, protocol.ErrResourceUnavailable):
		return http.StatusNotFound, outcomeUnavailable
	case errors.Is(err, protocol.ErrNamespaceMismatch):
		return http.StatusForbidden, outcomeForbidden
	case errors.Is(err, protocol.ErrInactive):
		return http.StatusServiceUnavailable, outcomeInactive
	default:
		return http.StatusInternalServerError, outcomeError
	}
}

// Start binds addr and serves in the background until Stop.
func (b *Bridge) Start(ctx context.Context, addr string) error {
	if err := b.base.TransitionToActivating(ctx); err != nil {
		return err
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		err = fmt.Errorf("listen on %s: %w", addr, err)
		b.base.AbortActivation(err)
		return err
	}

	srv := &http.Server{
		Handler:           b.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	b.mu.Lock()
	b.server, b.listener = srv, ln
	b.mu.Unlock()

	b.base.AddGoroutine()
	go func() {
		defer b.base.DoneGoroutine()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("bridge stopped", "err", err)
		}
	}()

	b.base.TransitionToActive()
	b.logger.Info("bridge listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" when not started.
func (b *Bridge) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Stop shuts the HTTP server down gracefully. It is a no-op when stopped.
func (b *Bridge) Stop(ctx context.Context) error {
	if !b.base.BeginDeactivate() {
		return nil
	}

	b.mu.Lock()
	srv := b.server
	b.server, b.listener = nil, nil
	b.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	b.base.WaitForShutdown()
	b.base.TransitionToInactive()
	b.logger.Info("bridge stopped")
	return err
}
