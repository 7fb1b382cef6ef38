// Package gateway assembles the admission pipeline, the management
// surface, and device registration into one HTTP server fronting an
// application handler.
package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/krishna-kudari/gatekeep"
	"github.com/krishna-kudari/gatekeep/analytics"
	"github.com/krishna-kudari/gatekeep/auth"
	"github.com/krishna-kudari/gatekeep/config"
	"github.com/krishna-kudari/gatekeep/device"
	"github.com/krishna-kudari/gatekeep/logging"
	"github.com/krishna-kudari/gatekeep/metrics"
	"github.com/krishna-kudari/gatekeep/middleware"
)

// Gateway owns the admission state engines and the router over them.
type Gateway struct {
	cfg    *config.Config
	policy *config.Policy

	engine    *gatekeep.Engine
	checker   gatekeep.Checker
	creds     *auth.CredentialStore
	devices   *device.Registry
	buffer    *analytics.Buffer
	streamer  *analytics.Streamer
	filelog   *logging.FileLogger
	collector *metrics.Collector
	registry  *prometheus.Registry

	router *gin.Engine
}

// New builds a gateway fronting app. The policy file, device registry,
// and optional request-log directory come from cfg. Call Close on
// shutdown to flush persistent state.
func New(cfg *config.Config, app http.Handler) (*Gateway, error) {
	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	engine, err := gatekeep.NewEngine(policy.RateLimits)
	if err != nil {
		return nil, err
	}
	devices, err := device.NewRegistry(cfg.DevicesPath)
	if err != nil {
		return nil, err
	}

	var filelog *logging.FileLogger
	if cfg.RequestLogDir != "" {
		filelog, err = logging.NewFileLogger(cfg.RequestLogDir, cfg.ServiceName)
		if err != nil {
			devices.Close()
			return nil, err
		}
	}

	// A private registry keeps /metrics scoped to this gateway instance.
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(metrics.WithRegistry(registry))

	g := &Gateway{
		cfg:       cfg,
		policy:    policy,
		engine:    engine,
		checker:   metrics.Wrap(engine, collector),
		creds:     auth.NewCredentialStore(),
		devices:   devices,
		buffer:    analytics.NewBuffer(analytics.Capacity),
		filelog:   filelog,
		collector: collector,
		registry:  registry,
	}
	g.streamer = analytics.NewStreamer(g.buffer, engine.Hits)
	g.router = g.buildRouter(app)
	return g, nil
}

func (g *Gateway) buildRouter(app http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	resolver := &auth.Resolver{Credentials: g.creds, Devices: g.devices}
	logger := middleware.RequestLogger(middleware.LoggerConfig{
		Buffer:  g.buffer,
		File:    g.filelog,
		Service: g.cfg.ServiceName,
	})

	// The admission pipeline guards the fronted application.
	api := r.Group("/api",
		logger,
		middleware.Auth(resolver, g.collector),
		middleware.IPFilter(g.policy.IPRules),
		middleware.RateLimit(g.checker),
	)
	api.Any("/*path", gin.WrapH(app))

	// Device registration enforces its own velocity caps and sits outside
	// the limiter, but inside the request logger.
	r.POST("/auth/register-device", logger, g.handleRegisterDevice)

	// Management surface: bypasses auth and the limiter so observability
	// survives saturation. Not logged, so polling dashboards do not skew
	// the analytics they read.
	admin := r.Group("/admin")
	admin.GET("/stats", g.handleStats)
	admin.GET("/stats/stream", g.streamer.Handler())
	admin.GET("/config", g.handleConfig)
	admin.POST("/keys", g.handleCreateKey)
	admin.DELETE("/keys/:id", g.handleRevokeKey)
	admin.GET("/logs", g.handleLogs)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": g.cfg.ServiceName})
	})
	return r
}

// Router exposes the assembled handler, mainly for tests.
func (g *Gateway) Router() *gin.Engine {
	return g.router
}

// Run serves until ctx is canceled, then shuts down gracefully within the
// configured timeout and flushes persistent state.
func (g *Gateway) Run(ctx context.Context) error {
	srv := &http.Server{Addr: g.cfg.Addr(), Handler: g.router}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", g.cfg.Addr()).Msg("Gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		g.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), g.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if closeErr := g.Close(); err == nil {
		err = closeErr
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// Close flushes the device registry and the request-log file.
func (g *Gateway) Close() error {
	err := g.devices.Close()
	if g.filelog != nil {
		if ferr := g.filelog.Close(); err == nil {
			err = ferr
		}
	}
	return err
}
