package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/assets"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/component"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/events"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/host"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/ops"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/plugin"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/transport/middleware"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

// Server wires one hosted plugin to its renderer and HTTP surface.
type Server struct {
	router   *gin.Engine
	http     *http.Server
	config   *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	manifest *plugin.Manifest
	fetcher  *assets.Fetcher

	channel  *bridge.Channel
	queue    *events.Queue
	host     *host.Host
	frontend *ws.Handler
	runtime  *sandbox.Runtime

	served    chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewServer loads the plugin described by cfg and assembles the host.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing plugin host",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("plugin_dir", cfg.Plugin.Dir),
	)

	manifest, err := plugin.Load(filepath.Join(cfg.Plugin.Dir, cfg.Plugin.Manifest))
	if err != nil {
		return nil, err
	}
	data := plugin.NewData(manifest)

	model, err := loadModel(cfg.Plugin.ComponentModel)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	plog := logger.ForPlugin(data.PluginID())

	store, err := assets.OpenStore(context.Background(), cfg.Plugin.Dir, data.AssetAllowed, plog)
	if err != nil {
		return nil, fmt.Errorf("failed to index plugin assets: %w", err)
	}
	fetcher := assets.NewFetcher(cfg.Assets, plog)
	gatherer := assets.NewGatherer(model, store, fetcher,
		assets.WithConcurrency(cfg.Assets.Concurrency),
		assets.WithRecorder(metrics),
		assets.WithLogger(plog),
	)

	channel := bridge.New(bridge.WithLogger(plog), bridge.WithRecorder(metrics))
	queue := events.NewQueue(metrics)
	frontend := ws.NewHandler(queue, ws.WithMetrics(metrics), ws.WithLogger(plog))

	h := host.New(host.Config{
		Model:    model,
		Plugin:   data,
		Gatherer: gatherer,
		Assets:   store,
		Frontend: frontend,
		Logger:   plog,
		Recorder: metrics,
	})
	frontend.SetReplay(h.RenderedAll)

	capabilities := ops.New(channel, model, data, ops.WithMetrics(metrics), ops.WithLogger(plog))
	runtime, err := sandbox.New(capabilities, queue, sandbox.FromConfig(cfg.Sandbox),
		sandbox.WithLogger(plog),
		sandbox.WithConsoleLogger(plog.Named("console")),
	)
	if err != nil {
		channel.Close()
		queue.Close()
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(cfg.Server.AllowOrigins))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	s := &Server{
		router:   router,
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		manifest: manifest,
		fetcher:  fetcher,
		channel:  channel,
		queue:    queue,
		host:     h,
		frontend: frontend,
		runtime:  runtime,
		served:   make(chan struct{}),
	}

	router.GET("/ws", frontend.HandleConnection)
	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	s.http = &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	logger.Info("Plugin host initialized",
		zap.String("plugin", data.PluginID()),
		zap.Int("bundled_assets", len(store.Names())),
	)
	return s, nil
}

func loadModel(path string) (*component.Model, error) {
	if path == "" {
		return component.Default()
	}
	return component.LoadFile(path)
}

// Router exposes the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving the bridge, starts the event pump and evaluates the
// plugin script. It returns once the script has been evaluated.
func (s *Server) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.served)
			if err := s.host.Serve(context.Background(), s.channel); err != nil {
				s.logger.Error("bridge consumer stopped", zap.Error(err))
			}
		}()
	})
	s.runtime.Start()

	name := s.config.Plugin.Script
	if name == "" {
		name = s.manifest.Plugin.Script
	}
	if name == "" {
		s.logger.Warn("plugin declares no script")
		return nil
	}

	src, err := os.ReadFile(filepath.Join(s.config.Plugin.Dir, name))
	if err != nil {
		return fmt.Errorf("failed to read plugin script: %w", err)
	}
	res, err := s.runtime.Execute(ctx, name, string(src))
	if err != nil {
		return fmt.Errorf("plugin script failed: %w", err)
	}
	s.logger.Info("Plugin script evaluated",
		zap.String("script", name),
		zap.Duration("duration", res.Duration),
	)
	return nil
}

// Run serves HTTP until the listener fails or Close is called.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the HTTP listener, the sandbox and the bridge, in that order.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down plugin host...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if e := s.http.Shutdown(ctx); e != nil {
			s.logger.Error("Failed to stop HTTP server", zap.Error(e))
			err = fmt.Errorf("failed to stop HTTP server: %w", e)
		}

		s.frontend.Close()
		s.queue.Close()
		if e := s.runtime.Close(); e != nil && err == nil {
			err = fmt.Errorf("failed to stop sandbox: %w", e)
		}
		s.channel.Close()
		s.startOnce.Do(func() { close(s.served) })
		select {
		case <-s.served:
		case <-ctx.Done():
			s.logger.Warn("bridge consumer did not stop in time")
		}

		_ = s.logger.Sync()
	})
	return err
}

func (s *Server) health(c *gin.Context) {
	breakers := make(map[string]string)
	for origin, state := range s.fetcher.BreakerStates() {
		breakers[origin] = state.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"plugin":    s.manifest.Plugin.ID,
		"renderers": s.frontend.Clients(),
		"pending":   s.channel.Len(),
		"events":    s.queue.Len(),
		"breakers":  breakers,
	})
}
