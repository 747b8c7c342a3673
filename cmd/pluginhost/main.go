package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP port for renderers and metrics")
	flag.StringVar(&cfg.Plugin.Dir, "plugin", cfg.Plugin.Dir, "Plugin directory")
	flag.StringVar(&cfg.Plugin.Script, "script", cfg.Plugin.Script, "Entry script, relative to the plugin directory")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored console logs)")
	flag.Parse()
	cfg.Logging.Development = *dev

	logger, err := logging.New(logging.FromConfig(cfg.Logging))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create plugin host", zap.Error(err))
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	if err := srv.Start(context.Background()); err != nil {
		logger.Error("Plugin failed to start", zap.Error(err))
	}

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		logger.Info("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		_ = srv.Close()
		logger.Fatal("Server error", zap.Error(err))
	}
}
