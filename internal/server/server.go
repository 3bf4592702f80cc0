package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chuanqi87/agent/internal/agent"
	"github.com/chuanqi87/agent/internal/config"
	"github.com/chuanqi87/agent/internal/handlers"
	"github.com/chuanqi87/agent/internal/middleware"
	"github.com/chuanqi87/agent/internal/providers"
	"github.com/chuanqi87/agent/internal/tools"
	"github.com/chuanqi87/agent/internal/upstream"
)

type Server struct {
	config   *config.Manager
	registry *providers.Registry
	memory   *agent.Memory
	logger   *slog.Logger
	server   *http.Server
}

func New(configManager *config.Manager, logger *slog.Logger) (*Server, error) {
	cfg := configManager.Get()

	settings := make(map[string]providers.Settings, len(cfg.Providers))
	for name, s := range cfg.Providers {
		settings[name] = providers.Settings{
			APIKey:          s.APIKey,
			BaseURL:         s.BaseURL,
			Model:           s.Model,
			NativeStreaming: s.NativeStreaming,
		}
	}

	registry, err := providers.NewRegistry(settings, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("initialize provider registry: %w", err)
	}

	return &Server{
		config:   configManager,
		registry: registry,
		memory:   agent.NewMemory(cfg.Agent.MemoryWindow),
		logger:   logger,
	}, nil
}

func (s *Server) Start() error {
	cfg := s.config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	// Setup routes
	mux := s.setupRoutes()

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	active := s.registry.Active()
	s.logger.Info("Starting server",
		"address", addr,
		"provider", active.Provider,
		"model", active.Model,
		"agent", cfg.Agent.Enabled,
	)

	// Start server in goroutine
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	s.logger.Info("Server is shutting down...")

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	cfg := s.config.Get()

	bufferedTimeout := time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second
	dispatcher := upstream.NewDispatcher(s.logger, bufferedTimeout)
	loop := agent.NewLoop(dispatcher, tools.DefaultRegistry(), s.logger, cfg.Agent.MaxIterations)

	chatHandler := handlers.NewChatHandler(s.config, s.registry, dispatcher, loop, s.memory, s.logger)
	modelsHandler := handlers.NewModelsHandler(s.registry, s.logger)
	adminHandler := handlers.NewAdminHandler(s.registry, s.memory, s.logger)
	healthHandler := handlers.NewHealthHandler(s.registry, s.logger)

	// Setup middleware chains
	middlewareSet := middleware.NewMiddlewareSet(s.config, s.logger)
	defaultChain := middlewareSet.DefaultChain()

	mux.Handle("/health", middlewareSet.HealthChain().Handler(healthHandler))
	mux.Handle("/v1/chat/completions", defaultChain.Handler(chatHandler))
	mux.Handle("/v1/models", defaultChain.Handler(modelsHandler))
	mux.Handle("/v1/model/current", defaultChain.Handler(http.HandlerFunc(adminHandler.CurrentModel)))
	mux.Handle("/v1/model/switch", defaultChain.Handler(http.HandlerFunc(adminHandler.SwitchModel)))
	mux.Handle("/memory/stats", defaultChain.Handler(http.HandlerFunc(adminHandler.MemoryStats)))
	mux.Handle("/memory/clear", defaultChain.Handler(http.HandlerFunc(adminHandler.ClearMemory)))

	return mux
}
