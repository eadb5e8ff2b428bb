package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account-portal/internal/auth"
	"account-portal/internal/config"
	"account-portal/internal/data"
	"account-portal/internal/jobs"
	"account-portal/internal/metrics"
	"account-portal/internal/middlewares"
	"account-portal/internal/version"

	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
)

type Server struct {
	cfg         *config.Config
	logger      *slog.Logger
	appCtx      *middlewares.AppContext
	store       data.Store
	httpServer  *http.Server
	debugServer *http.Server
	jobManager  *jobs.JobManager
	cancel      context.CancelFunc
}

// application is the wired authentication core shared by the router and the jobs.
type application struct {
	appCtx  *middlewares.AppContext
	states  *auth.StateTokenService
	rotator *auth.RefreshRotator
}

func New(cfg *config.Config) (*Server, error) {
	logger := setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())

	store, err := data.NewStore(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	app, err := newApplication(ctx, cfg, store, logger)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}

	jobManager := jobs.NewJobManager(logger)
	jobManager.Register(jobs.NewStateSweepJob(app.states, cfg.State.SweepInterval, logger))
	if app.rotator != nil {
		jobManager.Register(jobs.NewLinkedRefreshJob(app.rotator, cfg.Linked.RefreshWindow, cfg.Linked.RefreshInterval, logger))
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           setupRouter(app.appCtx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var debugServer *http.Server
	if cfg.Server.Debug != nil && cfg.Server.Debug.Enabled {
		if err := prometheus.Register(versioncollector.NewCollector(metrics.Namespace)); err != nil {
			logger.Debug("failed to register build info collector: already registered", "error", err)
		}

		debugServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Debug.Host, cfg.Server.Debug.Port),
			Handler:           setupDebugRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return &Server{
		cfg:         cfg,
		logger:      logger,
		appCtx:      app.appCtx,
		store:       store,
		httpServer:  httpServer,
		debugServer: debugServer,
		jobManager:  jobManager,
		cancel:      cancel,
	}, nil
}

// newApplication builds the providers, session manager and flows over store.
// Configuration problems surface here, before the server accepts traffic.
func newApplication(ctx context.Context, cfg *config.Config, store data.Store, logger *slog.Logger) (*application, error) {
	sessions, err := auth.NewSessionManager(cfg.Sessions, logger)
	if err != nil {
		return nil, err
	}

	primary, err := auth.NewPrimaryProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	linked, err := auth.NewLinkedProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	states := auth.NewStateTokenService(store, cfg.State.TTL, logger)

	var (
		rotator           *auth.RefreshRotator
		credentialRotator middlewares.CredentialRotator
	)
	if linked != nil {
		rotator = auth.NewRefreshRotator(store, linked.Exchanger, logger)
		credentialRotator = rotator
	}

	authenticator := auth.NewAuthenticator(auth.AuthenticatorOptions{
		Primary:   primary,
		Linked:    linked,
		States:    states,
		Sessions:  sessions,
		Rotator:   rotator,
		Redirects: cfg.Auth,
		Logger:    logger,
	})

	return &application{
		appCtx:  middlewares.NewAppContext(ctx, cfg, logger, sessions, authenticator, credentialRotator),
		states:  states,
		rotator: rotator,
	}, nil
}

func (s *Server) Start() error {
	s.jobManager.Start(s.appCtx)

	go func() {
		s.logger.Info("Server Started", "port", s.cfg.Server.Port, "build", version.Info())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start", "error", err)
			s.cancel()
		}
	}()

	if s.debugServer != nil {
		go func() {
			s.logger.Info("Metrics server starting", "address", s.debugServer.Addr)
			if err := s.debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("Metrics server failed to start", "error", err)
				s.cancel()
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		s.logger.Info("Shutdown signal received")
	case <-s.appCtx.Done():
		s.logger.Info("Context canceled")
	}

	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info("Shutting Down Server")

	s.jobManager.Shutdown(shutdownCtx)

	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
	}

	if s.debugServer != nil {
		if err := s.debugServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Debug server forced to shutdown", "error", err)
		}
	}

	s.cancel()

	if closeErr := s.store.Close(); closeErr != nil {
		s.logger.Error("Failed to close store", "error", closeErr)
	}

	s.logger.Info("Server Exited")
	return err
}
