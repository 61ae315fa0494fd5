package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/argo-charts/internal/config"
	"github.com/rxtech-lab/argo-charts/internal/logger"
	"github.com/rxtech-lab/argo-charts/pkg/chart"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"github.com/rxtech-lab/argo-charts/pkg/transport"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// session is one connected mediator built from the config file and global flags.
type session struct {
	config   *config.Config
	logger   *logger.Logger
	client   *transport.WebSocketClient
	mediator *chart.Mediator
	registry *prometheus.Registry
}

// loadConfig reads --config and applies the global flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("endpoint") {
		cfg.Endpoint = cmd.String("endpoint")
	}

	if cmd.IsSet("app-id") {
		cfg.AppID = int(cmd.Int("app-id"))
	}

	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// openSession connects to the API and creates the chart's mediator.
func openSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLoggerWithConfig(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create logger", err)
	}

	client, err := transport.NewWebSocketClient(cfg.TransportOptions(), log)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	mediator := chart.NewMediator(client, log, chart.NewMetrics(registry))

	return &session{
		config:   cfg,
		logger:   log,
		client:   client,
		mediator: mediator,
		registry: registry,
	}, nil
}

// Close disposes the mediator before closing the shared connection.
func (s *session) Close() {
	s.mediator.Dispose()

	if err := s.client.Close(); err != nil {
		s.logger.Warn("Failed to close connection", zap.Error(err))
	}

	_ = s.logger.Sync()
}

// serveMetrics serves the mediator metrics on addr until ctx is done.
func (s *session) serveMetrics(ctx context.Context, addr string) error {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Serving metrics", zap.String("addr", addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(errors.ErrCodeConnectionFailed, err, "metrics server on %s", addr)
	}

	return nil
}
