package service

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ethereum-optimism/infra/op-specrun/metrics"
	"github.com/ethereum-optimism/optimism/op-service/httputil"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"
)

// DefaultHealthzAddr is where the healthz server listens unless configured otherwise
var DefaultHealthzAddr = net.JoinHostPort(HealthzHost, HealthzPort)

// Config selects which HTTP servers run. An empty HealthzAddr disables healthz.
type Config struct {
	HealthzAddr string
	Metrics     opmetrics.CLIConfig
}

// Service runs the healthz and metrics HTTP servers next to the specification runs
type Service struct {
	log     log.Logger
	cfg     Config
	Healthz *HealthzServer
	metrics *httputil.HTTPServer
}

func New(logger log.Logger, cfg Config) *Service {
	return &Service{
		log:     logger,
		cfg:     cfg,
		Healthz: NewHealthzServer(logger),
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.log.Info("service starting")

	if s.cfg.HealthzAddr != "" {
		s.log.Info("starting healthz server", "addr", s.cfg.HealthzAddr)
		if err := s.Healthz.Start(s.cfg.HealthzAddr); err != nil {
			metrics.RecordErrorDetails("healthz_server", err)
			return fmt.Errorf("failed to start healthz server: %w", err)
		}
		s.log.Info("started healthz server", "endpoint", s.Healthz.Addr())
	}

	if s.cfg.Metrics.Enabled {
		s.log.Info("starting metrics server", "addr", s.cfg.Metrics.ListenAddr, "port", s.cfg.Metrics.ListenPort)
		srv, err := opmetrics.StartServer(metrics.Registry, s.cfg.Metrics.ListenAddr, s.cfg.Metrics.ListenPort)
		if err != nil {
			metrics.RecordErrorDetails("metrics_server", err)
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		s.log.Info("started metrics server", "endpoint", srv.Addr())
		s.metrics = srv
	}

	s.log.Info("service started")
	return nil
}

// MetricsAddr returns the address of the running metrics server, or nil
func (s *Service) MetricsAddr() net.Addr {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Addr()
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.log.Info("service shutting down")

	var result error
	if err := s.Healthz.Shutdown(ctx); err != nil {
		result = errors.Join(result, fmt.Errorf("failed to stop healthz server: %w", err))
	}
	s.log.Info("healthz stopped")

	if s.metrics != nil {
		if err := s.metrics.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
		s.log.Info("metrics stopped")
	}

	s.log.Info("service stopped")
	return result
}
