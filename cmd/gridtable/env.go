package main

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/config"
	"github.com/ajitpratap0/gridtable/pkg/logger"
	"github.com/ajitpratap0/gridtable/pkg/metrics"
	"github.com/ajitpratap0/gridtable/pkg/observability"
)

// environment is the process-wide setup shared by commands
type environment struct {
	cfg       *config.Config
	log       *zap.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector
	shutdown  observability.ShutdownFunc
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// setup loads the configuration and starts logging, metrics and tracing.
// Spans go to traceOut.
func setup(ctx context.Context, configFile, component string, traceOut io.Writer) (*environment, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, err
	}

	env := &environment{
		cfg: cfg,
		log: logger.Get().With(zap.String("component", component)),
	}
	if cfg.Metrics.Enabled {
		env.registry = prometheus.NewRegistry()
		env.collector, err = metrics.NewCollector(env.registry)
		if err != nil {
			return nil, err
		}
	}
	env.shutdown, err = observability.InitTracing(ctx, cfg.Tracing, version, traceOut)
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (e *environment) close(ctx context.Context) {
	if err := e.shutdown(ctx); err != nil {
		e.log.Warn("tracer shutdown failed", zap.Error(err))
	}
	_ = logger.Sync()
}
