package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"marketlens/config"
	"marketlens/internal/analysis"
	"marketlens/internal/breaker"
	"marketlens/internal/forecast"
	"marketlens/internal/logger"
	"marketlens/internal/metrics"
	"marketlens/internal/model"
	"marketlens/internal/store/postgres"
	redisstore "marketlens/internal/store/redis"
	"marketlens/internal/store/sqlite"
)

// app holds everything a command needs. Commands that do not serve HTTP
// skip metrics registration.
type app struct {
	cfg    *config.Config
	store  model.SeriesStore
	sqlite *sqlite.Store
	pg     *postgres.Store
	redis  *redisstore.Store
	models forecast.Source
	svc    *analysis.Service
	prom   *metrics.Metrics
}

func loadApp(ctx context.Context, withMetrics bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Init("marketlens", logger.ParseLevel(cfg.LogLevel))

	a := &app{cfg: cfg}
	if withMetrics {
		a.prom = metrics.NewMetrics()
	}
	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.models = a.modelSource()

	projector := forecast.NewProjector()
	projector.Window = cfg.Forecast.Window
	projector.Horizons = cfg.Forecast.Horizons

	a.svc = analysis.New(analysis.Options{
		Store:     a.store,
		Models:    a.models,
		Projector: projector,
		Metrics:   a.prom,
	})
	return a, nil
}

func (a *app) newBreaker(name string, bc config.BreakerConfig) *breaker.Breaker {
	cb := breaker.New(name, bc.MaxFailures, bc.ResetTimeout)
	cb.OnStateChange = func(name string, from, to breaker.State) {
		log.Printf("[breaker] %s: %s → %s", name, from, to)
		if a.prom != nil {
			a.prom.ObserveBreaker(name, int(from), int(to))
		}
	}
	return cb
}

func (a *app) openStores(ctx context.Context) error {
	cfg := a.cfg

	if cfg.Redis.Addr != "" {
		rs, err := redisstore.Open(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, a.newBreaker("redis", cfg.Redis.Breaker))
		if err != nil {
			if cfg.Store.Driver == "redis" {
				return err
			}
			log.Printf("[marketlens] WARNING: redis unavailable (%v), continuing without it", err)
		} else {
			a.redis = rs
		}
	}

	switch cfg.Store.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "" {
			os.MkdirAll(dir, 0o755)
		}
		st, err := sqlite.Open(sqlite.Config{DBPath: cfg.Store.SQLitePath})
		if err != nil {
			return err
		}
		a.sqlite, a.store = st, st
	case "postgres":
		st, err := postgres.Open(ctx, postgres.Config{DSN: cfg.Store.PostgresDSN})
		if err != nil {
			return err
		}
		a.pg, a.store = st, st
	case "redis":
		if a.redis == nil {
			return fmt.Errorf("store driver redis requires redis.addr")
		}
		a.store = a.redis
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return nil
}

func (a *app) modelSource() forecast.Source {
	p := a.cfg.Predictor
	if p.Kind == "http" {
		return forecast.NewRemoteSource(p.Endpoint, p.Timeout, a.newBreaker("predictor", p.Breaker))
	}
	return forecast.NewFileSource(p.ModelDir)
}

// pinger returns the primary store for health checks.
func (a *app) pinger() metrics.Pinger {
	switch {
	case a.sqlite != nil:
		return a.sqlite
	case a.pg != nil:
		return a.pg
	}
	return a.redis
}

func (a *app) Close() {
	if a.sqlite != nil {
		a.sqlite.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
