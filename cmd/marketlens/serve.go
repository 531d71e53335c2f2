package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketlens/internal/gateway"
	"marketlens/internal/markethours"
	"marketlens/internal/metrics"
	"marketlens/internal/model"
	"marketlens/internal/scheduler"

	goredis "github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/websocket API, metrics server and sweep scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[marketlens] starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := loadApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	// ── Health + metrics ──
	health := metrics.NewHealthStatus(cfg.Store.Driver, cfg.Predictor.Kind)
	var rdb *goredis.Client
	if a.redis != nil {
		rdb = a.redis.Client()
	}
	if a.sqlite != nil {
		if last, err := a.sqlite.LastSweep(ctx); err == nil {
			health.SetLastSweep(last.FinishedAt)
		}
	}
	health.StartLivenessChecker(ctx, a.pinger(), rdb, 15*time.Second)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ── Websocket hub ──
	hub := gateway.NewHub(a.svc, a.prom)
	if a.redis != nil {
		// Sweeps may run in another process; fan them in through pub/sub.
		go func() {
			if err := hub.Run(ctx, a.redis); err != nil && ctx.Err() == nil {
				log.Printf("[marketlens] sweep subscription ended: %v", err)
			}
		}()
	}

	// ── HTTP API ──
	var limiter *gateway.IPRateLimiter
	if cfg.HTTP.RateLimit.RPS > 0 {
		limiter = gateway.NewIPRateLimiter(cfg.HTTP.RateLimit.RPS, cfg.HTTP.RateLimit.Burst)
	}
	defaultTF, err := model.ParseTimeframe(cfg.Defaults.Timeframe)
	if err != nil {
		return err
	}
	api := gateway.NewAPI(a.svc, hub, gateway.Options{
		DefaultSymbol:    cfg.Defaults.Symbol,
		DefaultTimeframe: defaultTF,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		RateLimit:        limiter,
		Metrics:          a.prom,
		Health:           health,
	})
	srv := gateway.NewServer(cfg.HTTP.Addr, api.Handler(), cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)
	srv.Start()

	// ── Sweep scheduler ──
	sched := scheduler.New()
	if cfg.Sweep.Enabled {
		job, err := a.sweepJob(nil)
		if err != nil {
			return err
		}
		if cal, ok := job.Calendar.(*markethours.Calendar); ok {
			log.Printf("[marketlens] %s", cal.StatusString(time.Now()))
		}
		job.OnDone = func(run model.SweepRun) {
			health.SetLastSweep(run.FinishedAt)
			if a.redis == nil {
				hub.PublishSweep(run)
			}
		}
		if err := sched.Add("trend-sweep", cfg.Sweep.Cron, job.Run); err != nil {
			return err
		}
		sched.Start()
	}

	log.Printf("[marketlens] ready: api=%s metrics=%s store=%s predictor=%s",
		cfg.HTTP.Addr, cfg.MetricsAddr, cfg.Store.Driver, cfg.Predictor.Kind)

	// ── Graceful shutdown ──
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("[marketlens] received %v, shutting down...", sig)

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("[marketlens] api shutdown: %v", err)
	}
	metricsSrv.Stop(shutdownCtx)

	log.Println("[marketlens] stopped")
	return nil
}
