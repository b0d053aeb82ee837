package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/291e/bogofit-shop-sub001/internal/adapter/repo"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

const abandonedReason = "run abandoned"

// staleRuns is the part of the fitting run repository the sweeper needs.
type staleRuns interface {
	FailStale(ctx context.Context, olderThan time.Time, reason string) (int64, error)
}

type sweeper struct {
	runs      staleRuns
	logger    infra.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	w := &sweeper{
		runs:      repo.NewFittingRunRepository(runner),
		logger:    logger,
		interval:  cfg.Worker.PollInterval,
		threshold: cfg.Worker.StaleThreshold,
		now:       time.Now,
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run sweeps once immediately and then on every tick until ctx ends.
func (w *sweeper) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return errors.New("worker: poll interval must be positive")
	}
	w.logger.Info().Dur("interval", w.interval).Dur("threshold", w.threshold).Msg("worker: started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *sweeper) sweep(ctx context.Context) int64 {
	cutoff := w.now().Add(-w.threshold)
	n, err := w.runs.FailStale(ctx, cutoff, abandonedReason)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("worker: sweep failed")
		}
		return 0
	}
	if n > 0 {
		w.logger.Info().Int64("runs", n).Time("cutoff", cutoff).Msg("worker: failed stale fitting runs")
	}
	return n
}
