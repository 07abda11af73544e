// Package app wires the pipeline together for a single collection run.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/patronage-dev/patronage/internal/aggregate"
	"github.com/patronage-dev/patronage/internal/config"
	"github.com/patronage-dev/patronage/internal/domain"
	"github.com/patronage-dev/patronage/internal/ledger"
	"github.com/patronage-dev/patronage/pkg/clients"
	"github.com/patronage-dev/patronage/pkg/logger"
)

type Application struct {
	cfg *config.Config
	agg *aggregate.Aggregator
}

func New() *Application {
	return &Application{}
}

// Run executes one collection: configure, validate, aggregate, publish.
// On any failure nothing is written and the previous ledger file stays in
// place.
func (a *Application) Run(ctx context.Context) error {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	a.cfg = cfg
	a.agg = aggregate.New(cfg, clients.NewHTTPClient())

	zap.L().Info("starting donation collection",
		zap.String("environment", cfg.Environment),
		zap.String("output", cfg.OutputFile),
		zap.Duration("timeout", cfg.RunTimeout))

	started := time.Now()
	donations, err := a.agg.Run(ctx)
	if err != nil {
		zap.L().Error("collection failed, previous ledger kept", zap.Error(err))
		return fmt.Errorf("can't collect donations: %w", err)
	}

	if err := ledger.Write(cfg.OutputFile, donations); err != nil {
		zap.L().Error("ledger write failed", zap.Error(err))
		return fmt.Errorf("can't write ledger: %w", err)
	}

	logSummary(donations, time.Since(started))
	return nil
}

// logSummary reports counts and totals only; contributor identities never
// reach the logs.
func logSummary(donations []domain.Donation, elapsed time.Duration) {
	perPlatform := make(map[string]int, 3)
	total := decimal.Zero
	for _, d := range donations {
		perPlatform[string(d.Platform)]++
		total = total.Add(d.Amount)
	}
	zap.L().Info("ledger written",
		zap.Int("donations", len(donations)),
		zap.String("total", total.String()),
		zap.Any("per_platform", perPlatform),
		zap.Duration("elapsed", elapsed))
}
