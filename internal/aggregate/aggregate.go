// Package aggregate drives one collection run across every platform.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patronage-dev/patronage/internal/config"
	"github.com/patronage-dev/patronage/internal/domain"
	"github.com/patronage-dev/patronage/internal/reconcile"
	"github.com/patronage-dev/patronage/internal/sources"
	"github.com/patronage-dev/patronage/internal/sources/bmac"
	"github.com/patronage-dev/patronage/internal/sources/github"
	"github.com/patronage-dev/patronage/internal/sources/patreon"
	"github.com/patronage-dev/patronage/pkg/clients"
)

// Aggregator runs every source to completion and assembles the ledger in
// the configured platform order.
type Aggregator struct {
	sources []sources.Source
	timeout time.Duration
}

// New wires the live adapters in production; any other environment gets the
// deterministic fixture sources. The switch is invisible past this point:
// fixture pledges flow through the same reconciliation path.
func New(cfg *config.Config, client clients.HTTPClientI) *Aggregator {
	srcs := fixtureSources(cfg.Blocklist)
	if cfg.IsProduction() {
		srcs = []sources.Source{
			github.New(github.Options{
				Token:     cfg.GitHubToken,
				Client:    client,
				Blocklist: cfg.Blocklist,
				BaseURL:   cfg.GitHubAPIURL,
			}),
			patreon.New(patreon.Options{
				Token:      cfg.PatreonToken,
				CampaignID: cfg.PatreonCampaignID,
				Client:     client,
				Blocklist:  cfg.Blocklist,
				BaseURL:    cfg.PatreonAPIURL,
			}),
			bmac.New(bmac.Options{
				Token:     cfg.BMACToken,
				Client:    client,
				Blocklist: cfg.Blocklist,
				BaseURL:   cfg.BMACAPIURL,
			}),
		}
	}
	return &Aggregator{sources: srcs, timeout: cfg.RunTimeout}
}

// NewWithSources wires an explicit source list, in ledger order.
func NewWithSources(timeout time.Duration, srcs ...sources.Source) *Aggregator {
	return &Aggregator{sources: srcs, timeout: timeout}
}

// Run fetches every source concurrently under the overall deadline,
// reconciles each source's pledges and concatenates the results in source
// order. Any failure aborts the whole run and discards every partial
// result; the published ledger is all or nothing.
func (a *Aggregator) Run(ctx context.Context) ([]domain.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([][]domain.Donation, len(a.sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		i, src := i, src

		g.Go(func() error {
			started := time.Now()
			pledges, err := src.Pledges(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", src.Platform(), err)
			}
			donations := reconcile.Reconcile(pledges)
			zap.L().Info("source collected",
				zap.String("platform", string(src.Platform())),
				zap.Int("pledges", len(pledges)),
				zap.Int("donations", len(donations)),
				zap.Duration("elapsed", time.Since(started)))
			results[i] = donations
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ledger []domain.Donation
	for _, donations := range results {
		ledger = append(ledger, donations...)
	}
	return ledger, nil
}
