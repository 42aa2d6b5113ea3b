package main

import (
	"context"
	"errors"
	"time"

	"github.com/bher20/ebillmanager/internal/billing"
	"github.com/bher20/ebillmanager/internal/inflight"
	"github.com/bher20/ebillmanager/internal/metrics"
	"github.com/bher20/ebillmanager/internal/rates"
	"github.com/bher20/ebillmanager/internal/statement"
	"github.com/bher20/ebillmanager/internal/storage"
)

const dbStatsInterval = 15 * time.Second

// app holds the wired services shared by the subcommands.
type app struct {
	*globals
	store    storage.Storage
	guard    inflight.Guard
	rates    *rates.Service
	billing  *billing.Service
	composer *statement.Composer
	closers  []func() error
}

func newApp(ctx context.Context, g *globals) (*app, error) {
	st, err := storage.Open(ctx, storage.Config{
		Driver: g.cfg.DB.Driver,
		DSN:    g.cfg.DB.DSN,
		Logger: g.log,
	})
	if err != nil {
		return nil, err
	}
	a := &app{globals: g, store: st, closers: []func() error{st.Close}}

	switch g.cfg.Guard.Backend {
	case "redis":
		client, err := inflight.NewClientStore(ctx, g.cfg.Guard.RedisURL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		guard, err := inflight.NewRedis(client, g.cfg.Guard.TTL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.guard = guard
		g.log.Info(ctx, "inflight: using redis guard")
	default:
		a.guard = inflight.NewLocal()
	}

	rate := g.cfg.DefaultRate()
	a.rates = rates.NewService(st, a.guard, rate)
	a.billing = billing.NewService(st, rate, g.cfg.Billing.Parallelism, g.log)
	a.composer = statement.NewComposer(g.cfg.Billing.IssuerName, g.cfg.Billing.FilenamePrefix)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// reportDBStats publishes connection pool gauges until ctx is done. Backends
// without a SQL pool are ignored.
func (a *app) reportDBStats(ctx context.Context) {
	gs, ok := a.store.(*storage.GormStorage)
	if !ok {
		return
	}
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		if stats, err := gs.DBStats(); err == nil {
			metrics.UpdateDBPoolMetrics(a.cfg.DB.Driver, stats.OpenConnections, stats.Idle, stats.InUse, stats.WaitCount)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
