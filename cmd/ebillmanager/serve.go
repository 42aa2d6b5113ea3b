package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bher20/ebillmanager/internal/api"
	"github.com/bher20/ebillmanager/internal/auth"
	"github.com/bher20/ebillmanager/internal/migrate"
	"github.com/bher20/ebillmanager/internal/notification"
	"github.com/bher20/ebillmanager/pkg/bulkops"
	"github.com/spf13/cobra"
)

func newServeCmd(g *globals) *cobra.Command {
	var withWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, g, withWorker)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the billing digest worker in-process")
	return cmd
}

func serve(ctx context.Context, g *globals, withWorker bool) error {
	if g.cfg.DB.AutoMigrate && g.cfg.DB.Driver != "memory" {
		if err := migrate.Up(ctx, g.cfg.DB.Driver, g.cfg.DB.DSN); err != nil {
			return err
		}
		g.log.Info(ctx, "auto-migration complete")
	}

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			g.log.Error(ctx, "error closing resources", err)
		}
	}()

	authSvc, err := auth.NewService(ctx, a.store)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Store:    a.store,
		Rates:    a.rates,
		Billing:  a.billing,
		Composer: a.composer,
		Auth:     authSvc,
		Guard:    a.guard,
		Log:      g.log,
	}
	if g.cfg.BulkOps.BaseURL != "" {
		client, err := bulkops.NewClient(g.cfg.BulkOps.BaseURL, bulkops.WithTimeout(g.cfg.BulkOps.Timeout))
		if err != nil {
			return err
		}
		deps.Bulk = client
	} else {
		g.log.Warn(ctx, "EBILL_BULKOPS_BASE_URL not set; bulk operations disabled")
	}
	if sender, err := notification.NewSendgridSender(notification.Config{
		SendgridAPIKey: g.cfg.Notification.SendgridAPIKey,
		FromAddress:    g.cfg.Notification.FromAddress,
		FromName:       g.cfg.Notification.FromName,
	}); err == nil {
		deps.Mailer = notification.NewService(sender, g.log)
	} else {
		g.log.Warn(ctx, "EBILL_SENDGRID_API_KEY not set; statement e-mail disabled")
	}

	go a.reportDBStats(ctx)
	if withWorker {
		go func() {
			if err := newDigest(a).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				g.log.Error(ctx, "digest worker stopped", err)
			}
		}()
	}

	addr := ":" + g.cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewMux(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		g.log.Info(g.log.WithField(ctx, "addr", addr), "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	g.log.Info(shutdownCtx, "shutting down api server")
	return server.Shutdown(shutdownCtx)
}
