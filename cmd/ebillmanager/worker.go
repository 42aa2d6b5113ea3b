package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bher20/ebillmanager/internal/alerting"
	"github.com/bher20/ebillmanager/internal/cron"
	"github.com/spf13/cobra"
)

func newDigest(a *app) *cron.Digest {
	alertCfg := alerting.NewAlertConfig(a.cfg.Alert.WebhookURL, a.cfg.Alert.WebhookType, a.cfg.Alert.MinFailures)
	return &cron.Digest{
		Billing:  a.billing,
		Store:    a.store,
		Alerter:  alerting.NewAlerter(alertCfg, a.log),
		Log:      a.log,
		Schedule: a.cfg.Digest.Schedule,
	}
}

func newWorkerCmd(g *globals) *cobra.Command {
	var (
		once        bool
		setSchedule string
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the billing digest worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if setSchedule != "" {
				if !cron.ValidSchedule(setSchedule) {
					return fmt.Errorf("invalid digest schedule %q: want seconds or a 5-field cron expression", setSchedule)
				}
				if err := a.store.SetSetting(ctx, cron.ScheduleSetting, setSchedule); err != nil {
					return fmt.Errorf("store digest schedule: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "digest schedule set to %q\n", setSchedule)
				return nil
			}

			digest := newDigest(a)
			if once {
				res, err := digest.RunOnce(ctx)
				if err != nil {
					return err
				}
				if res == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "digest skipped: lock held by another worker")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "customers=%d failed=%d\n", res.Customers, len(res.Failed))
				return nil
			}

			if !cron.ValidSchedule(g.cfg.Digest.Schedule) {
				g.log.Warn(ctx, fmt.Sprintf("invalid digest schedule %q, falling back to daily", g.cfg.Digest.Schedule))
			}
			go a.reportDBStats(ctx)
			if err := digest.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single digest and exit")
	cmd.Flags().StringVar(&setSchedule, "set-schedule", "", "store a digest schedule override picked up by running workers, then exit")
	return cmd
}
