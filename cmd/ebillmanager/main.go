package main

import (
	"context"
	"os"

	"github.com/bher20/ebillmanager/internal/config"
	"github.com/bher20/ebillmanager/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const serviceName = "ebillmanager"

type globals struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Water billing rate resolution, bill aggregation and statements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			boot := logger.New(logger.Options{ServiceName: serviceName})
			if err := godotenv.Load(); err != nil {
				boot.Debug(cmd.Context(), ".env file not found, relying on environment")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			g.cfg = cfg
			g.log = logger.New(logger.Options{
				ServiceName: serviceName,
				Level:       logger.ParseLevel(cfg.App.LogLevel),
				Format:      cfg.App.LogFormat,
				WarnStack:   cfg.App.LogWarnStack,
			})
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(g),
		newMigrateCmd(g),
		newWorkerCmd(g),
		newResolveCmd(g),
		newStatementCmd(g),
		newInvoiceCmd(g),
		newZipRatesCmd(g),
	)
	return root
}

func main() {
	ctx := context.Background()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(ctx, "command failed", err)
		os.Exit(1)
	}
}
