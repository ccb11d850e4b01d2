package main

import (
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/hotel-concierge/internal/app"
	"github.com/suPer8Hu/hotel-concierge/internal/config"
	"github.com/suPer8Hu/hotel-concierge/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "hbctl",
		Short:         "Operate the hotel booking concierge",
		Long:          `hbctl seeds and inspects bookings and loads documents into the knowledge base, using the same configuration as the API server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	env := func() (config.Config, *zap.Logger, *gorm.DB, error) {
		cfg, err := config.Load()
		if err != nil {
			return cfg, nil, nil, err
		}
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger, err := logging.New(cfg.Env, level)
		if err != nil {
			return cfg, nil, nil, err
		}
		gdb, err := app.OpenDB(cfg, logger)
		return cfg, logger, gdb, err
	}

	root.AddCommand(
		newSeedCmd(env),
		newBookingsCmd(env),
		newIngestCmd(env),
		newHashPasswordCmd(),
	)
	return root
}

type envFunc func() (config.Config, *zap.Logger, *gorm.DB, error)
