package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	inventorymetrics "stash/internal/inventory/metrics"
	"stash/internal/platform/config"
	"stash/internal/platform/logger"
)

func newSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire every due reservation once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format)
			m := inventorymetrics.New(prometheus.NewRegistry())

			b, err := buildBackends(cmd.Context(), cfg, log, m)
			if err != nil {
				return err
			}
			defer func() {
				_ = b.Close(context.WithoutCancel(cmd.Context()))
			}()

			eng, err := newEngine(cfg, log, b, m)
			if err != nil {
				return err
			}
			n, err := eng.SweepExpired(cmd.Context(), eng.Now())
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d reservations\n", n)
			return err
		},
	}
}
