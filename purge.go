package main

import (
	"context"
	"fmt"
	"time"

	"confique/config"
	"confique/database"
	"confique/logger"
	"confique/notify"
	"confique/store"

	"github.com/spf13/cobra"
)

func newPurgeCommand() *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "purge-notifications",
		Short: "Delete notifications older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if retention <= 0 {
				retention = cfg.NotificationRetention
			}
			log := logger.New(cfg.LogLevel, cfg.IsProduction())

			ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout+time.Minute)
			defer cancel()
			db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
			if err != nil {
				return err
			}
			defer db.Disconnect(context.Background())

			n, cutoff, err := notify.Purge(ctx, store.New(db).Notifications, retention, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d notifications created before %s\n", n, cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "override NOTIFICATION_RETENTION")
	return cmd
}
