package main

import (
	"context"
	"fmt"
	"time"

	"rentfold/internal/db"
	"rentfold/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// pruneEventsCommand deletes processed gateway event ids past the
// retention window. The gateway stops redelivering long before then, so
// the idempotency record is no longer needed.
var pruneEventsCommand = &cli.Command{
	Name:  "prune-events",
	Usage: "Delete processed gateway events past the retention window",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		cutoff := time.Now().AddDate(0, 0, -int(cfg.EventRetentionDays))

		paymentRepo := store.NewPaymentRepository(pool)
		pruned, err := paymentRepo.PruneEventsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune gateway events: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"pruned": pruned,
			"cutoff": cutoff.Format(time.RFC3339),
		}).Info("gateway events pruned")

		return nil
	},
}
