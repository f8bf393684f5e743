package main

import (
	"context"
	"fmt"

	"rentfold/internal/db"
	"rentfold/internal/seed"
	"rentfold/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with demo data",
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

		logrus.Info("Connected to database")

		tenantRepo := store.NewTenantRepository(pool)
		leaseRepo := store.NewLeaseRepository(pool)
		methodRepo := store.NewPaymentMethodRepository(pool)

		logrus.Info("Seeding demo data...")
		if err := seed.SeedDemo(ctx, tenantRepo, leaseRepo, methodRepo); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}

		logrus.Info("Demo data seeded successfully")

		return nil
	},
}
