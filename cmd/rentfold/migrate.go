package main

import (
	"context"
	"fmt"

	"rentfold/internal/db"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Apply the database schema",
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

		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}

		logrus.Info("Schema applied")

		return nil
	},
}
