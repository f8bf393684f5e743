package main

import (
	"context"
	"fmt"

	"rentfold/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func loadConfig() (*types.Config, error) {
	// Local development convenience; absent .env files are not an error.
	_ = godotenv.Load()

	c := new(types.Config)
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("set DATABASE_URL")
	}

	if c.StripeSecretKey == "" {
		return nil, fmt.Errorf("set STRIPE_SECRET_KEY")
	}

	if c.StaffIssuerURL == "" {
		return nil, fmt.Errorf("set STAFF_ISSUER_URL")
	}

	return c, nil
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	config, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	return config, nil
}
