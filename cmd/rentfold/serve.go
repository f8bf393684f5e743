package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentfold/internal/billing"
	"rentfold/internal/db"
	"rentfold/internal/gateway"
	"rentfold/internal/lease"
	"rentfold/internal/notify"
	"rentfold/internal/server"
	"rentfold/internal/storage"
	"rentfold/internal/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config, err := loadConfig()
	if err != nil {
		return err
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return err
	}

	s3Client := s3.NewFromConfig(awsConfig)
	documents := storage.NewDocumentStore(s3Client, config.DocumentBucket)

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	leaseRepo := store.NewLeaseRepository(pool)
	addendumRepo := store.NewAddendumRepository(pool)
	tenantRepo := store.NewTenantRepository(pool)
	tokenRepo := store.NewTokenRepository(pool)
	signatureRepo := store.NewSignatureRepository(pool, tokenRepo)
	paymentRepo := store.NewPaymentRepository(pool)
	methodRepo := store.NewPaymentMethodRepository(pool)
	lateFeeRepo := store.NewLateFeeRepository(pool)

	gw := gateway.NewStripe(config.StripeSecretKey, config.StripeWebhookSecret)

	notifier := notify.New(logger, config.NotifySinkURL)
	defer notifier.Close()

	tokenTTL := time.Duration(config.SigningTokenTTLHours) * time.Hour
	gatewayTimeout := time.Duration(config.GatewayTimeoutSec) * time.Second

	issuer := lease.NewTokenIssuer(logger, tokenRepo, leaseRepo, addendumRepo)
	machine := lease.NewStateMachine(logger, leaseRepo, addendumRepo, issuer, tokenTTL)
	collector := lease.NewCollector(logger, signatureRepo, issuer, leaseRepo, addendumRepo, notifier)
	ledger := billing.NewLedger(logger, paymentRepo, methodRepo, leaseRepo, gw, notifier, gatewayTimeout)
	assessor := billing.NewAssessor(logger, leaseRepo, lateFeeRepo, notifier)
	reconciler := billing.NewReconciler(logger, gw, paymentRepo, notifier)

	jwkCache, err := jwk.NewCache(context.Background(), httprc.NewClient())
	if err != nil {
		return fmt.Errorf("failed to initialize jwk cache: %w", err)
	}

	jwksURL := fmt.Sprintf("%s/.well-known/jwks.json", config.StaffIssuerURL)

	err = jwkCache.Register(context.Background(), jwksURL)
	if err != nil {
		return fmt.Errorf("failed to register staff issuer jwk with cache: %w", err)
	}

	srv, err := server.New(
		config,
		logger,
		machine,
		collector,
		issuer,
		ledger,
		assessor,
		reconciler,
		leaseRepo,
		tenantRepo,
		addendumRepo,
		documents,
		jwkCache,
		jwksURL,
	)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
