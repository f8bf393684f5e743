package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"rentfold/internal/billing"
	"rentfold/internal/lease"
	"rentfold/internal/storage"
	"rentfold/internal/store"
	"rentfold/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

type Service struct {
	logger *logrus.Logger
	config *types.Config

	machine    *lease.StateMachine
	collector  *lease.Collector
	issuer     *lease.TokenIssuer
	ledger     *billing.Ledger
	assessor   *billing.Assessor
	reconciler *billing.Reconciler

	leaseRepo *store.LeaseRepository
	tenants   *store.TenantRepository
	addenda   *store.AddendumRepository
	documents *storage.DocumentStore

	cookie *securecookie.SecureCookie

	jwksCache *jwk.Cache
	jwksURL   string

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	machine *lease.StateMachine,
	collector *lease.Collector,
	issuer *lease.TokenIssuer,
	ledger *billing.Ledger,
	assessor *billing.Assessor,
	reconciler *billing.Reconciler,
	leaseRepo *store.LeaseRepository,
	tenants *store.TenantRepository,
	addenda *store.AddendumRepository,
	documents *storage.DocumentStore,
	jwkCache *jwk.Cache,
	jwksURL string,
) (*Service, error) {
	mux := flow.New()

	hashKey, _ := base64.StdEncoding.DecodeString(config.CookieHashKey)
	blockKey, _ := base64.StdEncoding.DecodeString(config.CookieBlockKey)

	s := &Service{
		logger: logger,
		config: config,
		cookie: securecookie.New(hashKey, blockKey),

		machine:    machine,
		collector:  collector,
		issuer:     issuer,
		ledger:     ledger,
		assessor:   assessor,
		reconciler: reconciler,

		leaseRepo: leaseRepo,
		tenants:   tenants,
		addenda:   addenda,
		documents: documents,

		jwksCache: jwkCache,
		jwksURL:   jwksURL,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)

	// Gateway webhook: authenticated by payload signature, not a bearer
	// token.
	r.HandleFunc("/webhooks/stripe", s.handleStripeWebhook, http.MethodPost)

	// Unauthenticated signing flow: the signing token is the credential.
	r.HandleFunc("/sign/:token", s.handleGetSigning, http.MethodGet)
	r.HandleFunc("/sign/:token", s.handlePostSigning, http.MethodPost)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireStaff)

		r.HandleFunc("/leases", s.handleCreateLease, http.MethodPost)
		r.HandleFunc("/leases/:leaseID", s.handleGetLease, http.MethodGet)
		r.HandleFunc("/leases/:leaseID/terms", s.handleUpdateLeaseTerms, http.MethodPatch)
		r.HandleFunc("/leases/:leaseID/send", s.handleSendLease, http.MethodPost)
		r.HandleFunc("/leases/:leaseID/terminate", s.handleTerminateLease, http.MethodPost)
		r.HandleFunc("/leases/:leaseID/tokens", s.handleReissueToken, http.MethodPost)
		r.HandleFunc("/leases/:leaseID/rent-schedule", s.handleRentSchedule, http.MethodGet)

		r.HandleFunc("/leases/:leaseID/addenda", s.handleCreateAddendum, http.MethodPost)
		r.HandleFunc("/leases/:leaseID/addenda", s.handleListAddenda, http.MethodGet)
		r.HandleFunc("/addenda/:addendumID/send", s.handleSendAddendum, http.MethodPost)
		r.HandleFunc("/addenda/:addendumID/tokens", s.handleReissueAddendumToken, http.MethodPost)
		r.HandleFunc("/addenda/:addendumID/document", s.handleUploadAddendumDocument, http.MethodPost)

		r.HandleFunc("/payments", s.handleCreatePayment, http.MethodPost)
		r.HandleFunc("/payments/:paymentID", s.handleGetPayment, http.MethodGet)
		r.HandleFunc("/payments/:paymentID/refund", s.handleRefundPayment, http.MethodPost)
		r.HandleFunc("/payments/:paymentID/sync", s.handleSyncPayment, http.MethodPost)
		r.HandleFunc("/leases/:leaseID/payments", s.handleListPayments, http.MethodGet)

		r.HandleFunc("/leases/:leaseID/late-fees", s.handleAssessLateFee, http.MethodPost)
		r.HandleFunc("/leases/:leaseID/late-fees", s.handleListLateFees, http.MethodGet)
		r.HandleFunc("/late-fees/:feeID/waive", s.handleWaiveLateFee, http.MethodPost)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
