package billing

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"rentfold/internal/gateway"
	"rentfold/internal/notify"
	"rentfold/internal/store"
	"rentfold/internal/utils"
	"rentfold/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type billingEnv struct {
	payments *fakePaymentStore
	methods  *fakeMethodStore
	leases   *fakeLeaseReader
	fees     *fakeLateFeeStore
	gw       *fakeGateway
	emitter  *fakeEmitter

	ledger     *Ledger
	assessor   *Assessor
	reconciler *Reconciler
}

const (
	testLeaseID  = "lease-1"
	testTenantID = "tenant-1"
	testMethodID = "method-1"
)

func newBillingEnv(t *testing.T) *billingEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	leases := &fakeLeaseReader{
		leases: map[string]*types.Lease{
			testLeaseID: {
				ID:              testLeaseID,
				Status:          types.LeaseStatusActive,
				RentCents:       185000,
				EndDate:         time.Now().AddDate(1, 0, 0),
				GracePeriodDays: 5,
				RentDueDay:      1,
			},
		},
		tenants: map[string][]*types.LeaseTenant{
			testLeaseID: {
				{LeaseID: testLeaseID, TenantID: testTenantID, IsPrimary: true},
				{LeaseID: testLeaseID, TenantID: "tenant-2"},
			},
		},
	}

	methods := &fakeMethodStore{
		methods: map[string]*types.SavedPaymentMethod{
			testMethodID: {
				ID:         testMethodID,
				TenantID:   testTenantID,
				Kind:       types.PaymentMethodCard,
				GatewayRef: "pm_card_visa",
			},
		},
	}

	payments := newFakePaymentStore()
	fees := newFakeLateFeeStore()
	gw := newFakeGateway()
	emitter := &fakeEmitter{}

	return &billingEnv{
		payments:   payments,
		methods:    methods,
		leases:     leases,
		fees:       fees,
		gw:         gw,
		emitter:    emitter,
		ledger:     NewLedger(logger, payments, methods, leases, gw, emitter, time.Second),
		assessor:   NewAssessor(logger, leases, fees, emitter),
		reconciler: NewReconciler(logger, gw, payments, emitter),
	}
}

func cardPaymentInput() CreatePaymentInput {
	return CreatePaymentInput{
		LeaseID:     testLeaseID,
		TenantID:    testTenantID,
		AmountCents: 185000,
		Method:      types.PaymentMethodCard,
		MethodID:    testMethodID,
	}
}

func TestCreateManualPayment(t *testing.T) {
	env := newBillingEnv(t)
	ctx := context.Background()

	paidAt := time.Now().AddDate(0, 0, -2)
	payment, err := env.ledger.CreatePayment(ctx, CreatePaymentInput{
		LeaseID:     testLeaseID,
		TenantID:    testTenantID,
		AmountCents: 185000,
		Method:      types.PaymentMethodManual,
		PaidAt:      &paidAt,
	})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, payment.Status)
	require.Equal(t, paidAt, *payment.PaidAt)
	require.Nil(t, payment.ChargeRef)

	require.Empty(t, env.gw.createCalls)
	require.Equal(t, 1, env.emitter.count(notify.EventPaymentCompleted))
}

func TestCreateCardPayment(t *testing.T) {
	env := newBillingEnv(t)
	ctx := context.Background()

	payment, err := env.ledger.CreatePayment(ctx, cardPaymentInput())
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusProcessing, payment.Status)
	require.NotNil(t, payment.ChargeRef)
	require.NotEmpty(t, payment.IdempotencyKey)

	require.Len(t, env.gw.createCalls, 1)
	require.Equal(t, payment.IdempotencyKey, env.gw.createCalls[0].IdempotencyKey)
	require.Equal(t, payment.AmountCents, env.gw.createCalls[0].AmountCents)
}

func TestCreateCardPaymentSynchronousSuccess(t *testing.T) {
	env := newBillingEnv(t)
	env.gw.chargeStatus = gateway.ChargeSucceeded
	env.gw.chargeFee = utils.Int64Ptr(567)

	payment, err := env.ledger.CreatePayment(context.Background(), cardPaymentInput())
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, payment.Status)

	stored, err := env.payments.Payment(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, int64(567), *stored.FeeCents)
	require.Equal(t, payment.AmountCents-567, *stored.NetCents)
	require.Equal(t, 1, env.emitter.count(notify.EventPaymentCompleted))
}

// A gateway failure is outcome-unknown: the payment stays PENDING with
// its idempotency key, never locally failed or completed.
func TestCreateCardPaymentGatewayFailure(t *testing.T) {
	env := newBillingEnv(t)
	env.gw.chargeErr = errors.New("connection reset")
	ctx := context.Background()

	payment, err := env.ledger.CreatePayment(ctx, cardPaymentInput())
	require.ErrorIs(t, err, types.ErrGateway)
	require.NotNil(t, payment)

	stored, err := env.payments.Payment(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusPending, stored.Status)
	require.Nil(t, stored.ChargeRef)
	require.NotEmpty(t, stored.IdempotencyKey)
	require.Equal(t, 0, env.emitter.count(notify.EventPaymentCompleted))
}

func TestCreatePaymentEligibility(t *testing.T) {
	env := newBillingEnv(t)
	ctx := context.Background()

	t.Run("amount must be positive", func(t *testing.T) {
		input := cardPaymentInput()
		input.AmountCents = 0
		_, err := env.ledger.CreatePayment(ctx, input)
		require.Error(t, err)
	})

	t.Run("lease must exist", func(t *testing.T) {
		input := cardPaymentInput()
		input.LeaseID = "no-such-lease"
		_, err := env.ledger.CreatePayment(ctx, input)
		require.ErrorIs(t, err, types.ErrLeaseNotFound)
	})

	t.Run("tenant must be on lease", func(t *testing.T) {
		input := cardPaymentInput()
		input.TenantID = "tenant-9"
		_, err := env.ledger.CreatePayment(ctx, input)
		require.ErrorIs(t, err, types.ErrTenantNotOnLease)
	})

	t.Run("gateway method needs a method id", func(t *testing.T) {
		input := cardPaymentInput()
		input.MethodID = ""
		_, err := env.ledger.CreatePayment(ctx, input)
		require.ErrorIs(t, err, types.ErrMissingPaymentMethod)
	})

	t.Run("method must belong to the tenant", func(t *testing.T) {
		input := cardPaymentInput()
		input.TenantID = "tenant-2"
		_, err := env.ledger.CreatePayment(ctx, input)
		require.ErrorIs(t, err, types.ErrPaymentMethodNotFound)
	})

	t.Run("expired lease refuses payment", func(t *testing.T) {
		env.leases.leases[testLeaseID].EndDate = time.Now().AddDate(0, -1, 0)
		defer func() { env.leases.leases[testLeaseID].EndDate = time.Now().AddDate(1, 0, 0) }()

		_, err := env.ledger.CreatePayment(ctx, cardPaymentInput())
		require.ErrorIs(t, err, types.ErrLeaseNotActive)
	})
}

func TestRefund(t *testing.T) {
	env := newBillingEnv(t)
	env.gw.chargeStatus = gateway.ChargeSucceeded
	ctx := context.Background()

	payment, err := env.ledger.CreatePayment(ctx, cardPaymentInput())
	require.NoError(t, err)

	refunded, err := env.ledger.Refund(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusRefunded, refunded.Status)
	require.Len(t, env.gw.refundCalls, 1)
	require.Equal(t, 1, env.emitter.count(notify.EventPaymentRefunded))

	// Refunding twice finds the payment past COMPLETED.
	_, err = env.ledger.Refund(ctx, payment.ID)
	require.ErrorIs(t, err, types.ErrPaymentNotRefundable)
}

func TestRefundRequiresCompleted(t *testing.T) {
	env := newBillingEnv(t)
	ctx := context.Background()

	payment, err := env.ledger.CreatePayment(ctx, cardPaymentInput())
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusProcessing, payment.Status)

	_, err = env.ledger.Refund(ctx, payment.ID)
	require.ErrorIs(t, err, types.ErrPaymentNotRefundable)
	require.Empty(t, env.gw.refundCalls)
}

// Gateway refund failure leaves the local row COMPLETED; only gateway
// confirmation moves it.
func TestRefundGatewayFailure(t *testing.T) {
	env := newBillingEnv(t)
	env.gw.chargeStatus = gateway.ChargeSucceeded
	ctx := context.Background()

	payment, err := env.ledger.CreatePayment(ctx, cardPaymentInput())
	require.NoError(t, err)

	env.gw.refundErr = errors.New("gateway down")
	_, err = env.ledger.Refund(ctx, payment.ID)
	require.ErrorIs(t, err, types.ErrGateway)

	stored, err := env.payments.Payment(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, stored.Status)
}

func TestSyncWithGateway(t *testing.T) {
	env := newBillingEnv(t)
	ctx := context.Background()

	payment, err := env.ledger.CreatePayment(ctx, cardPaymentInput())
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusProcessing, payment.Status)

	// The gateway settles the charge out of band; polling converges the
	// local row.
	env.gw.mu.Lock()
	charge := env.gw.charges[*payment.ChargeRef]
	charge.Status = gateway.ChargeSucceeded
	charge.FeeCents = utils.Int64Ptr(567)
	env.gw.mu.Unlock()

	synced, err := env.ledger.SyncWithGateway(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, synced.Status)
	require.Equal(t, int64(567), *synced.FeeCents)
	require.Equal(t, 1, env.emitter.count(notify.EventPaymentCompleted))

	// Polling again applies nothing new.
	synced, err = env.ledger.SyncWithGateway(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, synced.Status)
	require.Equal(t, 1, env.emitter.count(notify.EventPaymentCompleted))
}

func TestPaymentsFilter(t *testing.T) {
	env := newBillingEnv(t)
	ctx := context.Background()

	_, err := env.ledger.CreatePayment(ctx, CreatePaymentInput{
		LeaseID: testLeaseID, TenantID: testTenantID, AmountCents: 100, Method: types.PaymentMethodManual,
	})
	require.NoError(t, err)
	_, err = env.ledger.CreatePayment(ctx, cardPaymentInput())
	require.NoError(t, err)

	all, err := env.ledger.Payments(ctx, testLeaseID, store.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	completed, err := env.ledger.Payments(ctx, testLeaseID, store.PaymentFilter{Status: string(types.PaymentStatusCompleted)})
	require.NoError(t, err)
	require.Len(t, completed, 1)
}
