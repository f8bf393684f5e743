package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"rentfold/internal/gateway"
	"rentfold/internal/store"
	"rentfold/internal/utils"
	"rentfold/pkg/types"
)

// In-memory stores honoring the pgx repositories' conditional-update
// contracts: event-id idempotency, the legal payment edges, and the
// waive/pay exclusivity guards, all under one mutex.

type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[string]*types.Payment
	events   map[string]bool
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		payments: make(map[string]*types.Payment),
		events:   make(map[string]bool),
	}
}

func (f *fakePaymentStore) Payment(_ context.Context, paymentID string) (*types.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok {
		return nil, types.ErrPaymentNotFound
	}
	copied := *payment
	return &copied, nil
}

func (f *fakePaymentStore) PaymentsByLease(_ context.Context, leaseID string, filter store.PaymentFilter) ([]*types.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*types.Payment, 0)
	for _, payment := range f.payments {
		if payment.LeaseID != leaseID {
			continue
		}
		if filter.Status != "" && string(payment.Status) != filter.Status {
			continue
		}
		if filter.TenantID != "" && payment.TenantID != filter.TenantID {
			continue
		}
		copied := *payment
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakePaymentStore) CreatePayment(_ context.Context, payment *types.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment.ID = utils.NanoID()
	payment.CreatedAt = time.Now()

	copied := *payment
	f.payments[payment.ID] = &copied
	return nil
}

func (f *fakePaymentStore) AttachCharge(_ context.Context, paymentID, chargeRef string, status types.PaymentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok || payment.Status != types.PaymentStatusPending {
		return false, nil
	}
	payment.ChargeRef = &chargeRef
	payment.Status = status
	return true, nil
}

func (f *fakePaymentStore) MarkCompleted(_ context.Context, paymentID string, paidAt time.Time, feeCents *int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok || !payment.Status.CanTransitionTo(types.PaymentStatusCompleted) {
		return false, nil
	}
	payment.Status = types.PaymentStatusCompleted
	payment.PaidAt = &paidAt
	if feeCents != nil {
		net := payment.AmountCents - *feeCents
		payment.FeeCents = feeCents
		payment.NetCents = &net
	}
	return true, nil
}

func (f *fakePaymentStore) SettleFees(_ context.Context, paymentID string, feeCents int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok || payment.Status != types.PaymentStatusCompleted || payment.FeeCents != nil {
		return false, nil
	}
	net := payment.AmountCents - feeCents
	payment.FeeCents = &feeCents
	payment.NetCents = &net
	return true, nil
}

func (f *fakePaymentStore) MarkFailed(_ context.Context, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok || !payment.Status.CanTransitionTo(types.PaymentStatusFailed) {
		return false, nil
	}
	payment.Status = types.PaymentStatusFailed
	return true, nil
}

func (f *fakePaymentStore) MarkRefunded(_ context.Context, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok || payment.Status != types.PaymentStatusCompleted {
		return false, nil
	}
	payment.Status = types.PaymentStatusRefunded
	return true, nil
}

func (f *fakePaymentStore) ApplyEvent(_ context.Context, event *types.GatewayEvent) (types.EventOutcome, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var target *types.Payment
	for _, payment := range f.payments {
		if payment.ChargeRef != nil && *payment.ChargeRef == event.ChargeRef {
			target = payment
			break
		}
	}
	if target == nil {
		// Not recorded, so a redelivery can reconcile later.
		return types.EventUnknownCharge, "", nil
	}

	if f.events[event.ID] {
		return types.EventDuplicate, target.ID, nil
	}
	f.events[event.ID] = true

	outcome := types.EventSuperseded
	switch event.Type {
	case types.GatewayEventSucceeded:
		if target.Status == types.PaymentStatusPending || target.Status == types.PaymentStatusProcessing {
			occurred := event.OccurredAt
			target.Status = types.PaymentStatusCompleted
			target.PaidAt = &occurred
			if event.FeeCents != nil {
				fee := *event.FeeCents
				net := target.AmountCents - fee
				target.FeeCents = &fee
				target.NetCents = &net
			}
			outcome = types.EventApplied
		}
	case types.GatewayEventFailed:
		if target.Status == types.PaymentStatusPending || target.Status == types.PaymentStatusProcessing {
			target.Status = types.PaymentStatusFailed
			outcome = types.EventApplied
		}
	case types.GatewayEventRefunded:
		if target.Status == types.PaymentStatusCompleted {
			target.Status = types.PaymentStatusRefunded
			outcome = types.EventApplied
		}
	}

	return outcome, target.ID, nil
}

type fakeMethodStore struct {
	methods map[string]*types.SavedPaymentMethod
}

func (f *fakeMethodStore) PaymentMethod(_ context.Context, methodID string) (*types.SavedPaymentMethod, error) {
	method, ok := f.methods[methodID]
	if !ok {
		return nil, types.ErrPaymentMethodNotFound
	}
	return method, nil
}

type fakeLateFeeStore struct {
	mu   sync.Mutex
	fees map[string]*types.LateFee
}

func newFakeLateFeeStore() *fakeLateFeeStore {
	return &fakeLateFeeStore{fees: make(map[string]*types.LateFee)}
}

func (f *fakeLateFeeStore) LateFee(_ context.Context, feeID string) (*types.LateFee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fee, ok := f.fees[feeID]
	if !ok {
		return nil, types.ErrLateFeeNotFound
	}
	copied := *fee
	return &copied, nil
}

func (f *fakeLateFeeStore) LateFeesByLease(_ context.Context, leaseID string) ([]*types.LateFee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*types.LateFee, 0)
	for _, fee := range f.fees {
		if fee.LeaseID == leaseID {
			copied := *fee
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeLateFeeStore) CreateLateFee(_ context.Context, fee *types.LateFee) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fee.ID = utils.NanoID()
	fee.CreatedAt = time.Now()

	copied := *fee
	f.fees[fee.ID] = &copied
	return nil
}

func (f *fakeLateFeeStore) Waive(_ context.Context, feeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fee, ok := f.fees[feeID]
	if !ok || fee.Waived || fee.PaidDate != nil {
		return false, nil
	}
	now := time.Now()
	fee.Waived = true
	fee.WaivedAt = &now
	return true, nil
}

func (f *fakeLateFeeStore) MarkPaid(_ context.Context, feeID, paymentID string, paidDate time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fee, ok := f.fees[feeID]
	if !ok || fee.Waived || fee.PaidDate != nil {
		return false, nil
	}
	fee.PaidDate = &paidDate
	fee.PaymentID = &paymentID
	return true, nil
}

type fakeLeaseReader struct {
	leases  map[string]*types.Lease
	tenants map[string][]*types.LeaseTenant
}

func (f *fakeLeaseReader) Lease(_ context.Context, leaseID string) (*types.Lease, error) {
	lease, ok := f.leases[leaseID]
	if !ok {
		return nil, types.ErrLeaseNotFound
	}
	return lease, nil
}

func (f *fakeLeaseReader) Tenants(_ context.Context, leaseID string) ([]*types.LeaseTenant, error) {
	return f.tenants[leaseID], nil
}

// fakeGateway scripts gateway responses per call.
type fakeGateway struct {
	mu sync.Mutex

	chargeErr    error
	chargeStatus gateway.ChargeStatus
	chargeFee    *int64
	refundErr    error

	charges map[string]*gateway.Charge

	createCalls []gateway.ChargeRequest
	refundCalls []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		chargeStatus: gateway.ChargeProcessing,
		charges:      make(map[string]*gateway.Charge),
	}
}

func (f *fakeGateway) CreateCharge(_ context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls = append(f.createCalls, req)
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}

	charge := &gateway.Charge{
		Ref:      "pi_" + utils.NanoID(),
		Status:   f.chargeStatus,
		FeeCents: f.chargeFee,
	}
	f.charges[charge.Ref] = charge
	return charge, nil
}

func (f *fakeGateway) Refund(_ context.Context, chargeRef, idempotencyKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refundCalls = append(f.refundCalls, chargeRef)
	if f.refundErr != nil {
		return f.refundErr
	}
	if charge, ok := f.charges[chargeRef]; ok {
		charge.Status = gateway.ChargeRefunded
	}
	return nil
}

func (f *fakeGateway) Charge(_ context.Context, chargeRef string) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	charge, ok := f.charges[chargeRef]
	if !ok {
		return nil, errors.New("no such charge")
	}
	copied := *charge
	return &copied, nil
}

func (f *fakeGateway) VerifyEvent(payload []byte, signatureHeader string) (*types.GatewayEvent, error) {
	return nil, errors.New("not used in tests")
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEmitter) Emit(name string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, name)
}

func (f *fakeEmitter) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, event := range f.events {
		if event == name {
			n++
		}
	}
	return n
}
