// Package seed loads demo data for local development: a pair of
// tenants, their saved payment methods and a DRAFT lease ready to send
// for signature.
package seed

import (
	"context"
	"fmt"
	"time"

	"rentfold/internal/store"
	"rentfold/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/shopspring/decimal"
)

// Fixed IDs so reruns upsert instead of multiplying rows.
// To generate new IDs: `go run ./cmd/rentfold nanoid`
var demoTenants = []types.Tenant{
	{ID: "hYVvb3N2mJ4qkwPFtLxGsB8u1TdcROai", FullName: "Ava Williams", Email: "ava.williams+seed@example.com"},
	{ID: "Zc7RgEK0mpnDtAwbqU5LhvsX93foeSMJ", FullName: "Liam Johnson", Email: "liam.johnson+seed@example.com"},
}

const demoLandlordID = "Qp2WuhTEx8bKf0zYgXNDmLsv64AtjrcV"

func SeedDemo(ctx context.Context, tenants *store.TenantRepository, leases *store.LeaseRepository, methods *store.PaymentMethodRepository) error {
	fmt.Printf("  Seed file contains %d tenants\n", len(demoTenants))

	for i := range demoTenants {
		if err := tenants.UpsertTenant(ctx, &demoTenants[i]); err != nil {
			return fmt.Errorf("failed to upsert tenant %s: %w", demoTenants[i].ID, err)
		}
	}

	for _, tenant := range demoTenants {
		existing, err := methods.PaymentMethodsByTenant(ctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch payment methods for %s: %w", tenant.ID, err)
		}
		if len(existing) > 0 {
			// Already seeded; a rerun should not duplicate the demo lease
			// or the methods.
			fmt.Printf("  Tenant %s already seeded, skipping\n", tenant.FullName)
			return nil
		}

		method := &types.SavedPaymentMethod{
			TenantID:   tenant.ID,
			Kind:       types.PaymentMethodCard,
			GatewayRef: "pm_card_visa",
			Label:      "Visa •••• 4242",
		}
		if err := methods.CreatePaymentMethod(ctx, method); err != nil {
			return fmt.Errorf("failed to create payment method for %s: %w", tenant.ID, err)
		}
	}

	flat := types.LateFeePolicyFlat
	flatAmount := decimal.NewFromInt(50)

	start := time.Now().AddDate(0, 1, 0)
	lease := &types.Lease{
		UnitID:          "unit-demo-101",
		LandlordID:      demoLandlordID,
		StartDate:       start,
		EndDate:         start.AddDate(1, 0, 0),
		RentCents:       185000,
		DepositCents:    185000,
		LateFeePolicy:   &flat,
		LateFeeAmount:   &flatAmount,
		GracePeriodDays: 5,
		RentDueDay:      1,
	}

	leaseTenants := make([]types.LeaseTenant, 0, len(demoTenants))
	for i, tenant := range demoTenants {
		leaseTenants = append(leaseTenants, types.LeaseTenant{
			TenantID:  tenant.ID,
			Position:  i,
			IsPrimary: i == 0,
		})
	}

	if err := leases.CreateLease(ctx, lease, leaseTenants); err != nil {
		return fmt.Errorf("failed to create demo lease: %w", err)
	}

	pp.Println(lease.ID, lease.UnitID)

	fmt.Printf("\nSeed complete: %d tenants, 1 draft lease\n", len(demoTenants))
	return nil
}
