package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go-pos-admin/internal/ledger"
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/testutil"
	"go-pos-admin/pkg/apperror"
	"go-pos-admin/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCustomerService(t *testing.T) (CustomerService, *gorm.DB, *bytes.Buffer, *recordingNotifier) {
	t.Helper()
	db := testutil.OpenDB(t)
	logs := &bytes.Buffer{}
	notifier := &recordingNotifier{}
	log := logger.New(logger.Options{ServiceName: "test", Output: &lockedWriter{buf: logs}})
	svc := NewCustomerService(db, repository.NewCustomerRepo(db), notifier, log, 5*time.Second)
	return svc, db, logs, notifier
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateCustomerRejectsDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newCustomerService(t)
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, &CreateCustomerRequest{Name: "  Budi ", Email: strPtr("budi@example.com")}, Actor{})
	require.NoError(t, err)
	require.Equal(t, "Budi", c.Name)
	require.Equal(t, model.TierBronze, c.Tier)
	require.Zero(t, c.LoyaltyPoints)

	_, err = svc.CreateCustomer(ctx, &CreateCustomerRequest{Name: "Other", Email: strPtr("budi@example.com")}, Actor{})
	require.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))
	require.Equal(t, apperror.ReasonDuplicateEmail, apperror.As(err).Reason())

	_, err = svc.CreateCustomer(ctx, &CreateCustomerRequest{Name: ""}, Actor{})
	require.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestPointsUpdateDerivesTier(t *testing.T) {
	svc, db, logs, notifier := newCustomerService(t)
	ctx := context.Background()
	c := testutil.SeedCustomer(t, db, "Ani")

	updated, err := svc.ApplyPointsUpdate(ctx, c.ID, intPtr(5200), nil, Actor{})
	require.NoError(t, err)
	require.Equal(t, 5200, updated.LoyaltyPoints)
	require.Equal(t, model.TierGold, updated.Tier)
	require.NotContains(t, logs.String(), "administrative tier override")
	require.Equal(t, []string{"customer_updated"}, notifier.types())

	updated, err = svc.ApplyPointsUpdate(ctx, c.ID, intPtr(999), nil, Actor{})
	require.NoError(t, err)
	require.Equal(t, model.TierBronze, updated.Tier)

	_, err = svc.ApplyPointsUpdate(ctx, c.ID, intPtr(-5), nil, Actor{})
	require.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestTierOverrideIsLogged(t *testing.T) {
	svc, db, logs, _ := newCustomerService(t)
	c := testutil.SeedCustomer(t, db, "Ani")
	platinum := model.TierPlatinum

	updated, err := svc.ApplyPointsUpdate(context.Background(), c.ID, intPtr(5200), &platinum, Actor{Name: "admin"})
	require.NoError(t, err)
	require.Equal(t, model.TierPlatinum, updated.Tier)
	require.Equal(t, 5200, updated.LoyaltyPoints)
	require.Contains(t, logs.String(), "administrative tier override")
	require.Contains(t, logs.String(), `"derived_tier":"GOLD"`)

	detail, err := svc.GetCustomer(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, model.TierPlatinum, detail.Standing.Tier)
	require.Equal(t, 100.0, detail.Standing.ProgressPercent)
	require.Nil(t, detail.Standing.NextTier)
}

func TestUpdateCustomerPartialFields(t *testing.T) {
	svc, db, _, _ := newCustomerService(t)
	ctx := context.Background()
	c := testutil.SeedCustomer(t, db, "Ani")
	other, err := svc.CreateCustomer(ctx, &CreateCustomerRequest{Name: "Dewi", Email: strPtr("dewi@example.com")}, Actor{})
	require.NoError(t, err)

	updated, err := svc.UpdateCustomer(ctx, c.ID, model.CustomerPatch{Phone: strPtr("0812")}, Actor{})
	require.NoError(t, err)
	require.Equal(t, "Ani", updated.Name)
	require.Equal(t, "0812", *updated.Phone)
	require.Equal(t, model.TierBronze, updated.Tier)

	_, err = svc.UpdateCustomer(ctx, c.ID, model.CustomerPatch{Email: other.Email}, Actor{})
	require.Equal(t, apperror.ReasonDuplicateEmail, apperror.As(err).Reason())

	bogus := model.Tier("DIAMOND")
	_, err = svc.UpdateCustomer(ctx, c.ID, model.CustomerPatch{Tier: &bogus}, Actor{})
	require.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestDeleteCustomerKeepsSales(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "A", 1000, 5)
	c := testutil.SeedCustomer(t, f.db, "Ani")
	sale, err := f.svc.Checkout(ctx, &CheckoutRequest{
		Items:         []ledger.LineRequest{{ProductID: p.ID, Quantity: 1}},
		CustomerID:    &c.ID,
		PaymentMethod: model.PaymentDebit,
	}, f.actor)
	require.NoError(t, err)

	svc := NewCustomerService(f.db, repository.NewCustomerRepo(f.db), nil, nil, time.Second)
	detail, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, detail.RecentTransactions, 1)

	require.NoError(t, svc.DeleteCustomer(ctx, c.ID))
	_, err = svc.GetCustomer(ctx, c.ID)
	require.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))

	kept, err := f.svc.GetTransaction(ctx, sale.ID)
	require.NoError(t, err)
	require.Nil(t, kept.CustomerID)
	require.Equal(t, "Ani", kept.CustomerName)

	require.Equal(t, apperror.CodeNotFound, apperror.CodeOf(svc.DeleteCustomer(ctx, c.ID)))
}

func TestListCustomersRejectsUnknownTier(t *testing.T) {
	svc, db, _, _ := newCustomerService(t)
	testutil.SeedCustomer(t, db, "Ani")

	_, err := svc.ListCustomers(context.Background(), repository.CustomerFilter{Tier: "DIAMOND"})
	require.ErrorIs(t, err, ledger.ErrInvalidTier)

	all, err := svc.ListCustomers(context.Background(), repository.CustomerFilter{Tier: model.TierBronze})
	require.NoError(t, err)
	require.Len(t, all, 1)
}
