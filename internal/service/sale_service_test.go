package service

import (
	"context"
	"sync"
	"testing"

	"go-pos-admin/internal/ledger"
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/testutil"
	"go-pos-admin/pkg/apperror"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func stockOf(t *testing.T, f *saleFixture, id uuid.UUID) int {
	t.Helper()
	var p model.Product
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func countRows(t *testing.T, f *saleFixture, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func TestCheckoutRecordsSaleAtomically(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()
	a := testutil.SeedProduct(t, f.db, "A", 1500, 10)
	b := testutil.SeedProduct(t, f.db, "B", 3000, 5)

	sale, err := f.svc.Checkout(ctx, &CheckoutRequest{
		Items: []ledger.LineRequest{
			{ProductID: a.ID, Quantity: 2, ClaimedUnitPriceCents: cents(1500)},
			{ProductID: b.ID, Quantity: 1, ClaimedUnitPriceCents: cents(3000)},
		},
		PaymentMethod: model.PaymentCash,
		TenderedCents: cents(10000),
	}, f.actor)
	require.NoError(t, err)

	require.Equal(t, int64(6000), sale.SubtotalCents)
	require.Equal(t, int64(660), sale.TaxCents)
	require.Equal(t, int64(6660), sale.TotalCents)
	require.Equal(t, int64(3340), sale.ChangeCents)
	require.Equal(t, WalkInCustomer, sale.CustomerName)
	require.Equal(t, model.TxStatusCompleted, sale.Status)
	require.Len(t, sale.Items, 2)

	require.Equal(t, 8, stockOf(t, f, a.ID))
	require.Equal(t, 4, stockOf(t, f, b.ID))
	require.Equal(t, []string{"sale_created"}, f.notifier.types())
	require.Equal(t, 1.0, promtest.ToFloat64(f.metrics.SalesTotal.WithLabelValues("success")))

	stored, err := f.svc.GetTransaction(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	require.NotNil(t, stored.Cashier)
	require.Equal(t, f.actor.ID, stored.Cashier.ID)
}

func TestCheckoutWithCustomerAndCard(t *testing.T) {
	f := newSaleFixture(t)
	a := testutil.SeedProduct(t, f.db, "A", 1000, 10)
	c := testutil.SeedCustomer(t, f.db, "Siti")

	sale, err := f.svc.Checkout(context.Background(), &CheckoutRequest{
		Items:         []ledger.LineRequest{{ProductID: a.ID, Quantity: 1}},
		CustomerID:    &c.ID,
		PaymentMethod: model.PaymentQRIS,
	}, f.actor)
	require.NoError(t, err)
	require.Equal(t, "Siti", sale.CustomerName)
	require.Equal(t, sale.TotalCents, sale.TenderedCents)
	require.Zero(t, sale.ChangeCents)

	missing := uuid.New()
	_, err = f.svc.Checkout(context.Background(), &CheckoutRequest{
		Items:         []ledger.LineRequest{{ProductID: a.ID, Quantity: 1}},
		CustomerID:    &missing,
		PaymentMethod: model.PaymentDebit,
	}, f.actor)
	require.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

func TestCheckoutRejectionsLeaveNoTrace(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()
	a := testutil.SeedProduct(t, f.db, "A", 1500, 3)
	b := testutil.SeedProduct(t, f.db, "B", 500, 1)

	cases := []struct {
		name   string
		req    CheckoutRequest
		code   apperror.Code
		reason apperror.Reason
	}{
		{
			name:   "stale price",
			req:    CheckoutRequest{Items: []ledger.LineRequest{{ProductID: a.ID, Quantity: 1, ClaimedUnitPriceCents: cents(1400)}}, PaymentMethod: model.PaymentDebit},
			code:   apperror.CodeConflict,
			reason: apperror.ReasonPriceMismatch,
		},
		{
			name:   "second line oversells",
			req:    CheckoutRequest{Items: []ledger.LineRequest{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 2}}, PaymentMethod: model.PaymentDebit},
			code:   apperror.CodeConflict,
			reason: apperror.ReasonInsufficientStock,
		},
		{
			name:   "repeated product oversells in aggregate",
			req:    CheckoutRequest{Items: []ledger.LineRequest{{ProductID: a.ID, Quantity: 2}, {ProductID: a.ID, Quantity: 2}}, PaymentMethod: model.PaymentDebit},
			code:   apperror.CodeConflict,
			reason: apperror.ReasonInsufficientStock,
		},
		{
			name:   "cash short",
			req:    CheckoutRequest{Items: []ledger.LineRequest{{ProductID: a.ID, Quantity: 1}}, PaymentMethod: model.PaymentCash, TenderedCents: cents(100)},
			code:   apperror.CodeValidation,
			reason: apperror.ReasonInsufficientPayment,
		},
		{
			name:   "unknown product",
			req:    CheckoutRequest{Items: []ledger.LineRequest{{ProductID: uuid.New(), Quantity: 1}}, PaymentMethod: model.PaymentDebit},
			code:   apperror.CodeNotFound,
		},
		{
			name: "empty cart",
			req:  CheckoutRequest{},
			code: apperror.CodeValidation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			_, err := f.svc.Checkout(ctx, &req, f.actor)
			typed := apperror.As(err)
			require.NotNil(t, typed, "got %v", err)
			require.Equal(t, tc.code, typed.Code())
			require.Equal(t, tc.reason, typed.Reason())
		})
	}

	require.Equal(t, 3, stockOf(t, f, a.ID))
	require.Equal(t, 1, stockOf(t, f, b.ID))
	require.Zero(t, countRows(t, f, &model.Transaction{}))
	require.Zero(t, countRows(t, f, &model.TransactionItem{}))
}

func TestConcurrentCheckoutNeverOversells(t *testing.T) {
	f := newSaleFixture(t)
	p := testutil.SeedProduct(t, f.db, "LAST", 1000, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(context.Background(), &CheckoutRequest{
				Items:         []ledger.LineRequest{{ProductID: p.ID, Quantity: 1}},
				PaymentMethod: model.PaymentDebit,
			}, f.actor)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ledger.ErrInsufficientStock)
		conflicts++
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, conflicts)
	require.Equal(t, 0, stockOf(t, f, p.ID))
	require.Equal(t, int64(1), countRows(t, f, &model.Transaction{}))
}

func TestCheckoutStoreUnavailable(t *testing.T) {
	f := newSaleFixture(t)
	p := testutil.SeedProduct(t, f.db, "A", 1000, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.Checkout(ctx, &CheckoutRequest{
		Items:         []ledger.LineRequest{{ProductID: p.ID, Quantity: 1}},
		PaymentMethod: model.PaymentDebit,
	}, f.actor)
	require.Equal(t, apperror.CodeStoreUnavailable, apperror.CodeOf(err))
	require.True(t, apperror.MetadataFor(apperror.CodeOf(err)).Retryable)
	require.Equal(t, 5, stockOf(t, f, p.ID))
}

func checkoutFixtureSale(t *testing.T, f *saleFixture) (*model.Transaction, model.Product, model.Product) {
	t.Helper()
	a := testutil.SeedProduct(t, f.db, "A", 1500, 10)
	b := testutil.SeedProduct(t, f.db, "B", 3000, 5)
	sale, err := f.svc.Checkout(context.Background(), &CheckoutRequest{
		Items:         []ledger.LineRequest{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 1}},
		PaymentMethod: model.PaymentDebit,
	}, f.actor)
	require.NoError(t, err)
	return sale, a, b
}

func itemFor(sale *model.Transaction, productID uuid.UUID) model.TransactionItem {
	for _, it := range sale.Items {
		if it.ProductID != nil && *it.ProductID == productID {
			return it
		}
	}
	return model.TransactionItem{}
}

func TestRefundPartialThenFull(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()
	sale, a, b := checkoutFixtureSale(t, f)
	itemA := itemFor(sale, a.ID)
	itemB := itemFor(sale, b.ID)

	refund, err := f.svc.RefundSale(ctx, sale.ID, []ledger.RefundSelection{
		{ItemID: itemA.ID, Quantity: 1, Reason: model.ReasonDamaged},
	}, f.actor)
	require.NoError(t, err)
	require.Equal(t, int64(1500), refund.TotalCents)
	require.Equal(t, WalkInCustomer, refund.CustomerName)
	require.Equal(t, model.RefundStatusCompleted, refund.Status)
	require.Equal(t, f.actor.Name, refund.ProcessedByName)
	require.Len(t, refund.Items, 1)
	require.Equal(t, model.ReasonDamaged, refund.Items[0].Reason)
	require.Equal(t, 9, stockOf(t, f, a.ID))

	after, err := f.svc.GetTransaction(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, model.TxStatusPartiallyRefunded, after.Status)
	require.Equal(t, int64(4500), after.SubtotalCents)
	require.Equal(t, int64(495), after.TaxCents)
	require.Equal(t, int64(4995), after.TotalCents)
	require.Equal(t, 2, after.Version)

	refund, err = f.svc.RefundSale(ctx, sale.ID, []ledger.RefundSelection{
		{ItemID: itemA.ID},
		{ItemID: itemB.ID},
	}, f.actor)
	require.NoError(t, err)
	require.Equal(t, int64(4500), refund.TotalCents)
	require.Equal(t, model.ReasonCustomerRequest, refund.Items[0].Reason)

	after, err = f.svc.GetTransaction(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, model.TxStatusRefunded, after.Status)
	require.Empty(t, after.Items)
	require.Zero(t, after.TotalCents)
	require.Equal(t, 10, stockOf(t, f, a.ID))
	require.Equal(t, 5, stockOf(t, f, b.ID))

	_, err = f.svc.RefundSale(ctx, sale.ID, []ledger.RefundSelection{{ItemID: itemA.ID}}, f.actor)
	require.Equal(t, apperror.ReasonInvalidTransaction, apperror.As(err).Reason())

	refunds, err := f.svc.ListRefunds(ctx, &sale.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 2)
	require.Contains(t, f.notifier.types(), "refund_processed")
}

func TestRefundRejections(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()
	sale, a, _ := checkoutFixtureSale(t, f)

	_, err := f.svc.RefundSale(ctx, sale.ID, nil, f.actor)
	require.ErrorIs(t, err, ledger.ErrEmptySelection)

	_, err = f.svc.RefundSale(ctx, uuid.New(), []ledger.RefundSelection{{ItemID: uuid.New()}}, f.actor)
	require.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
	require.Equal(t, apperror.ReasonInvalidTransaction, apperror.As(err).Reason())

	_, err = f.svc.RefundSale(ctx, sale.ID, []ledger.RefundSelection{{ItemID: itemFor(sale, a.ID).ID, Quantity: 5}}, f.actor)
	require.ErrorIs(t, err, ledger.ErrInvalidLineItem)

	require.Zero(t, countRows(t, f, &model.Refund{}))
	require.Equal(t, 8, stockOf(t, f, a.ID))
}

func TestRefundSkipsDeletedProduct(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()
	sale, a, _ := checkoutFixtureSale(t, f)
	require.NoError(t, f.db.Delete(&model.Product{}, "id = ?", a.ID).Error)

	refund, err := f.svc.RefundSale(ctx, sale.ID, []ledger.RefundSelection{{ItemID: itemFor(sale, a.ID).ID}}, f.actor)
	require.NoError(t, err)
	require.Equal(t, int64(3000), refund.TotalCents)
	require.Contains(t, f.logs.String(), "stock not restored")
}

func TestConcurrentFullRefundsApplyOnce(t *testing.T) {
	f := newSaleFixture(t)
	sale, a, b := checkoutFixtureSale(t, f)
	selections := []ledger.RefundSelection{{ItemID: itemFor(sale, a.ID).ID}, {ItemID: itemFor(sale, b.ID).ID}}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RefundSale(context.Background(), sale.ID, selections, f.actor)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, int64(1), countRows(t, f, &model.Refund{}))
	require.Equal(t, 10, stockOf(t, f, a.ID))
	require.Equal(t, 5, stockOf(t, f, b.ID))
}

func TestInvoice(t *testing.T) {
	f := newSaleFixture(t)
	sale, _, _ := checkoutFixtureSale(t, f)

	inv, err := f.svc.Invoice(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, int64(6000), inv.SubtotalCents)
	require.Equal(t, int64(660), inv.TaxCents)
	require.Equal(t, int64(6660), inv.GrandTotalCents)
	require.Equal(t, "0.11", inv.TaxRate)
	require.Equal(t, f.actor.Name, inv.CashierName)
}
