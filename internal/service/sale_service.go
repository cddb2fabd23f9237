package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go-pos-admin/internal/cache"
	"go-pos-admin/internal/ledger"
	"go-pos-admin/internal/lock"
	"go-pos-admin/internal/metrics"
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/ws"
	"go-pos-admin/pkg/apperror"
	"go-pos-admin/pkg/logger"
	"go-pos-admin/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SaleService interface {
	Checkout(ctx context.Context, req *CheckoutRequest, actor Actor) (*model.Transaction, error)
	CreateSale(ctx context.Context, lines []ledger.ResolvedLine, sale SaleDetails, actor Actor) (*model.Transaction, error)
	RefundSale(ctx context.Context, transactionID uuid.UUID, selections []ledger.RefundSelection, actor Actor) (*model.Refund, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, error)
	Invoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListRefunds(ctx context.Context, transactionID *uuid.UUID) ([]model.Refund, error)
}

type CheckoutRequest struct {
	Items         []ledger.LineRequest `json:"items" validate:"required,min=1"`
	CustomerID    *uuid.UUID           `json:"customer_id"`
	PaymentMethod model.PaymentMethod  `json:"payment_method" validate:"omitempty,payment_method"`
	TenderedCents *int64               `json:"tendered_cents" validate:"omitempty,gte=0"`
	Note          string               `json:"note" validate:"max=500"`
}

// SaleDetails is everything about a sale besides its lines.
type SaleDetails struct {
	CustomerID    *uuid.UUID
	CustomerName  string
	PaymentMethod model.PaymentMethod
	TenderedCents *int64
	Note          string
}

type RefundRequest struct {
	Items []ledger.RefundSelection `json:"items"`
}

// Invoice is a printable view of a sale in its current state.
type Invoice struct {
	Transaction     *model.Transaction      `json:"transaction"`
	Items           []model.TransactionItem `json:"items"`
	CashierName     string                  `json:"cashier_name"`
	CustomerName    string                  `json:"customer_name"`
	SubtotalCents   int64                   `json:"subtotal_cents"`
	TaxCents        int64                   `json:"tax_cents"`
	GrandTotalCents int64                   `json:"grand_total_cents"`
	TaxRate         string                  `json:"tax_rate"`
}

// SaleDeps wires the sale ledger to its collaborators.
type SaleDeps struct {
	Products     repository.ProductRepository
	Customers    repository.CustomerRepository
	Transactions repository.TransactionRepository
	Refunds      repository.RefundRepository
	Pricer       ledger.Pricer
	Locker       lock.Locker
	LockTTL      time.Duration
	Cache        *cache.Cache
	Notifier     Notifier
	Metrics      *metrics.Metrics
	Log          *logger.Logger
	StoreTimeout time.Duration
}

type saleService struct {
	db *gorm.DB
	SaleDeps
}

func NewSaleService(db *gorm.DB, deps SaleDeps) SaleService {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	deps.Notifier = notifierOrNop(deps.Notifier)
	return &saleService{db: db, SaleDeps: deps}
}

// Checkout resolves the cart against the catalog, then records the sale.
func (s *saleService) Checkout(ctx context.Context, req *CheckoutRequest, actor Actor) (*model.Transaction, error) {
	if len(req.Items) == 0 {
		return nil, ledger.ErrEmptyCart
	}
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	lines, err := ledger.ResolveCatalog(storeCtx, s.Products, req.Items)
	if err != nil {
		s.Metrics.SaleFailed(failureLabel(err))
		return nil, err
	}

	details := SaleDetails{
		CustomerID:    req.CustomerID,
		CustomerName:  WalkInCustomer,
		PaymentMethod: req.PaymentMethod,
		TenderedCents: req.TenderedCents,
		Note:          strings.TrimSpace(req.Note),
	}
	if req.CustomerID != nil {
		c, err := s.Customers.FindByID(storeCtx, *req.CustomerID)
		if err != nil {
			return nil, apperror.FromStore(err, "customer not found")
		}
		details.CustomerName = c.Name
	}
	return s.CreateSale(ctx, lines, details, actor)
}

// CreateSale prices lines and records the sale in one unit of work: every
// stock decrement, the transaction row and its items commit together or not
// at all.
func (s *saleService) CreateSale(ctx context.Context, lines []ledger.ResolvedLine, details SaleDetails, actor Actor) (*model.Transaction, error) {
	started := time.Now()
	defer func() { s.Metrics.ObserveLedger("sale", time.Since(started).Seconds()) }()

	if len(lines) == 0 {
		return nil, ledger.ErrEmptyCart
	}
	totals, err := s.Pricer.PriceResolved(lines)
	if err != nil {
		return nil, err
	}
	payment, err := settle(details, totals)
	if err != nil {
		s.Metrics.SaleFailed("insufficient_payment")
		return nil, err
	}

	sale := &model.Transaction{
		SubtotalCents: totals.SubtotalCents,
		TaxCents:      totals.TaxCents,
		TotalCents:    totals.GrandTotalCents,
		Status:        model.TxStatusCompleted,
		Version:       1,
		PaymentMethod: payment.method,
		TenderedCents: payment.tendered,
		ChangeCents:   payment.change,
		Note:          details.Note,
		CustomerID:    details.CustomerID,
		CustomerName:  details.CustomerName,
		Items:         make([]model.TransactionItem, 0, len(lines)),
	}
	if sale.CustomerName == "" {
		sale.CustomerName = WalkInCustomer
	}
	if actor.ID != uuid.Nil {
		cashier := actor.ID
		sale.CashierID = &cashier
	}
	sale.CreatedBy = actor.AuditID()
	sale.UpdatedBy = actor.AuditID()
	for _, l := range lines {
		productID := l.ProductID
		sale.Items = append(sale.Items, model.TransactionItem{
			ProductID:     &productID,
			Name:          l.Name,
			SKU:           l.SKU,
			Quantity:      l.Quantity,
			PriceCents:    l.UnitPriceCents,
			SubtotalCents: l.SubtotalCents,
		})
	}

	order, qty := ledger.QuantitiesByProduct(lines)
	// Fixed lock order across concurrent sales.
	sort.Slice(order, func(i, j int) bool { return bytes.Compare(order[i][:], order[j][:]) < 0 })

	storeCtx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	err = s.db.WithContext(storeCtx).Transaction(func(tx *gorm.DB) error {
		products := s.Products.WithTx(tx)
		for _, id := range order {
			ok, err := products.DecrementStock(storeCtx, id, qty[id])
			if err != nil {
				return err
			}
			if !ok {
				return apperror.Conflict(fmt.Sprintf("insufficient stock for product %s", id)).
					WithReason(apperror.ReasonInsufficientStock).
					WithDetails(map[string]any{"product_id": id, "requested": qty[id]})
			}
		}
		return s.Transactions.WithTx(tx).Create(storeCtx, sale)
	})
	if err != nil {
		err = apperror.FromStore(err, "failed to record sale")
		s.Metrics.SaleFailed(failureLabel(err))
		s.Log.Warn(ctx, "sale rejected", logger.Field("error", err.Error()))
		return nil, err
	}

	s.Metrics.SaleSucceeded(sale.TotalCents)
	s.invalidateProducts(ctx)
	s.Notifier.Publish(ws.EventSaleCreated, map[string]any{
		"transaction_id": sale.ID,
		"total_cents":    sale.TotalCents,
		"items":          len(sale.Items),
		"customer_name":  sale.CustomerName,
		"user":           actor.ref(),
	})
	s.Log.Info(ctx, "sale recorded",
		logger.Field("transaction_id", sale.ID.String()),
		logger.Field("total_cents", sale.TotalCents),
	)
	return sale, nil
}

type settlement struct {
	method   model.PaymentMethod
	tendered int64
	change   int64
}

func settle(details SaleDetails, totals ledger.Totals) (settlement, error) {
	method := details.PaymentMethod
	if method == "" {
		method = model.PaymentCash
	}
	if !method.IsValid() {
		return settlement{}, apperror.Validation(fmt.Sprintf("unknown payment method %q", method))
	}
	if method != model.PaymentCash {
		return settlement{method: method, tendered: totals.GrandTotalCents}, nil
	}
	if details.TenderedCents == nil {
		return settlement{}, apperror.Validation("tendered_cents is required for cash payments").
			WithReason(apperror.ReasonInsufficientPayment)
	}
	change, err := ledger.Change(*details.TenderedCents, totals.GrandTotalCents)
	if err != nil {
		return settlement{}, err
	}
	return settlement{method: method, tendered: *details.TenderedCents, change: change}, nil
}

// RefundSale reverses part or all of a sale. Refunds on one transaction are
// serialized by a keyed lock and the transaction's version column.
func (s *saleService) RefundSale(ctx context.Context, transactionID uuid.UUID, selections []ledger.RefundSelection, actor Actor) (*model.Refund, error) {
	started := time.Now()
	defer func() { s.Metrics.ObserveLedger("refund", time.Since(started).Seconds()) }()

	if len(selections) == 0 {
		return nil, ledger.ErrEmptySelection
	}

	var refund *model.Refund
	key := "pos:lock:refund:" + transactionID.String()
	err := s.Locker.WithLock(ctx, key, s.LockTTL, func(ctx context.Context) error {
		storeCtx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
		defer cancel()

		return s.db.WithContext(storeCtx).Transaction(func(tx *gorm.DB) error {
			sale, err := s.Transactions.WithTx(tx).FindByID(storeCtx, transactionID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound(fmt.Sprintf("transaction %s not found", transactionID)).
					WithReason(apperror.ReasonInvalidTransaction)
			}
			if err != nil {
				return err
			}

			plan, err := ledger.PlanRefund(sale, selections, s.Pricer)
			if err != nil {
				return err
			}

			refund = buildRefund(sale, plan, actor)
			if err := s.Refunds.WithTx(tx).Create(storeCtx, refund); err != nil {
				return err
			}

			products := s.Products.WithTx(tx)
			for _, line := range plan.Lines {
				if line.Item.ProductID == nil {
					continue
				}
				ok, err := products.IncrementStock(storeCtx, *line.Item.ProductID, line.Quantity)
				if err != nil {
					return err
				}
				if !ok {
					s.Log.Warn(ctx, "refunded product no longer exists, stock not restored",
						logger.Field("product_id", line.Item.ProductID.String()),
						logger.Field("transaction_id", transactionID.String()),
					)
				}
			}

			err = s.Transactions.WithTx(tx).ApplyRefund(storeCtx, repository.RefundUpdate{
				TransactionID:   sale.ID,
				ExpectedVersion: sale.Version,
				Totals:          plan.Totals,
				Status:          plan.Status,
				Residual:        plan.Residual,
				Removed:         plan.Removed,
				UpdatedBy:       actor.AuditID(),
			})
			if errors.Is(err, repository.ErrStaleVersion) {
				return apperror.Conflict("transaction was modified by a concurrent refund").
					WithReason(apperror.ReasonConcurrentRefund)
			}
			return err
		})
	})
	if err != nil {
		err = apperror.FromStore(err, "failed to process refund")
		s.Metrics.RefundFailed(failureLabel(err))
		s.Log.Warn(ctx, "refund rejected",
			logger.Field("transaction_id", transactionID.String()),
			logger.Field("error", err.Error()),
		)
		return nil, err
	}

	s.Metrics.RefundSucceeded(refund.TotalCents)
	s.invalidateProducts(ctx)
	s.Notifier.Publish(ws.EventRefundProcessed, map[string]any{
		"refund_id":      refund.ID,
		"refund_number":  refund.Number,
		"transaction_id": transactionID,
		"total_cents":    refund.TotalCents,
		"user":           actor.ref(),
	})
	s.Log.Info(ctx, "refund processed",
		logger.Field("refund_id", refund.ID.String()),
		logger.Field("transaction_id", transactionID.String()),
		logger.Field("total_cents", refund.TotalCents),
	)
	return refund, nil
}

func buildRefund(sale *model.Transaction, plan *ledger.RefundPlan, actor Actor) *model.Refund {
	customerName := sale.CustomerName
	if customerName == "" {
		customerName = WalkInCustomer
	}
	refund := &model.Refund{
		Number:          refundNumber(time.Now()),
		TransactionID:   sale.ID,
		TotalCents:      plan.TotalCents,
		Status:          model.RefundStatusCompleted,
		ProcessedByName: actor.Name,
		CustomerName:    customerName,
		Items:           make([]model.RefundItem, 0, len(plan.Lines)),
	}
	if actor.ID != uuid.Nil {
		processor := actor.ID
		refund.ProcessedByID = &processor
	}
	refund.CreatedBy = actor.AuditID()
	refund.UpdatedBy = actor.AuditID()
	for _, l := range plan.Lines {
		refund.Items = append(refund.Items, model.RefundItem{
			TransactionItemID: l.Item.ID,
			ProductID:         l.Item.ProductID,
			Name:              l.Item.Name,
			Quantity:          l.Quantity,
			UnitPriceCents:    l.Item.PriceCents,
			RefundCents:       l.AmountCents,
			Reason:            l.Reason,
		})
	}
	return refund
}

func refundNumber(now time.Time) string {
	return fmt.Sprintf("R-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

// failureLabel turns an error into a low-cardinality metric label.
func failureLabel(err error) string {
	typed := apperror.As(err)
	if typed == nil {
		return "internal"
	}
	if typed.Reason() != apperror.ReasonNone {
		return strings.ToLower(string(typed.Reason()))
	}
	return strings.ToLower(string(typed.Code()))
}

func (s *saleService) invalidateProducts(ctx context.Context) {
	if err := s.Cache.InvalidatePrefix(context.WithoutCancel(ctx), cache.ProductListKey); err != nil {
		s.Log.Warn(ctx, "product cache invalidation failed", logger.Field("error", err.Error()))
	}
}

func (s *saleService) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	ctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	tx, err := s.Transactions.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, "transaction not found")
	}
	return tx, nil
}

func (s *saleService) ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, error) {
	ctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	txs, err := s.Transactions.FindAll(ctx, filter)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to list transactions")
	}
	return txs, nil
}

// Invoice recomputes the bill from the sale's remaining items.
func (s *saleService) Invoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	var subtotal int64
	for _, it := range tx.Items {
		subtotal += it.SubtotalCents
	}
	totals := s.Pricer.Totals(subtotal)

	cashier := ""
	if tx.Cashier != nil {
		cashier = tx.Cashier.FullName
	}
	return &Invoice{
		Transaction:     tx,
		Items:           tx.Items,
		CashierName:     cashier,
		CustomerName:    tx.CustomerName,
		SubtotalCents:   totals.SubtotalCents,
		TaxCents:        totals.TaxCents,
		GrandTotalCents: totals.GrandTotalCents,
		TaxRate:         s.Pricer.TaxRate().String(),
	}, nil
}

func (s *saleService) ListRefunds(ctx context.Context, transactionID *uuid.UUID) ([]model.Refund, error) {
	ctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()
	refunds, err := s.Refunds.FindAll(ctx, transactionID)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to list refunds")
	}
	return refunds, nil
}
