package repository

import (
	"context"
	"errors"
	"time"

	"go-pos-admin/internal/ledger"
	"go-pos-admin/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleVersion means another writer changed the transaction first.
var ErrStaleVersion = errors.New("transaction version changed")

type TransactionFilter struct {
	CustomerID *uuid.UUID
	Status     model.TransactionStatus
	Limit      int
}

// DashboardStats is the overview shown on the admin landing page.
type DashboardStats struct {
	TotalProducts     int64 `json:"total_products"`
	TotalCategories   int64 `json:"total_categories"`
	TotalStock        int64 `json:"total_stock"`
	LowStockCount     int64 `json:"low_stock_count"`
	TotalTransactions int64 `json:"total_transactions"`
	TotalCustomers    int64 `json:"total_customers"`
	NetRevenueCents   int64 `json:"net_revenue_cents"`
	RefundedCents     int64 `json:"refunded_cents"`
}

// SaleRow is one transaction reduced to what the sales chart needs.
type SaleRow struct {
	CreatedAt  time.Time
	TotalCents int64
	ItemsSold  int64
}

// RefundUpdate is the residual state written back after a refund.
type RefundUpdate struct {
	TransactionID   uuid.UUID
	ExpectedVersion int
	Totals          ledger.Totals
	Status          model.TransactionStatus
	Residual        []model.TransactionItem
	Removed         []uuid.UUID
	UpdatedBy       string
}

type TransactionRepository interface {
	WithTx(tx *gorm.DB) TransactionRepository
	Create(ctx context.Context, tx *model.Transaction) error
	FindAll(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	ApplyRefund(ctx context.Context, upd RefundUpdate) error
	GetDashboardStats(ctx context.Context, lowStockThreshold int) (*DashboardStats, error)
	SalesSince(ctx context.Context, since time.Time) ([]SaleRow, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) WithTx(tx *gorm.DB) TransactionRepository {
	return &transactionRepo{tx}
}

// Create inserts the transaction together with its items.
func (r *transactionRepo) Create(ctx context.Context, tx *model.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *transactionRepo) FindAll(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error) {
	var transactions []model.Transaction
	q := r.db.WithContext(ctx).Preload("Items").Preload("Cashier")
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Order("created_at DESC").Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var transaction model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Cashier").
		First(&transaction, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// ApplyRefund writes the post-refund state guarded by the version the caller
// planned against. It returns ErrStaleVersion if that version is gone.
func (r *transactionRepo) ApplyRefund(ctx context.Context, upd RefundUpdate) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.Transaction{}).
		Where("id = ? AND version = ?", upd.TransactionID, upd.ExpectedVersion).
		Updates(map[string]any{
			"subtotal_cents": upd.Totals.SubtotalCents,
			"tax_cents":      upd.Totals.TaxCents,
			"total_cents":    upd.Totals.GrandTotalCents,
			"status":         upd.Status,
			"version":        gorm.Expr("version + 1"),
			"updated_by":     upd.UpdatedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}

	for _, it := range upd.Residual {
		err := db.Model(&model.TransactionItem{}).Where("id = ?", it.ID).
			Updates(map[string]any{"quantity": it.Quantity, "subtotal_cents": it.SubtotalCents}).Error
		if err != nil {
			return err
		}
	}
	if len(upd.Removed) > 0 {
		if err := db.Delete(&model.TransactionItem{}, "id IN ?", upd.Removed).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *transactionRepo) GetDashboardStats(ctx context.Context, lowStockThreshold int) (*DashboardStats, error) {
	var stats DashboardStats
	db := r.db.WithContext(ctx)

	steps := []func() error{
		func() error { return db.Model(&model.Product{}).Count(&stats.TotalProducts).Error },
		func() error { return db.Model(&model.Category{}).Count(&stats.TotalCategories).Error },
		func() error { return db.Model(&model.Customer{}).Count(&stats.TotalCustomers).Error },
		func() error {
			return db.Model(&model.Product{}).Select("COALESCE(SUM(stock), 0)").Scan(&stats.TotalStock).Error
		},
		func() error {
			return db.Model(&model.Product{}).Where("stock < ?", lowStockThreshold).Count(&stats.LowStockCount).Error
		},
		func() error { return db.Model(&model.Transaction{}).Count(&stats.TotalTransactions).Error },
		func() error {
			return db.Model(&model.Transaction{}).Select("COALESCE(SUM(total_cents), 0)").Scan(&stats.NetRevenueCents).Error
		},
		func() error {
			return db.Model(&model.Refund{}).Select("COALESCE(SUM(total_cents), 0)").Scan(&stats.RefundedCents).Error
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return &stats, nil
}

// SalesSince lists every sale created at or after since, oldest first.
func (r *transactionRepo) SalesSince(ctx context.Context, since time.Time) ([]SaleRow, error) {
	var rows []SaleRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT t.created_at AS created_at,
		       t.total_cents AS total_cents,
		       COALESCE((SELECT SUM(i.quantity) FROM transaction_items i WHERE i.transaction_id = t.id), 0) AS items_sold
		FROM transactions t
		WHERE t.created_at >= ? AND t.deleted_at IS NULL
		ORDER BY t.created_at ASC`, since).
		Scan(&rows).Error
	return rows, err
}
