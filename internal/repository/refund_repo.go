package repository

import (
	"context"

	"go-pos-admin/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RefundRepository interface {
	WithTx(tx *gorm.DB) RefundRepository
	Create(ctx context.Context, refund *model.Refund) error
	FindAll(ctx context.Context, transactionID *uuid.UUID) ([]model.Refund, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Refund, error)
}

type refundRepo struct {
	db *gorm.DB
}

func NewRefundRepo(db *gorm.DB) RefundRepository {
	return &refundRepo{db}
}

func (r *refundRepo) WithTx(tx *gorm.DB) RefundRepository {
	return &refundRepo{tx}
}

func (r *refundRepo) Create(ctx context.Context, refund *model.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *refundRepo) FindAll(ctx context.Context, transactionID *uuid.UUID) ([]model.Refund, error) {
	var refunds []model.Refund
	q := r.db.WithContext(ctx).Preload("Items")
	if transactionID != nil {
		q = q.Where("transaction_id = ?", *transactionID)
	}
	err := q.Order("created_at DESC").Find(&refunds).Error
	return refunds, err
}

func (r *refundRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Refund, error) {
	var refund model.Refund
	if err := r.db.WithContext(ctx).Preload("Items").First(&refund, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}
