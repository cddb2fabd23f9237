package repository

import (
	"context"
	"strings"

	"go-pos-admin/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustomerFilter struct {
	Search string
	Tier   model.Tier
}

type CustomerRepository interface {
	WithTx(tx *gorm.DB) CustomerRepository
	Create(ctx context.Context, customer *model.Customer) error
	FindAll(ctx context.Context, filter CustomerFilter) ([]model.Customer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	FindByEmail(ctx context.Context, email string) (*model.Customer, error)
	RecentTransactions(ctx context.Context, id uuid.UUID, limit int) ([]model.Transaction, error)
	Update(ctx context.Context, id uuid.UUID, changes map[string]any) error
	DetachTransactions(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type customerRepo struct {
	db *gorm.DB
}

func NewCustomerRepo(db *gorm.DB) CustomerRepository {
	return &customerRepo{db}
}

func (r *customerRepo) WithTx(tx *gorm.DB) CustomerRepository {
	return &customerRepo{tx}
}

func (r *customerRepo) Create(ctx context.Context, customer *model.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// FindAll returns customers ordered by name, each with its transaction count.
func (r *customerRepo) FindAll(ctx context.Context, filter CustomerFilter) ([]model.Customer, error) {
	var customers []model.Customer
	q := r.db.WithContext(ctx)
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ? OR LOWER(COALESCE(phone, '')) LIKE ?", like, like, like)
	}
	if filter.Tier != "" {
		q = q.Where("tier = ?", filter.Tier)
	}
	if err := q.Order("name ASC").Find(&customers).Error; err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return customers, nil
	}

	ids := make([]uuid.UUID, len(customers))
	for i, c := range customers {
		ids[i] = c.ID
	}
	var counts []struct {
		CustomerID uuid.UUID
		Count      int64
	}
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select("customer_id, COUNT(*) AS count").
		Where("customer_id IN ?", ids).
		Group("customer_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byID[c.CustomerID] = c.Count
	}
	for i := range customers {
		customers[i].TransactionCount = byID[customers[i].ID]
	}
	return customers, nil
}

func (r *customerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("customer_id = ?", id).Count(&customer.TransactionCount).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepo) FindByEmail(ctx context.Context, email string) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).First(&customer, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepo) RecentTransactions(ctx context.Context, id uuid.UUID, limit int) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).Preload("Items").
		Where("customer_id = ?", id).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

func (r *customerRepo) Update(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.Customer{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DetachTransactions clears the customer reference on past sales. The name
// snapshot on each transaction is kept.
func (r *customerRepo) DetachTransactions(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("customer_id = ?", id).
		Update("customer_id", nil).Error
}

func (r *customerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Customer{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
