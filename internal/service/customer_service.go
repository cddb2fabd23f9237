package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-pos-admin/internal/ledger"
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/ws"
	"go-pos-admin/pkg/apperror"
	"go-pos-admin/pkg/logger"
	"go-pos-admin/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const recentTransactionsLimit = 10

type CustomerService interface {
	ListCustomers(ctx context.Context, filter repository.CustomerFilter) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*CustomerDetail, error)
	CreateCustomer(ctx context.Context, req *CreateCustomerRequest, actor Actor) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, patch model.CustomerPatch, actor Actor) (*model.Customer, error)
	ApplyPointsUpdate(ctx context.Context, id uuid.UUID, newPoints *int, explicitTier *model.Tier, actor Actor) (*model.Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
}

type CreateCustomerRequest struct {
	Name  string  `json:"name" validate:"required,max=255"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone" validate:"omitempty,max=30"`
}

// CustomerDetail is a customer with tier standing and recent sales.
type CustomerDetail struct {
	model.Customer
	Standing           ledger.Standing     `json:"standing"`
	RecentTransactions []model.Transaction `json:"recent_transactions"`
}

type customerService struct {
	db        *gorm.DB
	customers repository.CustomerRepository
	notifier  Notifier
	log       *logger.Logger
	timeout   time.Duration
}

func NewCustomerService(db *gorm.DB, customers repository.CustomerRepository, notifier Notifier, log *logger.Logger, timeout time.Duration) CustomerService {
	if log == nil {
		log = logger.Nop()
	}
	return &customerService{
		db:        db,
		customers: customers,
		notifier:  notifierOrNop(notifier),
		log:       log,
		timeout:   timeout,
	}
}

func (s *customerService) ListCustomers(ctx context.Context, filter repository.CustomerFilter) ([]model.Customer, error) {
	if filter.Tier != "" && !filter.Tier.IsValid() {
		return nil, ledger.ErrInvalidTier
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	customers, err := s.customers.FindAll(ctx, filter)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to list customers")
	}
	return customers, nil
}

func (s *customerService) GetCustomer(ctx context.Context, id uuid.UUID) (*CustomerDetail, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, "customer not found")
	}
	recent, err := s.customers.RecentTransactions(ctx, id, recentTransactionsLimit)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to load customer transactions")
	}
	return &CustomerDetail{
		Customer:           *c,
		Standing:           ledger.ProgressFor(c.LoyaltyPoints, c.Tier),
		RecentTransactions: recent,
	}, nil
}

func (s *customerService) CreateCustomer(ctx context.Context, req *CreateCustomerRequest, actor Actor) (*model.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeOptional(req.Email)
	req.Phone = normalizeOptional(req.Phone)
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	if req.Email != nil {
		if err := s.ensureEmailFree(ctx, s.customers, *req.Email, uuid.Nil); err != nil {
			return nil, err
		}
	}

	customer := &model.Customer{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		LoyaltyPoints: 0,
		Tier:          model.TierBronze,
	}
	customer.CreatedBy = actor.AuditID()
	customer.UpdatedBy = actor.AuditID()
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, emailConflict(apperror.FromStore(err, "failed to create customer"))
	}
	return customer, nil
}

// UpdateCustomer applies only the fields present in patch. Points and tier
// follow the same rules as ApplyPointsUpdate.
func (s *customerService) UpdateCustomer(ctx context.Context, id uuid.UUID, patch model.CustomerPatch, actor Actor) (*model.Customer, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if err := validator.Check(patch); err != nil {
		return nil, err
	}
	decision, err := ledger.DecideTier(patch.LoyaltyPoints, patch.Tier)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	var updated *model.Customer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.customers.WithTx(tx)
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if patch.Email != nil && *patch.Email != "" && (existing.Email == nil || *existing.Email != *patch.Email) {
			if err := s.ensureEmailFree(ctx, repo, *patch.Email, id); err != nil {
				return err
			}
		}

		changes := patch.Changes()
		s.mergeLoyalty(ctx, changes, existing, patch.LoyaltyPoints, decision, actor)
		if len(changes) > 0 {
			changes["updated_by"] = actor.AuditID()
			if err := repo.Update(ctx, id, changes); err != nil {
				return emailConflict(apperror.FromStore(err, "failed to update customer"))
			}
		}
		updated, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, apperror.FromStore(err, "customer not found")
	}
	s.publishCustomer(updated, actor)
	return updated, nil
}

// ApplyPointsUpdate sets the balance and persists the tier. The tier follows
// the balance unless explicitTier is given.
func (s *customerService) ApplyPointsUpdate(ctx context.Context, id uuid.UUID, newPoints *int, explicitTier *model.Tier, actor Actor) (*model.Customer, error) {
	return s.UpdateCustomer(ctx, id, model.CustomerPatch{LoyaltyPoints: newPoints, Tier: explicitTier}, actor)
}

func (s *customerService) mergeLoyalty(ctx context.Context, changes map[string]any, existing *model.Customer, points *int, decision *ledger.TierDecision, actor Actor) {
	if points != nil {
		changes["loyalty_points"] = *points
	}
	if decision == nil {
		return
	}
	changes["tier"] = decision.Tier
	if decision.Override {
		balance := existing.LoyaltyPoints
		if points != nil {
			balance = *points
		}
		s.log.Warn(ctx, "administrative tier override",
			logger.Field("customer_id", existing.ID.String()),
			logger.Field("previous_tier", existing.Tier),
			logger.Field("tier", decision.Tier),
			logger.Field("derived_tier", ledger.TierFor(balance)),
			logger.Field("points", balance),
			logger.Field("actor_id", actor.AuditID()),
		)
	}
}

func (s *customerService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.customers.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := repo.DetachTransactions(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return apperror.FromStore(err, "customer not found")
	}
	return nil
}

func (s *customerService) ensureEmailFree(ctx context.Context, repo repository.CustomerRepository, email string, self uuid.UUID) error {
	found, err := repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return apperror.FromStore(err, "failed to check email")
	case found.ID != self:
		return duplicateEmail(email)
	}
	return nil
}

func (s *customerService) publishCustomer(c *model.Customer, actor Actor) {
	s.notifier.Publish(ws.EventCustomerUpdated, map[string]any{
		"customer": map[string]any{
			"id":             c.ID,
			"name":           c.Name,
			"loyalty_points": c.LoyaltyPoints,
			"tier":           c.Tier,
		},
		"user": actor.ref(),
	})
}

func duplicateEmail(email string) error {
	return apperror.Conflict(fmt.Sprintf("email %q already exists", email)).WithReason(apperror.ReasonDuplicateEmail)
}

func emailConflict(err error) error {
	if apperror.CodeOf(err) == apperror.CodeConflict && apperror.As(err).Reason() == apperror.ReasonNone {
		return apperror.As(err).WithReason(apperror.ReasonDuplicateEmail)
	}
	return err
}

func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
