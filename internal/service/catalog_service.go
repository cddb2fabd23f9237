package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-pos-admin/internal/cache"
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/ws"
	"go-pos-admin/pkg/apperror"
	"go-pos-admin/pkg/logger"
	"go-pos-admin/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CatalogService interface {
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	CreateProduct(ctx context.Context, req *CreateProductRequest, actor Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, patch model.ProductPatch, actor Actor) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID, actor Actor) error

	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, req *CategoryRequest, actor Actor) (*model.Category, error)
	RenameCategory(ctx context.Context, id uuid.UUID, req *CategoryRequest, actor Actor) (*model.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type CreateProductRequest struct {
	SKU        string     `json:"sku" validate:"required,max=50"`
	Name       string     `json:"name" validate:"required,max=255"`
	PriceCents int64      `json:"price_cents" validate:"gte=0"`
	Stock      int        `json:"stock" validate:"gte=0"`
	Unit       string     `json:"unit" validate:"max=20"`
	ImageURL   *string    `json:"image_url"`
	CategoryID *uuid.UUID `json:"category_id"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type catalogService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	cache      *cache.Cache
	notifier   Notifier
	log        *logger.Logger
	timeout    time.Duration
}

func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	c *cache.Cache,
	notifier Notifier,
	log *logger.Logger,
	timeout time.Duration,
) CatalogService {
	if log == nil {
		log = logger.Nop()
	}
	return &catalogService{
		products:   products,
		categories: categories,
		cache:      c,
		notifier:   notifierOrNop(notifier),
		log:        log,
		timeout:    timeout,
	}
}

func productListKey(f repository.ProductFilter) string {
	cat := ""
	if f.CategoryID != nil {
		cat = f.CategoryID.String()
	}
	return fmt.Sprintf("%s:q=%s:c=%s:s=%s", cache.ProductListKey, strings.ToLower(strings.TrimSpace(f.Search)), cat, f.Sort)
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error) {
	key := productListKey(filter)
	var cached []model.Product
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.log.Warn(ctx, "product cache read failed", logger.Field("error", err.Error()))
	} else if hit {
		return cached, nil
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	products, err := s.products.FindAll(ctx, filter)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to list products")
	}
	if err := s.cache.SetJSON(ctx, key, products); err != nil {
		s.log.Warn(ctx, "product cache write failed", logger.Field("error", err.Error()))
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, "product not found")
	}
	return p, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, req *CreateProductRequest, actor Actor) (*model.Product, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ensureSKUFree(ctx, req.SKU, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	product := &model.Product{
		SKU:        req.SKU,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
		Unit:       req.Unit,
		ImageURL:   req.ImageURL,
		CategoryID: req.CategoryID,
	}
	product.CreatedBy = actor.AuditID()
	product.UpdatedBy = actor.AuditID()

	if err := s.products.Create(ctx, product); err != nil {
		return nil, skuConflict(apperror.FromStore(err, "failed to create product"), req.SKU)
	}

	s.afterProductWrite(ctx, ws.EventProductCreated, product, actor)
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, patch model.ProductPatch, actor Actor) (*model.Product, error) {
	if patch.SKU != nil {
		trimmed := strings.TrimSpace(*patch.SKU)
		patch.SKU = &trimmed
	}
	if err := validator.Check(patch); err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	existing, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, "product not found")
	}
	if patch.SKU != nil && *patch.SKU != existing.SKU {
		if err := s.ensureSKUFree(ctx, *patch.SKU, id); err != nil {
			return nil, err
		}
	}
	if !patch.ClearCategory {
		if err := s.ensureCategory(ctx, patch.CategoryID); err != nil {
			return nil, err
		}
	}

	changes := patch.Changes()
	if len(changes) == 0 {
		return existing, nil
	}
	changes["updated_by"] = actor.AuditID()
	if err := s.products.Update(ctx, id, changes); err != nil {
		sku := existing.SKU
		if patch.SKU != nil {
			sku = *patch.SKU
		}
		return nil, skuConflict(apperror.FromStore(err, "failed to update product"), sku)
	}

	updated, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, "product not found")
	}
	s.afterProductWrite(ctx, ws.EventProductUpdated, updated, actor)
	return updated, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID, actor Actor) error {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	existing, err := s.products.FindByID(ctx, id)
	if err != nil {
		return apperror.FromStore(err, "product not found")
	}
	if err := s.products.Delete(ctx, id, actor.AuditID()); err != nil {
		return apperror.FromStore(err, "failed to delete product")
	}
	s.afterProductWrite(ctx, ws.EventProductDeleted, existing, actor)
	return nil
}

func (s *catalogService) ensureSKUFree(ctx context.Context, sku string, self uuid.UUID) error {
	found, err := s.products.FindBySKU(ctx, sku)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return apperror.FromStore(err, "failed to check sku")
	case found.ID != self:
		return duplicateSKU(sku)
	}
	return nil
}

func (s *catalogService) ensureCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.categories.FindByID(ctx, *id); err != nil {
		return apperror.FromStore(err, "category not found")
	}
	return nil
}

func duplicateSKU(sku string) error {
	return apperror.Conflict(fmt.Sprintf("sku %q already exists", sku)).WithReason(apperror.ReasonDuplicateSKU)
}

// skuConflict tags a store-level unique violation on insert/update as a duplicate SKU.
func skuConflict(err error, sku string) error {
	if apperror.CodeOf(err) == apperror.CodeConflict && apperror.As(err).Reason() == apperror.ReasonNone {
		return duplicateSKU(sku)
	}
	return err
}

func (s *catalogService) afterProductWrite(ctx context.Context, event string, p *model.Product, actor Actor) {
	s.invalidateProducts(ctx)
	s.notifier.Publish(event, map[string]any{
		"product": map[string]any{
			"id":          p.ID,
			"sku":         p.SKU,
			"name":        p.Name,
			"stock":       p.Stock,
			"price_cents": p.PriceCents,
		},
		"user":    actor.ref(),
		"message": fmt.Sprintf("%s %s '%s'", actor.Name, strings.ReplaceAll(event, "product_", ""), p.Name),
	})
	s.log.Info(ctx, "catalog write", logger.Field("event", event), logger.Field("product_id", p.ID.String()))
}

func (s *catalogService) invalidateProducts(ctx context.Context) {
	if err := s.cache.InvalidatePrefix(context.WithoutCancel(ctx), cache.ProductListKey); err != nil {
		s.log.Warn(ctx, "product cache invalidation failed", logger.Field("error", err.Error()))
	}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	categories, err := s.categories.FindAll(ctx)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to list categories")
	}
	return categories, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, req *CategoryRequest, actor Actor) (*model.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	category := &model.Category{Name: req.Name}
	category.CreatedBy = actor.AuditID()
	category.UpdatedBy = actor.AuditID()
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, apperror.FromStore(err, "failed to create category")
	}
	return category, nil
}

func (s *catalogService) RenameCategory(ctx context.Context, id uuid.UUID, req *CategoryRequest, actor Actor) (*model.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.categories.Rename(ctx, id, req.Name, actor.AuditID()); err != nil {
		return nil, apperror.FromStore(err, "category not found")
	}
	s.invalidateProducts(ctx)
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, "category not found")
	}
	return category, nil
}

// DeleteCategory refuses while products still reference the category.
func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.categories.FindByID(ctx, id); err != nil {
		return apperror.FromStore(err, "category not found")
	}
	n, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return apperror.FromStore(err, "failed to count products")
	}
	if n > 0 {
		return apperror.Conflict(fmt.Sprintf("category still has %d product(s)", n)).
			WithReason(apperror.ReasonCategoryInUse).
			WithDetails(map[string]any{"product_count": n})
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return apperror.FromStore(err, "failed to delete category")
	}
	return nil
}
