package ledger

import (
	"context"
	"fmt"

	"go-pos-admin/internal/model"
	"go-pos-admin/pkg/apperror"

	"github.com/google/uuid"
)

// CatalogReader is the authoritative product store.
type CatalogReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
}

// LineRequest is a cart line as submitted by the client. A nil claimed price
// skips the staleness check.
type LineRequest struct {
	ProductID             uuid.UUID `json:"product_id"`
	Quantity              int       `json:"quantity"`
	ClaimedUnitPriceCents *int64    `json:"price_cents,omitempty"`
}

// ResolvedLine is a cart line priced from the catalog.
type ResolvedLine struct {
	Line
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

// ResolveCatalog validates lines against the store using a single batched
// lookup. Output order follows input order; repeated products stay separate lines.
func ResolveCatalog(ctx context.Context, catalog CatalogReader, lines []LineRequest) ([]ResolvedLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]uuid.UUID, 0, len(lines))
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for i, l := range lines {
		if err := validateLineRequest(i, l); err != nil {
			return nil, err
		}
		if _, dup := seen[l.ProductID]; dup {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}

	products, err := catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to load products")
	}
	byID := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	resolved := make([]ResolvedLine, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, apperror.NotFound(fmt.Sprintf("product not found (id=%s)", l.ProductID)).
				WithDetails(map[string]any{"product_id": l.ProductID})
		}
		if l.ClaimedUnitPriceCents != nil && *l.ClaimedUnitPriceCents != p.PriceCents {
			return nil, apperror.Conflict(fmt.Sprintf("price mismatch for product %s", p.SKU)).
				WithReason(apperror.ReasonPriceMismatch).
				WithDetails(map[string]any{
					"product_id":    p.ID,
					"claimed_cents": *l.ClaimedUnitPriceCents,
					"current_cents": p.PriceCents,
				})
		}
		resolved = append(resolved, ResolvedLine{
			Line:          Line{ProductID: p.ID, Quantity: l.Quantity, UnitPriceCents: p.PriceCents},
			SKU:           p.SKU,
			Name:          p.Name,
			SubtotalCents: p.PriceCents * int64(l.Quantity),
		})
	}
	return resolved, nil
}

func validateLineRequest(idx int, l LineRequest) error {
	switch {
	case l.ProductID == uuid.Nil:
		return invalidLine(idx, "product_id is required")
	case l.Quantity <= 0:
		return invalidLine(idx, "quantity must be a positive integer")
	case l.ClaimedUnitPriceCents != nil && *l.ClaimedUnitPriceCents < 0:
		return invalidLine(idx, "price must not be negative")
	}
	return nil
}

func invalidLine(idx int, msg string) error {
	return apperror.Validation(fmt.Sprintf("items[%d]: %s", idx, msg)).WithReason(apperror.ReasonInvalidLineItem)
}

// QuantitiesByProduct sums quantities per product, preserving first-seen order.
func QuantitiesByProduct(lines []ResolvedLine) ([]uuid.UUID, map[uuid.UUID]int) {
	order := make([]uuid.UUID, 0, len(lines))
	qty := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		if _, ok := qty[l.ProductID]; !ok {
			order = append(order, l.ProductID)
		}
		qty[l.ProductID] += l.Quantity
	}
	return order, qty
}
