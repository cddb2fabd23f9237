package ledger

import (
	"fmt"

	"go-pos-admin/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is the minimum a price needs: how many, at what unit price.
type Line struct {
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// Totals are always in minor currency units.
type Totals struct {
	SubtotalCents   int64 `json:"subtotal_cents"`
	TaxCents        int64 `json:"tax_cents"`
	GrandTotalCents int64 `json:"grand_total_cents"`
}

// Pricer applies a fixed tax rate.
type Pricer struct {
	taxRate decimal.Decimal
}

func NewPricer(taxRate decimal.Decimal) Pricer {
	return Pricer{taxRate: taxRate}
}

func (p Pricer) TaxRate() decimal.Decimal {
	return p.taxRate
}

// Tax rounds subtotal × rate to the nearest cent, halves away from zero.
func (p Pricer) Tax(subtotalCents int64) int64 {
	return decimal.NewFromInt(subtotalCents).Mul(p.taxRate).Round(0).IntPart()
}

// Totals derives tax and grand total from an already-summed subtotal.
func (p Pricer) Totals(subtotalCents int64) Totals {
	tax := p.Tax(subtotalCents)
	return Totals{
		SubtotalCents:   subtotalCents,
		TaxCents:        tax,
		GrandTotalCents: subtotalCents + tax,
	}
}

// PriceCart sums lines and applies tax. An empty cart prices to zero.
func (p Pricer) PriceCart(lines []Line) (Totals, error) {
	var subtotal int64
	for i, l := range lines {
		if l.Quantity <= 0 {
			return Totals{}, invalidLine(i, "quantity must be a positive integer")
		}
		if l.UnitPriceCents < 0 {
			return Totals{}, invalidLine(i, "unit price must not be negative")
		}
		subtotal += l.UnitPriceCents * int64(l.Quantity)
	}
	return p.Totals(subtotal), nil
}

// PriceResolved prices lines produced by ResolveCatalog.
func (p Pricer) PriceResolved(lines []ResolvedLine) (Totals, error) {
	plain := make([]Line, len(lines))
	for i, l := range lines {
		plain[i] = l.Line
	}
	return p.PriceCart(plain)
}

// Change computes what a cash customer gets back.
func Change(tenderedCents, grandTotalCents int64) (int64, error) {
	if tenderedCents < grandTotalCents {
		return 0, apperror.Validation(fmt.Sprintf("tendered %d is less than total %d", tenderedCents, grandTotalCents)).
			WithReason(apperror.ReasonInsufficientPayment)
	}
	return tenderedCents - grandTotalCents, nil
}
