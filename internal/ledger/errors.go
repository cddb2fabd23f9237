// Package ledger holds the sale ledger rules: catalog resolution, cart
// pricing, loyalty tiers and refund planning. Everything here is pure or
// read-only; persistence and atomicity live in the service layer.
package ledger

import "go-pos-admin/pkg/apperror"

// Sentinels for errors.Is. Concrete errors carry a more specific message.
var (
	ErrEmptyCart          = apperror.Validation("cart is empty")
	ErrInvalidLineItem    = apperror.Validation("invalid line item").WithReason(apperror.ReasonInvalidLineItem)
	ErrProductNotFound    = apperror.NotFound("product not found")
	ErrPriceMismatch      = apperror.Conflict("price mismatch").WithReason(apperror.ReasonPriceMismatch)
	ErrInsufficientStock  = apperror.Conflict("insufficient stock").WithReason(apperror.ReasonInsufficientStock)
	ErrEmptySelection     = apperror.Validation("no items selected for refund").WithReason(apperror.ReasonEmptySelection)
	ErrInvalidTransaction = apperror.NotFound("transaction not found").WithReason(apperror.ReasonInvalidTransaction)
	ErrNegativePoints     = apperror.Validation("loyalty points must not be negative")
	ErrInvalidTier        = apperror.Validation("tier must be one of BRONZE, SILVER, GOLD, PLATINUM")
)
