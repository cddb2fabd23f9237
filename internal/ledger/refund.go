package ledger

import (
	"fmt"

	"go-pos-admin/internal/model"
	"go-pos-admin/pkg/apperror"

	"github.com/google/uuid"
)

// RefundSelection names a sold item and how much of it comes back.
// Quantity 0 means the item's full remaining quantity.
type RefundSelection struct {
	ItemID   uuid.UUID          `json:"item_id"`
	Quantity int                `json:"quantity"`
	Reason   model.RefundReason `json:"reason"`
}

// RefundLine is one planned reversal.
type RefundLine struct {
	Item        model.TransactionItem
	Quantity    int
	AmountCents int64
	Reason      model.RefundReason
}

// RefundPlan is everything a refund changes, computed before any write.
type RefundPlan struct {
	Lines      []RefundLine
	TotalCents int64

	// Residual is the transaction's item list after the refund. Items
	// reduced to zero are listed in Removed instead.
	Residual []model.TransactionItem
	Removed  []uuid.UUID
	Totals   Totals
	Status   model.TransactionStatus
}

// PlanRefund validates selections against tx and computes the refund and the
// transaction's residual state. It does not mutate tx.
func PlanRefund(tx *model.Transaction, selections []RefundSelection, pricer Pricer) (*RefundPlan, error) {
	if len(selections) == 0 {
		return nil, ErrEmptySelection
	}
	if tx == nil {
		return nil, ErrInvalidTransaction
	}
	if tx.Status == model.TxStatusRefunded || len(tx.Items) == 0 {
		return nil, apperror.Validation("transaction is already fully refunded").
			WithReason(apperror.ReasonInvalidTransaction)
	}

	items := make(map[uuid.UUID]model.TransactionItem, len(tx.Items))
	for _, it := range tx.Items {
		items[it.ID] = it
	}

	refunded := make(map[uuid.UUID]int, len(selections))
	plan := &RefundPlan{Lines: make([]RefundLine, 0, len(selections))}
	for i, sel := range selections {
		item, ok := items[sel.ItemID]
		if !ok {
			return nil, invalidSelection(i, fmt.Sprintf("item %s is not part of this transaction", sel.ItemID))
		}
		if _, dup := refunded[sel.ItemID]; dup {
			return nil, invalidSelection(i, "item selected more than once")
		}

		qty := sel.Quantity
		if qty == 0 {
			qty = item.Quantity
		}
		if qty < 0 || qty > item.Quantity {
			return nil, invalidSelection(i, fmt.Sprintf("quantity must be between 1 and %d", item.Quantity))
		}

		reason := sel.Reason
		if reason == "" {
			reason = model.ReasonCustomerRequest
		}
		if !reason.IsValid() {
			return nil, invalidSelection(i, fmt.Sprintf("unknown refund reason %q", reason))
		}

		amount := item.PriceCents * int64(qty)
		refunded[sel.ItemID] = qty
		plan.TotalCents += amount
		plan.Lines = append(plan.Lines, RefundLine{Item: item, Quantity: qty, AmountCents: amount, Reason: reason})
	}

	var subtotal int64
	for _, it := range tx.Items {
		left := it.Quantity - refunded[it.ID]
		if left <= 0 {
			plan.Removed = append(plan.Removed, it.ID)
			continue
		}
		it.Quantity = left
		it.SubtotalCents = it.PriceCents * int64(left)
		subtotal += it.SubtotalCents
		plan.Residual = append(plan.Residual, it)
	}

	plan.Totals = pricer.Totals(subtotal)
	if len(plan.Residual) == 0 {
		plan.Status = model.TxStatusRefunded
	} else {
		plan.Status = model.TxStatusPartiallyRefunded
	}
	return plan, nil
}

func invalidSelection(idx int, msg string) error {
	return apperror.Validation(fmt.Sprintf("items[%d]: %s", idx, msg)).WithReason(apperror.ReasonInvalidLineItem)
}
