package engine

import "github.com/MrJamesThe3rd/satwatch/internal/invoice"

// deriveStatus turns the aggregated amounts into an invoice status. The
// rules are evaluated in priority order; exactly one fires for any pair
// of non-negative amounts.
func deriveStatus(finalAmount, pendingAmount, target int64) invoice.Status {
	totalAmount := finalAmount + pendingAmount

	switch {
	case finalAmount == target:
		return invoice.StatusPaid
	case finalAmount > target:
		return invoice.StatusOverpaid
	case totalAmount == target && pendingAmount > 0:
		return invoice.StatusPendingPaid
	case totalAmount > target:
		return invoice.StatusPendingOverpaid
	case finalAmount == 0 && totalAmount == 0:
		return invoice.StatusUnpaid
	case finalAmount > 0 && pendingAmount == 0:
		return invoice.StatusPartial
	default:
		return invoice.StatusPendingPartial
	}
}
