package engine

import (
	"context"
	"fmt"

	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
	"github.com/MrJamesThe3rd/satwatch/internal/ledger"
)

// match is the canonical (invoice, address, amount) resolution of a
// transaction, adopted for all downstream processing.
type match struct {
	invoice *invoice.Invoice
	address string
	amount  int64
}

type candidate struct {
	address string
	amount  int64
}

// candidates returns the transaction's (address, amount) pairs in the
// order the ledger reports them: the top-level pair first, then details.
// The first-match-wins contract below depends on this order being stable
// between calls for the same transaction.
func candidates(tx *ledger.TX) []candidate {
	var out []candidate

	if tx.Address != "" {
		out = append(out, candidate{address: tx.Address, amount: abs(tx.Amount)})
	}

	for _, d := range tx.Details {
		out = append(out, candidate{address: d.Address, amount: abs(d.Amount)})
	}

	return out
}

// findInvoice locates the invoice a transaction pays, scanning candidate
// addresses in ledger order; the first address with exactly one invoice
// wins. Returns (nil, nil) when no candidate matches. An address shared
// by several invoices fails with ErrDataIntegrity.
func (e *Engine) findInvoice(ctx context.Context, tx *ledger.TX) (*match, error) {
	for _, c := range candidates(tx) {
		invoices, err := e.repo.InvoicesByAddress(ctx, c.address)
		if err != nil {
			return nil, err
		}

		switch {
		case len(invoices) == 0:
			continue
		case len(invoices) > 1:
			return nil, fmt.Errorf("address %s maps to %d invoices: %w",
				c.address, len(invoices), invoice.ErrDataIntegrity)
		}

		return &match{invoice: invoices[0], address: c.address, amount: c.amount}, nil
	}

	return nil, nil
}

// amountForAddress picks the transaction's amount for one specific
// address. A transaction paying several addresses reports per-address
// pairs in details; when none matches, the top-level amount is kept.
func amountForAddress(tx *ledger.TX, address string) int64 {
	if tx.Address == address {
		return abs(tx.Amount)
	}

	for _, d := range tx.Details {
		if d.Address == address {
			return abs(d.Amount)
		}
	}

	return abs(tx.Amount)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}
