// Package engine is the reconciliation core: it matches ledger
// transactions to invoices, maintains payment records, and derives each
// invoice's status from the current ledger view. All operations are
// idempotent; re-running them on unchanged data performs no writes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/satwatch/internal/events"
	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
	"github.com/MrJamesThe3rd/satwatch/internal/ledger"
)

type Config struct {
	// RequiredConfirmations is the threshold at which a payment's amount
	// becomes final.
	RequiredConfirmations int64

	// WatchConfirmations is the high-water mark: a settled invoice stays
	// watched until its least-confirmed payment passes it.
	WatchConfirmations int64
}

type Engine struct {
	repo   invoice.Repository
	ledger ledger.Client
	bus    *events.Bus
	cfg    Config
}

func New(repo invoice.Repository, lc ledger.Client, bus *events.Bus, cfg Config) *Engine {
	if cfg.RequiredConfirmations <= 0 {
		cfg.RequiredConfirmations = 6
	}

	if cfg.WatchConfirmations <= 0 {
		cfg.WatchConfirmations = 100
	}

	return &Engine{repo: repo, ledger: lc, bus: bus, cfg: cfg}
}

// UpdatePayment ingests one raw ledger transaction, creating or updating
// the payment record it maps to. The returned id is the affected invoice,
// or uuid.Nil when the transaction is irrelevant to any invoice.
func (e *Engine) UpdatePayment(ctx context.Context, tx *ledger.TX) (uuid.UUID, error) {
	if tx.TxID == "" || (tx.Address == "" && len(tx.Details) == 0) || tx.Amount < 0 {
		return uuid.Nil, nil
	}

	existing, err := e.repo.PaymentByTxID(ctx, tx.TxID)

	switch {
	case errors.Is(err, invoice.ErrNotFound):
		return e.createPayment(ctx, tx)
	case err != nil:
		return uuid.Nil, err
	default:
		return e.adjustPayment(ctx, existing, tx)
	}
}

func (e *Engine) createPayment(ctx context.Context, tx *ledger.TX) (uuid.UUID, error) {
	m, err := e.findInvoice(ctx, tx)
	if err != nil {
		return uuid.Nil, err
	}

	if m == nil {
		return uuid.Nil, nil
	}

	p := &invoice.Payment{
		TxID:      tx.TxID,
		Address:   m.address,
		InvoiceID: m.invoice.ID,
		Amount:    m.amount,
		Status:    invoice.PaymentPending,
	}
	if err := e.repo.CreatePayment(ctx, p); err != nil {
		return uuid.Nil, err
	}

	err = e.repo.AppendHistory(ctx, &invoice.History{
		InvoiceID: m.invoice.ID,
		PaymentID: &p.ID,
		Action:    invoice.ActionReceive,
		Params: map[string]any{
			"invoiceId": m.invoice.ID.String(),
			"paymentId": p.ID.String(),
			"amount":    p.Amount,
		},
		Content: fmt.Sprintf("received %d", p.Amount),
	})
	if err != nil {
		return uuid.Nil, err
	}

	e.bus.Publish(events.TopicPaymentCreated, events.PaymentCreated{
		InvoiceID: m.invoice.ID,
		PaymentID: p.ID,
		TxID:      p.TxID,
	})

	return m.invoice.ID, nil
}

func (e *Engine) adjustPayment(ctx context.Context, p *invoice.Payment, tx *ledger.TX) (uuid.UUID, error) {
	// The canonical address can have changed since the last sighting,
	// e.g. when a reorg promoted a different output.
	m, err := e.findInvoice(ctx, tx)
	if err != nil {
		return uuid.Nil, err
	}

	if m == nil {
		return uuid.Nil, nil
	}

	if p.Address == m.address && p.Amount == m.amount {
		return m.invoice.ID, nil
	}

	p.Address = m.address
	p.InvoiceID = m.invoice.ID
	p.Amount = m.amount
	if err := e.repo.UpdatePayment(ctx, p); err != nil {
		return uuid.Nil, err
	}

	err = e.repo.AppendHistory(ctx, &invoice.History{
		InvoiceID: m.invoice.ID,
		PaymentID: &p.ID,
		Action:    invoice.ActionAdjust,
		Params: map[string]any{
			"invoiceId": m.invoice.ID.String(),
			"paymentId": p.ID.String(),
		},
		Content: "updated payment record",
	})
	if err != nil {
		return uuid.Nil, err
	}

	e.bus.Publish(events.TopicPaymentUpdated, events.PaymentUpdated{
		InvoiceID: m.invoice.ID,
		PaymentID: p.ID,
		TxID:      p.TxID,
	})

	return m.invoice.ID, nil
}

// UpdateInvoice recomputes the invoice's status from all payments on its
// address and the current ledger view of their transactions. It persists
// payment status transitions, the derived invoice status, and the watch
// flag, appending history for each actual change.
func (e *Engine) UpdateInvoice(ctx context.Context, invoiceID uuid.UUID) (*invoice.State, error) {
	inv, err := e.repo.InvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	payments, err := e.repo.PaymentsByAddress(ctx, inv.Address)
	if err != nil {
		return nil, err
	}

	state := &invoice.State{Payments: payments}

	minConfirmations := int64(-1)

	for _, p := range payments {
		tx, err := e.ledger.Transaction(ctx, p.TxID)
		if err != nil {
			if !errors.Is(err, ledger.ErrTransactionNotFound) {
				return nil, err
			}

			// Pruned or unknown transaction: excluded from every sum,
			// but not fatal to the invoice.
			slog.Warn("transaction for payment cannot be retrieved",
				"txid", p.TxID, "payment", p.ID, "error", err)

			if err := e.setPaymentStatus(ctx, p, invoice.PaymentTxUnavailable); err != nil {
				return nil, err
			}

			continue
		}

		amount := amountForAddress(tx, inv.Address)

		status := classifyPayment(p.Status, tx.Confirmations, e.cfg.RequiredConfirmations)

		switch status {
		case invoice.PaymentConfirmed:
			state.FinalAmount += amount
		case invoice.PaymentPending:
			state.PendingAmount += amount
		case invoice.PaymentReorg:
			state.DisabledAmount += amount
		}

		if status == invoice.PaymentConfirmed || status == invoice.PaymentPending {
			if minConfirmations < 0 || tx.Confirmations < minConfirmations {
				minConfirmations = tx.Confirmations
			}
		}

		if err := e.setPaymentStatus(ctx, p, status); err != nil {
			return nil, err
		}
	}

	if minConfirmations > 0 {
		state.Confirmations = minConfirmations
	}

	target := inv.Amount
	state.FinalMatch = state.FinalAmount == target
	state.TotalMatch = state.TotalAmount() == target

	newStatus := deriveStatus(state.FinalAmount, state.PendingAmount, target)
	if newStatus != inv.Status {
		if err := e.repo.UpdateInvoiceStatus(ctx, inv.ID, newStatus); err != nil {
			return nil, err
		}

		err = e.repo.AppendHistory(ctx, &invoice.History{
			InvoiceID: inv.ID,
			Action:    invoice.ActionUpdateStatus,
			Params: map[string]any{
				"invoiceId": inv.ID.String(),
				"newStatus": string(newStatus),
			},
			Content: fmt.Sprintf("status -> %s", newStatus),
		})
		if err != nil {
			return nil, err
		}

		state.Updated = newStatus

		e.bus.Publish(events.TopicInvoiceUpdated, events.InvoiceUpdated{
			InvoiceID: inv.ID,
			Status:    string(newStatus),
		})
	}

	keepWatching := state.Confirmations < e.cfg.WatchConfirmations ||
		!state.FinalMatch || state.PendingAmount > 0
	if keepWatching != inv.Watched {
		if err := e.repo.SetInvoiceWatched(ctx, inv.ID, keepWatching); err != nil {
			return nil, err
		}

		err = e.repo.AppendHistory(ctx, &invoice.History{
			InvoiceID: inv.ID,
			Action:    invoice.ActionSetWatched,
			Params: map[string]any{
				"invoiceId":    inv.ID.String(),
				"watchedState": keepWatching,
			},
			Content: fmt.Sprintf("watchedState -> %t", keepWatching),
		})
		if err != nil {
			return nil, err
		}
	}

	return state, nil
}

// classifyPayment maps a payment's current confirmation count to its
// status. A transaction that was final once and then lost its block, or
// that the node reports as conflicted (negative confirmations), is a
// reorg; its amount counts as disabled, not pending. A transaction that
// merely has not confirmed yet stays pending.
func classifyPayment(previous invoice.PaymentStatus, confirmations, required int64) invoice.PaymentStatus {
	switch {
	case confirmations >= required:
		return invoice.PaymentConfirmed
	case confirmations > 0:
		return invoice.PaymentPending
	case confirmations == 0 && previous != invoice.PaymentConfirmed && previous != invoice.PaymentReorg:
		return invoice.PaymentPending
	default:
		return invoice.PaymentReorg
	}
}

func (e *Engine) setPaymentStatus(ctx context.Context, p *invoice.Payment, status invoice.PaymentStatus) error {
	if p.Status == status {
		return nil
	}

	err := e.repo.AppendHistory(ctx, &invoice.History{
		InvoiceID: p.InvoiceID,
		PaymentID: &p.ID,
		Action:    invoice.Action(status),
		Params: map[string]any{
			"invoiceId": p.InvoiceID.String(),
			"paymentId": p.ID.String(),
		},
		Content: fmt.Sprintf("updated payment status from %s to %s", p.Status, status),
	})
	if err != nil {
		return err
	}

	if err := e.repo.SetPaymentStatus(ctx, p.ID, status); err != nil {
		return err
	}

	p.Status = status

	return nil
}
