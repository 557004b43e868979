// Package invoicetest provides an in-memory invoice.Repository for
// exercising the engine and scanner against multi-call, stateful store
// behavior that interface mocks cannot express cleanly.
package invoicetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
)

type Repo struct {
	mu sync.Mutex

	invoices     []*invoice.Invoice
	payments     []*invoice.Payment
	history      []*invoice.History
	state        map[string]string
	nextSeq      int64
	WriteCount   int // bumped on every mutating call, for idempotence checks
	failNextErrs []error
}

var _ invoice.Repository = (*Repo)(nil)

func NewRepo() *Repo {
	return &Repo{state: make(map[string]string)}
}

// FailNext makes the next mutating call return err.
func (r *Repo) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNextErrs = append(r.failNextErrs, err)
}

// FailWrite makes the nth mutating call from now return err; the calls
// before it succeed.
func (r *Repo) FailWrite(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 1; i < n; i++ {
		r.failNextErrs = append(r.failNextErrs, nil)
	}

	r.failNextErrs = append(r.failNextErrs, err)
}

func (r *Repo) popFailure() error {
	if len(r.failNextErrs) == 0 {
		return nil
	}

	err := r.failNextErrs[0]
	r.failNextErrs = r.failNextErrs[1:]

	return err
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	c := *inv
	return &c
}

func clonePayment(p *invoice.Payment) *invoice.Payment {
	c := *p
	return &c
}

func (r *Repo) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.popFailure(); err != nil {
		return err
	}

	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	r.invoices = append(r.invoices, cloneInvoice(inv))
	r.WriteCount++

	return nil
}

func (r *Repo) InvoiceByID(_ context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, inv := range r.invoices {
		if inv.ID == id {
			return cloneInvoice(inv), nil
		}
	}

	return nil, invoice.ErrNotFound
}

func (r *Repo) InvoicesByAddress(_ context.Context, address string) ([]*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*invoice.Invoice

	for _, inv := range r.invoices {
		if inv.Address == address {
			out = append(out, cloneInvoice(inv))
		}
	}

	return out, nil
}

func (r *Repo) ListInvoices(_ context.Context, updatedSince *time.Time) ([]*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*invoice.Invoice

	for _, inv := range r.invoices {
		if updatedSince == nil || inv.UpdatedAt.After(*updatedSince) {
			out = append(out, cloneInvoice(inv))
		}
	}

	// most-recently-updated first
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].UpdatedAt.After(out[i].UpdatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out, nil
}

func (r *Repo) WatchedInvoices(_ context.Context) ([]*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*invoice.Invoice

	for _, inv := range r.invoices {
		if inv.Watched {
			out = append(out, cloneInvoice(inv))
		}
	}

	return out, nil
}

func (r *Repo) UpdateInvoiceStatus(_ context.Context, id uuid.UUID, status invoice.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.popFailure(); err != nil {
		return err
	}

	for _, inv := range r.invoices {
		if inv.ID == id {
			inv.Status = status
			inv.UpdatedAt = time.Now()
			r.WriteCount++

			return nil
		}
	}

	return invoice.ErrNotFound
}

func (r *Repo) SetInvoiceWatched(_ context.Context, id uuid.UUID, watched bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.popFailure(); err != nil {
		return err
	}

	for _, inv := range r.invoices {
		if inv.ID == id {
			inv.Watched = watched
			inv.UpdatedAt = time.Now()
			r.WriteCount++

			return nil
		}
	}

	return invoice.ErrNotFound
}

func (r *Repo) DeleteInvoice(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.popFailure(); err != nil {
		return err
	}

	var (
		invoices []*invoice.Invoice
		found    bool
	)

	for _, inv := range r.invoices {
		if inv.ID == id {
			found = true
			continue
		}

		invoices = append(invoices, inv)
	}

	if !found {
		return invoice.ErrNotFound
	}

	r.invoices = invoices

	var payments []*invoice.Payment

	for _, p := range r.payments {
		if p.InvoiceID != id {
			payments = append(payments, p)
		}
	}

	r.payments = payments

	var history []*invoice.History

	for _, h := range r.history {
		if h.InvoiceID != id {
			history = append(history, h)
		}
	}

	r.history = history
	r.WriteCount++

	return nil
}

func (r *Repo) CreatePayment(_ context.Context, p *invoice.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.popFailure(); err != nil {
		return err
	}

	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.payments = append(r.payments, clonePayment(p))
	r.WriteCount++

	return nil
}

func (r *Repo) PaymentByTxID(_ context.Context, txid string) (*invoice.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.payments {
		if p.TxID == txid {
			return clonePayment(p), nil
		}
	}

	return nil, invoice.ErrNotFound
}

func (r *Repo) PaymentsByAddress(_ context.Context, address string) ([]*invoice.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*invoice.Payment

	for _, p := range r.payments {
		if p.Address == address {
			out = append(out, clonePayment(p))
		}
	}

	return out, nil
}

func (r *Repo) UpdatePayment(_ context.Context, upd *invoice.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.popFailure(); err != nil {
		return err
	}

	for _, p := range r.payments {
		if p.TxID == upd.TxID {
			p.Address = upd.Address
			p.InvoiceID = upd.InvoiceID
			p.Amount = upd.Amount
			p.UpdatedAt = time.Now()
			r.WriteCount++

			return nil
		}
	}

	return invoice.ErrNotFound
}

func (r *Repo) SetPaymentStatus(_ context.Context, id uuid.UUID, status invoice.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.popFailure(); err != nil {
		return err
	}

	for _, p := range r.payments {
		if p.ID == id {
			p.Status = status
			p.UpdatedAt = time.Now()
			r.WriteCount++

			return nil
		}
	}

	return invoice.ErrNotFound
}

func (r *Repo) AppendHistory(_ context.Context, h *invoice.History) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.popFailure(); err != nil {
		return err
	}

	r.nextSeq++
	h.Seq = r.nextSeq
	h.CreatedAt = time.Now()

	c := *h
	r.history = append(r.history, &c)
	r.WriteCount++

	return nil
}

func (r *Repo) HistoryFor(_ context.Context, invoiceID uuid.UUID, paymentID *uuid.UUID) ([]*invoice.History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*invoice.History

	for _, h := range r.history {
		if h.InvoiceID != invoiceID {
			continue
		}

		if paymentID != nil && (h.PaymentID == nil || *h.PaymentID != *paymentID) {
			continue
		}

		c := *h
		out = append(out, &c)
	}

	return out, nil
}

func (r *Repo) State(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state[key], nil
}

func (r *Repo) SetState(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.popFailure(); err != nil {
		return err
	}

	r.state[key] = value
	r.WriteCount++

	return nil
}

// Actions returns the history action tags for an invoice in insertion
// order, for causal-ordering assertions.
func (r *Repo) Actions(invoiceID uuid.UUID) []invoice.Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []invoice.Action

	for _, h := range r.history {
		if h.InvoiceID == invoiceID {
			out = append(out, h.Action)
		}
	}

	return out
}
