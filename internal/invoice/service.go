package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/satwatch/internal/events"
	"github.com/MrJamesThe3rd/satwatch/internal/ledger"
)

// Scalar state keys in the key/value store.
const (
	StateLastBlockHash = "lastblockhash"
	StateLastUpdated   = "lastupdated"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=invoice
type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	InvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	InvoicesByAddress(ctx context.Context, address string) ([]*Invoice, error)
	ListInvoices(ctx context.Context, updatedSince *time.Time) ([]*Invoice, error)
	WatchedInvoices(ctx context.Context) ([]*Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetInvoiceWatched(ctx context.Context, id uuid.UUID, watched bool) error
	DeleteInvoice(ctx context.Context, id uuid.UUID) error

	CreatePayment(ctx context.Context, p *Payment) error
	PaymentByTxID(ctx context.Context, txid string) (*Payment, error)
	PaymentsByAddress(ctx context.Context, address string) ([]*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error

	AppendHistory(ctx context.Context, h *History) error
	HistoryFor(ctx context.Context, invoiceID uuid.UUID, paymentID *uuid.UUID) ([]*History, error)

	State(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// Reconciler recomputes one invoice's status from its payments and the
// current ledger view. Implemented by the engine package.
type Reconciler interface {
	UpdateInvoice(ctx context.Context, invoiceID uuid.UUID) (*State, error)
}

// Scanner walks new ledger activity from the last checkpoint. Implemented
// by the scanner package. At most one scan runs at a time.
type Scanner interface {
	Scan(ctx context.Context) (tip string, affected []uuid.UUID, err error)
}

type Options struct {
	// MinimumSatoshi rejects invoice creation below this amount.
	MinimumSatoshi int64
	// PollInterval is the pause between scans inside the wait APIs.
	PollInterval time.Duration
}

// Service is the invoice API exposed to front ends.
type Service struct {
	repo    Repository
	ledger  ledger.Client
	rec     Reconciler
	scanner Scanner
	bus     *events.Bus
	opts    Options
}

func NewService(repo Repository, lc ledger.Client, rec Reconciler, sc Scanner, bus *events.Bus, opts Options) *Service {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}

	return &Service{repo: repo, ledger: lc, rec: rec, scanner: sc, bus: bus, opts: opts}
}

// Create validates the request, reserves a fresh receiving address and
// stores the invoice as unpaid and watched.
func (s *Service) Create(ctx context.Context, amount int64, content string) (*Invoice, error) {
	if amount < s.opts.MinimumSatoshi {
		return nil, fmt.Errorf("amount %d below minimum %d: %w", amount, s.opts.MinimumSatoshi, ErrValidation)
	}

	if content == "" {
		return nil, fmt.Errorf("content must not be empty: %w", ErrValidation)
	}

	address, err := s.ledger.NewAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserving address: %w", err)
	}

	inv := &Invoice{
		Amount:  amount,
		Content: content,
		Address: address,
		Status:  StatusUnpaid,
		Watched: true,
	}
	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	err = s.repo.AppendHistory(ctx, &History{
		InvoiceID: inv.ID,
		Action:    ActionCreate,
		Params:    map[string]any{"invoiceId": inv.ID.String()},
		Content:   "invoice created",
	})
	if err != nil {
		return nil, err
	}

	return inv, nil
}

// Info re-runs aggregation for the invoice and returns its current record
// together with the aggregation state.
func (s *Service) Info(ctx context.Context, id uuid.UUID) (*Invoice, *State, error) {
	state, err := s.rec.UpdateInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	inv, err := s.repo.InvoiceByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return inv, state, nil
}

// History returns the audit trail for an invoice, optionally narrowed to
// one payment, in insertion order.
func (s *Service) History(ctx context.Context, invoiceID uuid.UUID, paymentID *uuid.UUID) ([]*History, error) {
	if _, err := s.repo.InvoiceByID(ctx, invoiceID); err != nil {
		return nil, err
	}

	return s.repo.HistoryFor(ctx, invoiceID, paymentID)
}

// Iterate walks invoices most-recently-updated first, re-aggregating each
// one before handing it to perItem. Iteration stops on the first error.
func (s *Service) Iterate(ctx context.Context, updatedSince *time.Time, perItem func(*Invoice, *State) error) error {
	invoices, err := s.repo.ListInvoices(ctx, updatedSince)
	if err != nil {
		return err
	}

	for _, inv := range invoices {
		state, err := s.rec.UpdateInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}

		current, err := s.repo.InvoiceByID(ctx, inv.ID)
		if err != nil {
			return err
		}

		if err := perItem(current, state); err != nil {
			return err
		}
	}

	return nil
}

// Updates iterates invoices changed since the last Updates call, then
// stamps the consumption time.
func (s *Service) Updates(ctx context.Context, perItem func(*Invoice, *State) error) error {
	var since *time.Time

	raw, err := s.repo.State(ctx, StateLastUpdated)
	if err != nil {
		return err
	}

	if raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("parsing %s state: %w", StateLastUpdated, err)
		}

		since = &t
	}

	if err := s.Iterate(ctx, since, perItem); err != nil {
		return err
	}

	return s.repo.SetState(ctx, StateLastUpdated, time.Now().UTC().Format(time.RFC3339Nano))
}

// Delete removes an invoice with its payments and history. Administrative
// cleanup only; the engine never deletes.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.InvoiceByID(ctx, id); err != nil {
		return err
	}

	return s.repo.DeleteInvoice(ctx, id)
}

// WaitForStatus blocks until the invoice reaches the desired status, a
// scan fails, or the timeout elapses. The condition is checked before a
// scan error is surfaced, so a concurrent scan reporting an unrelated
// error does not mask success.
func (s *Service) WaitForStatus(ctx context.Context, id uuid.UUID, desired Status, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	got := make(chan struct{}, 1)
	sub := s.bus.Subscribe(events.TopicInvoiceUpdated, func(payload any) {
		upd, ok := payload.(events.InvoiceUpdated)
		if ok && upd.InvoiceID == id && upd.Status == string(desired) {
			select {
			case got <- struct{}{}:
			default:
			}
		}
	})
	defer s.bus.Unsubscribe(sub)

	// Settle the current view first; the status may already be there.
	if _, err := s.rec.UpdateInvoice(ctx, id); err != nil {
		return err
	}

	inv, err := s.repo.InvoiceByID(ctx, id)
	if err != nil {
		return err
	}

	if inv.Status == desired {
		return nil
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		_, _, scanErr := s.scanner.Scan(ctx)

		select {
		case <-got:
			return nil
		default:
		}

		if scanErr != nil {
			return scanErr
		}

		select {
		case <-got:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for invoice %s to become %s: %w", id, desired, ErrTimeout)
		case <-ticker.C:
		}
	}
}

// WaitForChange blocks until the checkpoint reaches wantedBlockHash, or,
// when wantedBlockHash is empty, until the ledger advances past the
// current checkpoint or any invoice is affected by a scan.
func (s *Service) WaitForChange(ctx context.Context, wantedBlockHash string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	baseline, err := s.repo.State(ctx, StateLastBlockHash)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		tip, affected, err := s.scanner.Scan(ctx)
		if err != nil {
			return err
		}

		if wantedBlockHash != "" {
			if tip == wantedBlockHash {
				return nil
			}
		} else if tip != baseline || len(affected) > 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for ledger change: %w", ErrTimeout)
		case <-ticker.C:
		}
	}
}
