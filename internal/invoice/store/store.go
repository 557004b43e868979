package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ invoice.Repository = (*Store)(nil)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectInvoiceColumns = `
	i.id, i.amount, i.content, i.address, i.status, i.watched, i.created_at, i.updated_at
`

func scanInvoice(s scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	var statusStr string

	if err := s.Scan(
		&inv.ID, &inv.Amount, &inv.Content, &inv.Address, &statusStr, &inv.Watched,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	inv.Status = invoice.Status(statusStr)

	return &inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (amount, content, address, status, watched, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		inv.Amount,
		inv.Content,
		inv.Address,
		inv.Status,
		inv.Watched,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating invoice: %w", err)
	}

	return nil
}

func (s *Store) InvoiceByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices i WHERE i.id = $1`

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	return inv, nil
}

func (s *Store) InvoicesByAddress(ctx context.Context, address string) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices i WHERE i.address = $1`

	return s.queryInvoices(ctx, query, address)
}

func (s *Store) ListInvoices(ctx context.Context, updatedSince *time.Time) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices i`

	var args []any

	if updatedSince != nil {
		query += ` WHERE i.updated_at > $1`
		args = append(args, *updatedSince)
	}

	query += ` ORDER BY i.updated_at DESC`

	return s.queryInvoices(ctx, query, args...)
}

func (s *Store) WatchedInvoices(ctx context.Context) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices i WHERE i.watched ORDER BY i.created_at`

	return s.queryInvoices(ctx, query)
}

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]*invoice.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*invoice.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}

func (s *Store) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status invoice.Status) error {
	query := `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`

	return s.execOne(ctx, "updating invoice status", query, id, status)
}

func (s *Store) SetInvoiceWatched(ctx context.Context, id uuid.UUID, watched bool) error {
	query := `UPDATE invoices SET watched = $2, updated_at = NOW() WHERE id = $1`

	return s.execOne(ctx, "setting invoice watched state", query, id, watched)
}

func (s *Store) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	// payments cascade via the foreign key; history keeps no reference
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE invoice_id = $1`, id); err != nil {
		return fmt.Errorf("deleting invoice history: %w", err)
	}

	return s.execOne(ctx, "deleting invoice", `DELETE FROM invoices WHERE id = $1`, id)
}

const selectPaymentColumns = `
	p.id, p.txid, p.address, p.invoice_id, p.amount, p.status, p.created_at, p.updated_at
`

func scanPayment(s scanner) (*invoice.Payment, error) {
	var p invoice.Payment

	var statusStr string

	if err := s.Scan(
		&p.ID, &p.TxID, &p.Address, &p.InvoiceID, &p.Amount, &statusStr,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Status = invoice.PaymentStatus(statusStr)

	return &p, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *invoice.Payment) error {
	query := `
		INSERT INTO payments (txid, address, invoice_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.TxID,
		p.Address,
		p.InvoiceID,
		p.Amount,
		p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}

	return nil
}

func (s *Store) PaymentByTxID(ctx context.Context, txid string) (*invoice.Payment, error) {
	query := `SELECT ` + selectPaymentColumns + ` FROM payments p WHERE p.txid = $1`

	p, err := scanPayment(s.db.QueryRowContext(ctx, query, txid))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting payment: %w", err)
	}

	return p, nil
}

func (s *Store) PaymentsByAddress(ctx context.Context, address string) ([]*invoice.Payment, error) {
	query := `SELECT ` + selectPaymentColumns + ` FROM payments p WHERE p.address = $1 ORDER BY p.created_at`

	rows, err := s.db.QueryContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []*invoice.Payment

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}

		payments = append(payments, p)
	}

	return payments, rows.Err()
}

func (s *Store) UpdatePayment(ctx context.Context, p *invoice.Payment) error {
	query := `
		UPDATE payments SET address = $2, invoice_id = $3, amount = $4, updated_at = NOW()
		WHERE txid = $1
	`

	return s.execOne(ctx, "updating payment", query, p.TxID, p.Address, p.InvoiceID, p.Amount)
}

func (s *Store) SetPaymentStatus(ctx context.Context, id uuid.UUID, status invoice.PaymentStatus) error {
	query := `UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`

	return s.execOne(ctx, "setting payment status", query, id, status)
}

func (s *Store) AppendHistory(ctx context.Context, h *invoice.History) error {
	params, err := json.Marshal(h.Params)
	if err != nil {
		return fmt.Errorf("encoding history params: %w", err)
	}

	query := `
		INSERT INTO history (invoice_id, payment_id, action, params, content, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING seq, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		h.InvoiceID,
		h.PaymentID,
		h.Action,
		params,
		h.Content,
	).Scan(&h.Seq, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}

	return nil
}

func (s *Store) HistoryFor(ctx context.Context, invoiceID uuid.UUID, paymentID *uuid.UUID) ([]*invoice.History, error) {
	query := `
		SELECT h.seq, h.invoice_id, h.payment_id, h.action, h.params, h.content, h.created_at
		FROM history h
		WHERE h.invoice_id = $1
	`

	args := []any{invoiceID}

	if paymentID != nil {
		query += ` AND h.payment_id = $2`
		args = append(args, *paymentID)
	}

	// insertion order, not timestamps: concurrent writes can share one
	query += ` ORDER BY h.seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var records []*invoice.History

	for rows.Next() {
		var (
			h         invoice.History
			actionStr string
			rawParams []byte
		)

		if err := rows.Scan(
			&h.Seq, &h.InvoiceID, &h.PaymentID, &actionStr, &rawParams, &h.Content, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}

		h.Action = invoice.Action(actionStr)

		if err := json.Unmarshal(rawParams, &h.Params); err != nil {
			return nil, fmt.Errorf("decoding history params: %w", err)
		}

		records = append(records, &h)
	}

	return records, rows.Err()
}

func (s *Store) State(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM scanner_state WHERE key = $1`, key,
	).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}

		return "", fmt.Errorf("getting state %s: %w", key, err)
	}

	return value, nil
}

func (s *Store) SetState(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO scanner_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("setting state %s: %w", key, err)
	}

	return nil
}

func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if affected == 0 {
		return invoice.ErrNotFound
	}

	return nil
}
