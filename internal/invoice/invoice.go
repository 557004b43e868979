package invoice

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an invoice or payment id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when invoice creation input is rejected
	// before any write happens.
	ErrValidation = errors.New("validation failed")

	// ErrDataIntegrity is returned when more than one invoice shares a
	// receiving address. Addresses are unique per invoice; this must
	// never happen.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrTimeout is returned by the wait APIs when the deadline elapses
	// before the awaited condition is observed.
	ErrTimeout = errors.New("timeout")
)

// Status is the payment state of an invoice, derived from its payments.
type Status string

const (
	StatusUnpaid          Status = "unpaid"
	StatusPartial         Status = "partial"
	StatusPaid            Status = "paid"
	StatusOverpaid        Status = "overpaid"
	StatusPendingPartial  Status = "pending_partial"
	StatusPendingPaid     Status = "pending_paid"
	StatusPendingOverpaid Status = "pending_overpaid"
)

// PaymentStatus is the lifecycle state of a single observed transaction.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentConfirmed     PaymentStatus = "confirmed"
	PaymentReorg         PaymentStatus = "reorg"
	PaymentTxUnavailable PaymentStatus = "tx_unavailable"
)

// Invoice is a request for payment bound to a dedicated receiving
// address. At most one live invoice exists per address. Status and
// Watched are owned by the reconciliation engine.
type Invoice struct {
	ID        uuid.UUID
	Amount    int64 // satoshi
	Content   string
	Address   string
	Status    Status
	Watched   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment is the record of one ledger transaction matched to an invoice.
// One payment exists per transaction id.
type Payment struct {
	ID        uuid.UUID
	TxID      string
	Address   string
	InvoiceID uuid.UUID
	Amount    int64 // satoshi
	Status    PaymentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Action tags a history record with the event it describes.
type Action string

// Payment status transitions are tagged with the new status itself
// (e.g. "reorg", "confirmed"), so the audit trail reads as the payment's
// life story.
const (
	ActionCreate       Action = "create"
	ActionReceive      Action = "receive"
	ActionAdjust       Action = "adjust"
	ActionUpdateStatus Action = "updateStatus"
	ActionSetWatched   Action = "setWatchedState"
)

// History is one append-only audit record. Seq is assigned by the store
// and defines the causal order; timestamps can collide for writes within
// the same scan.
type History struct {
	Seq       int64
	InvoiceID uuid.UUID
	PaymentID *uuid.UUID
	Action    Action
	Params    map[string]any
	Content   string
	CreatedAt time.Time
}

// State is the aggregation result for one invoice at one point in time.
// Updated carries the new status when the stored status changed during
// aggregation, and is empty otherwise.
type State struct {
	Payments       []*Payment
	Confirmations  int64
	Updated        Status
	FinalAmount    int64
	PendingAmount  int64
	DisabledAmount int64
	FinalMatch     bool
	TotalMatch     bool
}

// TotalAmount is the live (final + pending) sum; reorged amounts are not
// part of it.
func (s *State) TotalAmount() int64 {
	return s.FinalAmount + s.PendingAmount
}
