package scanner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/satwatch/internal/engine"
	"github.com/MrJamesThe3rd/satwatch/internal/events"
	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
	"github.com/MrJamesThe3rd/satwatch/internal/invoice/invoicetest"
	"github.com/MrJamesThe3rd/satwatch/internal/ledger"
	"github.com/MrJamesThe3rd/satwatch/internal/ledger/ledgertest"
	"github.com/MrJamesThe3rd/satwatch/internal/scanner"
)

const target = int64(100_000_000)

type harness struct {
	repo    *invoicetest.Repo
	ledger  *ledgertest.Client
	scanner *scanner.Scanner
}

// newHarness wires the scanner to a real engine over in-memory fakes;
// scans exercise the full ingest and aggregation path.
func newHarness() *harness {
	repo := invoicetest.NewRepo()
	lc := ledgertest.New("genesis")
	eng := engine.New(repo, lc, events.New(), engine.Config{RequiredConfirmations: 6, WatchConfirmations: 100})

	return &harness{repo: repo, ledger: lc, scanner: scanner.New(repo, lc, eng)}
}

func (h *harness) seedInvoice(t *testing.T, address string) *invoice.Invoice {
	t.Helper()

	inv := &invoice.Invoice{
		Amount:  target,
		Content: "order",
		Address: address,
		Status:  invoice.StatusUnpaid,
		Watched: true,
	}
	require.NoError(t, h.repo.CreateInvoice(context.Background(), inv))

	return inv
}

func (h *harness) status(t *testing.T, id uuid.UUID) invoice.Status {
	t.Helper()

	inv, err := h.repo.InvoiceByID(context.Background(), id)
	require.NoError(t, err)

	return inv.Status
}

func (h *harness) checkpoint(t *testing.T) string {
	t.Helper()

	v, err := h.repo.State(context.Background(), invoice.StateLastBlockHash)
	require.NoError(t, err)

	return v
}

func TestScan_ProcessesNewTransactions(t *testing.T) {
	h := newHarness()
	inv := h.seedInvoice(t, "addr1")

	h.ledger.SetTip("b1")
	h.ledger.SetWindow(ledger.TX{TxID: "tx1", Address: "addr1", Amount: target, Confirmations: 6})

	tip, affected, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b1", tip)
	assert.Equal(t, []uuid.UUID{inv.ID}, affected)

	assert.Equal(t, invoice.StatusPaid, h.status(t, inv.ID))
	assert.Equal(t, "b1", h.checkpoint(t))
}

func TestScan_IdlePassIsNoOp(t *testing.T) {
	h := newHarness()
	h.seedInvoice(t, "addr1")

	h.ledger.SetTip("b1")
	h.ledger.SetWindow(ledger.TX{TxID: "tx1", Address: "addr1", Amount: target, Confirmations: 6})

	_, _, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)

	before := h.repo.WriteCount

	tip, affected, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b1", tip)
	assert.Empty(t, affected)
	assert.Equal(t, before, h.repo.WriteCount)
}

func TestScan_ConfirmationChangeDefeatsIdleCheck(t *testing.T) {
	h := newHarness()
	inv := h.seedInvoice(t, "addr1")

	h.ledger.SetTip("b1")
	h.ledger.SetWindow(ledger.TX{TxID: "tx1", Address: "addr1", Amount: target, Confirmations: 1})

	_, _, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPendingPaid, h.status(t, inv.ID))

	// Tip unchanged, but the transaction has buried deeper.
	h.ledger.SetWindow(ledger.TX{TxID: "tx1", Address: "addr1", Amount: target, Confirmations: 6})

	_, affected, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{inv.ID}, affected)
	assert.Equal(t, invoice.StatusPaid, h.status(t, inv.ID))
}

func TestScan_FailedPassRetriesAtUnchangedTip(t *testing.T) {
	h := newHarness()
	inv := h.seedInvoice(t, "addr1")
	ctx := context.Background()

	h.ledger.SetTip("b1")

	_, _, err := h.scanner.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, "b1", h.checkpoint(t))

	// A mempool transaction arrives while the tip stays at b1, and the
	// pass dies on the invoice status write during aggregation.
	h.ledger.SetWindow(ledger.TX{TxID: "tx1", Address: "addr1", Amount: target, Confirmations: 1})
	h.repo.FailWrite(3, errors.New("connection reset"))

	_, _, err = h.scanner.Scan(ctx)
	require.Error(t, err)
	assert.Equal(t, "b1", h.checkpoint(t))
	assert.Equal(t, invoice.StatusUnpaid, h.status(t, inv.ID))

	// The ledger view is identical on retry; the pass must still run and
	// bring the invoice up to date instead of short-circuiting as idle.
	tip, affected, err := h.scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b1", tip)
	assert.Equal(t, []uuid.UUID{inv.ID}, affected)
	assert.Equal(t, invoice.StatusPendingPaid, h.status(t, inv.ID))
}

func TestScan_FailsClosedOnLedgerError(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.repo.SetState(context.Background(), invoice.StateLastBlockHash, "b1"))
	h.ledger.FailNextSince(errors.New("connection refused"))

	_, _, err := h.scanner.Scan(context.Background())
	require.Error(t, err)

	assert.Equal(t, "b1", h.checkpoint(t))
}

func TestScan_CheckpointOffChainFallsBackToGenesis(t *testing.T) {
	h := newHarness()
	inv := h.seedInvoice(t, "addr1")

	require.NoError(t, h.repo.SetState(context.Background(), invoice.StateLastBlockHash, "gone"))
	h.ledger.LoseBlock("gone")
	h.ledger.SetTip("b2")
	h.ledger.SetWindow(ledger.TX{TxID: "tx1", Address: "addr1", Amount: target, Confirmations: 3})

	tip, affected, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b2", tip)
	assert.Equal(t, []uuid.UUID{inv.ID}, affected)
	assert.Equal(t, "b2", h.checkpoint(t))
}

func TestScan_BadTransactionDoesNotAbortPass(t *testing.T) {
	h := newHarness()

	// Two invoices on the same address poison that transaction, but the
	// rest of the window still goes through.
	h.seedInvoice(t, "shared")
	h.seedInvoice(t, "shared")
	inv := h.seedInvoice(t, "addr1")

	h.ledger.SetTip("b1")
	h.ledger.SetWindow(
		ledger.TX{TxID: "bad", Address: "shared", Amount: target, Confirmations: 1},
		ledger.TX{TxID: "tx1", Address: "addr1", Amount: target, Confirmations: 6},
	)

	tip, affected, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b1", tip)
	assert.Equal(t, []uuid.UUID{inv.ID}, affected)
	assert.Equal(t, invoice.StatusPaid, h.status(t, inv.ID))
	assert.Equal(t, "b1", h.checkpoint(t))
}

func TestScan_ConflictPropagation(t *testing.T) {
	h := newHarness()
	inv1 := h.seedInvoice(t, "addr1")
	inv2 := h.seedInvoice(t, "addr2")

	// txB never shows up in the window; it is only reachable through
	// txA's conflict list.
	h.ledger.SetTX(ledger.TX{TxID: "txB", Address: "addr2", Amount: target, Confirmations: -1})
	h.ledger.SetTip("b1")
	h.ledger.SetWindow(ledger.TX{
		TxID:            "txA",
		Address:         "addr1",
		Amount:          target,
		Confirmations:   1,
		WalletConflicts: []string{"txB"},
	})

	_, affected, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{inv1.ID, inv2.ID}, affected)

	assert.Equal(t, invoice.StatusPendingPaid, h.status(t, inv1.ID))

	p, err := h.repo.PaymentByTxID(context.Background(), "txB")
	require.NoError(t, err)
	assert.Equal(t, invoice.PaymentReorg, p.Status)
	assert.Equal(t, invoice.StatusUnpaid, h.status(t, inv2.ID))
}

func TestScan_UnknownConflictIsSkipped(t *testing.T) {
	h := newHarness()
	inv := h.seedInvoice(t, "addr1")

	h.ledger.SetTip("b1")
	h.ledger.SetWindow(ledger.TX{
		TxID:            "txA",
		Address:         "addr1",
		Amount:          target,
		Confirmations:   2,
		WalletConflicts: []string{"ghost"},
	})

	_, affected, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{inv.ID}, affected)
	assert.Equal(t, invoice.StatusPendingPaid, h.status(t, inv.ID))
}

func TestScan_OrphanTriggersWatchedSweep(t *testing.T) {
	h := newHarness()
	inv1 := h.seedInvoice(t, "addr1")
	inv2 := h.seedInvoice(t, "addr2")
	ctx := context.Background()

	h.ledger.SetTip("b1")
	h.ledger.SetWindow(
		ledger.TX{TxID: "tx1", Address: "addr1", Amount: target, Confirmations: 6},
		ledger.TX{TxID: "tx2", Address: "addr2", Amount: target, Confirmations: 6},
	)

	_, _, err := h.scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, h.status(t, inv1.ID))
	assert.Equal(t, invoice.StatusPaid, h.status(t, inv2.ID))

	// A reorg drops the block carrying both transactions. Only tx1 shows
	// up in the new window (as orphaned); tx2's change is visible solely
	// through gettransaction, which is what the watched sweep covers.
	h.ledger.SetTip("b2")
	h.ledger.SetWindow(ledger.TX{
		TxID:          "tx1",
		Address:       "addr1",
		Amount:        target,
		Category:      ledger.CategoryOrphan,
		Confirmations: 0,
	})
	h.ledger.SetTX(ledger.TX{TxID: "tx2", Address: "addr2", Amount: target, Confirmations: 0})

	_, _, err = h.scanner.Scan(ctx)
	require.NoError(t, err)

	assert.Equal(t, invoice.StatusUnpaid, h.status(t, inv1.ID))
	assert.Equal(t, invoice.StatusUnpaid, h.status(t, inv2.ID))
	assert.Equal(t, "b2", h.checkpoint(t))

	p1, err := h.repo.PaymentByTxID(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, invoice.PaymentReorg, p1.Status)

	p2, err := h.repo.PaymentByTxID(ctx, "tx2")
	require.NoError(t, err)
	assert.Equal(t, invoice.PaymentReorg, p2.Status)
}
