// Package scanner drives the reconciliation engine forward over new
// ledger activity. It owns the lastblockhash checkpoint, detects reorgs
// and surfaced conflicts, and advances the checkpoint only after a pass
// fully succeeds.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
	"github.com/MrJamesThe3rd/satwatch/internal/ledger"
)

// Engine is the slice of the reconciliation engine the scanner drives.
type Engine interface {
	UpdatePayment(ctx context.Context, tx *ledger.TX) (uuid.UUID, error)
	UpdateInvoice(ctx context.Context, invoiceID uuid.UUID) (*invoice.State, error)
}

type Scanner struct {
	repo   invoice.Repository
	ledger ledger.Client
	engine Engine

	// mu serializes scans: concurrent scans would race on the checkpoint
	// and could skip or double-process transactions.
	mu sync.Mutex

	// lastDigest shortcuts idle polls: when the tip has not moved and the
	// reported transaction set is identical to the previous pass, the
	// scan is a no-op.
	lastDigest string
}

func New(repo invoice.Repository, lc ledger.Client, engine Engine) *Scanner {
	return &Scanner{repo: repo, ledger: lc, engine: engine}
}

// session carries the state of one scan pass through the call chain.
type session struct {
	seen         map[uuid.UUID]struct{}
	affected     []uuid.UUID
	sweepWatched bool
}

func newSession() *session {
	return &session{seen: make(map[uuid.UUID]struct{})}
}

func (s *session) touch(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}

	if _, ok := s.seen[id]; ok {
		return
	}

	s.seen[id] = struct{}{}
	s.affected = append(s.affected, id)
}

// Scan walks everything that happened since the checkpoint, feeds it
// through the engine and persists the new tip. It returns the new
// checkpoint and the ids of invoices affected by this pass. On error the
// checkpoint is left untouched and the pass is safe to retry.
func (s *Scanner) Scan(ctx context.Context) (string, []uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkpoint, err := s.repo.State(ctx, invoice.StateLastBlockHash)
	if err != nil {
		return "", nil, err
	}

	if checkpoint == "" {
		if checkpoint, err = s.ledger.GenesisBlockHash(ctx); err != nil {
			return "", nil, fmt.Errorf("resolving genesis block: %w", err)
		}
	}

	return s.scanFrom(ctx, checkpoint)
}

func (s *Scanner) scanFrom(ctx context.Context, blockHash string) (string, []uuid.UUID, error) {
	since, err := s.ledger.TransactionsSince(ctx, blockHash)
	if errors.Is(err, ledger.ErrBlockNotFound) {
		// The checkpoint left the canonical chain, e.g. after a reorg
		// deeper than our history. Restart the walk from genesis.
		slog.Info("checkpoint no longer on canonical chain; scanning from genesis block",
			"checkpoint", blockHash)

		genesis, gerr := s.ledger.GenesisBlockHash(ctx)
		if gerr != nil {
			return "", nil, fmt.Errorf("resolving genesis block: %w", gerr)
		}

		blockHash = genesis
		since, err = s.ledger.TransactionsSince(ctx, genesis)
	}

	if err != nil {
		// Fail closed: the checkpoint must not advance past activity we
		// have not processed.
		return "", nil, err
	}

	digest := digestOf(since)
	if since.LastBlock == blockHash && digest == s.lastDigest {
		return blockHash, nil, nil
	}

	sess := newSession()

	for _, tx := range since.Transactions {
		if tx.Category == ledger.CategoryOrphan {
			// An orphaned transaction means a block left the main chain;
			// conflicts may now affect invoices that received nothing in
			// this window, so sweep every watched invoice afterwards.
			sess.sweepWatched = true
			break
		}
	}

	for i := range since.Transactions {
		s.ingest(ctx, sess, &since.Transactions[i])
	}

	for _, id := range sess.affected {
		if _, err := s.engine.UpdateInvoice(ctx, id); err != nil {
			return "", nil, fmt.Errorf("updating invoice %s: %w", id, err)
		}
	}

	if err := s.repo.SetState(ctx, invoice.StateLastBlockHash, since.LastBlock); err != nil {
		return "", nil, fmt.Errorf("persisting checkpoint: %w", err)
	}

	if sess.sweepWatched {
		if err := s.sweepWatchedInvoices(ctx, sess); err != nil {
			return "", nil, err
		}
	}

	// Cache the digest only once the pass succeeded: a failed pass must
	// stay retryable even when the ledger view has not changed since.
	s.lastDigest = digest

	return since.LastBlock, sess.affected, nil
}

// ingest feeds one transaction and its conflicts through the engine.
// Failures are isolated: one bad record never blocks unrelated invoices.
func (s *Scanner) ingest(ctx context.Context, sess *session, tx *ledger.TX) {
	invoiceID, err := s.engine.UpdatePayment(ctx, tx)
	if err != nil {
		if errors.Is(err, invoice.ErrDataIntegrity) {
			slog.Error("data integrity violation; skipping transaction",
				"txid", tx.TxID, "error", err)
		} else {
			slog.Warn("failed to process transaction", "txid", tx.TxID, "error", err)
		}

		return
	}

	sess.touch(invoiceID)
	s.checkConflicts(ctx, sess, tx)
}

// checkConflicts runs every transaction conflicting with tx through
// payment ingestion. A conflicting transaction may resolve to the same
// invoice or to a different one; either way the touched invoice is
// collected. Errors on individual conflicts are swallowed so an
// unreachable transaction cannot abort the scan.
func (s *Scanner) checkConflicts(ctx context.Context, sess *session, tx *ledger.TX) {
	for _, conflictTxID := range tx.WalletConflicts {
		conflictTx, err := s.ledger.Transaction(ctx, conflictTxID)
		if err != nil {
			slog.Warn("cannot retrieve conflicting transaction",
				"txid", conflictTxID, "conflicts_with", tx.TxID, "error", err)
			continue
		}

		invoiceID, err := s.engine.UpdatePayment(ctx, conflictTx)
		if err != nil {
			slog.Warn("failed to process conflicting transaction",
				"txid", conflictTxID, "error", err)
			continue
		}

		sess.touch(invoiceID)
	}
}

// sweepWatchedInvoices re-checks conflicts for every payment of every
// watched invoice, then re-aggregates each invoice. Run after a pass that
// saw an orphaned transaction.
func (s *Scanner) sweepWatchedInvoices(ctx context.Context, sess *session) error {
	watched, err := s.repo.WatchedInvoices(ctx)
	if err != nil {
		return err
	}

	for _, inv := range watched {
		payments, err := s.repo.PaymentsByAddress(ctx, inv.Address)
		if err != nil {
			return err
		}

		for _, p := range payments {
			tx, err := s.ledger.Transaction(ctx, p.TxID)
			if err != nil {
				slog.Warn("cannot retrieve payment transaction during sweep",
					"txid", p.TxID, "error", err)
				continue
			}

			s.checkConflicts(ctx, sess, tx)
		}

		if _, err := s.engine.UpdateInvoice(ctx, inv.ID); err != nil {
			return fmt.Errorf("updating watched invoice %s: %w", inv.ID, err)
		}
	}

	return nil
}

func digestOf(since *ledger.SinceBlock) string {
	var b strings.Builder

	b.WriteString(since.LastBlock)

	for _, tx := range since.Transactions {
		b.WriteByte('\n')
		b.WriteString(tx.TxID)
		b.WriteByte('.')
		b.WriteString(strconv.FormatInt(tx.Confirmations, 10))
	}

	return b.String()
}
