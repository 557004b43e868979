// Package ledger defines the contract for the external blockchain the
// reconciliation engine is reconciled against. The ledger is reached only
// through polling; there are no push notifications and no finality
// guarantees, so previously reported transactions can vanish or move.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrBlockNotFound is returned by TransactionsSince when the given
	// block hash is no longer on the canonical chain.
	ErrBlockNotFound = errors.New("block not found")

	// ErrTransactionNotFound is returned by Transaction when the node
	// cannot retrieve the transaction (pruned or unknown).
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Transaction categories as reported by the node. Orphan marks a
// transaction whose containing block left the main chain.
const (
	CategoryReceive = "receive"
	CategorySend    = "send"
	CategoryOrphan  = "orphan"
)

// Detail is one (address, amount) output pair of a transaction. A single
// transaction can pay multiple addresses at once.
type Detail struct {
	Address  string
	Amount   int64 // satoshi, absolute value
	Category string
}

// TX is the ledger's view of a wallet transaction at one point in time.
// Amounts are in satoshi. Confirmations can be negative for conflicted
// transactions.
type TX struct {
	TxID            string
	Category        string
	Address         string
	Amount          int64
	Confirmations   int64
	BlockHash       string
	WalletConflicts []string
	Details         []Detail
}

// SinceBlock is everything that happened since a checkpoint block.
type SinceBlock struct {
	LastBlock    string
	Transactions []TX
}

// Client is the ledger adapter consumed by the scanner and engine.
// Implementations live outside the core; bitcoind is provided in the
// bitcoind subpackage.
//
//go:generate mockgen -source=ledger.go -destination=client_mock.go -package=ledger
type Client interface {
	// GenesisBlockHash resolves the hash of the chain's first block.
	GenesisBlockHash(ctx context.Context) (string, error)

	// TransactionsSince returns all wallet transactions that happened
	// after the given block, plus the current tip to checkpoint against.
	// Returns ErrBlockNotFound if blockHash left the canonical chain.
	TransactionsSince(ctx context.Context, blockHash string) (*SinceBlock, error)

	// Transaction returns the node's current view of a transaction.
	// Returns ErrTransactionNotFound if it cannot be retrieved.
	Transaction(ctx context.Context, txid string) (*TX, error)

	// NewAddress hands out a fresh receiving address. Addresses are
	// never reused between invoices.
	NewAddress(ctx context.Context) (string, error)
}
