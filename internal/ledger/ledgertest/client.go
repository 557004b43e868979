// Package ledgertest provides a scriptable in-memory ledger.Client.
// Tests drive it like a regtest node: register transactions, move the
// tip, orphan blocks, inject failures.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrJamesThe3rd/satwatch/internal/ledger"
)

type Client struct {
	mu sync.Mutex

	genesis    string
	tip        string
	txs        map[string]*ledger.TX
	window     []ledger.TX
	lostBlocks map[string]bool
	sinceErrs  []error
	addrSeq    int
}

var _ ledger.Client = (*Client)(nil)

func New(genesis string) *Client {
	return &Client{
		genesis:    genesis,
		tip:        genesis,
		txs:        make(map[string]*ledger.TX),
		lostBlocks: make(map[string]bool),
	}
}

// SetTip moves the chain tip reported by TransactionsSince.
func (c *Client) SetTip(tip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tip = tip
}

// SetTX registers or replaces the node's view of a transaction without
// touching the listsinceblock window.
func (c *Client) SetTX(tx ledger.TX) {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := tx
	c.txs[tx.TxID] = &copied
}

// SetWindow replaces the transactions reported by TransactionsSince and
// registers each of them for Transaction lookups.
func (c *Client) SetWindow(txs ...ledger.TX) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.window = append([]ledger.TX(nil), txs...)

	for i := range txs {
		copied := txs[i]
		c.txs[copied.TxID] = &copied
	}
}

// DropTX makes Transaction fail for txid with ErrTransactionNotFound.
func (c *Client) DropTX(txid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.txs, txid)
}

// LoseBlock makes TransactionsSince report ErrBlockNotFound for hash.
func (c *Client) LoseBlock(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lostBlocks[hash] = true
}

// FailNextSince makes the next TransactionsSince call return err.
func (c *Client) FailNextSince(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinceErrs = append(c.sinceErrs, err)
}

func (c *Client) GenesisBlockHash(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.genesis, nil
}

func (c *Client) TransactionsSince(_ context.Context, blockHash string) (*ledger.SinceBlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.sinceErrs) > 0 {
		err := c.sinceErrs[0]
		c.sinceErrs = c.sinceErrs[1:]

		return nil, err
	}

	if c.lostBlocks[blockHash] {
		return nil, fmt.Errorf("listsinceblock %s: %w", blockHash, ledger.ErrBlockNotFound)
	}

	return &ledger.SinceBlock{
		LastBlock:    c.tip,
		Transactions: append([]ledger.TX(nil), c.window...),
	}, nil
}

func (c *Client) Transaction(_ context.Context, txid string) (*ledger.TX, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, ok := c.txs[txid]
	if !ok {
		return nil, fmt.Errorf("gettransaction %s: %w", txid, ledger.ErrTransactionNotFound)
	}

	copied := *tx

	return &copied, nil
}

func (c *Client) NewAddress(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.addrSeq++

	return fmt.Sprintf("bcrt1qtest%06d", c.addrSeq), nil
}
