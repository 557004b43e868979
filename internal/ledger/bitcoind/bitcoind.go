// Package bitcoind implements the ledger contract on top of a bitcoind
// node's wallet RPC interface.
package bitcoind

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/MrJamesThe3rd/satwatch/internal/ledger"
)

// Client wraps an rpcclient connection in HTTP POST mode. It satisfies
// ledger.Client.
type Client struct {
	rpc *rpcclient.Client
}

var _ ledger.Client = (*Client)(nil)

type Config struct {
	Addr string
	User string
	Pass string
}

// New connects to the bitcoind RPC endpoint described by cfg.
func New(cfg Config) (*Client, error) {
	rpc, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Addr,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to bitcoind: %w", err)
	}

	return &Client{rpc: rpc}, nil
}

func (c *Client) Close() {
	c.rpc.Shutdown()
}

func (c *Client) GenesisBlockHash(_ context.Context) (string, error) {
	hash, err := c.rpc.GetBlockHash(0)
	if err != nil {
		return "", fmt.Errorf("getting genesis block hash: %w", err)
	}

	return hash.String(), nil
}

func (c *Client) TransactionsSince(_ context.Context, blockHash string) (*ledger.SinceBlock, error) {
	hash, err := chainhash.NewHashFromStr(blockHash)
	if err != nil {
		return nil, fmt.Errorf("parsing block hash %q: %w", blockHash, err)
	}

	result, err := c.rpc.ListSinceBlock(hash)
	if err != nil {
		if isNotFoundRPCError(err) {
			return nil, fmt.Errorf("listsinceblock %s: %w", blockHash, ledger.ErrBlockNotFound)
		}

		return nil, fmt.Errorf("listsinceblock %s: %w", blockHash, err)
	}

	return sinceBlockFromResult(result)
}

func (c *Client) Transaction(_ context.Context, txid string) (*ledger.TX, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("parsing txid %q: %w", txid, err)
	}

	result, err := c.rpc.GetTransaction(hash)
	if err != nil {
		if isNotFoundRPCError(err) {
			return nil, fmt.Errorf("gettransaction %s: %w", txid, ledger.ErrTransactionNotFound)
		}

		return nil, fmt.Errorf("gettransaction %s: %w", txid, err)
	}

	return txFromGetTransaction(result)
}

func (c *Client) NewAddress(_ context.Context) (string, error) {
	addr, err := c.rpc.GetNewAddress("")
	if err != nil {
		return "", fmt.Errorf("getting new address: %w", err)
	}

	return addr.EncodeAddress(), nil
}

// isNotFoundRPCError reports whether err is bitcoind's "invalid address or
// key" RPC error (code -5), used for both unknown blocks and unknown
// transactions.
func isNotFoundRPCError(err error) bool {
	var rpcErr *btcjson.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}

	return rpcErr.Code == btcjson.ErrRPCInvalidAddressOrKey
}

func satoshiFromBTC(btc float64) (int64, error) {
	amount, err := btcutil.NewAmount(btc)
	if err != nil {
		return 0, fmt.Errorf("converting amount %v: %w", btc, err)
	}

	if amount < 0 {
		amount = -amount
	}

	return int64(amount), nil
}

func sinceBlockFromResult(result *btcjson.ListSinceBlockResult) (*ledger.SinceBlock, error) {
	since := &ledger.SinceBlock{
		LastBlock:    result.LastBlock,
		Transactions: make([]ledger.TX, 0, len(result.Transactions)),
	}

	for _, tx := range result.Transactions {
		amount, err := satoshiFromBTC(tx.Amount)
		if err != nil {
			return nil, err
		}

		since.Transactions = append(since.Transactions, ledger.TX{
			TxID:            tx.TxID,
			Category:        tx.Category,
			Address:         tx.Address,
			Amount:          amount,
			Confirmations:   tx.Confirmations,
			BlockHash:       tx.BlockHash,
			WalletConflicts: tx.WalletConflicts,
		})
	}

	return since, nil
}

func txFromGetTransaction(result *btcjson.GetTransactionResult) (*ledger.TX, error) {
	amount, err := satoshiFromBTC(result.Amount)
	if err != nil {
		return nil, err
	}

	tx := &ledger.TX{
		TxID:            result.TxID,
		Amount:          amount,
		Confirmations:   result.Confirmations,
		BlockHash:       result.BlockHash,
		WalletConflicts: result.WalletConflicts,
	}

	for _, d := range result.Details {
		detailAmount, err := satoshiFromBTC(d.Amount)
		if err != nil {
			return nil, err
		}

		// The top-level address and amount stay empty here: gettransaction
		// reports per-address pairs in details only, and matching must see
		// them as such.
		tx.Details = append(tx.Details, ledger.Detail{
			Address:  d.Address,
			Amount:   detailAmount,
			Category: d.Category,
		})
	}

	return tx, nil
}
