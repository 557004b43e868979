package bitcoind

import (
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinceBlockFromResult(t *testing.T) {
	result := &btcjson.ListSinceBlockResult{
		LastBlock: "00000000000000000002tip",
		Transactions: []btcjson.ListTransactionsResult{
			{
				TxID:            "aa11",
				Category:        "receive",
				Address:         "bcrt1qreceiver",
				Amount:          1.0,
				Confirmations:   3,
				BlockHash:       "00000000000000000001abc",
				WalletConflicts: []string{"bb22"},
			},
			{
				TxID:          "cc33",
				Category:      "orphan",
				Address:       "bcrt1qother",
				Amount:        0.5,
				Confirmations: 0,
			},
		},
	}

	since, err := sinceBlockFromResult(result)
	require.NoError(t, err)

	assert.Equal(t, "00000000000000000002tip", since.LastBlock)
	require.Len(t, since.Transactions, 2)

	assert.Equal(t, int64(100_000_000), since.Transactions[0].Amount)
	assert.Equal(t, []string{"bb22"}, since.Transactions[0].WalletConflicts)
	assert.Equal(t, "orphan", since.Transactions[1].Category)
	assert.Equal(t, int64(50_000_000), since.Transactions[1].Amount)
}

func TestTxFromGetTransaction(t *testing.T) {
	result := &btcjson.GetTransactionResult{
		TxID:          "dd44",
		Amount:        -1.5,
		Confirmations: 7,
		BlockHash:     "00000000000000000001abc",
		Details: []btcjson.GetTransactionDetailsResult{
			{Address: "bcrt1qfirst", Amount: -1.0, Category: "send"},
			{Address: "bcrt1qsecond", Amount: 0.5, Category: "receive"},
		},
	}

	tx, err := txFromGetTransaction(result)
	require.NoError(t, err)

	assert.Equal(t, "dd44", tx.TxID)
	assert.Equal(t, int64(150_000_000), tx.Amount)
	assert.Equal(t, int64(7), tx.Confirmations)

	// per-address pairs come through details, absolute-valued
	require.Len(t, tx.Details, 2)
	assert.Empty(t, tx.Address)
	assert.Equal(t, int64(100_000_000), tx.Details[0].Amount)
	assert.Equal(t, int64(50_000_000), tx.Details[1].Amount)
}

func TestIsNotFoundRPCError(t *testing.T) {
	assert.True(t, isNotFoundRPCError(&btcjson.RPCError{
		Code:    btcjson.ErrRPCInvalidAddressOrKey,
		Message: "Block not found",
	}))
	assert.False(t, isNotFoundRPCError(&btcjson.RPCError{
		Code:    btcjson.ErrRPCMisc,
		Message: "internal error",
	}))
	assert.False(t, isNotFoundRPCError(assert.AnError))
}
