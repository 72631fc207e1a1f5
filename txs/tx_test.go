// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txs

import (
	"encoding/json"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/storage"
)

func newNativeTransfer(from, rpc string) *Transaction {
	return New(Common{
		Timestamp:   1700000000000,
		Source:      Extension,
		NetworkType: chains.L1X,
		From:        from,
		ChainID:     "1",
		RPC:         rpc,
	}, &TransferNativeToken{To: "0xbb", Amount: "10", Symbol: "L1X"})
}

func TestJSONShape(t *testing.T) {
	require := require.New(t)
	tx := New(Common{
		Source:    Dapp,
		RequestID: "1700000000000-abcd",
		From:      "0xaa",
		ChainID:   "1",
	}, &StateChangeCall{
		ContractAddress: "0xcc",
		FunctionName:    "set",
		Arguments:       json.RawMessage(`{"v":1}`),
	})

	b, err := json.Marshal(tx)
	require.NoError(err)

	flat := map[string]interface{}{}
	require.NoError(json.Unmarshal(b, &flat))
	require.Equal("state-change-call", flat["type"])
	require.Equal("0xcc", flat["contractAddress"])
	require.Equal("set", flat["functionName"])
	require.Equal("dapp", flat["source"])

	decoded := &Transaction{}
	require.NoError(json.Unmarshal(b, decoded))
	call, ok := decoded.Payload.(*StateChangeCall)
	require.True(ok)
	require.Equal("set", call.FunctionName)
	require.JSONEq(`{"v":1}`, string(call.Arguments))
	require.Equal(tx.ID, decoded.ID)
}

func TestUnknownTypeRejected(t *testing.T) {
	require := require.New(t)

	err := json.Unmarshal([]byte(`{"id":"x","type":"sign-tx-payload","from":"0xaa"}`), &Transaction{})
	require.ErrorIs(err, ErrUnknownType)
}

func TestValidate(t *testing.T) {
	require := require.New(t)

	tx := New(Common{Source: Dapp, From: "0xaa"}, &TransferToken{To: "0xbb"})
	err := tx.Validate()
	require.ErrorIs(err, errs.ErrValidation)
	require.Equal("Missing required parameters. amount tokenAddress", errs.Message(err))

	tx = New(Common{Source: Dapp, From: "0xaa"}, &TransferNativeToken{To: "0xbb", Amount: "1"})
	require.Equal("Missing required parameters. requestId", errs.Message(tx.Validate()))

	tx.RequestID = "r1"
	require.NoError(tx.Validate())
}

func TestQueueLifecycle(t *testing.T) {
	require := require.New(t)
	store := storage.New(memdb.New())

	first := newNativeTransfer("0xaa", chains.L1XMainnetRPC)
	second := newNativeTransfer("0xaa", chains.L1XMainnetRPC)
	require.NotEqual(first.ID, second.ID)

	require.NoError(store.Update(func(tx *storage.Tx) error {
		if err := Enqueue(tx, first); err != nil {
			return err
		}
		return Enqueue(tx, second)
	}))

	require.NoError(store.View(func(tx *storage.Tx) error {
		pending, err := Pending(tx)
		require.NoError(err)
		require.Len(pending, 2)
		require.Equal(second.ID, pending[0].ID)
		return nil
	}))

	// Landing without a hash is refused.
	err := store.Update(func(tx *storage.Tx) error { return Land(tx, first) })
	require.Equal(MsgInvalidHash, errs.Message(err))

	first.Hash = "0xhash"
	require.NoError(store.Update(func(tx *storage.Tx) error { return Land(tx, first) }))

	require.NoError(store.View(func(tx *storage.Tx) error {
		pending, err := Pending(tx)
		require.NoError(err)
		require.Len(pending, 1)
		require.Equal(second.ID, pending[0].ID)

		history, err := History(tx)
		require.NoError(err)
		require.Len(history, 1)
		require.Equal(first.ID, history[0].ID)
		require.Len(Filter(history, "0xaa", chains.L1XMainnetRPC), 1)
		require.Empty(Filter(history, "0xaa", chains.L1XTestnetRPC))
		return nil
	}))

	removed := true
	require.NoError(store.Update(func(tx *storage.Tx) error {
		var err error
		removed, err = RemovePending(tx, "missing")
		return err
	}))
	require.False(removed)
}

func TestRemoveByRequestID(t *testing.T) {
	require := require.New(t)
	store := storage.New(memdb.New())

	tx := newNativeTransfer("0xaa", chains.L1XMainnetRPC)
	tx.Source = Dapp
	tx.RequestID = "req-1"
	require.NoError(store.Update(func(stx *storage.Tx) error { return Enqueue(stx, tx) }))

	require.NoError(store.Update(func(stx *storage.Tx) error {
		removed, err := RemovePendingByRequestID(stx, "req-1")
		require.True(removed)
		return err
	}))
	require.NoError(store.View(func(stx *storage.Tx) error {
		pending, err := Pending(stx)
		require.Empty(pending)
		return err
	}))
}

func TestReconcile(t *testing.T) {
	require := require.New(t)
	store := storage.New(memdb.New())

	landed := newNativeTransfer("0xaa", chains.L1XMainnetRPC)
	landed.Hash = "0x1"
	waiting := newNativeTransfer("0xaa", chains.L1XMainnetRPC)

	// Simulate a crash between the two writes of an older layout.
	require.NoError(store.Set(storage.Transactions, []*Transaction{landed}))
	require.NoError(store.Set(storage.PendingTransactions, []*Transaction{waiting, landed}))

	var dropped int
	require.NoError(store.Update(func(tx *storage.Tx) error {
		var err error
		dropped, err = Reconcile(tx)
		return err
	}))
	require.Equal(1, dropped)

	require.NoError(store.View(func(tx *storage.Tx) error {
		pending, err := Pending(tx)
		require.Len(pending, 1)
		require.Equal(waiting.ID, pending[0].ID)
		return err
	}))
}
