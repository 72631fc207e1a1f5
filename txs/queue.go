// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txs

import (
	"github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/storage"
)

const MsgInvalidHash = "Invalid transaction hash."

// Pending returns the queue, newest first.
func Pending(tx *storage.Tx) ([]*Transaction, error) {
	var pending []*Transaction
	if _, err := tx.Get(storage.PendingTransactions, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// History returns every landed transaction, newest first.
func History(tx *storage.Tx) ([]*Transaction, error) {
	var history []*Transaction
	if _, err := tx.Get(storage.Transactions, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// Enqueue validates t and inserts it at the front of the queue. Identical
// payloads may coexist; only ids distinguish them.
func Enqueue(tx *storage.Tx, t *Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	pending, err := Pending(tx)
	if err != nil {
		return err
	}
	return tx.Set(storage.PendingTransactions, append([]*Transaction{t}, pending...))
}

// GetPending finds a queued transaction by id.
func GetPending(tx *storage.Tx, id string) (*Transaction, bool, error) {
	pending, err := Pending(tx)
	if err != nil {
		return nil, false, err
	}
	for _, t := range pending {
		if t.ID == id {
			return t, true, nil
		}
	}
	return nil, false, nil
}

// RemovePending drops the queued transaction with id. It is a no-op if no
// such transaction is queued.
func RemovePending(tx *storage.Tx, id string) (bool, error) {
	n, err := removeWhere(tx, func(t *Transaction) bool { return t.ID == id })
	return n > 0, err
}

// RemovePendingByRequestID drops every queued transaction waiting on
// requestID.
func RemovePendingByRequestID(tx *storage.Tx, requestID string) (bool, error) {
	if requestID == "" {
		return false, nil
	}
	n, err := removeWhere(tx, func(t *Transaction) bool { return t.RequestID == requestID })
	return n > 0, err
}

func removeWhere(tx *storage.Tx, match func(*Transaction) bool) (int, error) {
	pending, err := Pending(tx)
	if err != nil {
		return 0, err
	}
	kept := make([]*Transaction, 0, len(pending))
	for _, t := range pending {
		if !match(t) {
			kept = append(kept, t)
		}
	}
	removed := len(pending) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, tx.Set(storage.PendingTransactions, kept)
}

// Land records t in history and removes it from the queue. Both writes
// belong to tx, so they commit together.
func Land(tx *storage.Tx, t *Transaction) error {
	if t.Hash == "" {
		return errs.Validationf(MsgInvalidHash)
	}
	history, err := History(tx)
	if err != nil {
		return err
	}
	if err := tx.Set(storage.Transactions, append([]*Transaction{t}, history...)); err != nil {
		return err
	}
	_, err = RemovePending(tx, t.ID)
	return err
}

// Reconcile drops queued transactions that already reached history. It
// reports how many were dropped.
func Reconcile(tx *storage.Tx) (int, error) {
	history, err := History(tx)
	if err != nil {
		return 0, err
	}
	landed := make(map[string]struct{}, len(history))
	for _, t := range history {
		landed[t.ID] = struct{}{}
	}
	return removeWhere(tx, func(t *Transaction) bool {
		_, ok := landed[t.ID]
		return ok
	})
}

// Filter returns the history entries sent from publicKey on rpc.
func Filter(history []*Transaction, publicKey, rpc string) []*Transaction {
	var out []*Transaction
	for _, t := range history {
		if accounts.SameAddress(t.From, publicKey) && t.RPC == rpc {
			out = append(out, t)
		}
	}
	return out
}
