// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/require"
)

func TestSetGetRemove(t *testing.T) {
	require := require.New(t)
	store := New(memdb.New())

	var mnemonic string
	found, err := store.Get(Mnemonic, &mnemonic)
	require.NoError(err)
	require.False(found)

	require.NoError(store.Set(Mnemonic, "abandon ability able"))
	found, err = store.Get(Mnemonic, &mnemonic)
	require.NoError(err)
	require.True(found)
	require.Equal("abandon ability able", mnemonic)

	require.NoError(store.Remove(Mnemonic))
	found, err = store.Get(Mnemonic, &mnemonic)
	require.NoError(err)
	require.False(found)
}

func TestUnknownKey(t *testing.T) {
	require := require.New(t)
	store := New(memdb.New())

	err := store.Set(Key("privateKeys"), "x")
	require.ErrorIs(err, errUnknownKey)
}

func TestValuesAreEncrypted(t *testing.T) {
	require := require.New(t)
	db := memdb.New()
	store := New(db)

	require.NoError(store.Set(Mnemonic, "correct horse battery staple"))

	iter := db.NewIterator()
	defer iter.Release()
	for iter.Next() {
		require.False(bytes.Contains(iter.Value(), []byte("horse")))
	}
	require.NoError(iter.Error())
}

func TestSecretSurvivesReopen(t *testing.T) {
	require := require.New(t)
	db := memdb.New()

	require.NoError(New(db).Set(ActiveEnvironment, "Testnet"))

	var env string
	found, err := New(db).Get(ActiveEnvironment, &env)
	require.NoError(err)
	require.True(found)
	require.Equal("Testnet", env)
}

func TestUpdateIsAtomic(t *testing.T) {
	require := require.New(t)
	store := New(memdb.New())
	require.NoError(store.Set(PendingTransactions, []string{"a"}))

	errBoom := errors.New("boom")
	err := store.Update(func(tx *Tx) error {
		if err := tx.Set(PendingTransactions, []string{}); err != nil {
			return err
		}
		if err := tx.Set(Transactions, []string{"a"}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(err, errBoom)

	var pending, history []string
	_, err = store.Get(PendingTransactions, &pending)
	require.NoError(err)
	require.Equal([]string{"a"}, pending)
	found, err := store.Get(Transactions, &history)
	require.NoError(err)
	require.False(found)
}

func TestViewIsReadOnly(t *testing.T) {
	require := require.New(t)
	store := New(memdb.New())

	err := store.View(func(tx *Tx) error {
		return tx.Set(Login, "x")
	})
	require.ErrorIs(err, errReadOnly)
}

func TestApplicationNamespace(t *testing.T) {
	require := require.New(t)
	store := New(memdb.New())

	key := TokenKey("0xabc", "L1X", "https://rpc")
	require.Equal("token-0xabc-L1X-https://rpc", key)
	require.NoError(store.SetApp(key, []string{"L1X"}))

	var tokens []string
	found, err := store.GetApp(key, &tokens)
	require.NoError(err)
	require.True(found)
	require.Equal([]string{"L1X"}, tokens)
}
