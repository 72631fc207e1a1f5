// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage is the encrypted key-value store backing the wallet.
//
// Values are JSON encoded and sealed with AES-CTR before they reach disk.
// All mutations of persisted collections go through [Store.Update], which
// runs one writer at a time and commits the callback's writes atomically.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xwallet/errs"
)

var (
	// These are prefixes for db keys.
	// Each namespace gets its own prefix so keys never collide.
	extensionPrefix   = []byte("extension")
	applicationPrefix = []byte("application")
	secretPrefix      = []byte("secret")

	errUnknownKey = errors.New("unknown storage key")
	errReadOnly   = errors.New("write in read-only transaction")
)

// Store is the encrypted store. It is safe for concurrent use.
type Store struct {
	// lock serializes every transaction against baseDB.
	lock sync.Mutex

	baseDB        *versiondb.Database
	extensionDB   database.Database
	applicationDB database.Database
	secrets       SecretState

	log log.Logger
}

// New wraps db. The secret lives outside the versioned layer so an aborted
// transaction never loses a freshly generated key.
func New(db database.Database) *Store {
	baseDB := versiondb.New(db)
	return &Store{
		baseDB:        baseDB,
		extensionDB:   prefixdb.New(extensionPrefix, baseDB),
		applicationDB: prefixdb.New(applicationPrefix, baseDB),
		secrets:       NewSecretState(prefixdb.New(secretPrefix, db)),
		log:           log.New("module", "storage"),
	}
}

// Update runs fn as the only writer. If fn returns nil every write it made
// is committed together; otherwise they are all discarded. fn must not call
// back into the Store.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	defer s.baseDB.Abort()
	if err := fn(&Tx{s: s}); err != nil {
		return err
	}
	if err := s.baseDB.Commit(); err != nil {
		s.log.Error("failed to commit", "err", err)
		return errs.NewStorage(err)
	}
	return nil
}

// View runs fn with a read-only transaction.
func (s *Store) View(fn func(tx *Tx) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return fn(&Tx{s: s, readOnly: true})
}

// Get decodes the value stored at key into v. It reports false if the key
// is unset.
func (s *Store) Get(key Key, v interface{}) (bool, error) {
	var found bool
	err := s.View(func(tx *Tx) error {
		var err error
		found, err = tx.Get(key, v)
		return err
	})
	return found, err
}

func (s *Store) Set(key Key, v interface{}) error {
	return s.Update(func(tx *Tx) error { return tx.Set(key, v) })
}

func (s *Store) Remove(key Key) error {
	return s.Update(func(tx *Tx) error { return tx.Remove(key) })
}

func (s *Store) GetApp(key string, v interface{}) (bool, error) {
	var found bool
	err := s.View(func(tx *Tx) error {
		var err error
		found, err = tx.GetApp(key, v)
		return err
	})
	return found, err
}

func (s *Store) SetApp(key string, v interface{}) error {
	return s.Update(func(tx *Tx) error { return tx.SetApp(key, v) })
}

// Close closes the underlying base database
func (s *Store) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.baseDB.Close()
}

// Tx is a view of the store inside Update or View.
type Tx struct {
	s        *Store
	readOnly bool
}

func (tx *Tx) Get(key Key, v interface{}) (bool, error) {
	if !key.valid() {
		return false, fmt.Errorf("%w: %q", errUnknownKey, key)
	}
	return tx.get(tx.s.extensionDB, []byte(key), v)
}

func (tx *Tx) Set(key Key, v interface{}) error {
	if !key.valid() {
		return fmt.Errorf("%w: %q", errUnknownKey, key)
	}
	return tx.put(tx.s.extensionDB, []byte(key), v)
}

func (tx *Tx) Remove(key Key) error {
	if !key.valid() {
		return fmt.Errorf("%w: %q", errUnknownKey, key)
	}
	return tx.delete(tx.s.extensionDB, []byte(key))
}

// GetApp reads an application entry such as a token or NFT list.
func (tx *Tx) GetApp(key string, v interface{}) (bool, error) {
	return tx.get(tx.s.applicationDB, []byte(key), v)
}

func (tx *Tx) SetApp(key string, v interface{}) error {
	return tx.put(tx.s.applicationDB, []byte(key), v)
}

func (tx *Tx) RemoveApp(key string) error {
	return tx.delete(tx.s.applicationDB, []byte(key))
}

func (tx *Tx) get(db database.Database, key []byte, v interface{}) (bool, error) {
	sealed, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errs.NewStorage(err)
	}
	block, err := tx.s.secrets.Cipher()
	if err != nil {
		return false, errs.NewStorage(err)
	}
	plaintext, err := open(block, sealed)
	if err != nil {
		return false, errs.NewStorage(err)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return false, errs.NewStorage(err)
	}
	return true, nil
}

func (tx *Tx) put(db database.Database, key []byte, v interface{}) error {
	if tx.readOnly {
		return errReadOnly
	}
	plaintext, err := json.Marshal(v)
	if err != nil {
		return err
	}
	block, err := tx.s.secrets.Cipher()
	if err != nil {
		return errs.NewStorage(err)
	}
	sealed, err := seal(block, plaintext)
	if err != nil {
		return errs.NewStorage(err)
	}
	if err := db.Put(key, sealed); err != nil {
		return errs.NewStorage(err)
	}
	return nil
}

func (tx *Tx) delete(db database.Database, key []byte) error {
	if tx.readOnly {
		return errReadOnly
	}
	if err := db.Delete(key); err != nil {
		return errs.NewStorage(err)
	}
	return nil
}
