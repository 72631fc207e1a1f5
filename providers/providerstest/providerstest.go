// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package providerstest provides in-memory chain nodes for tests.
package providerstest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/xwallet/providers"
)

var (
	ErrNoNode     = errors.New("no node for this family")
	ErrNoContract = errors.New("no contract at address")
)

var _ providers.L1XClient = (*L1X)(nil)

// L1X is an in-memory L1X node. Every submitted transaction is accepted and
// its receipt reports success unless FailReceipts is set.
type L1X struct {
	lock sync.Mutex

	Balance      string
	Nonce        uint64
	FailReceipts bool

	// ReadOnly answers read-only calls. Nil fails them with ErrNoContract.
	ReadOnly func(call *providers.L1XReadOnlyCall) (interface{}, error)

	submitted []*providers.SignedL1XTransaction
	dialed    []providers.Attrib
}

func NewL1X() *L1X {
	return &L1X{Balance: "1000000000000000000"}
}

func (n *L1X) AccountState(_ context.Context, address string) (*providers.L1XAccountState, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return &providers.L1XAccountState{
		Balance:     n.Balance,
		Nonce:       fmt.Sprint(n.Nonce),
		AccountType: "user",
	}, nil
}

func (n *L1X) CurrentNonce(context.Context, string) (uint64, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.Nonce, nil
}

func (n *L1X) TransactionReceipt(_ context.Context, hash string) (*providers.L1XReceipt, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	status := 0
	if n.FailReceipts {
		status = 1
	}
	return &providers.L1XReceipt{Hash: hash, Status: &status, FeeUsed: "1"}, nil
}

func (n *L1X) SubmitTransaction(_ context.Context, tx *providers.SignedL1XTransaction) (string, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.submitted = append(n.submitted, tx)
	n.Nonce++
	return fmt.Sprintf("0x%064x", len(n.submitted)), nil
}

func (n *L1X) ReadOnlyCall(_ context.Context, call *providers.L1XReadOnlyCall) (json.RawMessage, error) {
	n.lock.Lock()
	handler := n.ReadOnly
	n.lock.Unlock()
	if handler == nil {
		return nil, ErrNoContract
	}
	reply, err := handler(call)
	if err != nil {
		return nil, err
	}
	return json.Marshal(reply)
}

// Submitted returns the transactions accepted so far.
func (n *L1X) Submitted() []*providers.SignedL1XTransaction {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]*providers.SignedL1XTransaction{}, n.submitted...)
}

// Dialed returns the attributes clients were created with.
func (n *L1X) Dialed() []providers.Attrib {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]providers.Attrib{}, n.dialed...)
}

func (n *L1X) SetFailReceipts(fail bool) {
	n.lock.Lock()
	n.FailReceipts = fail
	n.lock.Unlock()
}

var _ providers.Dialer = (*Dialer)(nil)

// Dialer hands out the configured nodes. A nil node fails with ErrNoNode.
type Dialer struct {
	Node      *L1X
	EVMNode   providers.EVMClient
	SolanaRPC providers.SolanaClient
}

func (d *Dialer) L1X(attrib providers.Attrib) providers.L1XClient {
	d.Node.lock.Lock()
	d.Node.dialed = append(d.Node.dialed, attrib)
	d.Node.lock.Unlock()
	return d.Node
}

func (d *Dialer) EVM(context.Context, string) (providers.EVMClient, error) {
	if d.EVMNode == nil {
		return nil, ErrNoNode
	}
	return d.EVMNode, nil
}

func (d *Dialer) Solana(string) providers.SolanaClient {
	return d.SolanaRPC
}
