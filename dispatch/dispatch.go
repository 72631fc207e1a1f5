// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dispatch turns approved pending transactions into chain calls.
//
// A queued transaction ends in exactly one of three ways: it lands and moves
// to history, the user rejects it, or dispatch fails. In the last two cases
// it is dropped from the queue. Dapp requests learn the outcome through the
// approval broker.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/approval"
	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/sites"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/txs"
	"github.com/ava-labs/xwallet/vm"
)

const MsgInvalidTransaction = "Invalid transaction. Please try again."

var errInFlight = errors.New("transaction is already being dispatched")

// Result is what a landed transaction reports back.
type Result struct {
	Hash string `json:"hash"`
}

// Dispatcher executes and settles pending transactions.
type Dispatcher struct {
	store   *storage.Store
	factory *vm.Factory
	broker  *approval.Broker
	sites   *sites.Registry

	inFlight mapset.Set[string]
	// unrecorded holds landed transactions whose history write failed.
	// They are never dispatched again, even if the queue still lists them.
	unrecorded mapset.Set[string]
	metrics    *metrics

	log log.Logger
}

func New(
	store *storage.Store,
	factory *vm.Factory,
	broker *approval.Broker,
	sites *sites.Registry,
	reg prometheus.Registerer,
) (*Dispatcher, error) {
	m, err := newMetrics("dispatch", reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register dispatch metrics: %w", err)
	}
	return &Dispatcher{
		store:    store,
		factory:  factory,
		broker:   broker,
		sites:    sites,
		inFlight:   mapset.NewSet[string](),
		unrecorded: mapset.NewSet[string](),
		metrics:    m,
		log:        log.New("module", "dispatch"),
	}, nil
}

// Pending lists queued transactions, newest first.
func (d *Dispatcher) Pending() ([]*txs.Transaction, error) {
	var pending []*txs.Transaction
	err := d.store.View(func(tx *storage.Tx) error {
		var err error
		pending, err = txs.Pending(tx)
		return err
	})
	if err != nil || d.unrecorded.Cardinality() == 0 {
		return pending, err
	}
	listed := pending[:0]
	for _, t := range pending {
		if !d.unrecorded.Contains(t.ID) {
			listed = append(listed, t)
		}
	}
	return listed, nil
}

func (d *Dispatcher) load(id string) (*txs.Transaction, *accounts.Account, error) {
	var (
		t       *txs.Transaction
		account *accounts.Account
	)
	err := d.store.View(func(tx *storage.Tx) error {
		pending, found, err := txs.GetPending(tx, id)
		if err != nil || !found {
			return err
		}
		t = pending

		c, err := accounts.Load(tx)
		if err != nil {
			return err
		}
		if a, ok := c.Lookup(t.From); ok {
			account = &a
		}
		return nil
	})
	return t, account, err
}

// Approve dispatches the pending transaction id with the key of its sender.
// On failure the transaction is dropped from the queue.
func (d *Dispatcher) Approve(ctx context.Context, id string) (*Result, error) {
	if !d.inFlight.Add(id) {
		return nil, fmt.Errorf("%w: %s", errInFlight, id)
	}
	defer d.inFlight.Remove(id)

	t, account, err := d.load(id)
	if err != nil {
		return nil, err
	}
	if t == nil || d.unrecorded.Contains(id) {
		return nil, errs.Validationf(MsgInvalidTransaction)
	}

	v, hash, endpoint, err := d.execute(ctx, t, account)
	if err != nil {
		d.settleFailure(t, err)
		return nil, err
	}

	t.Hash = hash
	d.record(ctx, v, t, endpoint)

	d.metrics.landed.WithLabelValues(string(t.Source), string(t.Type)).Inc()
	result := &Result{Hash: hash}
	if t.Source == txs.Dapp {
		d.broker.Succeed(t.RequestID, result)
	}
	d.log.Info("transaction landed", "id", t.ID, "type", t.Type, "hash", hash)
	return result, nil
}

// execute runs t against the chain. It returns the VM used, the hash and
// the endpoint the transaction was sent to when a site overrode it.
func (d *Dispatcher) execute(ctx context.Context, t *txs.Transaction, account *accounts.Account) (vm.VM, string, string, error) {
	if account == nil {
		return nil, "", "", errs.Validationf(accounts.MsgInvalidAccount)
	}
	if t.Source == txs.Dapp && account.Type != chains.L1X {
		return nil, "", "", errs.Validationf(errs.MsgOnlyL1XAccounts)
	}

	v, err := d.factory.New(account.Type, account.PublicKey, t.ChainID)
	if err != nil {
		return nil, "", "", err
	}
	if t.RPC != "" && v.ActiveNetwork().RPC != t.RPC {
		v.OverrideRPC(t.RPC)
	}

	o := vm.Overrides{FeeLimit: t.FeeLimit, Nonce: t.Nonce}
	endpoint := ""
	if t.Source == txs.Dapp && t.Site != "" {
		site, ok, err := d.sites.Get(t.Site)
		if err != nil {
			return nil, "", "", err
		}
		if ok && site.L1XProviderConfig != nil {
			attrib := *site.L1XProviderConfig
			o.Attrib = &attrib
			endpoint = attrib.Endpoint
		}
	}

	var hash string
	switch p := t.Payload.(type) {
	case *txs.TransferNativeToken:
		hash, err = v.TransferNativeToken(ctx, p, account.PrivateKey, o)
	case *txs.TransferToken:
		hash, err = v.TransferToken(ctx, p, account.PrivateKey, o)
	case *txs.TransferNFT:
		hash, err = v.TransferNFT(ctx, p, account.PrivateKey, o)
	case *txs.StateChangeCall:
		hash, err = v.CallContract(ctx, p, account.PrivateKey, o)
	case *txs.InitContract:
		hash, err = v.InitContract(ctx, p, account.PrivateKey, o)
	default:
		err = fmt.Errorf("%w: %q", txs.ErrUnknownType, t.Type)
	}
	return v, hash, endpoint, err
}

// landWriteAttempts bounds how often a landed transaction's history write is
// tried.
const landWriteAttempts = 2

// record moves the landed t to history. The chain already accepted t, so a
// store failure here never fails the approval: t is dropped from the queue
// and fenced off so it cannot be paid twice.
func (d *Dispatcher) record(ctx context.Context, v vm.VM, t *txs.Transaction, endpoint string) {
	var err error
	for i := 0; i < landWriteAttempts; i++ {
		if err = v.AddTransaction(ctx, t, endpoint); err == nil {
			return
		}
	}
	d.log.Error("failed to record landed transaction", "id", t.ID, "hash", t.Hash, "err", err)

	d.unrecorded.Add(t.ID)
	if err := d.remove(t.ID); err != nil {
		d.log.Error("failed to drop landed transaction from the queue", "id", t.ID, "err", err)
	}
}

func (d *Dispatcher) settleFailure(t *txs.Transaction, cause error) {
	d.metrics.failed.WithLabelValues(string(t.Source), string(t.Type)).Inc()
	d.log.Warn("transaction failed", "id", t.ID, "type", t.Type, "err", cause)
	if err := d.remove(t.ID); err != nil {
		d.log.Error("failed to drop pending transaction", "id", t.ID, "err", err)
	}
	if t.Source == txs.Dapp {
		d.broker.Fail(t.RequestID, cause)
	}
}

// Reject drops the pending transaction id. A dapp that requested it is told
// the user rejected it. Reject and Approve exclude each other per id, so a
// transaction is either dispatched or rejected, never both.
func (d *Dispatcher) Reject(_ context.Context, id string) error {
	if !d.inFlight.Add(id) {
		return fmt.Errorf("%w: %s", errInFlight, id)
	}
	defer d.inFlight.Remove(id)

	if d.unrecorded.Contains(id) {
		return errs.Validationf(MsgInvalidTransaction)
	}
	var rejected *txs.Transaction
	err := d.store.Update(func(tx *storage.Tx) error {
		t, found, err := txs.GetPending(tx, id)
		if err != nil || !found {
			return err
		}
		rejected = t
		_, err = txs.RemovePending(tx, id)
		return err
	})
	if err != nil {
		return err
	}
	if rejected == nil {
		return errs.Validationf(MsgInvalidTransaction)
	}

	d.metrics.rejected.WithLabelValues(string(rejected.Source), string(rejected.Type)).Inc()
	if rejected.Source == txs.Dapp {
		d.broker.Fail(rejected.RequestID, errs.Validationf(errs.MsgRejected))
	}
	d.log.Info("transaction rejected", "id", id)
	return nil
}

// Reconcile drops queued transactions that already landed. It runs once at
// startup, before any request is served.
func (d *Dispatcher) Reconcile(context.Context) (int, error) {
	var dropped int
	err := d.store.Update(func(tx *storage.Tx) error {
		var err error
		dropped, err = txs.Reconcile(tx)
		return err
	})
	if dropped > 0 {
		d.log.Info("dropped landed transactions from the queue", "count", dropped)
	}
	return dropped, err
}

func (d *Dispatcher) remove(id string) error {
	return d.store.Update(func(tx *storage.Tx) error {
		_, err := txs.RemovePending(tx, id)
		return err
	})
}
