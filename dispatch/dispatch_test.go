// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatch

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/approval"
	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/providers/providerstest"
	"github.com/ava-labs/xwallet/sites"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/txs"
	"github.com/ava-labs/xwallet/vm"
	"github.com/ava-labs/xwallet/vm/vmtest"
)

const (
	testSite      = "https://dapp.example"
	testRecipient = "0x3333333333333333333333333333333333333333"
)

type testEnv struct {
	cfg        *vm.Config
	node       *providerstest.L1X
	broker     *approval.Broker
	sites      *sites.Registry
	dispatcher *Dispatcher
	account    *accounts.Account
}

func newTestEnv(t *testing.T) *testEnv {
	cfg, node := vmtest.NewL1XConfig(t)
	return newTestEnvWith(t, cfg, node)
}

func newTestEnvWith(t *testing.T, cfg *vm.Config, node *providerstest.L1X) *testEnv {
	require := require.New(t)
	factory := vm.NewFactory(cfg)

	v, err := factory.New(chains.L1X, "", "1")
	require.NoError(err)
	account, err := v.ImportPrivateKey(context.Background(), vmtest.L1XKey, "main")
	require.NoError(err)

	broker := approval.NewBroker(cfg.Store, cfg.Clock, 0)
	registry := sites.New(cfg.Store, nil, cfg.Clock)
	d, err := New(cfg.Store, factory, broker, registry, prometheus.NewRegistry())
	require.NoError(err)

	return &testEnv{
		cfg:        cfg,
		node:       node,
		broker:     broker,
		sites:      registry,
		dispatcher: d,
		account:    account,
	}
}

func (e *testEnv) enqueue(t *testing.T, common txs.Common, payload txs.Payload) *txs.Transaction {
	if common.From == "" {
		common.From = e.account.PublicKey
	}
	common.NetworkType = chains.L1X
	common.ChainID = "1"
	tx := txs.New(common, payload)
	require.NoError(t, e.cfg.Store.Update(func(stx *storage.Tx) error {
		return txs.Enqueue(stx, tx)
	}))
	return tx
}

// openDapp parks a transaction request the way the page endpoint does.
func (e *testEnv) openDapp(t *testing.T) string {
	r, err := e.broker.Open(approval.Request{Kind: approval.KindTransaction, Site: testSite})
	require.NoError(t, err)
	return r.ID
}

func (e *testEnv) queues(t *testing.T) (pending, history []*txs.Transaction) {
	require.NoError(t, e.cfg.Store.View(func(tx *storage.Tx) error {
		var err error
		if pending, err = txs.Pending(tx); err != nil {
			return err
		}
		history, err = txs.History(tx)
		return err
	}))
	return pending, history
}

func TestApproveMovesToHistory(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	tx := e.enqueue(t, txs.Common{Source: txs.Extension}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})
	result, err := e.dispatcher.Approve(context.Background(), tx.ID)
	require.NoError(err)
	require.NotEmpty(result.Hash)

	pending, history := e.queues(t)
	require.Empty(pending)
	require.Len(history, 1)
	require.Equal(tx.ID, history[0].ID)
	require.Equal(result.Hash, history[0].Hash)
	require.Equal(chains.L1XMainnetRPC, history[0].RPC)
	require.Len(e.node.Submitted(), 1)
	require.Equal(1.0, testutil.ToFloat64(e.dispatcher.metrics.landed.WithLabelValues("extension", string(txs.TransferNativeTokenType))))

	_, err = e.dispatcher.Approve(context.Background(), tx.ID)
	require.ErrorIs(err, errs.ErrValidation)
	require.Len(e.node.Submitted(), 1)
}

func TestApproveDappUsesSiteProvider(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	attrib := providers.Attrib{ClusterType: "testnet", Endpoint: "https://node.example"}
	require.NoError(e.sites.Connect(sites.Site{URL: testSite, L1XProviderConfig: &attrib}, []string{e.account.PublicKey}))

	requestID := e.openDapp(t)
	tx := e.enqueue(t, txs.Common{Source: txs.Dapp, Site: testSite, RequestID: requestID}, &txs.StateChangeCall{
		ContractAddress: "0x4444444444444444444444444444444444444444",
		FunctionName:    "mint",
		Arguments:       []byte(`{"amount":"1"}`),
	})

	result, err := e.dispatcher.Approve(context.Background(), tx.ID)
	require.NoError(err)

	resp, err := e.broker.Wait(context.Background(), requestID)
	require.NoError(err)
	require.Equal(approval.StatusSuccess, resp.Status)
	require.Equal(result, resp.Data)

	dialed := e.node.Dialed()
	require.Equal(attrib, dialed[len(dialed)-1])

	_, history := e.queues(t)
	require.Len(history, 1)
	require.Equal("https://node.example", history[0].RPC)
}

func TestRejectAnswersOnce(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	requestID := e.openDapp(t)
	tx := e.enqueue(t, txs.Common{Source: txs.Dapp, Site: testSite, RequestID: requestID}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})

	require.NoError(e.dispatcher.Reject(context.Background(), tx.ID))
	err := e.dispatcher.Reject(context.Background(), tx.ID)
	require.ErrorIs(err, errs.ErrValidation)
	require.False(e.broker.Fail(requestID, errs.NewWindowClosed()))

	resp, err := e.broker.Wait(context.Background(), requestID)
	require.NoError(err)
	require.Equal(approval.Response{Status: approval.StatusFailure, ErrorMessage: errs.MsgRejected}, resp)

	pending, history := e.queues(t)
	require.Empty(pending)
	require.Empty(history)
	require.Empty(e.node.Submitted())
}

func TestFailedDispatchDropsTransaction(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)
	e.node.SetFailReceipts(true)

	requestID := e.openDapp(t)
	tx := e.enqueue(t, txs.Common{Source: txs.Dapp, Site: testSite, RequestID: requestID}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})

	_, err := e.dispatcher.Approve(context.Background(), tx.ID)
	require.ErrorIs(err, errs.ErrChain)

	resp, err := e.broker.Wait(context.Background(), requestID)
	require.NoError(err)
	require.Equal(approval.StatusFailure, resp.Status)
	require.Equal(vm.MsgTransferToken, resp.ErrorMessage)

	pending, history := e.queues(t)
	require.Empty(pending)
	require.Empty(history)
	require.Equal(1.0, testutil.ToFloat64(e.dispatcher.metrics.failed.WithLabelValues("dapp", string(txs.TransferNativeTokenType))))
}

func TestDappRequiresL1XAccount(t *testing.T) {
	require := require.New(t)
	cfg, _ := vmtest.NewL1XConfig(t)
	factory := vm.NewFactory(cfg)

	v, err := factory.New(chains.EVM, "", "1")
	require.NoError(err)
	evmAccount, err := v.ImportPrivateKey(context.Background(), vmtest.L1XKey, "evm")
	require.NoError(err)

	broker := approval.NewBroker(cfg.Store, cfg.Clock, 0)
	d, err := New(cfg.Store, factory, broker, sites.New(cfg.Store, nil, cfg.Clock), prometheus.NewRegistry())
	require.NoError(err)
	e := &testEnv{cfg: cfg, broker: broker, dispatcher: d, account: evmAccount}

	requestID := e.openDapp(t)
	tx := e.enqueue(t, txs.Common{Source: txs.Dapp, Site: testSite, RequestID: requestID}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})

	_, err = d.Approve(context.Background(), tx.ID)
	require.Equal(errs.MsgOnlyL1XAccounts, errs.Message(err))

	resp, err := broker.Wait(context.Background(), requestID)
	require.NoError(err)
	require.Equal(errs.MsgOnlyL1XAccounts, resp.ErrorMessage)

	pending, _ := e.queues(t)
	require.Empty(pending)
}

func TestUnknownSender(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	tx := e.enqueue(t, txs.Common{Source: txs.Extension, From: testRecipient}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})
	_, err := e.dispatcher.Approve(context.Background(), tx.ID)
	require.Equal(accounts.MsgInvalidAccount, errs.Message(err))

	pending, _ := e.queues(t)
	require.Empty(pending)
}

func TestReconcile(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	landed := e.enqueue(t, txs.Common{Source: txs.Extension}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})
	queued := e.enqueue(t, txs.Common{Source: txs.Extension}, &txs.TransferNativeToken{To: testRecipient, Amount: "6"})

	// Simulate a crash between the history write and the queue removal.
	landed.Hash = "0xabc"
	require.NoError(e.cfg.Store.Set(storage.Transactions, []*txs.Transaction{landed}))

	dropped, err := e.dispatcher.Reconcile(context.Background())
	require.NoError(err)
	require.Equal(1, dropped)

	pending, history := e.queues(t)
	require.Len(pending, 1)
	require.Equal(queued.ID, pending[0].ID)
	require.Len(history, 1)
}

var errInjected = errors.New("injected write failure")

// faultDB fails every batch that writes one of the failing keys.
type faultDB struct {
	database.Database

	lock    sync.Mutex
	failing [][]byte
}

func (db *faultDB) fail(keys ...storage.Key) {
	db.lock.Lock()
	defer db.lock.Unlock()
	for _, key := range keys {
		db.failing = append(db.failing, []byte(key))
	}
}

func (db *faultDB) fails(key []byte) bool {
	db.lock.Lock()
	defer db.lock.Unlock()
	for _, suffix := range db.failing {
		if bytes.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

func (db *faultDB) NewBatch() database.Batch {
	return &faultBatch{Batch: db.Database.NewBatch(), db: db}
}

type faultBatch struct {
	database.Batch

	db     *faultDB
	broken bool
}

func (b *faultBatch) Put(key, value []byte) error {
	b.broken = b.broken || b.db.fails(key)
	return b.Batch.Put(key, value)
}

func (b *faultBatch) Delete(key []byte) error {
	b.broken = b.broken || b.db.fails(key)
	return b.Batch.Delete(key)
}

func (b *faultBatch) Write() error {
	if b.broken {
		return errInjected
	}
	return b.Batch.Write()
}

func newFaultEnv(t *testing.T) (*testEnv, *faultDB) {
	db := &faultDB{Database: memdb.New()}
	node := providerstest.NewL1X()
	cfg := vmtest.NewConfig(t, &providerstest.Dialer{Node: node})
	cfg.Store = storage.New(db)
	t.Cleanup(func() { _ = cfg.Store.Close() })
	require.NoError(t, cfg.Store.Set(storage.Mnemonic, vmtest.Mnemonic))
	return newTestEnvWith(t, cfg, node), db
}

func TestApproveRejectExcludeEachOther(t *testing.T) {
	for i := 0; i < 25; i++ {
		require := require.New(t)
		e := newTestEnv(t)

		requestID := e.openDapp(t)
		tx := e.enqueue(t, txs.Common{Source: txs.Dapp, Site: testSite, RequestID: requestID}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})

		var (
			wg         sync.WaitGroup
			approveErr error
			rejectErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, approveErr = e.dispatcher.Approve(context.Background(), tx.ID)
		}()
		go func() {
			defer wg.Done()
			rejectErr = e.dispatcher.Reject(context.Background(), tx.ID)
		}()
		wg.Wait()

		resp, err := e.broker.Wait(context.Background(), requestID)
		require.NoError(err)
		pending, history := e.queues(t)
		require.Empty(pending)

		if approveErr == nil {
			require.Error(rejectErr)
			require.Equal(approval.StatusSuccess, resp.Status)
			require.Len(history, 1)
			require.Len(e.node.Submitted(), 1)
			continue
		}
		require.NoError(rejectErr)
		require.Equal(approval.Response{Status: approval.StatusFailure, ErrorMessage: errs.MsgRejected}, resp)
		require.Empty(history)
		require.Empty(e.node.Submitted())
	}
}

func TestRejectWhileDispatching(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t)

	tx := e.enqueue(t, txs.Common{Source: txs.Extension}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})
	require.True(e.dispatcher.inFlight.Add(tx.ID))

	require.ErrorIs(e.dispatcher.Reject(context.Background(), tx.ID), errInFlight)
	_, err := e.dispatcher.Approve(context.Background(), tx.ID)
	require.ErrorIs(err, errInFlight)

	e.dispatcher.inFlight.Remove(tx.ID)
	pending, _ := e.queues(t)
	require.Len(pending, 1)
}

func TestApproveHistoryWriteFails(t *testing.T) {
	require := require.New(t)
	e, db := newFaultEnv(t)

	requestID := e.openDapp(t)
	tx := e.enqueue(t, txs.Common{Source: txs.Dapp, Site: testSite, RequestID: requestID}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})
	db.fail(storage.Transactions)

	result, err := e.dispatcher.Approve(context.Background(), tx.ID)
	require.NoError(err)
	require.NotEmpty(result.Hash)

	resp, err := e.broker.Wait(context.Background(), requestID)
	require.NoError(err)
	require.Equal(approval.StatusSuccess, resp.Status)

	pending, history := e.queues(t)
	require.Empty(pending)
	require.Empty(history)

	_, err = e.dispatcher.Approve(context.Background(), tx.ID)
	require.ErrorIs(err, errs.ErrValidation)
	require.Len(e.node.Submitted(), 1)
}

func TestApproveStoreWritesFail(t *testing.T) {
	require := require.New(t)
	e, db := newFaultEnv(t)

	tx := e.enqueue(t, txs.Common{Source: txs.Extension}, &txs.TransferNativeToken{To: testRecipient, Amount: "5"})
	db.fail(storage.Transactions, storage.PendingTransactions)

	_, err := e.dispatcher.Approve(context.Background(), tx.ID)
	require.NoError(err)

	// The queue entry survives in the store but is never dispatched again.
	stored, _ := e.queues(t)
	require.Len(stored, 1)
	pending, err := e.dispatcher.Pending()
	require.NoError(err)
	require.Empty(pending)

	_, err = e.dispatcher.Approve(context.Background(), tx.ID)
	require.ErrorIs(err, errs.ErrValidation)
	require.ErrorIs(e.dispatcher.Reject(context.Background(), tx.ID), errs.ErrValidation)
	require.Len(e.node.Submitted(), 1)
}
