// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vmtest builds VM configurations backed by in-memory nodes.
package vmtest

import (
	"context"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/market"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/providers/providerstest"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/vm"
)

const (
	Mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	// L1XKey is a throwaway secp256k1 key used to seed test wallets.
	L1XKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	Now = int64(1700000000)
)

var _ vm.Market = StaticMarket{}

// StaticMarket prices every symbol at Rates[symbol] and never fetches.
type StaticMarket struct {
	Rates map[string]float64
}

func (m StaticMarket) TokenRate(_ context.Context, symbol string) float64 { return m.Rates[symbol] }

func (StaticMarket) L1XTokenImage(context.Context, string) string { return "" }

func (StaticMarket) EVMTokenImage(context.Context, string, string) string { return "" }

func (StaticMarket) NFTMetadata(_ context.Context, uri string) (*market.NFTMetadata, error) {
	return &market.NFTMetadata{Name: uri}, nil
}

// NewConfig returns a config over a fresh memdb store that already holds
// Mnemonic. Confirmation delays are zero.
func NewConfig(t testing.TB, dialer providers.Dialer) *vm.Config {
	t.Helper()
	store := storage.New(memdb.New())
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Set(storage.Mnemonic, Mnemonic))

	clock := &mockable.Clock{}
	clock.Set(time.Unix(Now, 0))

	return &vm.Config{
		Store:       store,
		Registry:    chains.DefaultRegistry(),
		Dialer:      dialer,
		Market:      StaticMarket{Rates: map[string]float64{"L1X": 1}},
		Clock:       clock,
		Tokens:      &cache.LRU[string, chains.Token]{Size: 16},
		L1XFeeLimit: providers.DefaultL1XFeeLimit,
	}
}

// NewL1XConfig is NewConfig over a fresh in-memory L1X node.
func NewL1XConfig(t testing.TB) (*vm.Config, *providerstest.L1X) {
	node := providerstest.NewL1X()
	return NewConfig(t, &providerstest.Dialer{Node: node}), node
}
