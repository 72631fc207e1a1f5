// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFamily(t *testing.T) {
	require := require.New(t)

	f, err := ParseFamily("NON-EVM")
	require.NoError(err)
	require.Equal(NonEVM, f)

	_, err = ParseFamily("BTC")
	require.ErrorIs(err, ErrUnknownFamily)
}

func TestRegistryCopies(t *testing.T) {
	require := require.New(t)
	r := DefaultRegistry()

	chains := r.Chains(L1X)
	require.Len(chains, 1)
	chains[0].RPC = "mutated"
	chains[0].Environment[Mainnet] = Environment{RPC: "mutated"}

	fresh := r.Chains(L1X)
	require.Equal(L1XMainnetRPC, fresh[0].RPC)
	require.Equal(L1XMainnetRPC, fresh[0].Environment[Mainnet].RPC)
}

func TestByChainIDFallsBack(t *testing.T) {
	require := require.New(t)
	r := DefaultRegistry()

	c, ok := r.ByChainID(EVM, "137")
	require.True(ok)
	require.Equal("MATIC", c.Symbol)

	c, ok = r.ByChainID(EVM, "999")
	require.True(ok)
	require.Equal("ETH", c.Symbol)
}

func TestWithEnvironment(t *testing.T) {
	require := require.New(t)
	c, ok := DefaultRegistry().BySymbol(L1X, "L1X")
	require.True(ok)

	overlaid, matched := c.WithEnvironment(L1XTestnetRPC)
	require.True(matched)
	require.Equal(L1XTestnetRPC, overlaid.RPC)
	require.Equal("https://l1xapp.com/testnet-explorer/tx/", overlaid.ExplorerURI)

	same, matched := c.WithEnvironment("https://unknown")
	require.False(matched)
	require.Equal(L1XMainnetRPC, same.RPC)
}

func TestRPCOverride(t *testing.T) {
	require := require.New(t)
	r := NewRegistry(map[string]string{"ETH": "http://localhost:8545"})

	c, ok := r.BySymbol(EVM, "ETH")
	require.True(ok)
	require.Equal("http://localhost:8545", c.RPC)
	require.Equal("http://localhost:8545", c.Environment[Mainnet].RPC)
}
