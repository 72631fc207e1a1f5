// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/providers"
)

func TestTokenCacheKeyedByEndpoint(t *testing.T) {
	require := require.New(t)
	cfg, _ := newTestConfig(t)
	v := NewEVM(cfg, "", "")

	fetches := 0
	fetch := func(symbol string) func() (chains.Token, error) {
		return func() (chains.Token, error) {
			fetches++
			return chains.Token{Symbol: symbol, Balance: "7", USDRate: 1}, nil
		}
	}
	other := &providers.Attrib{Endpoint: "https://other.example"}

	token, err := v.cachedToken(other, testToken, fetch("OTHER"))
	require.NoError(err)
	require.Equal("OTHER", token.Symbol)
	require.Equal("0", token.Balance)
	require.Zero(token.USDRate)

	token, err = v.cachedToken(nil, testToken, fetch("ACTIVE"))
	require.NoError(err)
	require.Equal("ACTIVE", token.Symbol)

	// An empty endpoint resolves to the active network.
	token, err = v.cachedToken(&providers.Attrib{}, testToken, fetch("UNUSED"))
	require.NoError(err)
	require.Equal("ACTIVE", token.Symbol)

	token, err = v.cachedToken(other, testToken, fetch("UNUSED"))
	require.NoError(err)
	require.Equal("OTHER", token.Symbol)
	require.Equal(2, fetches)
}
