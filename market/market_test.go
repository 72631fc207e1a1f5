// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		RateEndpoint:      srv.URL + "/ticker",
		L1XTokenEndpoint:  srv.URL + "/l1x/",
		CoinGeckoEndpoint: srv.URL + "/coins/",
		IPFSGateway:       srv.URL + "/",
	})
}

func TestTokenRate(t *testing.T) {
	require := require.New(t)
	var symbols []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		symbols = append(symbols, r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"data":{"last_price":"1.25"}}`))
	})

	require.Equal(1.25, c.TokenRate(context.Background(), "l1x"))
	require.Equal(1.25, c.TokenRate(context.Background(), "USDT"))
	require.Equal([]string{"L1X_USDT", "USDC_USDT"}, symbols)
}

func TestTokenRateFailureIsZero(t *testing.T) {
	require := require.New(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.Zero(c.TokenRate(context.Background(), "ETH"))
	require.Empty(c.L1XTokenImage(context.Background(), "abc"))
}

func TestTokenImages(t *testing.T) {
	require := require.New(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/l1x/0xabc":
			_, _ = w.Write([]byte(`{"data":{"image":"l1x.png"}}`))
		case "/coins/ethereum/contract/0xdef":
			_, _ = w.Write([]byte(`{"image":{"thumb":"thumb.png"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.Equal("l1x.png", c.L1XTokenImage(context.Background(), "abc"))
	require.Equal("thumb.png", c.EVMTokenImage(context.Background(), "Ethereum", "0xdef"))
}

func TestNFTMetadataIPFS(t *testing.T) {
	require := require.New(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal("/ipfs/QmMeta", r.URL.Path)
		_, _ = w.Write([]byte(`{"name":"Punk #1","image":"ipfs://QmImage"}`))
	})

	meta, err := c.NFTMetadata(context.Background(), "ipfs://QmMeta")
	require.NoError(err)
	require.Equal("Punk #1", meta.Name)
	require.Equal(c.cfg.IPFSGateway+"ipfs/QmImage", meta.Icon)
	require.Equal("https://x/y.json", c.FilterIPFS("https://x/y.json"))
}
