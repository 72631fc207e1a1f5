// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"strings"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/providers"
)

const tokenCacheSize = 1024

// NewTokenCache returns an LRU of token contract metadata reporting hit and
// miss counts to reg.
func NewTokenCache(reg prometheus.Registerer) (cache.Cacher[string, chains.Token], error) {
	return metercacher.New[string, chains.Token](
		"token_cache",
		reg,
		&cache.LRU[string, chains.Token]{Size: tokenCacheSize},
	)
}

func tokenCacheKey(rpc, address string) string {
	return rpc + "|" + strings.ToLower(strings.TrimPrefix(strings.TrimSpace(address), "0x"))
}

// endpoint is the RPC a call with attrib is sent to.
func (b *base) endpoint(attrib *providers.Attrib) string {
	if attrib != nil && attrib.Endpoint != "" {
		return attrib.Endpoint
	}
	return b.activeNetwork.RPC
}

// cachedToken returns metadata for address on the node behind attrib,
// calling fetch on a miss. Balance and rate are never cached.
func (b *base) cachedToken(attrib *providers.Attrib, address string, fetch func() (chains.Token, error)) (chains.Token, error) {
	key := tokenCacheKey(b.endpoint(attrib), address)
	if b.cfg.Tokens != nil {
		if t, ok := b.cfg.Tokens.Get(key); ok {
			return t, nil
		}
	}
	t, err := fetch()
	if err != nil {
		return chains.Token{}, err
	}
	t.Balance = "0"
	t.USDRate = 0
	if b.cfg.Tokens != nil {
		b.cfg.Tokens.Put(key, t)
	}
	return t, nil
}
