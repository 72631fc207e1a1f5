// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

const (
	L1XMainnetRPC = "https://v2-mainnet-rpc.l1x.foundation"
	L1XTestnetRPC = "https://v2-testnet-rpc.l1x.foundation"
	L1XDevnetRPC  = "https://v2-devnet-rpc.l1x.foundation"

	EthereumRPC  = "https://eth.llamarpc.com"
	PolygonRPC   = "https://polygon-rpc.com"
	BinanceRPC   = "https://bsc.publicnode.com"
	AvalancheRPC = "https://api.avax.network/ext/bc/C/rpc"
	OptimismRPC  = "https://mainnet.optimism.io/"
	SolanaRPC    = "https://api.mainnet-beta.solana.com"

	Mainnet = "Mainnet"
	Testnet = "Testnet"
	Devnet  = "Devnet"
)

// Registry is the immutable set of chains per family. Accessors hand out
// copies, never the backing descriptors.
type Registry struct {
	chains map[Family][]Chain
}

// NewRegistry builds the registry, replacing the mainnet RPC of any chain
// whose symbol appears in rpcOverrides.
func NewRegistry(rpcOverrides map[string]string) *Registry {
	r := &Registry{chains: map[Family][]Chain{
		L1X:    l1xChains(),
		EVM:    evmChains(),
		NonEVM: solanaChains(),
	}}
	for family, chains := range r.chains {
		for i, c := range chains {
			rpc, ok := rpcOverrides[c.Symbol]
			if !ok || rpc == "" {
				continue
			}
			mainnet := c.Environment[Mainnet]
			if mainnet.RPC == c.RPC {
				mainnet.RPC = rpc
				c.Environment[Mainnet] = mainnet
			}
			c.RPC = rpc
			r.chains[family][i] = c
		}
	}
	return r
}

// DefaultRegistry is the registry with no overrides.
func DefaultRegistry() *Registry { return NewRegistry(nil) }

// Chains returns a copy of the family's chains.
func (r *Registry) Chains(f Family) []Chain {
	src := r.chains[f]
	out := make([]Chain, len(src))
	for i, c := range src {
		out[i] = c.Clone()
	}
	return out
}

// ByChainID finds the chain with the given id, falling back to the
// family's first chain.
func (r *Registry) ByChainID(f Family, chainID string) (Chain, bool) {
	src := r.chains[f]
	for _, c := range src {
		if c.ID() == chainID {
			return c.Clone(), true
		}
	}
	if len(src) == 0 {
		return Chain{}, false
	}
	return src[0].Clone(), true
}

func (r *Registry) BySymbol(f Family, symbol string) (Chain, bool) {
	for _, c := range r.chains[f] {
		if c.Symbol == symbol {
			return c.Clone(), true
		}
	}
	return Chain{}, false
}

func l1xChains() []Chain {
	return []Chain{{
		Name:        "Layer One X",
		Symbol:      "L1X",
		Icon:        "L1X_icon.png",
		RPC:         L1XMainnetRPC,
		ChainID:     1,
		ExplorerURI: "https://l1xapp.com/explorer/tx/",
		NativeToken: nativeToken("Layer One X", "L1X", "L1X_icon.png", 18),
		Environment: map[string]Environment{
			Mainnet: {RPC: L1XMainnetRPC, ExplorerURI: "https://l1xapp.com/explorer/tx/"},
			Testnet: {RPC: L1XTestnetRPC, ExplorerURI: "https://l1xapp.com/testnet-explorer/tx/"},
			Devnet:  {RPC: L1XDevnetRPC, ExplorerURI: "https://l1xapp.com/devnet-explorer/tx/"},
		},
	}}
}

func evmChains() []Chain {
	return []Chain{
		evmChain("Ethereum Chain", "Ethereum", "ETH", "ethereum.svg", EthereumRPC, 1, "https://etherscan.io/tx/"),
		evmChain("Polygon Chain", "Polygon", "MATIC", "matic.svg", PolygonRPC, 137, "https://polygonscan.com/tx/"),
		evmChain("Binance Smart Chain", "Binance", "BNB", "binance.svg", BinanceRPC, 56, "https://bscscan.com/tx/"),
		evmChain("Avalanche C Chain", "Avalanche", "AVAX", "avalanche.svg", AvalancheRPC, 43144, "https://snowtrace.io/tx/"),
		evmChain("Optimism Chain", "Optimism", "OP", "optimism.svg", OptimismRPC, 10, "https://optimistic.etherscan.io/tx/"),
	}
}

func solanaChains() []Chain {
	return []Chain{{
		Name:        "Solana Chain",
		Symbol:      "SOL",
		Icon:        "solana.svg",
		RPC:         SolanaRPC,
		ChainID:     3,
		ExplorerURI: "https://solana.fm/tx/",
		NativeToken: nativeToken("Solana", "SOL", "solana.svg", 9),
		Environment: map[string]Environment{
			Mainnet: {RPC: SolanaRPC, ExplorerURI: "https://solana.fm/tx/"},
		},
	}}
}

func evmChain(name, tokenName, symbol, icon, rpc string, chainID uint64, explorer string) Chain {
	return Chain{
		Name:        name,
		Symbol:      symbol,
		Icon:        icon,
		RPC:         rpc,
		ChainID:     chainID,
		ExplorerURI: explorer,
		NativeToken: nativeToken(tokenName, symbol, icon, 18),
		Environment: map[string]Environment{
			Mainnet: {RPC: rpc, ExplorerURI: explorer},
		},
	}
}

func nativeToken(name, symbol, icon string, decimals uint8) Token {
	return Token{
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: "0",
		Balance:     "0",
		Icon:        icon,
		IsNative:    true,
	}
}
