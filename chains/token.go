// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

// Token is a tracked fungible token. Balance and TotalSupply are decimal
// strings already scaled by Decimals.
type Token struct {
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	Decimals     uint8   `json:"decimals"`
	TotalSupply  string  `json:"total_supply"`
	Balance      string  `json:"balance"`
	TokenAddress string  `json:"tokenAddress"`
	Icon         string  `json:"icon"`
	IsNative     bool    `json:"isNative"`
	USDRate      float64 `json:"usdRate"`
}

// NFT is one tracked non-fungible token.
type NFT struct {
	Name              string `json:"name"`
	Icon              string `json:"icon"`
	CollectionAddress string `json:"collectionAddress"`
	TokenID           string `json:"tokenId"`
}

// NFTCollection groups the NFTs tracked for one contract.
type NFTCollection struct {
	ContractAddress string `json:"contractAddress"`
	Name            string `json:"name"`
	Icon            string `json:"icon"`
	Symbol          string `json:"symbol"`
	NFTList         []NFT  `json:"nftList"`
}

// NFTCollections is keyed by contract address.
type NFTCollections map[string]*NFTCollection
