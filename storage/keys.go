// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import "fmt"

// Key names an entry in the extension namespace. The set is closed.
type Key string

const (
	Wallets             Key = "wallets"
	Mnemonic            Key = "mnemonic"
	Login               Key = "login"
	IsLoggedIn          Key = "isLoggedIn"
	LastWalletUnlocked  Key = "lastWalletUnlocked"
	ActiveNetwork       Key = "activeNetwork"
	ActiveEnvironment   Key = "activeEnvironment"
	Transactions        Key = "transactions"
	PendingTransactions Key = "pendingTransactions"
	ConnectedSites      Key = "connectedSites"
	PayloadToSign       Key = "payloadToSign"
)

var knownKeys = map[Key]struct{}{
	Wallets:             {},
	Mnemonic:            {},
	Login:               {},
	IsLoggedIn:          {},
	LastWalletUnlocked:  {},
	ActiveNetwork:       {},
	ActiveEnvironment:   {},
	Transactions:        {},
	PendingTransactions: {},
	ConnectedSites:      {},
	PayloadToSign:       {},
}

func (k Key) valid() bool {
	_, ok := knownKeys[k]
	return ok
}

// TokenKey scopes a tracked token list to one account on one network.
func TokenKey(publicKey, symbol, rpc string) string {
	return fmt.Sprintf("token-%s-%s-%s", publicKey, symbol, rpc)
}

// NFTKey scopes tracked NFT collections to one account on one network.
func NFTKey(publicKey, symbol, rpc string) string {
	return fmt.Sprintf("nft-%s-%s-%s", publicKey, symbol, rpc)
}
