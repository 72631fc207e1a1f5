// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vm presents one capability surface over the chain families the
// wallet supports. Each family has its own implementation; bookkeeping that
// does not depend on the chain lives in the shared base.
package vm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"

	"github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/market"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/txs"
)

const (
	DefaultConfirmDelay     = 3 * time.Second
	DefaultCallConfirmDelay = 5 * time.Second

	// FeeHintToken asks EstimateFee for the gas of a token transfer.
	FeeHintToken = "TOKEN"
)

// VM is the per-family wallet capability. Operations a family does not
// support fail with errs.ErrNotImplemented.
type VM interface {
	NetworkType() chains.Family
	PublicKey() string
	Chains() []chains.Chain
	ActiveNetwork() chains.Chain

	// OverrideRPC points the active network at rpc without persisting it.
	OverrideRPC(rpc string)

	// ChangeActiveNetwork switches to the registry chain with the same
	// symbol as chain. Unknown symbols are ignored.
	ChangeActiveNetwork(ctx context.Context, chain chains.Chain) error

	// UseNetwork is ChangeActiveNetwork for this VM only. Nothing is
	// persisted.
	UseNetwork(ctx context.Context, chain chains.Chain) error

	CreateAccount(ctx context.Context, name string) (*accounts.Account, error)
	ImportPrivateKey(ctx context.Context, privateKey, name string) (*accounts.Account, error)
	UpdateAccountName(ctx context.Context, publicKey, name string) error

	ImportToken(ctx context.Context, address string) error
	ImportNFT(ctx context.Context, collection, tokenID, wallet string) error
	ListToken(ctx context.Context) ([]chains.Token, error)
	ListNFT(ctx context.Context) ([]chains.NFT, error)
	NativeTokenDetails(ctx context.Context, attrib *providers.Attrib) (*chains.Token, error)
	TokenDetails(ctx context.Context, address string, attrib *providers.Attrib) (*chains.Token, error)
	NFTDetails(ctx context.Context, collection, tokenID string, attrib *providers.Attrib) (*chains.NFT, error)
	IsOwnedNFT(ctx context.Context, collection, tokenID, wallet string, attrib *providers.Attrib) (bool, error)

	// Amounts passed to transfers are integers in the token's base unit.
	TransferNativeToken(ctx context.Context, p *txs.TransferNativeToken, privateKey string, o Overrides) (string, error)
	TransferToken(ctx context.Context, p *txs.TransferToken, privateKey string, o Overrides) (string, error)
	TransferNFT(ctx context.Context, p *txs.TransferNFT, privateKey string, o Overrides) (string, error)
	ApproveNFTTransfer(ctx context.Context, p *txs.TransferNFT, privateKey string, o Overrides) error
	CallContract(ctx context.Context, p *txs.StateChangeCall, privateKey string, o Overrides) (string, error)
	InitContract(ctx context.Context, p *txs.InitContract, privateKey string, o Overrides) (string, error)
	ReadOnlyCall(ctx context.Context, p *txs.StateChangeCall, attrib *providers.Attrib) (json.RawMessage, error)
	AccountState(ctx context.Context, address string, attrib *providers.Attrib) (*providers.L1XAccountState, error)

	TransactionReceipt(ctx context.Context, hash string, attrib *providers.Attrib) (*Receipt, error)
	CurrentNonce(ctx context.Context, attrib *providers.Attrib) (uint64, error)
	EstimateFee(ctx context.Context, attrib *providers.Attrib, hint *FeeHint) (string, error)
	SignMessage(ctx context.Context, message, privateKey string) (string, error)
	ConvertToDecimals(value string, decimals uint8) (string, error)
	FormatDecimals(value string, decimals uint8) (string, error)

	// Clone returns a fresh instance for the same family, account and chain.
	Clone() VM

	InitiateTransaction(ctx context.Context, t *txs.Transaction) error
	// AddTransaction records a landed transaction. rpc defaults to the
	// active network's.
	AddTransaction(ctx context.Context, t *txs.Transaction, rpc string) error
	RemovePendingTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context) ([]*txs.Transaction, error)
}

// Overrides adjusts a single chain mutation.
type Overrides struct {
	Attrib   *providers.Attrib
	FeeLimit string
	Nonce    string
}

// Receipt is the family independent view of a transaction receipt.
type Receipt struct {
	Hash    string `json:"hash"`
	Success bool   `json:"success"`
	FeeUsed string `json:"feeUsed"`
}

// FeeHint describes the transaction a fee is estimated for.
type FeeHint struct {
	Type         string `json:"type"`
	TokenAddress string `json:"tokenAddress"`
	To           string `json:"to"`
	Amount       string `json:"amount"`
}

// Market is the price and metadata lookup the VMs use.
type Market interface {
	TokenRate(ctx context.Context, symbol string) float64
	L1XTokenImage(ctx context.Context, address string) string
	EVMTokenImage(ctx context.Context, platform, address string) string
	NFTMetadata(ctx context.Context, uri string) (*market.NFTMetadata, error)
}

// Config holds the collaborators shared by every VM a Factory creates.
type Config struct {
	Store    *storage.Store
	Registry *chains.Registry
	Dialer   providers.Dialer
	Market   Market
	Clock    *mockable.Clock

	// Tokens caches token contract metadata by network and address.
	Tokens cache.Cacher[string, chains.Token]

	// ConfirmDelay is waited before the single receipt check of an L1X
	// transfer. CallConfirmDelay is used for contract calls.
	ConfirmDelay     time.Duration
	CallConfirmDelay time.Duration
	L1XFeeLimit      string
}
