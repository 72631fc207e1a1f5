// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	"github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/keys"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/txs"
)

const solanaIcon = "solana.svg"

var _ VM = (*Solana)(nil)

// Solana is the NON-EVM VM. It creates, imports and lists accounts and
// balances; chain mutations are not supported.
type Solana struct {
	*base
}

func NewSolana(cfg *Config, publicKey, chainID string) *Solana {
	return &Solana{base: newBase(cfg, chains.NonEVM, solanaIcon, publicKey, chainID)}
}

func (v *Solana) Provider(attrib *providers.Attrib) providers.SolanaClient {
	rpc := v.activeNetwork.RPC
	if attrib != nil && attrib.Endpoint != "" {
		rpc = attrib.Endpoint
	}
	return v.cfg.Dialer.Solana(rpc)
}

func (v *Solana) Clone() VM {
	return NewSolana(v.cfg, v.publicKey, v.activeNetwork.ID())
}

func deriveSolana(seed []byte, index int) (string, string, error) {
	key := solana.PrivateKey(keys.DeriveEd25519(seed, keys.SolanaPath(index)))
	return base58.Encode(key), key.PublicKey().String(), nil
}

// CreateAccount derives the next ed25519 account. Deriving a key that was
// already imported flags that account as created from seed.
func (v *Solana) CreateAccount(_ context.Context, name string) (*accounts.Account, error) {
	return v.createAccount(name, deriveSolana, true)
}

// ImportPrivateKey accepts the base58 form of a 64 byte ed25519 secret.
func (v *Solana) ImportPrivateKey(_ context.Context, privateKey, name string) (*accounts.Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.Validationf(accounts.MsgInvalidName)
	}
	privateKey = strings.TrimSpace(privateKey)
	b, err := base58.Decode(privateKey)
	if err != nil || len(b) != ed25519.PrivateKeySize {
		return nil, errs.Validationf(MsgInvalidPrivateKey)
	}
	if !ed25519.NewKeyFromSeed(b[:ed25519.SeedSize]).Equal(ed25519.PrivateKey(b)) {
		return nil, errs.Validationf(MsgInvalidPrivateKey)
	}
	return v.importAccount(&accounts.Account{
		PrivateKey:  privateKey,
		PublicKey:   solana.PrivateKey(b).PublicKey().String(),
		AccountName: name,
	})
}

func (v *Solana) owner() (solana.PublicKey, error) {
	pub, err := solana.PublicKeyFromBase58(v.publicKey)
	if err != nil {
		return solana.PublicKey{}, errs.Validationf(accounts.MsgInvalidAccount)
	}
	return pub, nil
}

func (v *Solana) nativeBalance(ctx context.Context, client providers.SolanaClient, owner solana.PublicKey) string {
	res, err := client.GetBalance(ctx, owner, solrpc.CommitmentConfirmed)
	if err != nil || res == nil {
		v.log.Debug("native balance lookup failed", "err", err)
		return "0"
	}
	return strconv.FormatUint(res.Value, 10)
}

func (v *Solana) splBalance(ctx context.Context, client providers.SolanaClient, owner solana.PublicKey, mint string) string {
	m, err := solana.PublicKeyFromBase58(strings.TrimSpace(mint))
	if err != nil {
		return "0"
	}
	balance, err := providers.GetSPLBalance(ctx, client, owner, m)
	if err != nil {
		v.log.Debug("token balance lookup failed", "mint", mint, "err", err)
		return "0"
	}
	return balance
}

func (v *Solana) ListToken(ctx context.Context) ([]chains.Token, error) {
	tokens, err := v.loadTokens()
	if err != nil {
		return nil, err
	}
	owner, err := v.owner()
	if err != nil {
		return nil, err
	}
	client := v.Provider(nil)
	for i, t := range tokens {
		var balance string
		if t.IsNative {
			balance = v.nativeBalance(ctx, client, owner)
		} else {
			balance = v.splBalance(ctx, client, owner, t.TokenAddress)
		}
		tokens[i].Balance = formatOrZero(balance, t.Decimals)
		tokens[i].USDRate = v.cfg.Market.TokenRate(ctx, t.Symbol)
	}
	return tokens, nil
}

// TokenDetails refreshes a tracked SPL token's supply and balance.
func (v *Solana) TokenDetails(ctx context.Context, address string, attrib *providers.Attrib) (*chains.Token, error) {
	tokens, err := v.loadTokens()
	if err != nil {
		return nil, err
	}
	var token *chains.Token
	for i := range tokens {
		if !tokens[i].IsNative && tokens[i].TokenAddress == strings.TrimSpace(address) {
			token = &tokens[i]
			break
		}
	}
	if token == nil {
		return nil, errs.Validationf(MsgInvalidToken)
	}
	mint, err := solana.PublicKeyFromBase58(token.TokenAddress)
	if err != nil {
		return nil, errs.Validationf(MsgInvalidToken)
	}
	owner, err := v.owner()
	if err != nil {
		return nil, err
	}
	client := v.Provider(attrib)
	if supply, err := client.GetTokenSupply(ctx, mint, solrpc.CommitmentConfirmed); err == nil && supply != nil && supply.Value != nil {
		token.TotalSupply = formatOrZero(supply.Value.Amount, token.Decimals)
	}
	token.Balance = formatOrZero(v.splBalance(ctx, client, owner, token.TokenAddress), token.Decimals)
	token.USDRate = v.cfg.Market.TokenRate(ctx, token.Symbol)
	return token, nil
}

func (v *Solana) ImportToken(context.Context, string) error {
	return errs.NotImplementedOp("importToken")
}

func (v *Solana) ImportNFT(context.Context, string, string, string) error {
	return errs.NotImplementedOp("importNFT")
}

func (v *Solana) ListNFT(context.Context) ([]chains.NFT, error) {
	return nil, errs.NotImplementedOp("listNFT")
}

func (v *Solana) NativeTokenDetails(context.Context, *providers.Attrib) (*chains.Token, error) {
	return nil, errs.NotImplementedOp("getNativeTokenDetails")
}

func (v *Solana) NFTDetails(context.Context, string, string, *providers.Attrib) (*chains.NFT, error) {
	return nil, errs.NotImplementedOp("getNFTDetails")
}

func (v *Solana) IsOwnedNFT(context.Context, string, string, string, *providers.Attrib) (bool, error) {
	return false, errs.NotImplementedOp("isOwnedNFT")
}

func (v *Solana) TransferNativeToken(context.Context, *txs.TransferNativeToken, string, Overrides) (string, error) {
	return "", errs.NotImplementedOp("transferNativeToken")
}

func (v *Solana) TransferToken(context.Context, *txs.TransferToken, string, Overrides) (string, error) {
	return "", errs.NotImplementedOp("transferToken")
}

func (v *Solana) TransferNFT(context.Context, *txs.TransferNFT, string, Overrides) (string, error) {
	return "", errs.NotImplementedOp("transferNFT")
}

func (v *Solana) ApproveNFTTransfer(context.Context, *txs.TransferNFT, string, Overrides) error {
	return errs.NotImplementedOp("approveNFTTransfer")
}

func (v *Solana) CallContract(context.Context, *txs.StateChangeCall, string, Overrides) (string, error) {
	return "", errs.NotImplementedOp("callContract")
}

func (v *Solana) InitContract(context.Context, *txs.InitContract, string, Overrides) (string, error) {
	return "", errs.NotImplementedOp("initContract")
}

func (v *Solana) ReadOnlyCall(context.Context, *txs.StateChangeCall, *providers.Attrib) (json.RawMessage, error) {
	return nil, errs.NotImplementedOp("readOnlyCall")
}

func (v *Solana) AccountState(context.Context, string, *providers.Attrib) (*providers.L1XAccountState, error) {
	return nil, errs.NotImplementedOp("accountState")
}

func (v *Solana) TransactionReceipt(context.Context, string, *providers.Attrib) (*Receipt, error) {
	return nil, errs.NotImplementedOp("getTransactionReceipt")
}

func (v *Solana) CurrentNonce(context.Context, *providers.Attrib) (uint64, error) {
	return 0, errs.NotImplementedOp("getCurrentNonce")
}

func (v *Solana) EstimateFee(context.Context, *providers.Attrib, *FeeHint) (string, error) {
	return "", errs.NotImplementedOp("estimateFee")
}

func (v *Solana) SignMessage(context.Context, string, string) (string, error) {
	return "", errs.NotImplementedOp("signMessage")
}
