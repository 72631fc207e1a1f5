// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/keys"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/txs"
)

const (
	l1xIcon = "L1X_icon.png"

	// fvnArtifactHost serves metadata that is not always reachable. NFTs
	// minted there fall back to a name derived from the token id.
	fvnArtifactHost = "https://fvn-artifact.l1x.foundation"
	fvnIcon         = "https://l1x.foundation/static/media/logohover.6e135f9a.svg"
)

var _ VM = (*L1X)(nil)

// L1X is the account-chain VM.
type L1X struct {
	*base
}

func NewL1X(cfg *Config, publicKey, chainID string) *L1X {
	return &L1X{base: newBase(cfg, chains.L1X, l1xIcon, publicKey, chainID)}
}

// Provider returns a client for attrib, or for the active network when
// attrib is nil.
func (v *L1X) Provider(attrib *providers.Attrib) providers.L1XClient {
	if attrib == nil || attrib.Endpoint == "" {
		attrib = &providers.Attrib{ClusterType: providers.ClusterMainnet, Endpoint: v.endpoint(nil)}
	}
	return v.cfg.Dialer.L1X(*attrib)
}

func (v *L1X) Clone() VM {
	return NewL1X(v.cfg, v.publicKey, v.activeNetwork.ID())
}

func deriveL1X(seed []byte, index int) (string, string, error) {
	key, err := keys.DeriveSecp256k1(seed, keys.Secp256k1Path(index))
	if err != nil {
		return "", "", err
	}
	return keys.EncodeSecp256k1(key), providers.L1XAddress(key), nil
}

func (v *L1X) CreateAccount(_ context.Context, name string) (*accounts.Account, error) {
	return v.createAccount(name, deriveL1X, false)
}

func (v *L1X) ImportPrivateKey(_ context.Context, privateKey, name string) (*accounts.Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.Validationf(accounts.MsgInvalidName)
	}
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return nil, err
	}
	return v.importAccount(&accounts.Account{
		PrivateKey:  strings.TrimSpace(privateKey),
		PublicKey:   providers.L1XAddress(key),
		AccountName: name,
	})
}

func (v *L1X) ImportToken(ctx context.Context, address string) error {
	return v.importToken(ctx, address, func(ctx context.Context) (*chains.Token, error) {
		t, err := v.tokenMetadata(ctx, address, nil)
		if err != nil {
			return nil, errs.Validationf(MsgImportToken)
		}
		if t.Icon == "" {
			t.Icon = v.activeNetwork.Icon
		}
		return &t, nil
	})
}

func (v *L1X) tokenMetadata(ctx context.Context, address string, attrib *providers.Attrib) (chains.Token, error) {
	return v.cachedToken(attrib, address, func() (chains.Token, error) {
		attrs, err := providers.GetFTAttributes(ctx, v.Provider(attrib), address)
		if err != nil {
			return chains.Token{}, err
		}
		if attrs.Symbol == "" {
			return chains.Token{}, errs.Validationf(MsgInvalidToken)
		}
		return chains.Token{
			Name:         attrs.Name,
			Symbol:       attrs.Symbol,
			Decimals:     attrs.Decimals,
			TotalSupply:  formatOrZero(attrs.TotalSupply, attrs.Decimals),
			TokenAddress: strings.TrimSpace(address),
			Icon:         v.cfg.Market.L1XTokenImage(ctx, address),
		}, nil
	})
}

func (v *L1X) ImportNFT(ctx context.Context, collection, tokenID, wallet string) error {
	return v.importNFT(ctx, v, collection, tokenID, wallet, MsgNFTOwner)
}

func (v *L1X) collectionDetails(ctx context.Context, collection string) (*chains.NFTCollection, error) {
	attrs, err := providers.GetNFTAttributes(ctx, v.Provider(nil), collection)
	if err != nil {
		return nil, chainError(MsgNFTLookup, err)
	}
	return &chains.NFTCollection{
		ContractAddress: collection,
		Name:            attrs.Name,
		Symbol:          attrs.Symbol,
		Icon:            attrs.Icon,
	}, nil
}

func (v *L1X) IsOwnedNFT(ctx context.Context, collection, tokenID, wallet string, attrib *providers.Attrib) (bool, error) {
	owner, err := providers.GetNFTOwner(ctx, v.Provider(attrib), collection, tokenID)
	if err != nil {
		return false, errs.NewChain(MsgNFTLookup, err)
	}
	if owner == "" {
		return false, errs.Validationf(MsgNFTLookup)
	}
	return accounts.SameAddress(owner, wallet), nil
}

func (v *L1X) NFTDetails(ctx context.Context, collection, tokenID string, attrib *providers.Attrib) (*chains.NFT, error) {
	uri, err := providers.GetNFTTokenURI(ctx, v.Provider(attrib), collection, tokenID)
	if err != nil {
		return nil, errs.NewChain(MsgNFTDetails, err)
	}
	nft := &chains.NFT{CollectionAddress: collection, TokenID: tokenID}
	meta, err := v.cfg.Market.NFTMetadata(ctx, uri)
	switch {
	case err == nil:
		nft.Name, nft.Icon = meta.Name, meta.Icon
	case strings.HasPrefix(uri, fvnArtifactHost):
		nft.Name, nft.Icon = fvnName(tokenID), fvnIcon
	default:
		return nil, errs.NewChain(MsgNFTDetails, err)
	}
	return nft, nil
}

// fvnName renders a numeric token id as the UUID it encodes.
func fvnName(tokenID string) string {
	n, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 128 {
		return tokenID
	}
	var b [16]byte
	n.FillBytes(b[:])
	return uuid.UUID(b).String()
}

func (v *L1X) nativeBalance(ctx context.Context, attrib *providers.Attrib) string {
	state, err := v.Provider(attrib).AccountState(ctx, v.publicKey)
	if err != nil {
		v.log.Debug("native balance lookup failed", "err", err)
		return "0"
	}
	return state.Balance
}

func (v *L1X) tokenBalance(ctx context.Context, address string, attrib *providers.Attrib) string {
	balance, err := providers.GetFTBalance(ctx, v.Provider(attrib), address, v.publicKey)
	if err != nil {
		v.log.Debug("token balance lookup failed", "token", address, "err", err)
		return "0"
	}
	return balance
}

// ListToken refreshes balances. Only the native token is priced.
func (v *L1X) ListToken(ctx context.Context) ([]chains.Token, error) {
	tokens, err := v.loadTokens()
	if err != nil {
		return nil, err
	}
	for i, t := range tokens {
		if t.IsNative {
			tokens[i].Balance = formatOrZero(v.nativeBalance(ctx, nil), t.Decimals)
			tokens[i].USDRate = v.cfg.Market.TokenRate(ctx, t.Symbol)
			continue
		}
		tokens[i].Balance = formatOrZero(v.tokenBalance(ctx, t.TokenAddress, nil), t.Decimals)
		tokens[i].USDRate = 0
	}
	return tokens, nil
}

func (v *L1X) ListNFT(context.Context) ([]chains.NFT, error) {
	return v.listNFT()
}

func (v *L1X) NativeTokenDetails(ctx context.Context, attrib *providers.Attrib) (*chains.Token, error) {
	t := v.activeNetwork.NativeToken
	t.Balance = formatOrZero(v.nativeBalance(ctx, attrib), t.Decimals)
	t.USDRate = v.cfg.Market.TokenRate(ctx, t.Symbol)
	return &t, nil
}

func (v *L1X) TokenDetails(ctx context.Context, address string, attrib *providers.Attrib) (*chains.Token, error) {
	t, err := v.tokenMetadata(ctx, address, attrib)
	if err != nil {
		return nil, errs.Validationf(MsgInvalidToken)
	}
	t.Balance = formatOrZero(v.tokenBalance(ctx, address, attrib), t.Decimals)
	return &t, nil
}

// submit signs and broadcasts a transaction of kind t.
func (v *L1X) submit(ctx context.Context, key *ecdsa.PrivateKey, t providers.L1XTransactionType, o Overrides) (providers.L1XClient, string, error) {
	client := v.Provider(o.Attrib)
	nonce := o.Nonce
	if nonce == "" {
		n, err := client.CurrentNonce(ctx, providers.L1XAddress(key))
		if err != nil {
			return nil, "", err
		}
		nonce = strconv.FormatUint(n+1, 10)
	}
	feeLimit := o.FeeLimit
	if feeLimit == "" {
		feeLimit = v.cfg.L1XFeeLimit
	}
	signed, err := providers.SignL1X(providers.L1XTransaction{
		Nonce:           nonce,
		FeeLimit:        feeLimit,
		TransactionType: t,
	}, key)
	if err != nil {
		return nil, "", err
	}
	hash, err := client.SubmitTransaction(ctx, signed)
	return client, hash, err
}

// confirm waits delay then checks the receipt exactly once. A receipt that
// is missing at that point counts as a failure.
func (v *L1X) confirm(ctx context.Context, client providers.L1XClient, hash string, delay time.Duration) error {
	if err := wait(ctx, delay); err != nil {
		return err
	}
	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		return err
	}
	if !receipt.Succeeded() {
		return errTransactionFailed
	}
	return nil
}

func (v *L1X) TransferNativeToken(ctx context.Context, p *txs.TransferNativeToken, privateKey string, o Overrides) (string, error) {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return "", err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return "", err
	}
	client, hash, err := v.submit(ctx, key, providers.L1XTransactionType{
		NativeTokenTransfer: &providers.L1XNativeTokenTransfer{
			Address: accounts.StripPrefix(p.To),
			Amount:  amount.Dec(),
		},
	}, o)
	if err != nil {
		return "", chainError(MsgTransferToken, err)
	}
	if err := v.confirm(ctx, client, hash, v.cfg.ConfirmDelay); err != nil {
		return "", chainError(MsgTransferToken, err)
	}
	return hash, nil
}

func (v *L1X) TransferToken(ctx context.Context, p *txs.TransferToken, privateKey string, o Overrides) (string, error) {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return "", err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return "", err
	}
	if _, err := v.tokenMetadata(ctx, p.TokenAddress, o.Attrib); err != nil {
		return "", errs.Validationf(MsgInvalidToken)
	}
	balance, err := parseAmount(v.tokenBalance(ctx, p.TokenAddress, o.Attrib))
	if err != nil || balance.Lt(amount) {
		return "", errs.Validationf(MsgInsufficient)
	}

	call, err := providers.FunctionCall(p.TokenAddress, providers.FTTransfer, map[string]string{
		"recipient_address": accounts.StripPrefix(p.To),
		"value":             amount.Dec(),
	})
	if err != nil {
		return "", err
	}
	client, hash, err := v.submit(ctx, key, call, o)
	if err != nil {
		return "", chainError(MsgTransferToken, err)
	}
	if err := v.confirm(ctx, client, hash, v.cfg.ConfirmDelay); err != nil {
		return "", chainError(MsgTransferToken, err)
	}
	return hash, nil
}

func (v *L1X) requireOwned(ctx context.Context, collection, tokenID string, attrib *providers.Attrib) error {
	owned, err := v.IsOwnedNFT(ctx, collection, tokenID, v.publicKey, attrib)
	if err != nil {
		return err
	}
	if !owned {
		return errs.Validationf(MsgNFTOwner)
	}
	return nil
}

func (v *L1X) TransferNFT(ctx context.Context, p *txs.TransferNFT, privateKey string, o Overrides) (string, error) {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return "", err
	}
	if err := v.requireOwned(ctx, p.CollectionAddress, p.TokenID, o.Attrib); err != nil {
		return "", err
	}
	call, err := providers.FunctionCall(p.CollectionAddress, providers.NFTTransferFrom, map[string]string{
		"recipient_address": accounts.StripPrefix(p.To),
		"token_id":          p.TokenID,
	})
	if err != nil {
		return "", err
	}
	_, hash, err := v.submit(ctx, key, call, o)
	if err != nil {
		return "", chainError(MsgTransferNFT, err)
	}
	if err := wait(ctx, v.cfg.ConfirmDelay); err != nil {
		return "", chainError(MsgTransferNFT, err)
	}
	stillOwned, err := v.IsOwnedNFT(ctx, p.CollectionAddress, p.TokenID, v.publicKey, o.Attrib)
	if err != nil {
		return "", chainError(MsgTransferNFT, err)
	}
	if stillOwned {
		return "", errs.NewChain(MsgNFTStillOwned, nil)
	}
	if err := v.removeNFT(p.CollectionAddress, p.TokenID); err != nil {
		return "", err
	}
	return hash, nil
}

func (v *L1X) ApproveNFTTransfer(ctx context.Context, p *txs.TransferNFT, privateKey string, o Overrides) error {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return err
	}
	if err := v.requireOwned(ctx, p.CollectionAddress, p.TokenID, o.Attrib); err != nil {
		return err
	}
	call, err := providers.FunctionCall(p.CollectionAddress, providers.NFTApprove, map[string]string{
		"spender_address": accounts.StripPrefix(v.publicKey),
		"token_id":        p.TokenID,
	})
	if err != nil {
		return err
	}
	client, hash, err := v.submit(ctx, key, call, o)
	if err != nil {
		return chainError(MsgApproveNFT, err)
	}
	return chainError(MsgApproveNFT, v.confirm(ctx, client, hash, v.cfg.ConfirmDelay))
}

func (v *L1X) CallContract(ctx context.Context, p *txs.StateChangeCall, privateKey string, o Overrides) (string, error) {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return "", err
	}
	call, err := providers.FunctionCall(p.ContractAddress, p.FunctionName, p.Arguments)
	if err != nil {
		return "", errs.Validationf("Invalid arguments.")
	}
	client, hash, err := v.submit(ctx, key, call, o)
	if err != nil {
		return "", chainError(MsgContractCall, err)
	}
	if err := v.confirm(ctx, client, hash, v.cfg.CallConfirmDelay); err != nil {
		return "", chainError(MsgContractCall, err)
	}
	return hash, nil
}

func (v *L1X) InitContract(ctx context.Context, p *txs.InitContract, privateKey string, o Overrides) (string, error) {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return "", err
	}
	args := p.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	client, hash, err := v.submit(ctx, key, providers.L1XTransactionType{
		SmartContractInit: &providers.L1XSmartContractInit{
			BaseContractAddress: accounts.StripPrefix(p.BaseContractAddress),
			Arguments:           args,
		},
	}, o)
	if err != nil {
		return "", chainError(MsgInitContract, err)
	}
	if err := v.confirm(ctx, client, hash, v.cfg.CallConfirmDelay); err != nil {
		return "", chainError(MsgInitContract, err)
	}
	return hash, nil
}

func (v *L1X) ReadOnlyCall(ctx context.Context, p *txs.StateChangeCall, attrib *providers.Attrib) (json.RawMessage, error) {
	args := p.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	out, err := v.Provider(attrib).ReadOnlyCall(ctx, &providers.L1XReadOnlyCall{
		ContractAddress: accounts.StripPrefix(p.ContractAddress),
		Function:        p.FunctionName,
		Arguments:       args,
	})
	if err != nil {
		return nil, errs.NewChain("Failed to call contract. Please try again.", err)
	}
	return out, nil
}

func (v *L1X) AccountState(ctx context.Context, address string, attrib *providers.Attrib) (*providers.L1XAccountState, error) {
	state, err := v.Provider(attrib).AccountState(ctx, address)
	if err != nil {
		return nil, errs.NewChain("Failed to get account state. Please try again.", err)
	}
	return state, nil
}

func (v *L1X) TransactionReceipt(ctx context.Context, hash string, attrib *providers.Attrib) (*Receipt, error) {
	r, err := v.Provider(attrib).TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, errs.NewChain("Failed to get transaction receipt.", err)
	}
	return &Receipt{Hash: hash, Success: r.Succeeded(), FeeUsed: r.FeeUsed}, nil
}

// CurrentNonce is the nonce the next transaction must carry.
func (v *L1X) CurrentNonce(ctx context.Context, attrib *providers.Attrib) (uint64, error) {
	n, err := v.Provider(attrib).CurrentNonce(ctx, v.publicKey)
	if err != nil {
		return 0, errs.NewChain("Failed to get nonce.", err)
	}
	return n + 1, nil
}

func (v *L1X) EstimateFee(context.Context, *providers.Attrib, *FeeHint) (string, error) {
	return v.cfg.L1XFeeLimit, nil
}

func (v *L1X) SignMessage(_ context.Context, message, privateKey string) (string, error) {
	return personalSign(message, privateKey)
}
