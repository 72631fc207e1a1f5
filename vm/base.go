// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	log "github.com/inconshreveable/log15"

	wallets "github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/keys"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/txs"
)

const (
	MsgNoMnemonic        = "Unable to create wallet. Invalid mnemonic."
	MsgInvalidPrivateKey = "Invalid private key. Please try with valid private key."
	MsgSaveNativeToken   = "Failed to save native token. Please try again."
	MsgInvalidToken      = "Invalid token address. Please try with valid token address."
	MsgImportToken       = "Failed to import token. Please enter valid token address."
	MsgInsufficient      = "Insufficient balance."
	MsgTransferToken     = "Failed to transfer token. Please try again."
	MsgTransferNFT       = "Failed to transfer NFT. Please try again."
	MsgNFTStillOwned     = "Failed to transfer nft. Please try again."
	MsgApproveNFT        = "Failed to approve NFT transfer. Please try again."
	MsgNFTDetails        = "Failed to get NFT details. Please try again."
	MsgNFTLookup         = "Failed to retrieve token details. Please enter valid NFT details."
	MsgContractCall      = "Failed to execute transaction. Please try again."
	MsgInitContract      = "Failed to initialize contract. Please try again."
	MsgNFTOwner          = "Invalid nft owner. Please try with valid nft details."
)

var errTransactionFailed = errors.New("transaction receipt reports failure")

// base is composed into every family implementation.
type base struct {
	cfg *Config

	family        chains.Family
	icon          string
	publicKey     string
	chains        []chains.Chain
	activeNetwork chains.Chain

	log log.Logger
}

func newBase(cfg *Config, family chains.Family, icon, publicKey, chainID string) *base {
	active, _ := cfg.Registry.ByChainID(family, chainID)
	return &base{
		cfg:           cfg,
		family:        family,
		icon:          icon,
		publicKey:     publicKey,
		chains:        cfg.Registry.Chains(family),
		activeNetwork: active,
		log:           log.New("module", "vm", "family", family),
	}
}

func (b *base) NetworkType() chains.Family { return b.family }

func (b *base) PublicKey() string { return b.publicKey }

func (b *base) Chains() []chains.Chain {
	out := make([]chains.Chain, len(b.chains))
	for i, c := range b.chains {
		out[i] = c.Clone()
	}
	return out
}

func (b *base) ActiveNetwork() chains.Chain { return b.activeNetwork.Clone() }

func (b *base) OverrideRPC(rpc string) {
	if rpc != "" {
		b.activeNetwork.RPC = rpc
	}
}

func (b *base) ChangeActiveNetwork(_ context.Context, chain chains.Chain) error {
	match, err := b.selectNetwork(chain)
	if err != nil || match == nil {
		return err
	}
	// The stored network is the registry entry; the environment is applied
	// on top when the VM is built.
	return b.cfg.Store.Set(storage.ActiveNetwork, match)
}

func (b *base) UseNetwork(_ context.Context, chain chains.Chain) error {
	_, err := b.selectNetwork(chain)
	return err
}

// selectNetwork makes the registry chain matching chain's symbol active,
// with the stored environment applied. It returns nil for unknown symbols.
func (b *base) selectNetwork(chain chains.Chain) (*chains.Chain, error) {
	var match *chains.Chain
	for i := range b.chains {
		if b.chains[i].Symbol == chain.Symbol {
			match = &b.chains[i]
			break
		}
	}
	if match == nil {
		b.log.Debug("ignoring unknown network", "symbol", chain.Symbol)
		return nil, nil
	}

	var environment string
	if _, err := b.cfg.Store.Get(storage.ActiveEnvironment, &environment); err != nil {
		return nil, err
	}
	b.activeNetwork, _ = match.WithEnvironment(environment)
	return match, nil
}

func (b *base) UpdateAccountName(_ context.Context, publicKey, name string) error {
	return b.cfg.Store.Update(func(tx *storage.Tx) error {
		found, err := tx.Get(storage.Wallets, &wallets.Collection{})
		if err != nil {
			return err
		}
		if !found {
			return errs.Validationf(wallets.MsgInvalidAccount)
		}
		c, err := wallets.Load(tx)
		if err != nil {
			return err
		}
		if err := c.Rename(b.family, publicKey, name); err != nil {
			return err
		}
		return c.Save(tx)
	})
}

func (b *base) InitiateTransaction(_ context.Context, t *txs.Transaction) error {
	return b.cfg.Store.Update(func(tx *storage.Tx) error {
		return txs.Enqueue(tx, t)
	})
}

func (b *base) AddTransaction(_ context.Context, t *txs.Transaction, rpc string) error {
	if t.Hash == "" {
		return errs.Validationf(txs.MsgInvalidHash)
	}
	if rpc == "" {
		rpc = b.activeNetwork.RPC
	}
	t.RPC = rpc
	return b.cfg.Store.Update(func(tx *storage.Tx) error {
		return txs.Land(tx, t)
	})
}

func (b *base) RemovePendingTransaction(_ context.Context, id string) error {
	return b.cfg.Store.Update(func(tx *storage.Tx) error {
		_, err := txs.RemovePending(tx, id)
		return err
	})
}

func (b *base) ListTransactions(_ context.Context) ([]*txs.Transaction, error) {
	var history []*txs.Transaction
	err := b.cfg.Store.View(func(tx *storage.Tx) error {
		var err error
		history, err = txs.History(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txs.Filter(history, b.publicKey, b.activeNetwork.RPC), nil
}

func (b *base) ConvertToDecimals(value string, decimals uint8) (string, error) {
	return ConvertToDecimals(value, decimals)
}

func (b *base) FormatDecimals(value string, decimals uint8) (string, error) {
	return FormatDecimals(value, decimals)
}

func (b *base) now() int64 {
	return b.cfg.Clock.Time().UnixMilli()
}

func (b *base) tokenKey() string {
	return storage.TokenKey(b.publicKey, b.activeNetwork.Symbol, b.activeNetwork.RPC)
}

func (b *base) nftKey() string {
	return storage.NFTKey(b.publicKey, b.activeNetwork.Symbol, b.activeNetwork.RPC)
}

// seed reads the stored mnemonic.
func seed(tx *storage.Tx) ([]byte, error) {
	var mnemonic string
	found, err := tx.Get(storage.Mnemonic, &mnemonic)
	if err != nil {
		return nil, err
	}
	if !found || mnemonic == "" {
		return nil, errs.Validationf(MsgNoMnemonic)
	}
	s, err := keys.Seed(mnemonic)
	if err != nil {
		return nil, errs.Validationf(MsgNoMnemonic)
	}
	return s, nil
}

// deriveFunc derives the account at index from seed.
type deriveFunc func(seed []byte, index int) (privateKey, publicKey string, err error)

// createAccount derives the next account of the family. With fromSeed set
// the new account is flagged as derived from seed, and a key that already
// exists gets the flag persisted before the call fails.
func (b *base) createAccount(name string, derive deriveFunc, fromSeed bool) (*wallets.Account, error) {
	var (
		created   *wallets.Account
		duplicate bool
	)
	err := b.cfg.Store.Update(func(tx *storage.Tx) error {
		s, err := seed(tx)
		if err != nil {
			return err
		}
		c, err := wallets.Load(tx)
		if err != nil {
			return err
		}
		if err := c.CheckName(b.family, name); err != nil {
			return err
		}
		priv, pub, err := derive(s, c.Count(b.family))
		if err != nil {
			return err
		}
		if _, ok := c.LookupIn(b.family, pub); ok {
			if fromSeed && c.MarkCreatedFromSeed(b.family, pub) {
				duplicate = true
				return c.Save(tx)
			}
			return errs.Validationf(wallets.MsgDuplicateAccount)
		}
		created = &wallets.Account{
			PrivateKey:      priv,
			PublicKey:       pub,
			AccountName:     strings.TrimSpace(name),
			Type:            b.family,
			CreatedAt:       b.now(),
			Icon:            b.icon,
			CreatedFromSeed: fromSeed,
		}
		return b.addAccount(tx, c, created)
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, errs.Validationf(wallets.MsgDuplicateAccount)
	}
	b.publicKey = created.PublicKey
	return created, nil
}

// importAccount stores an account built from a supplied key.
func (b *base) importAccount(a *wallets.Account) (*wallets.Account, error) {
	a.AccountName = strings.TrimSpace(a.AccountName)
	a.Type = b.family
	a.CreatedAt = b.now()
	a.Icon = b.icon
	err := b.cfg.Store.Update(func(tx *storage.Tx) error {
		c, err := wallets.Load(tx)
		if err != nil {
			return err
		}
		if err := c.CheckNew(b.family, a.AccountName, a.PublicKey); err != nil {
			return err
		}
		return b.addAccount(tx, c, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// addAccount appends a, makes it active, provisions native tokens and
// stamps the unlock time inside the caller's transaction.
func (b *base) addAccount(tx *storage.Tx, c *wallets.Collection, a *wallets.Account) error {
	if err := c.Add(*a); err != nil {
		return err
	}
	if err := b.saveNativeTokens(tx, a.PublicKey); err != nil {
		b.log.Error("failed to save native token", "publicKey", a.PublicKey, "err", err)
		return errs.Validationf(MsgSaveNativeToken)
	}
	if err := c.Save(tx); err != nil {
		return err
	}
	return tx.Set(storage.LastWalletUnlocked, b.now())
}

// saveNativeTokens puts each chain's native token first in the token list
// of every environment.
func (b *base) saveNativeTokens(tx *storage.Tx, publicKey string) error {
	for _, chain := range b.chains {
		native := chain.NativeToken
		if !native.IsNative {
			continue
		}
		for _, env := range chain.Environment {
			key := storage.TokenKey(publicKey, native.Symbol, env.RPC)
			var tokens []chains.Token
			if _, err := tx.GetApp(key, &tokens); err != nil {
				return err
			}
			if hasSymbol(tokens, native.Symbol) {
				continue
			}
			if err := tx.SetApp(key, append([]chains.Token{native}, tokens...)); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasSymbol(tokens []chains.Token, symbol string) bool {
	for _, t := range tokens {
		if t.Symbol == symbol {
			return true
		}
	}
	return false
}

func hasToken(tokens []chains.Token, address string) bool {
	for _, t := range tokens {
		if !t.IsNative && wallets.SameAddress(t.TokenAddress, address) {
			return true
		}
	}
	return false
}

func (b *base) loadTokens() ([]chains.Token, error) {
	var tokens []chains.Token
	_, err := b.cfg.Store.GetApp(b.tokenKey(), &tokens)
	return tokens, err
}

// importToken tracks the token at address. fetch runs outside the store
// lock; the list is re-read before the insert.
func (b *base) importToken(ctx context.Context, address string, fetch func(context.Context) (*chains.Token, error)) error {
	address = strings.TrimSpace(address)
	tokens, err := b.loadTokens()
	if err != nil {
		return err
	}
	if hasToken(tokens, address) {
		return nil
	}
	token, err := fetch(ctx)
	if err != nil {
		return err
	}
	key := b.tokenKey()
	return b.cfg.Store.Update(func(tx *storage.Tx) error {
		var tokens []chains.Token
		if _, err := tx.GetApp(key, &tokens); err != nil {
			return err
		}
		if hasToken(tokens, address) {
			return nil
		}
		return tx.SetApp(key, insertAt(tokens, 1, *token))
	})
}

// insertAt places t at i, after the native token which sits at 0.
func insertAt(tokens []chains.Token, i int, t chains.Token) []chains.Token {
	if i > len(tokens) {
		i = len(tokens)
	}
	out := make([]chains.Token, 0, len(tokens)+1)
	out = append(out, tokens[:i]...)
	out = append(out, t)
	return append(out, tokens[i:]...)
}

// nftReader is implemented by families with NFT support.
type nftReader interface {
	IsOwnedNFT(ctx context.Context, collection, tokenID, wallet string, attrib *providers.Attrib) (bool, error)
	NFTDetails(ctx context.Context, collection, tokenID string, attrib *providers.Attrib) (*chains.NFT, error)
	collectionDetails(ctx context.Context, collection string) (*chains.NFTCollection, error)
}

func collectionKey(address string) string {
	return strings.ToLower(wallets.StripPrefix(address))
}

func (b *base) loadNFTs() (chains.NFTCollections, error) {
	collections := chains.NFTCollections{}
	_, err := b.cfg.Store.GetApp(b.nftKey(), &collections)
	return collections, err
}

func tracked(collections chains.NFTCollections, collection, tokenID string) bool {
	c, ok := collections[collectionKey(collection)]
	if !ok {
		return false
	}
	for _, n := range c.NFTList {
		if n.TokenID == tokenID {
			return true
		}
	}
	return false
}

func (b *base) importNFT(ctx context.Context, r nftReader, collection, tokenID, wallet, notOwned string) error {
	collection = strings.TrimSpace(collection)
	collections, err := b.loadNFTs()
	if err != nil {
		return err
	}
	if tracked(collections, collection, tokenID) {
		return nil
	}
	owned, err := r.IsOwnedNFT(ctx, collection, tokenID, wallet, nil)
	if err != nil {
		return err
	}
	if !owned {
		return errs.Validationf(notOwned)
	}
	var details *chains.NFTCollection
	if _, ok := collections[collectionKey(collection)]; !ok {
		if details, err = r.collectionDetails(ctx, collection); err != nil {
			return err
		}
	}
	nft, err := r.NFTDetails(ctx, collection, tokenID, nil)
	if err != nil {
		return err
	}

	key := b.nftKey()
	return b.cfg.Store.Update(func(tx *storage.Tx) error {
		collections := chains.NFTCollections{}
		if _, err := tx.GetApp(key, &collections); err != nil {
			return err
		}
		if tracked(collections, collection, tokenID) {
			return nil
		}
		c, ok := collections[collectionKey(collection)]
		if !ok {
			if details == nil {
				// Tracked when we read, removed since. Fetch on retry.
				return errs.Validationf(MsgNFTDetails)
			}
			c = details
			collections[collectionKey(collection)] = c
		}
		c.NFTList = append([]chains.NFT{*nft}, c.NFTList...)
		return tx.SetApp(key, collections)
	})
}

func (b *base) removeNFT(collection, tokenID string) error {
	key := b.nftKey()
	return b.cfg.Store.Update(func(tx *storage.Tx) error {
		collections := chains.NFTCollections{}
		if _, err := tx.GetApp(key, &collections); err != nil {
			return err
		}
		c, ok := collections[collectionKey(collection)]
		if !ok {
			return nil
		}
		kept := c.NFTList[:0]
		for _, n := range c.NFTList {
			if n.TokenID != tokenID {
				kept = append(kept, n)
			}
		}
		c.NFTList = kept
		return tx.SetApp(key, collections)
	})
}

func (b *base) listNFT() ([]chains.NFT, error) {
	collections, err := b.loadNFTs()
	if err != nil {
		return nil, err
	}
	var out []chains.NFT
	for _, c := range collections {
		out = append(out, c.NFTList...)
	}
	return out, nil
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// chainError keeps classified errors and wraps the rest with msg.
func chainError(msg string, err error) error {
	if err == nil || errs.KindOf(err) != errs.Unknown {
		return err
	}
	return errs.NewChain(msg, err)
}

func parseSecp256k1(privateKey string) (*ecdsa.PrivateKey, error) {
	key, err := keys.ParseSecp256k1(privateKey)
	if err != nil {
		return nil, errs.Validationf(MsgInvalidPrivateKey)
	}
	return key, nil
}

// personalSign produces an EIP-191 signature with a 27/28 recovery id.
func personalSign(message, privateKey string) (string, error) {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
