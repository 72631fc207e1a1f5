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

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/keys"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/txs"
)

const (
	evmIcon = "evm.svg"

	nativeTransferGas = 21000

	msgEVMNFTOwner     = "Invalid nft owner. Please try with valid nft owner."
	msgEVMNFTLookup    = "Invalid owner. Please enter valid NFT details."
	msgInvalidReceiver = "Invalid receiver address."
)

var _ VM = (*EVM)(nil)

// EVM is the VM for Ethereum compatible chains.
type EVM struct {
	*base
}

func NewEVM(cfg *Config, publicKey, chainID string) *EVM {
	return &EVM{base: newBase(cfg, chains.EVM, evmIcon, publicKey, chainID)}
}

// Provider dials attrib's endpoint, or the active network when attrib is
// nil. Callers close the client.
func (v *EVM) Provider(ctx context.Context, attrib *providers.Attrib) (providers.EVMClient, error) {
	client, err := v.cfg.Dialer.EVM(ctx, v.endpoint(attrib))
	if err != nil {
		return nil, errs.NewChain("Failed to connect to network.", err)
	}
	return client, nil
}

func (v *EVM) Clone() VM {
	return NewEVM(v.cfg, v.publicKey, v.activeNetwork.ID())
}

func (v *EVM) chainID() *big.Int {
	return new(big.Int).SetUint64(v.activeNetwork.ChainID)
}

func deriveEVM(seed []byte, index int) (string, string, error) {
	key, err := keys.DeriveSecp256k1(seed, keys.Secp256k1Path(index))
	if err != nil {
		return "", "", err
	}
	return keys.EncodeSecp256k1(key), crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func (v *EVM) CreateAccount(_ context.Context, name string) (*accounts.Account, error) {
	return v.createAccount(name, deriveEVM, false)
}

func (v *EVM) ImportPrivateKey(_ context.Context, privateKey, name string) (*accounts.Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.Validationf(accounts.MsgInvalidName)
	}
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return nil, err
	}
	return v.importAccount(&accounts.Account{
		PrivateKey:  strings.TrimSpace(privateKey),
		PublicKey:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		AccountName: name,
	})
}

func hexAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return common.Address{}, errs.Validationf(msgInvalidReceiver)
	}
	return common.HexToAddress(address), nil
}

func tokenIDInt(tokenID string) (*big.Int, error) {
	n, ok := math.ParseBig256(strings.TrimSpace(tokenID))
	if !ok {
		return nil, errs.Validationf("Invalid token id.")
	}
	return n, nil
}

func (v *EVM) tokenMetadata(ctx context.Context, client providers.EVMClient, attrib *providers.Attrib, address string) (chains.Token, error) {
	return v.cachedToken(attrib, address, func() (chains.Token, error) {
		token, err := hexAddress(address)
		if err != nil {
			return chains.Token{}, errs.Validationf(MsgInvalidToken)
		}
		d, err := providers.GetERC20Details(ctx, client, token)
		if err != nil {
			return chains.Token{}, err
		}
		if d.Symbol == "" {
			return chains.Token{}, errs.Validationf(MsgInvalidToken)
		}
		icon := v.cfg.Market.EVMTokenImage(ctx, v.activeNetwork.NativeToken.Name, address)
		if icon == "" {
			icon = v.activeNetwork.Icon
		}
		return chains.Token{
			Name:         d.Name,
			Symbol:       d.Symbol,
			Decimals:     d.Decimals,
			TotalSupply:  formatOrZero(d.TotalSupply.String(), d.Decimals),
			TokenAddress: strings.TrimSpace(address),
			Icon:         icon,
		}, nil
	})
}

func (v *EVM) ImportToken(ctx context.Context, address string) error {
	return v.importToken(ctx, address, func(ctx context.Context) (*chains.Token, error) {
		client, err := v.Provider(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		t, err := v.tokenMetadata(ctx, client, nil, address)
		if err != nil {
			return nil, errs.Validationf(MsgImportToken)
		}
		return &t, nil
	})
}

func (v *EVM) tokenBalance(ctx context.Context, client providers.EVMClient, address string) *big.Int {
	token, err := hexAddress(address)
	if err != nil {
		return new(big.Int)
	}
	balance, err := providers.GetERC20Balance(ctx, client, token, common.HexToAddress(v.publicKey))
	if err != nil {
		v.log.Debug("token balance lookup failed", "token", address, "err", err)
		return new(big.Int)
	}
	return balance
}

func (v *EVM) nativeBalance(ctx context.Context, client providers.EVMClient) *big.Int {
	balance, err := client.BalanceAt(ctx, common.HexToAddress(v.publicKey), nil)
	if err != nil {
		v.log.Debug("native balance lookup failed", "err", err)
		return new(big.Int)
	}
	return balance
}

// ListToken refreshes balances and prices every entry.
func (v *EVM) ListToken(ctx context.Context) ([]chains.Token, error) {
	tokens, err := v.loadTokens()
	if err != nil {
		return nil, err
	}
	client, err := v.Provider(ctx, nil)
	if err != nil {
		v.log.Debug("listing tokens without balances", "err", err)
	} else {
		defer client.Close()
	}
	for i, t := range tokens {
		balance := new(big.Int)
		switch {
		case client == nil:
		case t.IsNative:
			balance = v.nativeBalance(ctx, client)
		default:
			balance = v.tokenBalance(ctx, client, t.TokenAddress)
		}
		tokens[i].Balance = formatOrZero(balance.String(), t.Decimals)
		tokens[i].USDRate = v.cfg.Market.TokenRate(ctx, t.Symbol)
	}
	return tokens, nil
}

func (v *EVM) ListNFT(context.Context) ([]chains.NFT, error) {
	return v.listNFT()
}

func (v *EVM) NativeTokenDetails(ctx context.Context, attrib *providers.Attrib) (*chains.Token, error) {
	client, err := v.Provider(ctx, attrib)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	t := v.activeNetwork.NativeToken
	t.Balance = formatOrZero(v.nativeBalance(ctx, client).String(), t.Decimals)
	t.USDRate = v.cfg.Market.TokenRate(ctx, t.Symbol)
	return &t, nil
}

func (v *EVM) TokenDetails(ctx context.Context, address string, attrib *providers.Attrib) (*chains.Token, error) {
	client, err := v.Provider(ctx, attrib)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	t, err := v.tokenMetadata(ctx, client, attrib, address)
	if err != nil {
		return nil, errs.Validationf(MsgInvalidToken)
	}
	t.Balance = formatOrZero(v.tokenBalance(ctx, client, address).String(), t.Decimals)
	t.USDRate = v.cfg.Market.TokenRate(ctx, t.Symbol)
	return &t, nil
}

func (v *EVM) ImportNFT(ctx context.Context, collection, tokenID, wallet string) error {
	return v.importNFT(ctx, v, collection, tokenID, wallet, msgEVMNFTOwner)
}

func (v *EVM) collectionDetails(ctx context.Context, collection string) (*chains.NFTCollection, error) {
	address, err := hexAddress(collection)
	if err != nil {
		return nil, err
	}
	client, err := v.Provider(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	name, symbol, err := providers.GetERC721Details(ctx, client, address)
	if err != nil {
		return nil, errs.NewChain(MsgNFTDetails, err)
	}
	return &chains.NFTCollection{
		ContractAddress: collection,
		Name:            name,
		Symbol:          symbol,
		Icon:            v.activeNetwork.Icon,
	}, nil
}

func (v *EVM) IsOwnedNFT(ctx context.Context, collection, tokenID, wallet string, attrib *providers.Attrib) (bool, error) {
	address, err := hexAddress(collection)
	if err != nil {
		return false, err
	}
	id, err := tokenIDInt(tokenID)
	if err != nil {
		return false, err
	}
	client, err := v.Provider(ctx, attrib)
	if err != nil {
		return false, err
	}
	defer client.Close()
	owner, err := providers.GetERC721Owner(ctx, client, address, id)
	if err != nil {
		return false, errs.NewChain(msgEVMNFTLookup, err)
	}
	return accounts.SameAddress(owner.Hex(), wallet), nil
}

func (v *EVM) NFTDetails(ctx context.Context, collection, tokenID string, attrib *providers.Attrib) (*chains.NFT, error) {
	address, err := hexAddress(collection)
	if err != nil {
		return nil, err
	}
	id, err := tokenIDInt(tokenID)
	if err != nil {
		return nil, err
	}
	client, err := v.Provider(ctx, attrib)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	uri, err := providers.GetERC721TokenURI(ctx, client, address, id)
	if err != nil {
		return nil, errs.NewChain(MsgNFTDetails, err)
	}
	meta, err := v.cfg.Market.NFTMetadata(ctx, uri)
	if err != nil {
		return nil, errs.NewChain(MsgNFTDetails, err)
	}
	return &chains.NFT{
		Name:              meta.Name,
		Icon:              meta.Icon,
		CollectionAddress: collection,
		TokenID:           tokenID,
	}, nil
}

// mined waits for tx and fails unless its receipt reports success.
func mined(ctx context.Context, client providers.EVMClient, tx *types.Transaction) error {
	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errTransactionFailed
	}
	return nil
}

// evmOverrides is the parsed form of Overrides. A nil nonce or zero gas
// means the node's value is used.
type evmOverrides struct {
	nonce *big.Int
	gas   uint64
}

func parseEVMOverrides(o Overrides) (evmOverrides, error) {
	var parsed evmOverrides
	if o.Nonce != "" {
		n, err := strconv.ParseUint(o.Nonce, 10, 64)
		if err != nil {
			return evmOverrides{}, errs.Validationf("Invalid nonce.")
		}
		parsed.nonce = new(big.Int).SetUint64(n)
	}
	if o.FeeLimit != "" {
		gas, err := strconv.ParseUint(o.FeeLimit, 10, 64)
		if err != nil {
			return evmOverrides{}, errs.Validationf("Invalid fee limit.")
		}
		parsed.gas = gas
	}
	return parsed, nil
}

func (v *EVM) transactor(ctx context.Context, key *ecdsa.PrivateKey, o Overrides) (*bind.TransactOpts, error) {
	parsed, err := parseEVMOverrides(o)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, v.chainID())
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.Nonce = parsed.nonce
	opts.GasLimit = parsed.gas
	return opts, nil
}

func (v *EVM) TransferNativeToken(ctx context.Context, p *txs.TransferNativeToken, privateKey string, o Overrides) (string, error) {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return "", err
	}
	to, err := hexAddress(p.To)
	if err != nil {
		return "", err
	}
	value, err := parseAmount(p.Amount)
	if err != nil {
		return "", err
	}
	parsed, err := parseEVMOverrides(o)
	if err != nil {
		return "", err
	}
	client, err := v.Provider(ctx, o.Attrib)
	if err != nil {
		return "", err
	}
	defer client.Close()

	tx, err := v.nativeTransfer(ctx, client, key, to, value.ToBig(), parsed)
	if err != nil {
		return "", chainError(MsgTransferToken, err)
	}
	if err := mined(ctx, client, tx); err != nil {
		return "", chainError(MsgTransferToken, err)
	}
	return tx.Hash().Hex(), nil
}

func (v *EVM) nativeTransfer(ctx context.Context, client providers.EVMClient, key *ecdsa.PrivateKey, to common.Address, value *big.Int, o evmOverrides) (*types.Transaction, error) {
	var nonce uint64
	if o.nonce != nil {
		nonce = o.nonce.Uint64()
	} else {
		n, err := client.NonceAt(ctx, crypto.PubkeyToAddress(key.PublicKey), nil)
		if err != nil {
			return nil, err
		}
		nonce = n
	}
	gas := uint64(nativeTransferGas)
	if o.gas != 0 {
		gas = o.gas
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	var unsigned *types.Transaction
	if head.BaseFee != nil {
		tip, err := client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, err
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		unsigned = types.NewTx(&types.DynamicFeeTx{
			ChainID:   v.chainID(),
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
		})
	} else {
		price, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		unsigned = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &to,
			Value:    value,
		})
	}
	signed, err := types.SignTx(unsigned, types.LatestSignerForChainID(v.chainID()), key)
	if err != nil {
		return nil, err
	}
	return signed, client.SendTransaction(ctx, signed)
}

func (v *EVM) TransferToken(ctx context.Context, p *txs.TransferToken, privateKey string, o Overrides) (string, error) {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return "", err
	}
	to, err := hexAddress(p.To)
	if err != nil {
		return "", err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return "", err
	}
	client, err := v.Provider(ctx, o.Attrib)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if _, err := v.tokenMetadata(ctx, client, o.Attrib, p.TokenAddress); err != nil {
		return "", errs.Validationf(MsgInvalidToken)
	}
	if v.tokenBalance(ctx, client, p.TokenAddress).Cmp(amount.ToBig()) < 0 {
		return "", errs.Validationf(MsgInsufficient)
	}
	opts, err := v.transactor(ctx, key, o)
	if err != nil {
		return "", err
	}
	tx, err := providers.ERC20(common.HexToAddress(p.TokenAddress), client).Transact(opts, "transfer", to, amount.ToBig())
	if err != nil {
		return "", chainError(MsgTransferToken, err)
	}
	if err := mined(ctx, client, tx); err != nil {
		return "", chainError(MsgTransferToken, err)
	}
	return tx.Hash().Hex(), nil
}

func (v *EVM) TransferNFT(ctx context.Context, p *txs.TransferNFT, privateKey string, o Overrides) (string, error) {
	key, err := parseSecp256k1(privateKey)
	if err != nil {
		return "", err
	}
	to, err := hexAddress(p.To)
	if err != nil {
		return "", err
	}
	id, err := tokenIDInt(p.TokenID)
	if err != nil {
		return "", err
	}
	owned, err := v.IsOwnedNFT(ctx, p.CollectionAddress, p.TokenID, v.publicKey, o.Attrib)
	if err != nil {
		return "", err
	}
	if !owned {
		return "", errs.Validationf(msgEVMNFTOwner)
	}

	client, err := v.Provider(ctx, o.Attrib)
	if err != nil {
		return "", err
	}
	defer client.Close()
	opts, err := v.transactor(ctx, key, o)
	if err != nil {
		return "", err
	}
	collection := common.HexToAddress(p.CollectionAddress)
	tx, err := providers.ERC721(collection, client).Transact(opts, "safeTransferFrom", common.HexToAddress(v.publicKey), to, id)
	if err != nil {
		return "", chainError(MsgTransferNFT, err)
	}
	if err := mined(ctx, client, tx); err != nil {
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
	return tx.Hash().Hex(), nil
}

// ApproveNFTTransfer is a no-op: safeTransferFrom is sent by the owner.
func (v *EVM) ApproveNFTTransfer(context.Context, *txs.TransferNFT, string, Overrides) error {
	return nil
}

func (v *EVM) CallContract(context.Context, *txs.StateChangeCall, string, Overrides) (string, error) {
	return "", errs.NotImplementedOp("callContract")
}

func (v *EVM) InitContract(context.Context, *txs.InitContract, string, Overrides) (string, error) {
	return "", errs.NotImplementedOp("initContract")
}

func (v *EVM) ReadOnlyCall(context.Context, *txs.StateChangeCall, *providers.Attrib) (json.RawMessage, error) {
	return nil, errs.NotImplementedOp("readOnlyCall")
}

func (v *EVM) AccountState(context.Context, string, *providers.Attrib) (*providers.L1XAccountState, error) {
	return nil, errs.NotImplementedOp("accountState")
}

func (v *EVM) TransactionReceipt(ctx context.Context, hash string, attrib *providers.Attrib) (*Receipt, error) {
	client, err := v.Provider(ctx, attrib)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	r, err := client.TransactionReceipt(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, errs.NewChain("Failed to get transaction receipt.", err)
	}
	fee := new(big.Int).SetUint64(r.GasUsed)
	if r.EffectiveGasPrice != nil {
		fee.Mul(fee, r.EffectiveGasPrice)
	}
	return &Receipt{
		Hash:    hash,
		Success: r.Status == types.ReceiptStatusSuccessful,
		FeeUsed: fee.String(),
	}, nil
}

// CurrentNonce is the account's transaction count.
func (v *EVM) CurrentNonce(ctx context.Context, attrib *providers.Attrib) (uint64, error) {
	client, err := v.Provider(ctx, attrib)
	if err != nil {
		return 0, err
	}
	defer client.Close()
	n, err := client.NonceAt(ctx, common.HexToAddress(v.publicKey), nil)
	if err != nil {
		return 0, errs.NewChain("Failed to get nonce.", err)
	}
	return n, nil
}

// EstimateFee only estimates token transfers; every other hint is "0".
func (v *EVM) EstimateFee(ctx context.Context, attrib *providers.Attrib, hint *FeeHint) (string, error) {
	if hint == nil || hint.Type != FeeHintToken {
		return "0", nil
	}
	token, err := hexAddress(hint.TokenAddress)
	if err != nil {
		return "", err
	}
	to, err := hexAddress(hint.To)
	if err != nil {
		return "", err
	}
	amount, err := parseAmount(hint.Amount)
	if err != nil {
		return "", err
	}
	data, err := providers.ERC20ABI.Pack("transfer", to, amount.ToBig())
	if err != nil {
		return "", err
	}
	client, err := v.Provider(ctx, attrib)
	if err != nil {
		return "", err
	}
	defer client.Close()
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: common.HexToAddress(v.publicKey),
		To:   &token,
		Data: data,
	})
	if err != nil {
		return "", errs.NewChain("Failed to estimate fee.", err)
	}
	return strconv.FormatUint(gas, 10), nil
}

func (v *EVM) SignMessage(_ context.Context, message, privateKey string) (string, error) {
	return personalSign(message, privateKey)
}
