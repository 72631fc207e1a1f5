// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/txs"
)

type erc20Info struct {
	name     string
	symbol   string
	decimals uint8
	supply   *big.Int
}

// fakeEVM is an in-memory EVM node that knows ERC-20 contracts.
type fakeEVM struct {
	providers.EVMClient

	lock         sync.Mutex
	balance      *big.Int
	nonce        uint64
	gas          uint64
	erc20        map[common.Address]erc20Info
	tokenBalance *big.Int
	sent         []*types.Transaction
}

func newFakeEVM() *fakeEVM {
	return &fakeEVM{
		balance:      big.NewInt(1_000_000_000_000_000_000),
		nonce:        3,
		gas:          52000,
		erc20:        map[common.Address]erc20Info{},
		tokenBalance: new(big.Int),
	}
}

func (f *fakeEVM) CodeAt(_ context.Context, contract common.Address, _ *big.Int) ([]byte, error) {
	if _, ok := f.erc20[contract]; ok {
		return []byte{1}, nil
	}
	return nil, nil
}

func (f *fakeEVM) PendingCodeAt(ctx context.Context, contract common.Address) ([]byte, error) {
	return f.CodeAt(ctx, contract, nil)
}

func (f *fakeEVM) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	info, ok := f.erc20[*call.To]
	if !ok {
		return nil, nil
	}
	method, err := providers.ERC20ABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "name":
		return method.Outputs.Pack(info.name)
	case "symbol":
		return method.Outputs.Pack(info.symbol)
	case "decimals":
		return method.Outputs.Pack(info.decimals)
	case "totalSupply":
		return method.Outputs.Pack(info.supply)
	default:
		return method.Outputs.Pack(f.tokenBalance)
	}
}

func (f *fakeEVM) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeEVM) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeEVM) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}

func (f *fakeEVM) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeEVM) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeEVM) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeEVM) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeEVM) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(2),
	}, nil
}

func (*fakeEVM) Close() {}

func TestEVMImportAndListTokens(t *testing.T) {
	require := require.New(t)
	cfg, dialer := newTestConfig(t)
	ctx := context.Background()
	dialer.evm.erc20[common.HexToAddress(testToken)] = erc20Info{
		name:     "Test Token",
		symbol:   "TT",
		decimals: 6,
		supply:   big.NewInt(1_000_000_000),
	}
	dialer.evm.tokenBalance = big.NewInt(2_500_000)

	v := NewEVM(cfg, "", "")
	a, err := v.CreateAccount(ctx, "main")
	require.NoError(err)
	require.Equal(common.HexToAddress(a.PublicKey).Hex(), a.PublicKey)

	require.NoError(v.ImportToken(ctx, testToken))
	require.NoError(v.ImportToken(ctx, testToken))

	tokens, err := v.ListToken(ctx)
	require.NoError(err)
	require.Len(tokens, 2)
	require.Equal("ETH", tokens[0].Symbol)
	require.Equal("1.0", tokens[0].Balance)
	require.Equal(3000.0, tokens[0].USDRate)
	require.Equal("TT", tokens[1].Symbol)
	require.Equal("2.5", tokens[1].Balance)
	require.Equal(1.0, tokens[1].USDRate)
	require.Equal("token.png", tokens[1].Icon)

	err = v.ImportToken(ctx, "0x9999999999999999999999999999999999999999")
	require.Equal(MsgImportToken, errs.Message(err))
}

func TestEVMTransferNativeToken(t *testing.T) {
	require := require.New(t)
	cfg, dialer := newTestConfig(t)
	ctx := context.Background()
	v := NewEVM(cfg, "", "")
	a, err := v.CreateAccount(ctx, "main")
	require.NoError(err)

	hash, err := v.TransferNativeToken(ctx, &txs.TransferNativeToken{To: testRecipient, Amount: "1000"}, a.PrivateKey, Overrides{})
	require.NoError(err)
	require.Len(dialer.evm.sent, 1)

	tx := dialer.evm.sent[0]
	require.Equal(tx.Hash().Hex(), hash)
	require.Equal(uint8(types.DynamicFeeTxType), tx.Type())
	require.Equal(uint64(nativeTransferGas), tx.Gas())
	require.Equal(big.NewInt(1000), tx.Value())
	require.Equal(uint64(3), tx.Nonce())
	require.Equal(common.HexToAddress(testRecipient), *tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), tx)
	require.NoError(err)
	require.Equal(a.PublicKey, sender.Hex())

	_, err = v.TransferNativeToken(ctx, &txs.TransferNativeToken{To: "nowhere", Amount: "1"}, a.PrivateKey, Overrides{})
	require.ErrorIs(err, errs.ErrValidation)
}

func TestEVMTransferNativeTokenOverrides(t *testing.T) {
	require := require.New(t)
	cfg, dialer := newTestConfig(t)
	ctx := context.Background()
	v := NewEVM(cfg, "", "")
	a, err := v.CreateAccount(ctx, "main")
	require.NoError(err)

	p := &txs.TransferNativeToken{To: testRecipient, Amount: "1000"}
	_, err = v.TransferNativeToken(ctx, p, a.PrivateKey, Overrides{Nonce: "7", FeeLimit: "30000"})
	require.NoError(err)
	require.Len(dialer.evm.sent, 1)
	require.Equal(uint64(7), dialer.evm.sent[0].Nonce())
	require.Equal(uint64(30000), dialer.evm.sent[0].Gas())

	_, err = v.TransferNativeToken(ctx, p, a.PrivateKey, Overrides{Nonce: "seven"})
	require.ErrorIs(err, errs.ErrValidation)
	_, err = v.TransferNativeToken(ctx, p, a.PrivateKey, Overrides{FeeLimit: "-1"})
	require.ErrorIs(err, errs.ErrValidation)
	require.Len(dialer.evm.sent, 1)
}

func TestEVMTransferToken(t *testing.T) {
	require := require.New(t)
	cfg, dialer := newTestConfig(t)
	ctx := context.Background()
	dialer.evm.erc20[common.HexToAddress(testToken)] = erc20Info{symbol: "TT", decimals: 6, supply: new(big.Int)}
	dialer.evm.tokenBalance = big.NewInt(10)

	v := NewEVM(cfg, "", "")
	a, err := v.CreateAccount(ctx, "main")
	require.NoError(err)

	p := &txs.TransferToken{To: testRecipient, Amount: "11", TokenAddress: testToken}
	_, err = v.TransferToken(ctx, p, a.PrivateKey, Overrides{})
	require.Equal(MsgInsufficient, errs.Message(err))
	require.Empty(dialer.evm.sent)

	p.Amount = "10"
	_, err = v.TransferToken(ctx, p, a.PrivateKey, Overrides{Nonce: "9"})
	require.NoError(err)
	require.Len(dialer.evm.sent, 1)

	tx := dialer.evm.sent[0]
	require.Equal(uint64(9), tx.Nonce())
	require.Equal(dialer.evm.gas, tx.Gas())
	args, err := providers.ERC20ABI.Methods["transfer"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(err)
	require.Equal(common.HexToAddress(testRecipient), args[0])
	require.Equal(big.NewInt(10), args[1])

	_, err = v.TransferToken(ctx, &txs.TransferToken{To: testRecipient, Amount: "1", TokenAddress: testCollection}, a.PrivateKey, Overrides{})
	require.Equal(MsgInvalidToken, errs.Message(err))
}

func TestEVMReadHelpers(t *testing.T) {
	require := require.New(t)
	cfg, _ := newTestConfig(t)
	ctx := context.Background()
	v := NewEVM(cfg, "", "")
	_, err := v.CreateAccount(ctx, "main")
	require.NoError(err)

	fee, err := v.EstimateFee(ctx, nil, nil)
	require.NoError(err)
	require.Equal("0", fee)

	fee, err = v.EstimateFee(ctx, nil, &FeeHint{Type: FeeHintToken, TokenAddress: testToken, To: testRecipient, Amount: "5"})
	require.NoError(err)
	require.Equal("52000", fee)

	nonce, err := v.CurrentNonce(ctx, nil)
	require.NoError(err)
	require.Equal(uint64(3), nonce)

	receipt, err := v.TransactionReceipt(ctx, "0x01", nil)
	require.NoError(err)
	require.True(receipt.Success)
	require.Equal("42000", receipt.FeeUsed)

	_, err = v.CallContract(ctx, &txs.StateChangeCall{}, "", Overrides{})
	require.ErrorIs(err, errs.ErrNotImplemented)
	_, err = v.ReadOnlyCall(ctx, &txs.StateChangeCall{}, nil)
	require.ErrorIs(err, errs.ErrNotImplemented)
}
