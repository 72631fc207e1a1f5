// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package providers

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// EVMClient is satisfied by *ethclient.Client.
type EVMClient interface {
	bind.ContractBackend
	bind.DeployBackend

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const erc721ABIJSON = `[
	{"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"name":"safeTransferFrom","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"name":"approve","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	ERC20ABI  abi.ABI
	ERC721ABI abi.ABI
)

func init() {
	var err error
	if ERC20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON)); err != nil {
		panic(err)
	}
	if ERC721ABI, err = abi.JSON(strings.NewReader(erc721ABIJSON)); err != nil {
		panic(err)
	}
}

// ERC20 binds the token at address to backend.
func ERC20(address common.Address, backend bind.ContractBackend) *bind.BoundContract {
	return bind.NewBoundContract(address, ERC20ABI, backend, backend, backend)
}

// ERC721 binds the collection at address to backend.
func ERC721(address common.Address, backend bind.ContractBackend) *bind.BoundContract {
	return bind.NewBoundContract(address, ERC721ABI, backend, backend, backend)
}

// ERC20Details is the metadata of a fungible token contract.
type ERC20Details struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

func call(ctx context.Context, c *bind.BoundContract, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	err := c.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	return out, err
}

// GetERC20Details reads name, symbol, decimals and total supply.
func GetERC20Details(ctx context.Context, backend bind.ContractBackend, address common.Address) (*ERC20Details, error) {
	c := ERC20(address, backend)
	d := &ERC20Details{}
	out, err := call(ctx, c, "name")
	if err != nil {
		return nil, err
	}
	d.Name = *abi.ConvertType(out[0], new(string)).(*string)
	if out, err = call(ctx, c, "symbol"); err != nil {
		return nil, err
	}
	d.Symbol = *abi.ConvertType(out[0], new(string)).(*string)
	if out, err = call(ctx, c, "decimals"); err != nil {
		return nil, err
	}
	d.Decimals = *abi.ConvertType(out[0], new(uint8)).(*uint8)
	if out, err = call(ctx, c, "totalSupply"); err != nil {
		return nil, err
	}
	d.TotalSupply = *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return d, nil
}

func GetERC20Balance(ctx context.Context, backend bind.ContractBackend, token, owner common.Address) (*big.Int, error) {
	out, err := call(ctx, ERC20(token, backend), "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func GetERC721Owner(ctx context.Context, backend bind.ContractBackend, collection common.Address, tokenID *big.Int) (common.Address, error) {
	out, err := call(ctx, ERC721(collection, backend), "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func GetERC721TokenURI(ctx context.Context, backend bind.ContractBackend, collection common.Address, tokenID *big.Int) (string, error) {
	out, err := call(ctx, ERC721(collection, backend), "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// GetERC721Details reads a collection's name and symbol.
func GetERC721Details(ctx context.Context, backend bind.ContractBackend, collection common.Address) (string, string, error) {
	c := ERC721(collection, backend)
	out, err := call(ctx, c, "name")
	if err != nil {
		return "", "", err
	}
	name := *abi.ConvertType(out[0], new(string)).(*string)
	if out, err = call(ctx, c, "symbol"); err != nil {
		return "", "", err
	}
	return name, *abi.ConvertType(out[0], new(string)).(*string), nil
}
