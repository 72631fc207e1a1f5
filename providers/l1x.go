// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package providers

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/ava-labs/avalanchego/utils/rpc"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ClusterMainnet = "mainnet"

	// DefaultL1XFeeLimit is charged when a request does not carry one.
	DefaultL1XFeeLimit = "1799999999999999998"
)

var errEmptyHash = errors.New("l1x node returned an empty transaction hash")

// L1XAccountState is the on-chain state of an L1X address.
type L1XAccountState struct {
	Balance          string `json:"balance"`
	BalanceFormatted string `json:"balance_formatted"`
	Nonce            string `json:"nonce"`
	AccountType      string `json:"account_type"`
}

// L1XReceipt reports the outcome of a transaction. Status 0 is success.
type L1XReceipt struct {
	Hash    string `json:"tx_hash"`
	Status  *int   `json:"status"`
	FeeUsed string `json:"fee_used"`
}

// Succeeded reports whether the receipt carries a success status.
func (r *L1XReceipt) Succeeded() bool {
	return r != nil && r.Status != nil && *r.Status == 0
}

type L1XNativeTokenTransfer struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type L1XSmartContractInit struct {
	BaseContractAddress string          `json:"base_contract_address"`
	Arguments           json.RawMessage `json:"arguments"`
}

type L1XFunctionCall struct {
	ContractAddress string          `json:"contract_address"`
	Function        string          `json:"function"`
	Arguments       json.RawMessage `json:"arguments"`
}

// L1XTransactionType holds exactly one of its fields.
type L1XTransactionType struct {
	NativeTokenTransfer       *L1XNativeTokenTransfer `json:"NativeTokenTransfer,omitempty"`
	SmartContractInit         *L1XSmartContractInit   `json:"SmartContractInit,omitempty"`
	SmartContractFunctionCall *L1XFunctionCall        `json:"SmartContractFunctionCall,omitempty"`
}

type L1XTransaction struct {
	Nonce           string             `json:"nonce"`
	FeeLimit        string             `json:"fee_limit"`
	TransactionType L1XTransactionType `json:"transaction_type"`
}

// SignedL1XTransaction is what the node accepts. The signature covers the
// keccak hash of the JSON encoded transaction.
type SignedL1XTransaction struct {
	Transaction  L1XTransaction `json:"transaction"`
	Signature    string         `json:"signature"`
	VerifyingKey string         `json:"verifying_key"`
}

type L1XReadOnlyCall struct {
	ContractAddress string          `json:"contract_address"`
	Function        string          `json:"function"`
	Arguments       json.RawMessage `json:"arguments"`
}

// L1XClient is the subset of the L1X node API the wallet uses.
type L1XClient interface {
	AccountState(ctx context.Context, address string) (*L1XAccountState, error)
	CurrentNonce(ctx context.Context, address string) (uint64, error)
	TransactionReceipt(ctx context.Context, hash string) (*L1XReceipt, error)
	SubmitTransaction(ctx context.Context, tx *SignedL1XTransaction) (string, error)
	ReadOnlyCall(ctx context.Context, call *L1XReadOnlyCall) (json.RawMessage, error)
}

// SignL1X signs tx locally. The private key never leaves the process.
func SignL1X(tx L1XTransaction, key *ecdsa.PrivateKey) (*SignedL1XTransaction, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	sig, verifyingKey, err := SignL1XPayload(payload, key)
	if err != nil {
		return nil, err
	}
	return &SignedL1XTransaction{
		Transaction:  tx,
		Signature:    hex.EncodeToString(sig),
		VerifyingKey: hex.EncodeToString(verifyingKey),
	}, nil
}

// SignL1XPayload signs the keccak hash of payload. It returns the 64 byte
// signature and the compressed public key.
func SignL1XPayload(payload []byte, key *ecdsa.PrivateKey) ([]byte, []byte, error) {
	sig, err := crypto.Sign(crypto.Keccak256(payload), key)
	if err != nil {
		return nil, nil, err
	}
	return sig[:64], crypto.CompressPubkey(&key.PublicKey), nil
}

// VerifyL1XPayload reports whether sig is a SignL1XPayload signature of
// payload by the compressed publicKey.
func VerifyL1XPayload(payload, sig, publicKey []byte) bool {
	return len(sig) == 64 && crypto.VerifySignature(publicKey, crypto.Keccak256(payload), sig)
}

// L1XAddress is the 0x prefixed lower case address of key.
func L1XAddress(key *ecdsa.PrivateKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

var _ L1XClient = (*l1xClient)(nil)

// NewL1XClient creates a JSON-RPC client bound to attrib.Endpoint.
func NewL1XClient(attrib Attrib) L1XClient {
	return &l1xClient{req: rpc.NewEndpointRequester(attrib.Endpoint)}
}

type l1xClient struct {
	req rpc.EndpointRequester
}

type addressArgs struct {
	Request struct {
		Address string `json:"address"`
	} `json:"request"`
}

func newAddressArgs(address string) *addressArgs {
	args := &addressArgs{}
	args.Request.Address = strings.TrimPrefix(address, "0x")
	return args
}

func (c *l1xClient) AccountState(ctx context.Context, address string) (*L1XAccountState, error) {
	resp := new(struct {
		AccountState L1XAccountState `json:"account_state"`
	})
	if err := c.req.SendRequest(ctx, "l1x_getAccountState", newAddressArgs(address), resp); err != nil {
		return nil, err
	}
	return &resp.AccountState, nil
}

func (c *l1xClient) CurrentNonce(ctx context.Context, address string) (uint64, error) {
	var nonce json.Number
	if err := c.req.SendRequest(ctx, "l1x_getCurrentNonce", newAddressArgs(address), &nonce); err != nil {
		return 0, err
	}
	return strconv.ParseUint(nonce.String(), 10, 64)
}

func (c *l1xClient) TransactionReceipt(ctx context.Context, hash string) (*L1XReceipt, error) {
	args := &struct {
		Request struct {
			Hash string `json:"hash"`
		} `json:"request"`
	}{}
	args.Request.Hash = hash
	resp := new(struct {
		Transaction L1XReceipt `json:"transaction"`
	})
	if err := c.req.SendRequest(ctx, "l1x_getTransactionReceipt", args, resp); err != nil {
		return nil, err
	}
	return &resp.Transaction, nil
}

func (c *l1xClient) SubmitTransaction(ctx context.Context, tx *SignedL1XTransaction) (string, error) {
	args := &struct {
		Request *SignedL1XTransaction `json:"request"`
	}{Request: tx}
	resp := new(struct {
		Hash string `json:"hash"`
	})
	if err := c.req.SendRequest(ctx, "l1x_submitTransaction", args, resp); err != nil {
		return "", err
	}
	if resp.Hash == "" {
		return "", errEmptyHash
	}
	return resp.Hash, nil
}

func (c *l1xClient) ReadOnlyCall(ctx context.Context, call *L1XReadOnlyCall) (json.RawMessage, error) {
	args := &struct {
		Request struct {
			Call *L1XReadOnlyCall `json:"call"`
		} `json:"request"`
	}{}
	args.Request.Call = call
	resp := new(struct {
		Result json.RawMessage `json:"result"`
	})
	if err := c.req.SendRequest(ctx, "l1x_smartContractReadOnlyCall", args, resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}
