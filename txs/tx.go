// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package txs defines the wallet transaction record and its pending and
// history lists.
package txs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/errs"
)

// Type discriminates the transaction payload.
type Type string

const (
	TransferNativeTokenType Type = "transfer-native-token"
	TransferTokenType       Type = "transfer-token"
	TransferNFTType         Type = "transfer-nft"
	StateChangeCallType     Type = "state-change-call"
	InitContractType        Type = "init-contract"
)

// Source says who built the transaction.
type Source string

const (
	Extension Source = "extension"
	Dapp      Source = "dapp"
)

var (
	ErrUnknownType = errors.New("unknown transaction type")
	ErrNoPayload   = errors.New("transaction has no payload")
)

// Common holds the fields every transaction carries.
type Common struct {
	ID          string        `json:"id"`
	Timestamp   int64         `json:"timestamp"`
	Source      Source        `json:"source"`
	Type        Type          `json:"type"`
	Site        string        `json:"site,omitempty"`
	SiteFavIcon string        `json:"siteFavIcon,omitempty"`
	Hash        string        `json:"hash,omitempty"`
	RequestID   string        `json:"requestId,omitempty"`
	NetworkType chains.Family `json:"networkType"`
	FeeLimit    string        `json:"feeLimit,omitempty"`
	Nonce       string        `json:"nonce,omitempty"`
	From        string        `json:"from"`
	ChainID     string        `json:"chainId"`
	RPC         string        `json:"rpc"`
}

// Payload is the variant part of a transaction.
type Payload interface {
	Type() Type
	// missing lists the names of required fields that are empty.
	missing() []string
}

type TransferNativeToken struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Symbol string `json:"symbol"`
	// ResponseType is SIGNATURE when the page only wants the signed bytes.
	ResponseType string `json:"responseType,omitempty"`
}

type TransferToken struct {
	To           string `json:"to"`
	Amount       string `json:"amount"`
	TokenAddress string `json:"tokenAddress"`
	Symbol       string `json:"symbol,omitempty"`
}

type TransferNFT struct {
	To                string `json:"to"`
	CollectionAddress string `json:"collectionAddress"`
	TokenID           string `json:"tokenId"`
	Amount            uint64 `json:"amount"`
}

type StateChangeCall struct {
	ContractAddress string          `json:"contractAddress"`
	FunctionName    string          `json:"functionName"`
	Arguments       json.RawMessage `json:"arguments,omitempty"`
}

type InitContract struct {
	BaseContractAddress string          `json:"baseContractAddress"`
	Arguments           json.RawMessage `json:"arguments,omitempty"`
}

func (*TransferNativeToken) Type() Type { return TransferNativeTokenType }
func (*TransferToken) Type() Type       { return TransferTokenType }
func (*TransferNFT) Type() Type         { return TransferNFTType }
func (*StateChangeCall) Type() Type     { return StateChangeCallType }
func (*InitContract) Type() Type        { return InitContractType }

func (p *TransferNativeToken) missing() []string {
	return missingFields("receiver", p.To, "amount", p.Amount)
}

func (p *TransferToken) missing() []string {
	return missingFields("receiver", p.To, "amount", p.Amount, "tokenAddress", p.TokenAddress)
}

func (p *TransferNFT) missing() []string {
	amount := ""
	if p.Amount > 0 {
		amount = "ok"
	}
	return missingFields("receiver", p.To, "amount", amount, "collectionAddress", p.CollectionAddress, "tokenId", p.TokenID)
}

func (p *StateChangeCall) missing() []string {
	return missingFields("functionName", p.FunctionName, "contractAddress", p.ContractAddress)
}

func (p *InitContract) missing() []string {
	return missingFields("baseContractAddress", p.BaseContractAddress)
}

func missingFields(pairs ...string) []string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			out = append(out, pairs[i])
		}
	}
	return out
}

func newPayload(t Type) (Payload, error) {
	switch t {
	case TransferNativeTokenType:
		return &TransferNativeToken{}, nil
	case TransferTokenType:
		return &TransferToken{}, nil
	case TransferNFTType:
		return &TransferNFT{}, nil
	case StateChangeCallType:
		return &StateChangeCall{}, nil
	case InitContractType:
		return &InitContract{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// Transaction is a tagged union over the payload types. Hash is empty
// while the transaction is pending.
type Transaction struct {
	Common
	Payload Payload
}

// New stamps a fresh id on a transaction for payload.
func New(common Common, payload Payload) *Transaction {
	common.ID = uuid.NewString()
	common.Type = payload.Type()
	return &Transaction{Common: common, Payload: payload}
}

// Validate checks the fields required before queueing.
func (t *Transaction) Validate() error {
	if t.Payload == nil {
		return ErrNoPayload
	}
	if t.Type != t.Payload.Type() {
		return fmt.Errorf("%w: %q does not match payload %q", ErrUnknownType, t.Type, t.Payload.Type())
	}
	missing := t.Payload.missing()
	if t.From == "" {
		missing = append(missing, "from")
	}
	if len(missing) > 0 {
		return errs.Validationf("Missing required parameters. %s", strings.Join(missing, " "))
	}
	switch t.Source {
	case Extension:
	case Dapp:
		if t.RequestID == "" {
			return errs.Validationf("Missing required parameters. requestId")
		}
	default:
		return errs.Validationf("Invalid transaction source %q.", t.Source)
	}
	return nil
}

func (t *Transaction) MarshalJSON() ([]byte, error) {
	if t.Payload == nil {
		return nil, ErrNoPayload
	}
	common := t.Common
	common.Type = t.Payload.Type()
	head, err := json.Marshal(common)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(t.Payload)
	if err != nil {
		return nil, err
	}
	// Splice the two objects into one.
	body = bytes.TrimPrefix(body, []byte("{"))
	if len(body) == 1 {
		return head, nil
	}
	head[len(head)-1] = ','
	return append(head, body...), nil
}

func (t *Transaction) UnmarshalJSON(b []byte) error {
	var common Common
	if err := json.Unmarshal(b, &common); err != nil {
		return err
	}
	payload, err := newPayload(common.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, payload); err != nil {
		return err
	}
	t.Common = common
	t.Payload = payload
	return nil
}
