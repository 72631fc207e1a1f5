// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/vm"
)

// StaticName is the namespace of the stateless helpers.
const StaticName = "static"

// StaticService holds helpers that need no wallet state.
type StaticService struct{}

func CreateStaticService() *StaticService {
	return &StaticService{}
}

type VerifyPayloadArgs struct {
	// Payload is the object exactly as the page submitted it for signing.
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
	PublicKey string          `json:"publicKey"`
}

type VerifyPayloadReply struct {
	Valid   bool   `json:"valid"`
	Address string `json:"address,omitempty"`
}

// VerifyPayload checks a signature returned for SIGN_PAYLOAD and reports
// the L1X address that produced it.
func (*StaticService) VerifyPayload(_ *http.Request, args *VerifyPayloadArgs, reply *VerifyPayloadReply) error {
	sig, err := formatting.Decode(formatting.Hex, args.Signature)
	if err != nil {
		return fmt.Errorf("couldn't decode signature: %w", err)
	}
	publicKey, err := formatting.Decode(formatting.Hex, args.PublicKey)
	if err != nil {
		return fmt.Errorf("couldn't decode public key: %w", err)
	}
	key, err := crypto.DecompressPubkey(publicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	reply.Valid = providers.VerifyL1XPayload(args.Payload, sig, publicKey)
	reply.Address = ""
	if reply.Valid {
		reply.Address = strings.ToLower(crypto.PubkeyToAddress(*key).Hex())
	}
	return nil
}

type AmountArgs struct {
	Value    Value `json:"value"`
	Decimals uint8 `json:"decimals"`
}

type AmountReply struct {
	Value string `json:"value"`
}

// ConvertToDecimals scales a human amount to base units.
func (*StaticService) ConvertToDecimals(_ *http.Request, args *AmountArgs, reply *AmountReply) error {
	value, err := vm.ConvertToDecimals(string(args.Value), args.Decimals)
	if err != nil {
		return err
	}
	reply.Value = value
	return nil
}

// FormatDecimals renders base units as a human amount.
func (*StaticService) FormatDecimals(_ *http.Request, args *AmountArgs, reply *AmountReply) error {
	value, err := vm.FormatDecimals(string(args.Value), args.Decimals)
	if err != nil {
		return err
	}
	reply.Value = value
	return nil
}
