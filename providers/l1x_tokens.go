// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package providers

import (
	"context"
	"encoding/json"
	"strings"
)

// Contract functions of the L1X fungible and non-fungible token standards.
const (
	FTMetadata      = "ft_metadata"
	FTBalanceOf     = "ft_balance_of"
	FTTransfer      = "ft_transfer"
	NFTMetadata     = "nft_metadata"
	NFTOwnerOf      = "nft_owner_of"
	NFTTokenURI     = "nft_token_uri"
	NFTTransferFrom = "nft_transfer_from"
	NFTApprove      = "nft_approve"
)

// FTAttributes describes a fungible token contract.
type FTAttributes struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
}

// NFTAttributes describes an NFT collection contract.
type NFTAttributes struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Icon   string `json:"icon"`
}

func readOnly(ctx context.Context, c L1XClient, contract, function string, args interface{}, reply interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	out, err := c.ReadOnlyCall(ctx, &L1XReadOnlyCall{
		ContractAddress: strings.TrimPrefix(strings.TrimSpace(contract), "0x"),
		Function:        function,
		Arguments:       raw,
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(out, reply)
}

func GetFTAttributes(ctx context.Context, c L1XClient, contract string) (*FTAttributes, error) {
	attrs := &FTAttributes{}
	return attrs, readOnly(ctx, c, contract, FTMetadata, struct{}{}, attrs)
}

// GetFTBalance returns the raw integer balance of address.
func GetFTBalance(ctx context.Context, c L1XClient, contract, address string) (string, error) {
	var reply struct {
		Value string `json:"value"`
	}
	args := map[string]string{"account": strings.TrimPrefix(address, "0x")}
	if err := readOnly(ctx, c, contract, FTBalanceOf, args, &reply); err != nil {
		return "", err
	}
	return reply.Value, nil
}

func GetNFTAttributes(ctx context.Context, c L1XClient, contract string) (*NFTAttributes, error) {
	attrs := &NFTAttributes{}
	return attrs, readOnly(ctx, c, contract, NFTMetadata, struct{}{}, attrs)
}

func GetNFTOwner(ctx context.Context, c L1XClient, contract, tokenID string) (string, error) {
	var reply struct {
		OwnerAddress string `json:"owner_address"`
	}
	if err := readOnly(ctx, c, contract, NFTOwnerOf, map[string]string{"id": tokenID}, &reply); err != nil {
		return "", err
	}
	return reply.OwnerAddress, nil
}

func GetNFTTokenURI(ctx context.Context, c L1XClient, contract, tokenID string) (string, error) {
	var reply struct {
		TokenURI string `json:"token_uri"`
	}
	if err := readOnly(ctx, c, contract, NFTTokenURI, map[string]string{"id": tokenID}, &reply); err != nil {
		return "", err
	}
	return reply.TokenURI, nil
}

// FunctionCall builds a state changing contract call.
func FunctionCall(contract, function string, args interface{}) (L1XTransactionType, error) {
	raw, ok := args.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(args)
		if err != nil {
			return L1XTransactionType{}, err
		}
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	return L1XTransactionType{SmartContractFunctionCall: &L1XFunctionCall{
		ContractAddress: strings.TrimPrefix(strings.TrimSpace(contract), "0x"),
		Function:        function,
		Arguments:       raw,
	}}, nil
}
