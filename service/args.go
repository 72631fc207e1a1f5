// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ava-labs/xwallet/approval"
	"github.com/ava-labs/xwallet/providers"
)

// Response is the envelope every page request is answered with.
type Response = approval.Response

// Value is an amount a page may send as a JSON number or string.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = Value(n.String())
	return nil
}

// MessageArgs is the raw page envelope.
type MessageArgs struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// SiteInfo describes the calling page for the approval surface.
type SiteInfo struct {
	FavIcon string `json:"favIcon,omitempty"`
	AppName string `json:"appName,omitempty"`
}

// TxOptions are optional overrides a page may set on a transaction.
type TxOptions struct {
	FeeLimit Value `json:"feeLimit,omitempty"`
	Nonce    Value `json:"nonce,omitempty"`
}

type EmptyArgs struct {
	SiteInfo
}

type ConnectArgs struct {
	SiteInfo
	ClusterType string `json:"clusterType,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
}

type SendTransactionArgs struct {
	SiteInfo
	TxOptions
	From            string          `json:"from"`
	ContractAddress string          `json:"contractAddress"`
	FunctionName    string          `json:"functionName"`
	Args            json.RawMessage `json:"args,omitempty"`
}

type InitContractArgs struct {
	SiteInfo
	TxOptions
	From                string          `json:"from"`
	BaseContractAddress string          `json:"baseContractAddress"`
	Args                json.RawMessage `json:"args,omitempty"`
}

type CallRequestArgs struct {
	SiteInfo
	ContractAddress string          `json:"contractAddress"`
	FunctionName    string          `json:"functionName"`
	Args            json.RawMessage `json:"args,omitempty"`
}

type TransferArgs struct {
	SiteInfo
	TxOptions
	From         string `json:"from"`
	Receiver     string `json:"receiver"`
	Value        Value  `json:"value"`
	ResponseType string `json:"responseType,omitempty"`
}

type TransferTokenArgs struct {
	SiteInfo
	TxOptions
	From         string `json:"from"`
	Receiver     string `json:"receiver"`
	Value        Value  `json:"value"`
	TokenAddress string `json:"tokenAddress"`
}

type TransferNFTArgs struct {
	SiteInfo
	TxOptions
	From              string `json:"from"`
	Receiver          string `json:"receiver"`
	Value             Value  `json:"value"`
	CollectionAddress string `json:"collectionAddress"`
	TokenID           Value  `json:"tokenId"`
}

type SignMessageArgs struct {
	SiteInfo
	From    string `json:"from"`
	Message string `json:"message"`
}

type SignPayloadArgs struct {
	SiteInfo
	From        string          `json:"from"`
	Payload     json.RawMessage `json:"payload"`
	ClusterType string          `json:"clusterType,omitempty"`
	Endpoint    string          `json:"endpoint,omitempty"`
	Message     string          `json:"message,omitempty"`
}

type ProviderConfigArgs struct {
	SiteInfo
	providers.Attrib
}

type AccountStateArgs struct {
	SiteInfo
	From string `json:"from"`
}

// PayloadToSign is the staged sign-payload request.
type PayloadToSign struct {
	URL         string          `json:"url"`
	FavIcon     string          `json:"favIcon"`
	AppName     string          `json:"appName"`
	RequestID   string          `json:"requestId"`
	From        string          `json:"from"`
	Payload     json.RawMessage `json:"payload"`
	ClusterType string          `json:"clusterType,omitempty"`
	Endpoint    string          `json:"endpoint,omitempty"`
	Message     string          `json:"message,omitempty"`
}
