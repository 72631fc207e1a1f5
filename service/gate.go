// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/sites"
)

// Actions a page can request.
const (
	IsConnected          = "IS_CONNECTED"
	Connect              = "CONNECT"
	Disconnect           = "DISCONNECT"
	ListAccounts         = "LIST_ACCOUNTS"
	SendTransaction      = "SEND_TRANSACTION"
	InitContract         = "INIT_CONTRACT"
	CallRequest          = "CALL_REQUEST"
	TransferNativeToken  = "TRANSFER_NATIVE_TOKEN"
	TransferToken        = "TRANSFER_TOKEN"
	TransferNFT          = "TRANSFER_NFT"
	SignMessage          = "SIGN_MESSAGE"
	SignPayload          = "SIGN_PAYLOAD"
	GetL1XProviderConfig = "GET_L1X_PROVIDER_CONFIG"
	SetL1XProviderConfig = "SET_L1X_PROVIDER_CONFIG"
	AccountState         = "ACCOUNT_STATE"
)

const MsgSiteNotConnected = "Site is not connected. Please try after connection."

var (
	// openActions may be requested by any origin.
	openActions = mapset.NewThreadUnsafeSet(IsConnected, Connect, Disconnect, SignMessage, ListAccounts)

	// claimActions name the account they act for; that account must be
	// connected to the origin.
	claimActions = mapset.NewThreadUnsafeSet(
		SendTransaction,
		InitContract,
		TransferNativeToken,
		TransferToken,
		TransferNFT,
		SignPayload,
		AccountState,
	)
)

// Gate decides whether an origin may run an action. It runs before any VM
// is built for the request.
type Gate struct {
	sites *sites.Registry
}

func NewGate(sites *sites.Registry) *Gate {
	return &Gate{sites: sites}
}

// Authorize returns nil when origin may run action on behalf of from.
// Actions that carry no account claim need the origin to have at least one
// connected account. Every failure is an authorization error.
func (g *Gate) Authorize(action, origin, from string) error {
	if openActions.Contains(action) {
		return nil
	}
	if claimActions.Contains(action) {
		if !g.sites.Connected(from, origin) {
			return errs.Authorizationf(errs.MsgInvalidSender)
		}
		return nil
	}
	connected, err := g.sites.IsConnected(origin)
	if err != nil || !connected {
		return errs.Authorizationf(MsgSiteNotConnected)
	}
	return nil
}
