// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package service exposes the wallet over JSON-RPC.
//
// Pages call [Service] with their origin in the Origin header. Every call is
// answered with a {status, errorMessage, data} envelope; failures never
// surface as JSON-RPC errors. The approval surface calls [WalletService] on
// a separate endpoint.
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xwallet/approval"
	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/dispatch"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/events"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/sites"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/txs"
	"github.com/ava-labs/xwallet/vm"
)

const (
	// Name is the JSON-RPC namespace pages call into.
	Name = "xwallet"

	MsgInvalidRequestData = "Invalid request data."
)

// Wallet holds what both services act on.
type Wallet struct {
	Store      *storage.Store
	Factory    *vm.Factory
	Sites      *sites.Registry
	Broker     *approval.Broker
	Dispatcher *dispatch.Dispatcher
	Events     events.Emitter
}

func (w *Wallet) now() int64 {
	return w.Factory.Config().Clock.Time().UnixMilli()
}

// l1x returns the L1X chain pages transact on.
func (w *Wallet) l1x() chains.Chain {
	chain, _ := w.Factory.Config().Registry.ByChainID(chains.L1X, "1")
	return chain
}

// siteProvider returns the provider config origin set, or nil.
func (w *Wallet) siteProvider(origin string) (*providers.Attrib, error) {
	site, ok, err := w.Sites.Get(origin)
	if err != nil || !ok {
		return nil, err
	}
	return site.L1XProviderConfig, nil
}

// Service is the page-facing API.
type Service struct {
	w    *Wallet
	gate *Gate
	log  log.Logger
}

func NewService(w *Wallet) *Service {
	return &Service{
		w:    w,
		gate: NewGate(w.Sites),
		log:  log.New("module", "service"),
	}
}

func origin(r *http.Request) string {
	return r.Header.Get("Origin")
}

func result(data interface{}, err error) Response {
	if err != nil {
		return approval.Failure(err)
	}
	return approval.Success(data)
}

// serve authorizes action for the calling origin and writes handle's
// envelope to reply.
func (s *Service) serve(r *http.Request, action, from string, reply *Response, handle func(ctx context.Context, origin string) Response) error {
	o := origin(r)
	if err := s.gate.Authorize(action, o, from); err != nil {
		s.log.Debug("request refused", "action", action, "origin", o, "err", err)
		*reply = approval.Failure(err)
		return nil
	}
	*reply = handle(r.Context(), o)
	if reply.Status == approval.StatusFailure {
		s.log.Debug("request failed", "action", action, "origin", o, "err", reply.ErrorMessage)
	}
	return nil
}

func call[A any](r *http.Request, data json.RawMessage, reply *Response, method func(*http.Request, *A, *Response) error) error {
	args := new(A)
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, args); err != nil {
			*reply = approval.Failure(errs.Validationf(MsgInvalidRequestData))
			return nil
		}
	}
	return method(r, args, reply)
}

// Request dispatches the raw {action, data} envelope.
func (s *Service) Request(r *http.Request, args *MessageArgs, reply *Response) error {
	switch args.Action {
	case IsConnected:
		return call(r, args.Data, reply, s.IsConnected)
	case Connect:
		return call(r, args.Data, reply, s.Connect)
	case Disconnect:
		return call(r, args.Data, reply, s.Disconnect)
	case ListAccounts:
		return call(r, args.Data, reply, s.ListAccounts)
	case SendTransaction:
		return call(r, args.Data, reply, s.SendTransaction)
	case InitContract:
		return call(r, args.Data, reply, s.InitContract)
	case CallRequest:
		return call(r, args.Data, reply, s.CallRequest)
	case TransferNativeToken:
		return call(r, args.Data, reply, s.TransferNativeToken)
	case TransferToken:
		return call(r, args.Data, reply, s.TransferToken)
	case TransferNFT:
		return call(r, args.Data, reply, s.TransferNFT)
	case SignMessage:
		return call(r, args.Data, reply, s.SignMessage)
	case SignPayload:
		return call(r, args.Data, reply, s.SignPayload)
	case GetL1XProviderConfig:
		return call(r, args.Data, reply, s.GetL1XProviderConfig)
	case SetL1XProviderConfig:
		return call(r, args.Data, reply, s.SetL1XProviderConfig)
	case AccountState:
		return call(r, args.Data, reply, s.AccountState)
	default:
		return s.serve(r, args.Action, "", reply, func(context.Context, string) Response {
			return approval.Failure(errs.Validationf("Invalid action %s.", args.Action))
		})
	}
}

func (s *Service) IsConnected(r *http.Request, _ *EmptyArgs, reply *Response) error {
	return s.serve(r, IsConnected, "", reply, func(_ context.Context, origin string) Response {
		connected, err := s.w.Sites.IsConnected(origin)
		return result(map[string]bool{"isConnected": connected}, err)
	})
}

// ConnectRequest is shown to the user when a page asks to connect.
type ConnectRequest struct {
	AppName     string `json:"appName,omitempty"`
	ClusterType string `json:"clusterType,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
}

func (s *Service) Connect(r *http.Request, args *ConnectArgs, reply *Response) error {
	return s.serve(r, Connect, "", reply, func(ctx context.Context, origin string) Response {
		return s.ask(ctx, approval.Request{
			Kind:    approval.KindConnect,
			Site:    origin,
			FavIcon: args.FavIcon,
			Data: ConnectRequest{
				AppName:     args.AppName,
				ClusterType: args.ClusterType,
				Endpoint:    args.Endpoint,
			},
		})
	})
}

// Disconnect forgets the calling origin entirely.
func (s *Service) Disconnect(r *http.Request, _ *EmptyArgs, reply *Response) error {
	return s.serve(r, Disconnect, "", reply, func(_ context.Context, origin string) Response {
		return result(nil, s.w.Sites.Remove(origin))
	})
}

func (s *Service) ListAccounts(r *http.Request, _ *EmptyArgs, reply *Response) error {
	return s.serve(r, ListAccounts, "", reply, func(_ context.Context, origin string) Response {
		return result(s.w.Sites.Accounts(origin))
	})
}

func (s *Service) SendTransaction(r *http.Request, args *SendTransactionArgs, reply *Response) error {
	return s.serve(r, SendTransaction, args.From, reply, func(ctx context.Context, origin string) Response {
		return s.queue(ctx, origin, args.SiteInfo, args.From, args.TxOptions, &txs.StateChangeCall{
			ContractAddress: args.ContractAddress,
			FunctionName:    args.FunctionName,
			Arguments:       args.Args,
		})
	})
}

func (s *Service) InitContract(r *http.Request, args *InitContractArgs, reply *Response) error {
	return s.serve(r, InitContract, args.From, reply, func(ctx context.Context, origin string) Response {
		return s.queue(ctx, origin, args.SiteInfo, args.From, args.TxOptions, &txs.InitContract{
			BaseContractAddress: args.BaseContractAddress,
			Arguments:           args.Args,
		})
	})
}

func (s *Service) TransferNativeToken(r *http.Request, args *TransferArgs, reply *Response) error {
	return s.serve(r, TransferNativeToken, args.From, reply, func(ctx context.Context, origin string) Response {
		return s.queue(ctx, origin, args.SiteInfo, args.From, args.TxOptions, &txs.TransferNativeToken{
			To:           args.Receiver,
			Amount:       string(args.Value),
			Symbol:       s.w.l1x().Symbol,
			ResponseType: args.ResponseType,
		})
	})
}

func (s *Service) TransferToken(r *http.Request, args *TransferTokenArgs, reply *Response) error {
	return s.serve(r, TransferToken, args.From, reply, func(ctx context.Context, origin string) Response {
		return s.queue(ctx, origin, args.SiteInfo, args.From, args.TxOptions, &txs.TransferToken{
			To:           args.Receiver,
			Amount:       string(args.Value),
			TokenAddress: args.TokenAddress,
		})
	})
}

func (s *Service) TransferNFT(r *http.Request, args *TransferNFTArgs, reply *Response) error {
	return s.serve(r, TransferNFT, args.From, reply, func(ctx context.Context, origin string) Response {
		// An unparsable amount is reported as missing.
		amount, _ := strconv.ParseUint(string(args.Value), 10, 64)
		return s.queue(ctx, origin, args.SiteInfo, args.From, args.TxOptions, &txs.TransferNFT{
			To:                args.Receiver,
			CollectionAddress: args.CollectionAddress,
			TokenID:           string(args.TokenID),
			Amount:            amount,
		})
	})
}

// queue records a dapp transaction for approval and waits for the outcome.
func (s *Service) queue(ctx context.Context, origin string, site SiteInfo, from string, o TxOptions, payload txs.Payload) Response {
	attrib, err := s.w.siteProvider(origin)
	if err != nil {
		return approval.Failure(err)
	}
	chain := s.w.l1x()
	rpc := chain.RPC
	if attrib != nil && attrib.Endpoint != "" {
		rpc = attrib.Endpoint
	}

	requestID := s.w.Broker.NewRequestID()
	t := txs.New(txs.Common{
		Timestamp:   s.w.now(),
		Source:      txs.Dapp,
		Site:        origin,
		SiteFavIcon: site.FavIcon,
		RequestID:   requestID,
		NetworkType: chains.L1X,
		FeeLimit:    string(o.FeeLimit),
		Nonce:       string(o.Nonce),
		From:        from,
		ChainID:     chain.ID(),
		RPC:         rpc,
	}, payload)
	if err := t.Validate(); err != nil {
		return approval.Failure(err)
	}

	if _, err := s.w.Broker.Open(approval.Request{
		ID:      requestID,
		Kind:    approval.KindTransaction,
		Site:    origin,
		FavIcon: site.FavIcon,
		From:    from,
		Data:    t,
	}); err != nil {
		return approval.Failure(err)
	}
	err = s.w.Store.Update(func(tx *storage.Tx) error {
		return txs.Enqueue(tx, t)
	})
	if err != nil {
		s.w.Broker.Fail(requestID, err)
	}
	return s.wait(ctx, requestID)
}

// ask parks r for the approval surface and waits for the answer.
func (s *Service) ask(ctx context.Context, r approval.Request) Response {
	opened, err := s.w.Broker.Open(r)
	if err != nil {
		return approval.Failure(err)
	}
	return s.wait(ctx, opened.ID)
}

func (s *Service) wait(ctx context.Context, requestID string) Response {
	resp, err := s.w.Broker.Wait(ctx, requestID)
	if err != nil {
		return approval.Failure(err)
	}
	return resp
}

func (s *Service) CallRequest(r *http.Request, args *CallRequestArgs, reply *Response) error {
	return s.serve(r, CallRequest, "", reply, func(ctx context.Context, origin string) Response {
		attrib, err := s.w.siteProvider(origin)
		if err != nil {
			return approval.Failure(err)
		}
		v, err := s.w.Factory.New(chains.L1X, "", s.w.l1x().ID())
		if err != nil {
			return approval.Failure(err)
		}
		return result(v.ReadOnlyCall(ctx, &txs.StateChangeCall{
			ContractAddress: args.ContractAddress,
			FunctionName:    args.FunctionName,
			Arguments:       args.Args,
		}, attrib))
	})
}

// SignMessageRequest is shown to the user when a page asks for a signature.
type SignMessageRequest struct {
	AppName string `json:"appName,omitempty"`
	Message string `json:"message"`
}

func (s *Service) SignMessage(r *http.Request, args *SignMessageArgs, reply *Response) error {
	return s.serve(r, SignMessage, args.From, reply, func(ctx context.Context, origin string) Response {
		return s.ask(ctx, approval.Request{
			Kind:    approval.KindSignMessage,
			Site:    origin,
			FavIcon: args.FavIcon,
			From:    args.From,
			Data:    SignMessageRequest{AppName: args.AppName, Message: args.Message},
		})
	})
}

// SignPayload stages the payload for the approval surface and waits for
// the signature.
func (s *Service) SignPayload(r *http.Request, args *SignPayloadArgs, reply *Response) error {
	return s.serve(r, SignPayload, args.From, reply, func(ctx context.Context, origin string) Response {
		requestID := s.w.Broker.NewRequestID()
		staged := &PayloadToSign{
			URL:         origin,
			FavIcon:     args.FavIcon,
			AppName:     args.AppName,
			RequestID:   requestID,
			From:        args.From,
			Payload:     args.Payload,
			ClusterType: args.ClusterType,
			Endpoint:    args.Endpoint,
			Message:     args.Message,
		}
		if err := s.w.Store.Set(storage.PayloadToSign, staged); err != nil {
			return approval.Failure(err)
		}
		return s.ask(ctx, approval.Request{
			ID:      requestID,
			Kind:    approval.KindSignPayload,
			Site:    origin,
			FavIcon: args.FavIcon,
			From:    args.From,
			Data:    staged,
		})
	})
}

func (s *Service) GetL1XProviderConfig(r *http.Request, _ *EmptyArgs, reply *Response) error {
	return s.serve(r, GetL1XProviderConfig, "", reply, func(_ context.Context, origin string) Response {
		return result(s.w.siteProvider(origin))
	})
}

func (s *Service) SetL1XProviderConfig(r *http.Request, args *ProviderConfigArgs, reply *Response) error {
	return s.serve(r, SetL1XProviderConfig, "", reply, func(_ context.Context, origin string) Response {
		return result(nil, s.w.Sites.SetProviderConfig(origin, args.Attrib))
	})
}

func (s *Service) AccountState(r *http.Request, args *AccountStateArgs, reply *Response) error {
	return s.serve(r, AccountState, args.From, reply, func(ctx context.Context, origin string) Response {
		attrib, err := s.w.siteProvider(origin)
		if err != nil {
			return approval.Failure(err)
		}
		v, err := s.w.Factory.New(chains.L1X, args.From, s.w.l1x().ID())
		if err != nil {
			return approval.Failure(err)
		}
		return result(v.AccountState(ctx, args.From, attrib))
	})
}
