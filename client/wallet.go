// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/xwallet/approval"
	"github.com/ava-labs/xwallet/dispatch"
	"github.com/ava-labs/xwallet/service"
	"github.com/ava-labs/xwallet/txs"
)

var _ WalletClient = (*walletClient)(nil)

// WalletClient defines the approval surface operations.
type WalletClient interface {
	ListRequests(ctx context.Context) ([]approval.Request, error)
	ListPending(ctx context.Context) ([]*txs.Transaction, error)
	Approve(ctx context.Context, id string) (string, error)
	Reject(ctx context.Context, id string) error
	ApproveConnect(ctx context.Context, requestID string, accounts []string) error
	ApproveSignMessage(ctx context.Context, requestID string) (string, error)
	WindowClosed(ctx context.Context, requestID string) error
}

func NewWallet(uri string) WalletClient {
	return &walletClient{req: rpc.NewEndpointRequester(uri + service.InternalPath)}
}

type walletClient struct {
	req rpc.EndpointRequester
}

func (cli *walletClient) ListRequests(ctx context.Context) ([]approval.Request, error) {
	resp := new(service.RequestsReply)
	err := cli.req.SendRequest(ctx, service.WalletName+".listRequests", struct{}{}, resp)
	return resp.Requests, err
}

func (cli *walletClient) ListPending(ctx context.Context) ([]*txs.Transaction, error) {
	resp := new(service.TransactionsReply)
	err := cli.req.SendRequest(ctx, service.WalletName+".listPending", struct{}{}, resp)
	return resp.Transactions, err
}

func (cli *walletClient) Approve(ctx context.Context, id string) (string, error) {
	resp := new(dispatch.Result)
	err := cli.req.SendRequest(ctx, service.WalletName+".approve", &service.IDArgs{ID: id}, resp)
	return resp.Hash, err
}

func (cli *walletClient) Reject(ctx context.Context, id string) error {
	return cli.req.SendRequest(ctx, service.WalletName+".reject", &service.IDArgs{ID: id}, &api.EmptyReply{})
}

func (cli *walletClient) ApproveConnect(ctx context.Context, requestID string, accounts []string) error {
	return cli.req.SendRequest(ctx,
		service.WalletName+".approveConnect",
		&service.ApproveConnectArgs{RequestID: requestID, Accounts: accounts},
		&api.EmptyReply{},
	)
}

func (cli *walletClient) ApproveSignMessage(ctx context.Context, requestID string) (string, error) {
	resp := new(service.SignatureReply)
	err := cli.req.SendRequest(ctx, service.WalletName+".approveSignMessage", &service.RequestIDArgs{RequestID: requestID}, resp)
	return resp.Signature, err
}

func (cli *walletClient) WindowClosed(ctx context.Context, requestID string) error {
	return cli.req.SendRequest(ctx, service.WalletName+".windowClosed", &service.RequestIDArgs{RequestID: requestID}, &api.EmptyReply{})
}
