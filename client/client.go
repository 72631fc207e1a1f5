// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client calls a running wallet the way pages and the approval
// surface do.
package client

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/xwallet/approval"
	"github.com/ava-labs/xwallet/service"
)

var _ Client = (*client)(nil)

// Client defines the page operations.
type Client interface {
	// Request sends action and decodes a successful envelope's data into
	// out. A failure envelope is returned as an error carrying its message.
	Request(ctx context.Context, action string, data interface{}, out interface{}) error

	IsConnected(ctx context.Context) (bool, error)
	// Connect blocks until the user answers.
	Connect(ctx context.Context, args *service.ConnectArgs) error
	Disconnect(ctx context.Context) error
	ListAccounts(ctx context.Context) ([]string, error)
	// TransferNativeToken blocks until the transaction is approved and
	// returns its hash.
	TransferNativeToken(ctx context.Context, args *service.TransferArgs) (string, error)
	SignMessage(ctx context.Context, from, message string) (string, error)
}

// New creates a page client for the wallet at uri. Requests carry origin in
// the Origin header.
func New(uri, origin string) Client {
	return &client{
		req:    rpc.NewEndpointRequester(uri + service.PagePath),
		origin: origin,
	}
}

type client struct {
	req    rpc.EndpointRequester
	origin string
}

type envelope struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Data         json.RawMessage `json:"data"`
}

func (cli *client) Request(ctx context.Context, action string, data interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	resp := new(envelope)
	err = cli.req.SendRequest(ctx,
		service.Name+".request",
		&service.MessageArgs{Action: action, Data: raw},
		resp,
		rpc.WithHeader("Origin", cli.origin),
	)
	if err != nil {
		return err
	}
	if resp.Status != approval.StatusSuccess {
		return errors.New(resp.ErrorMessage)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Data, out)
}

func (cli *client) IsConnected(ctx context.Context) (bool, error) {
	var reply struct {
		IsConnected bool `json:"isConnected"`
	}
	err := cli.Request(ctx, service.IsConnected, nil, &reply)
	return reply.IsConnected, err
}

func (cli *client) Connect(ctx context.Context, args *service.ConnectArgs) error {
	return cli.Request(ctx, service.Connect, args, nil)
}

func (cli *client) Disconnect(ctx context.Context) error {
	return cli.Request(ctx, service.Disconnect, nil, nil)
}

func (cli *client) ListAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := cli.Request(ctx, service.ListAccounts, nil, &accounts)
	return accounts, err
}

func (cli *client) TransferNativeToken(ctx context.Context, args *service.TransferArgs) (string, error) {
	var reply struct {
		Hash string `json:"hash"`
	}
	err := cli.Request(ctx, service.TransferNativeToken, args, &reply)
	return reply.Hash, err
}

func (cli *client) SignMessage(ctx context.Context, from, message string) (string, error) {
	var signature string
	err := cli.Request(ctx, service.SignMessage, &service.SignMessageArgs{From: from, Message: message}, &signature)
	return signature, err
}
