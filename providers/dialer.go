// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package providers holds the chain clients used by the wallet. Clients are
// stateless: a new one is dialed for every operation.
package providers

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	solrpc "github.com/gagliardetto/solana-go/rpc"
)

// Attrib overrides where a client connects. Sites carry one as their
// provider config.
type Attrib struct {
	ClusterType string `json:"clusterType"`
	Endpoint    string `json:"endpoint"`
}

// Dialer creates chain clients.
type Dialer interface {
	L1X(attrib Attrib) L1XClient
	EVM(ctx context.Context, rpc string) (EVMClient, error)
	Solana(rpc string) SolanaClient
}

var _ Dialer = NetworkDialer{}

// NetworkDialer connects to real nodes.
type NetworkDialer struct{}

func (NetworkDialer) L1X(attrib Attrib) L1XClient {
	return NewL1XClient(attrib)
}

func (NetworkDialer) EVM(ctx context.Context, rpc string) (EVMClient, error) {
	return ethclient.DialContext(ctx, rpc)
}

func (NetworkDialer) Solana(rpc string) SolanaClient {
	return solrpc.New(rpc)
}
