// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package providers

import (
	"context"

	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
)

// SolanaClient is satisfied by *rpc.Client from solana-go.
type SolanaClient interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment solrpc.CommitmentType) (*solrpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment solrpc.CommitmentType) (*solrpc.GetTokenAccountBalanceResult, error)
	GetTokenSupply(ctx context.Context, mint solana.PublicKey, commitment solrpc.CommitmentType) (*solrpc.GetTokenSupplyResult, error)
}

// GetSPLBalance reads the balance of owner's associated token account for
// mint. A wallet without an associated account holds zero.
func GetSPLBalance(ctx context.Context, c SolanaClient, owner, mint solana.PublicKey) (string, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return "", err
	}
	res, err := c.GetTokenAccountBalance(ctx, ata, solrpc.CommitmentConfirmed)
	if err != nil {
		return "0", nil
	}
	if res == nil || res.Value == nil {
		return "0", nil
	}
	return res.Value.Amount, nil
}
