package solana

import (
	"context"
	"strings"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"
)

// RPC is the subset of cluster calls the minter and transferor make.
type RPC interface {
	LatestBlockhash(ctx context.Context) (string, error)
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	AccountExists(ctx context.Context, address string) (bool, error)
	SendTransaction(ctx context.Context, tx types.Transaction) (string, error)
	// SignatureStatus returns nil when the cluster has not seen sig yet.
	SignatureStatus(ctx context.Context, sig string) (*SignatureStatus, error)
}

type SignatureStatus struct {
	Commitment Commitment
	Err        any
}

// clusterRPC reads and simulates at confirmed commitment so a transfer can
// follow a mint that is confirmed but not yet finalized.
type clusterRPC struct {
	c *client.Client
}

// NewRPC dials nothing; requests go out lazily over JSON-RPC.
func NewRPC(endpoint string) RPC {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = rpc.DevnetRPCEndpoint
	}
	return &clusterRPC{c: client.NewClient(endpoint)}
}

func (r *clusterRPC) LatestBlockhash(ctx context.Context) (string, error) {
	latest, err := r.c.GetLatestBlockhashWithConfig(ctx, client.GetLatestBlockhashConfig{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", err
	}
	return latest.Blockhash, nil
}

func (r *clusterRPC) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	return r.c.GetMinimumBalanceForRentExemption(ctx, size)
}

func (r *clusterRPC) AccountExists(ctx context.Context, address string) (bool, error) {
	info, err := r.c.GetAccountInfoWithConfig(ctx, address, client.GetAccountInfoConfig{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "not found") ||
			strings.Contains(msg, "could not find account") ||
			strings.Contains(msg, "account does not exist") {
			return false, nil
		}
		return false, err
	}
	return info.Lamports > 0 || info.Owner != (common.PublicKey{}), nil
}

func (r *clusterRPC) SendTransaction(ctx context.Context, tx types.Transaction) (string, error) {
	return r.c.SendTransactionWithConfig(ctx, tx, client.SendTransactionConfig{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}

func (r *clusterRPC) SignatureStatus(ctx context.Context, sig string) (*SignatureStatus, error) {
	st, err := r.c.GetSignatureStatus(ctx, sig)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	out := &SignatureStatus{Err: st.Err}
	if st.ConfirmationStatus != nil {
		out.Commitment = Commitment(*st.ConfirmationStatus)
	}
	return out, nil
}
