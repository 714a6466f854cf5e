package solana

import (
	"context"
	"fmt"
	"log"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"
)

type TransferReceipt struct {
	Signature      string `json:"signature"`
	SenderURL      string `json:"sender"`
	ReceiverURL    string `json:"receiver"`
	TransactionURL string `json:"transaction"`
}

// Transferor moves tokens held by its wallet to other wallets.
type Transferor struct {
	rpc      RPC
	wallet   types.Account
	settings Settings
	explorer Explorer
}

func NewTransferor(rpc RPC, wallet types.Account, settings Settings) *Transferor {
	settings = settings.withDefaults()
	return &Transferor{
		rpc:      rpc,
		wallet:   wallet,
		settings: settings,
		explorer: NewExplorer(settings.Cluster),
	}
}

// Transfer sends the single unit of mintAddress to recipient, creating the
// recipient's token account when needed, and waits for finalization.
func (t *Transferor) Transfer(ctx context.Context, mintAddress, recipient string) (TransferReceipt, error) {
	mint, err := ParseAddress(mintAddress)
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("solana: mint: %w", err)
	}
	to, err := ParseAddress(recipient)
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("solana: recipient: %w", err)
	}
	if !IsOnCurve(to) {
		log.Printf("[solana] ⚠️ recipient %s is off curve (program-derived)", maskShort(recipient))
	}

	from := t.wallet.PublicKey
	fromATA, _, err := common.FindAssociatedTokenAddress(from, mint)
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("solana: derive source account: %w", err)
	}
	toATA, _, err := common.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("solana: derive destination account: %w", err)
	}

	toExists, err := t.rpc.AccountExists(ctx, toATA.ToBase58())
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("solana: check destination account: %w", err)
	}

	ins := make([]types.Instruction, 0, 2)
	if !toExists {
		ins = append(ins, associated_token_account.CreateAssociatedTokenAccount(associated_token_account.CreateAssociatedTokenAccountParam{
			Funder:                 from,
			Owner:                  to,
			Mint:                   mint,
			AssociatedTokenAccount: toATA,
		}))
	}
	ins = append(ins, token.Transfer(token.TransferParam{
		From:   fromATA,
		To:     toATA,
		Auth:   from,
		Amount: 1,
	}))

	blockhash, err := t.rpc.LatestBlockhash(ctx)
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("solana: latest blockhash: %w", err)
	}
	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        from,
			RecentBlockhash: blockhash,
			Instructions:    ins,
		}),
		Signers: []types.Account{t.wallet},
	})
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("solana: build transfer transaction: %w", err)
	}

	sig, err := t.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("solana: send transfer transaction: %w", err)
	}
	log.Printf("[solana] 📬 transfer submitted mint=%s to=%s sig=%s createdATA=%t",
		maskShort(mintAddress), maskShort(recipient), maskShort(sig), !toExists)

	if err := Confirm(ctx, t.rpc, sig, CommitmentFinalized, t.settings); err != nil {
		return TransferReceipt{}, err
	}

	return TransferReceipt{
		Signature:      sig,
		SenderURL:      t.explorer.Address(from.ToBase58()),
		ReceiverURL:    t.explorer.Tokens(to.ToBase58()),
		TransactionURL: t.explorer.Tx(sig),
	}, nil
}
