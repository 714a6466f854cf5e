package solana

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	"github.com/aipowergrid/imagine-mint/internal/nft"
)

type MintRequest struct {
	URI                string
	Name               string
	Symbol             string
	RoyaltyBasisPoints int
	Creators           []nft.Creator
}

func (r MintRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.URI) == "":
		return errors.New("metadata uri is required")
	case len(r.URI) > nft.MaxURILength:
		return fmt.Errorf("metadata uri exceeds %d bytes", nft.MaxURILength)
	case strings.TrimSpace(r.Name) == "":
		return errors.New("name is required")
	case len(r.Name) > nft.MaxNameLength:
		return fmt.Errorf("name exceeds %d bytes", nft.MaxNameLength)
	case len(r.Symbol) > nft.MaxSymbolLength:
		return fmt.Errorf("symbol exceeds %d bytes", nft.MaxSymbolLength)
	case r.RoyaltyBasisPoints < 0 || r.RoyaltyBasisPoints > nft.MaxRoyaltyBasisPoints:
		return fmt.Errorf("royalty basis points %d out of range", r.RoyaltyBasisPoints)
	}
	return nft.ValidateCreators(r.Creators)
}

type MintResult struct {
	MintAddress string `json:"mint"`
	Signature   string `json:"signature"`
}

// Minter creates one-of-one tokens owned by its wallet.
type Minter struct {
	rpc      RPC
	wallet   types.Account
	settings Settings
}

func NewMinter(rpc RPC, wallet types.Account, settings Settings) *Minter {
	return &Minter{rpc: rpc, wallet: wallet, settings: settings.withDefaults()}
}

// Address is the minter wallet's public key.
func (m *Minter) Address() string {
	return m.wallet.PublicKey.ToBase58()
}

// Mint creates the mint, its metadata and master edition, and mints the single
// unit into the minter's token account, all in one transaction. It returns
// once the transaction is confirmed. When confirmation times out the result is
// returned alongside the error, since the token may exist.
func (m *Minter) Mint(ctx context.Context, req MintRequest) (MintResult, error) {
	if err := req.Validate(); err != nil {
		return MintResult{}, fmt.Errorf("solana: mint request: %w", err)
	}
	creators, err := m.metadataCreators(req.Creators)
	if err != nil {
		return MintResult{}, err
	}

	payer := m.wallet.PublicKey
	mint := types.NewAccount()

	ata, _, err := common.FindAssociatedTokenAddress(payer, mint.PublicKey)
	if err != nil {
		return MintResult{}, fmt.Errorf("solana: derive token account: %w", err)
	}
	metadataPubkey, err := token_metadata.GetTokenMetaPubkey(mint.PublicKey)
	if err != nil {
		return MintResult{}, fmt.Errorf("solana: derive metadata account: %w", err)
	}
	masterEditionPubkey, err := token_metadata.GetMasterEdition(mint.PublicKey)
	if err != nil {
		return MintResult{}, fmt.Errorf("solana: derive master edition: %w", err)
	}

	mintRent, err := m.rpc.MinimumBalanceForRentExemption(ctx, token.MintAccountSize)
	if err != nil {
		return MintResult{}, fmt.Errorf("solana: rent exemption: %w", err)
	}
	blockhash, err := m.rpc.LatestBlockhash(ctx)
	if err != nil {
		return MintResult{}, fmt.Errorf("solana: latest blockhash: %w", err)
	}

	maxSupply := uint64(0)
	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: []types.Account{m.wallet, mint},
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        payer,
			RecentBlockhash: blockhash,
			Instructions: []types.Instruction{
				system.CreateAccount(system.CreateAccountParam{
					From:     payer,
					New:      mint.PublicKey,
					Owner:    common.TokenProgramID,
					Lamports: mintRent,
					Space:    token.MintAccountSize,
				}),
				token.InitializeMint(token.InitializeMintParam{
					Decimals:   0,
					Mint:       mint.PublicKey,
					MintAuth:   payer,
					FreezeAuth: &payer,
				}),
				token_metadata.CreateMetadataAccountV3(token_metadata.CreateMetadataAccountV3Param{
					Metadata:                metadataPubkey,
					Mint:                    mint.PublicKey,
					MintAuthority:           payer,
					UpdateAuthority:         payer,
					Payer:                   payer,
					UpdateAuthorityIsSigner: true,
					IsMutable:               true,
					Data: token_metadata.DataV2{
						Name:                 req.Name,
						Symbol:               req.Symbol,
						Uri:                  req.URI,
						SellerFeeBasisPoints: uint16(req.RoyaltyBasisPoints),
						Creators:             &creators,
					},
				}),
				associated_token_account.CreateAssociatedTokenAccount(associated_token_account.CreateAssociatedTokenAccountParam{
					Funder:                 payer,
					Owner:                  payer,
					Mint:                   mint.PublicKey,
					AssociatedTokenAccount: ata,
				}),
				token.MintTo(token.MintToParam{
					Mint:   mint.PublicKey,
					To:     ata,
					Auth:   payer,
					Amount: 1,
				}),
				token_metadata.CreateMasterEditionV3(token_metadata.CreateMasterEditionParam{
					Edition:         masterEditionPubkey,
					Mint:            mint.PublicKey,
					UpdateAuthority: payer,
					MintAuthority:   payer,
					Metadata:        metadataPubkey,
					Payer:           payer,
					MaxSupply:       &maxSupply,
				}),
			},
		}),
	})
	if err != nil {
		return MintResult{}, fmt.Errorf("solana: build mint transaction: %w", err)
	}

	sig, err := m.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return MintResult{}, fmt.Errorf("solana: send mint transaction: %w", err)
	}
	log.Printf("[solana] 🔨 mint submitted mint=%s sig=%s", maskShort(mint.PublicKey.ToBase58()), maskShort(sig))

	result := MintResult{MintAddress: mint.PublicKey.ToBase58(), Signature: sig}
	if err := Confirm(ctx, m.rpc, sig, CommitmentConfirmed, m.settings); err != nil {
		if errors.Is(err, ErrConfirmationFailed) {
			return MintResult{}, err
		}
		// The transaction may still land.
		log.Printf("[solana] ⚠️ mint unconfirmed mint=%s sig=%s: %v", result.MintAddress, sig, err)
		return result, err
	}

	log.Printf("[solana] ✅ mint confirmed mint=%s", result.MintAddress)
	return result, nil
}

// metadataCreators marks the minter as verified; it signs the transaction.
func (m *Minter) metadataCreators(in []nft.Creator) ([]token_metadata.Creator, error) {
	out := make([]token_metadata.Creator, 0, len(in))
	for _, c := range in {
		pk, err := ParseAddress(c.Address)
		if err != nil {
			return nil, fmt.Errorf("solana: creator: %w", err)
		}
		out = append(out, token_metadata.Creator{
			Address:  pk,
			Verified: pk == m.wallet.PublicKey,
			Share:    uint8(c.Share),
		})
	}
	return out, nil
}
