package app

import (
	"context"
	"fmt"
	"log"

	"github.com/aipowergrid/imagine-mint/internal/aipg"
	"github.com/aipowergrid/imagine-mint/internal/config"
	"github.com/aipowergrid/imagine-mint/internal/imagegen"
	"github.com/aipowergrid/imagine-mint/internal/llm"
	"github.com/aipowergrid/imagine-mint/internal/mints"
	"github.com/aipowergrid/imagine-mint/internal/nft"
	"github.com/aipowergrid/imagine-mint/internal/pipeline"
	"github.com/aipowergrid/imagine-mint/internal/progress"
	"github.com/aipowergrid/imagine-mint/internal/solana"
	"github.com/aipowergrid/imagine-mint/internal/storage"
)

// New builds every long-lived dependency once from cfg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	wallet, err := solana.ParseKeypair(cfg.MinterPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("MINTER_PRIVATE_KEY: %w", err)
	}
	minterAddress := wallet.PublicKey.ToBase58()
	log.Printf("🔑 minter wallet %s on %s", minterAddress, cfg.SolanaCluster)

	chat := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)

	var provider imagegen.Provider
	switch cfg.ImageProvider {
	case "grid":
		grid := aipg.NewClient(cfg.GridAPIURL, cfg.GridClientAgent, cfg.GridAPIKey)
		provider = imagegen.NewGridProvider(grid, cfg.GridModel)
	default:
		provider = imagegen.NewOpenAIProvider(chat, cfg.OpenAIImageModel, cfg.OpenAIImageSize)
	}

	var uploader storage.Uploader
	switch cfg.StorageBackend {
	case "s3":
		uploader, err = storage.NewS3Uploader(ctx, storage.S3Settings{
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			GatewayURL:      cfg.S3GatewayURL,
		})
		if err != nil {
			return nil, err
		}
	default:
		uploader = storage.NewIrysUploader(cfg.IrysUploaderURL, cfg.IrysAPIKey)
	}

	var (
		ledger  mints.Store
		closers []func() error
	)
	if cfg.DatabaseURL != "" {
		pg, err := mints.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("mints schema: %w", err)
		}
		ledger = pg
		closers = append(closers, pg.Close)
		log.Printf("🗄️  mint ledger on postgres")
	} else {
		ledger = mints.NewMemoryStore(cfg.MintsFile, 0)
	}

	treasury, err := solana.Treasury(cfg.TreasuryProgramID, cfg.TreasurySeed)
	if err != nil {
		return nil, fmt.Errorf("TREASURY_PROGRAM_ID: %w", err)
	}

	rpc := solana.NewRPC(cfg.SolanaRPCURL)
	settings := solana.Settings{
		Cluster:        cfg.SolanaCluster,
		ConfirmTimeout: cfg.SolanaConfirmTimeout,
		PollInterval:   cfg.SolanaPollInterval,
	}
	notifier := progress.NewNotifier()

	orchestrator := pipeline.New(pipeline.Deps{
		Safety:      llm.NewClassifier(chat, cfg.OpenAIChatModel, cfg.SafetyCacheTTL),
		Rewriter:    llm.NewRewriter(chat, cfg.OpenAIChatModel),
		Synthesizer: llm.NewSynthesizer(chat, cfg.OpenAIChatModel),
		Images:      imagegen.NewProducer(provider, cfg.UploadDir),
		Publisher:   storage.NewPublisher(uploader),
		Minter:      solana.NewMinter(rpc, wallet, settings),
		Transferor:  solana.NewTransferor(rpc, wallet, settings),
		Notifier:    notifier,
		Ledger:      ledger,
		Defaults: nft.Defaults{
			Symbol:             cfg.NFTSymbol,
			RoyaltyBasisPoints: cfg.NFTRoyaltyBPS,
			Creators:           []nft.Creator{{Address: minterAddress, Share: 100}},
		},
	})

	return NewWithComponents(cfg, Components{
		Pipeline: orchestrator,
		Notifier: notifier,
		Ledger:   ledger,
		Chain: ChainInfo{
			Cluster:         cfg.SolanaCluster,
			RPCURL:          cfg.SolanaRPCURL,
			Treasury:        treasury,
			DepositLamports: cfg.DepositLamports,
			Minter:          minterAddress,
		},
		Closers: closers,
	}), nil
}
