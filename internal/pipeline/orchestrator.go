// Package pipeline runs one prompt through safety check, rewrite, metadata
// synthesis, image generation, publishing, minting and transfer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/aipowergrid/imagine-mint/internal/llm"
	"github.com/aipowergrid/imagine-mint/internal/mints"
	"github.com/aipowergrid/imagine-mint/internal/nft"
	"github.com/aipowergrid/imagine-mint/internal/progress"
	"github.com/aipowergrid/imagine-mint/internal/prompts"
	"github.com/aipowergrid/imagine-mint/internal/solana"
)

const SuccessMessage = "Transfer successful!🥳"

// Progress messages, in emission order.
const (
	msgBegin          = "Let's begin! 🪄"
	msgSafety         = "Checking prompt safety 👮‍♀️"
	msgImageFormat    = "Creating your image '%s' 🎨"
	msgUploadImage    = "Uploading your Image🔼"
	msgUploadMetadata = "Uploading the Metadata⏫"
	msgMint           = "Minting your NFT🔨"
	msgTransfer       = "Transferring your NFT 📬"
)

type SafetyChecker interface {
	Classify(ctx context.Context, prompt string) (llm.Verdict, error)
}

type PromptRewriter interface {
	Rewrite(ctx context.Context, prompt string) (prompts.Rewrite, error)
}

type TraitSynthesizer interface {
	Synthesize(ctx context.Context, rewritten string) (nft.Traits, error)
}

type ImageProducer interface {
	// Produce returns the local path and MIME type of the stored image.
	Produce(ctx context.Context, prompt, fileName string) (string, string, error)
	Remove(path string) error
}

type AssetPublisher interface {
	PublishImage(ctx context.Context, path, mimeType string) (string, error)
	PublishMetadata(ctx context.Context, doc nft.Metadata) (string, error)
}

type TokenMinter interface {
	Mint(ctx context.Context, req solana.MintRequest) (solana.MintResult, error)
}

type TokenTransferor interface {
	Transfer(ctx context.Context, mintAddress, recipient string) (solana.TransferReceipt, error)
}

type Deps struct {
	Safety      SafetyChecker
	Rewriter    PromptRewriter
	Synthesizer TraitSynthesizer
	Images      ImageProducer
	Publisher   AssetPublisher
	Minter      TokenMinter
	Transferor  TokenTransferor
	Notifier    *progress.Notifier
	Ledger      mints.Store
	Defaults    nft.Defaults
}

type Result struct {
	Message     string `json:"message"`
	Sender      string `json:"sender"`
	Receiver    string `json:"receiver"`
	Transaction string `json:"transaction"`
	Mint        string `json:"mint"`
	Session     string `json:"session"`
}

type Orchestrator struct {
	deps Deps
	// busy holds sessions with a run or transfer retry in progress.
	busy sync.Map
}

func New(deps Deps) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = progress.NewNotifier()
	}
	if deps.Ledger == nil {
		deps.Ledger = mints.NewMemoryStore("", 0)
	}
	return &Orchestrator{deps: deps}
}

// Run executes every step in order and stops at the first failure. Every
// call that gets as far as minting creates a new token. A session that is
// already in the ledger is refused with ErrSessionInUse.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Session == "" {
		req.Session = uuid.NewString()
	}
	if err := o.claim(ctx, req.Session); err != nil {
		return nil, err
	}
	defer o.busy.Delete(req.Session)

	rec := mints.Record{
		Session:   req.Session,
		Prompt:    req.Prompt,
		Recipient: req.Address,
		State:     mints.StateReceived,
	}
	o.save(ctx, &rec)

	o.emit(req.Session, 0, msgBegin)
	o.emit(req.Session, 1, msgSafety)

	verdict, err := o.deps.Safety.Classify(ctx, req.Prompt)
	if err != nil {
		return nil, o.fail(ctx, &rec, StepSafety, err)
	}
	if !verdict.Safe() {
		log.Printf("[pipeline] 🚫 unsafe prompt session=%s verdict=%q", req.Session, verdict)
		return nil, o.fail(ctx, &rec, StepSafety, ErrUnsafePrompt)
	}
	o.advance(ctx, &rec, mints.StateSafetyChecked)

	rewrite, err := o.deps.Rewriter.Rewrite(ctx, req.Prompt)
	if err != nil {
		return nil, o.fail(ctx, &rec, StepRewrite, err)
	}
	o.advance(ctx, &rec, mints.StatePromptRewritten)
	enhanced := rewrite.String()

	traits, err := o.deps.Synthesizer.Synthesize(ctx, enhanced)
	if err != nil {
		return nil, o.fail(ctx, &rec, StepMetadata, err)
	}
	cfg := nft.BuildConfig(traits, o.deps.Defaults, imageFileName(req.Session))
	if err := cfg.Validate(); err != nil {
		return nil, o.fail(ctx, &rec, StepMetadata, err)
	}
	rec.Name = cfg.DisplayName
	o.advance(ctx, &rec, mints.StateConfigBuilt)

	o.emit(req.Session, 2, fmt.Sprintf(msgImageFormat, cfg.DisplayName))
	path, mimeType, err := o.deps.Images.Produce(ctx, prompts.ImagePrompt(enhanced), cfg.ImageFileName)
	if err != nil {
		return nil, o.fail(ctx, &rec, StepImage, err)
	}
	if mimeType != "" {
		cfg.ImageMimeType = mimeType
	}
	o.advance(ctx, &rec, mints.StateImageGenerated)

	o.emit(req.Session, 3, msgUploadImage)
	imageURI, err := o.deps.Publisher.PublishImage(ctx, path, cfg.ImageMimeType)
	if err != nil {
		return nil, o.fail(ctx, &rec, StepUploadImage, err)
	}
	rec.ImageURI = imageURI
	o.advance(ctx, &rec, mints.StateImageUploaded)

	o.emit(req.Session, 4, msgUploadMetadata)
	metadataURI, err := o.deps.Publisher.PublishMetadata(ctx, nft.NewMetadata(cfg, imageURI))
	if err != nil {
		return nil, o.fail(ctx, &rec, StepUploadMetadata, err)
	}
	rec.MetadataURI = metadataURI
	o.advance(ctx, &rec, mints.StateMetadataUploaded)

	if err := o.deps.Images.Remove(path); err != nil {
		log.Printf("[pipeline] ⚠️ could not delete %s: %v", path, err)
	}

	o.emit(req.Session, 5, msgMint)
	minted, err := o.deps.Minter.Mint(ctx, solana.MintRequest{
		URI:                metadataURI,
		Name:               cfg.DisplayName,
		Symbol:             cfg.Symbol,
		RoyaltyBasisPoints: cfg.RoyaltyBasisPoints,
		Creators:           cfg.Creators,
	})
	// A mint whose confirmation is unknown still carries its address so the
	// token can be found and handed over later.
	rec.MintAddress = minted.MintAddress
	rec.MintSignature = minted.Signature
	if err != nil {
		return nil, o.fail(ctx, &rec, StepMint, err)
	}
	o.advance(ctx, &rec, mints.StateMinted)

	return o.transfer(ctx, &rec, req.Address)
}

// RetryTransfer hands over a token whose transfer failed, optionally to a
// different recipient. It never mints.
func (o *Orchestrator) RetryTransfer(ctx context.Context, session, recipient string) (*Result, error) {
	if _, busy := o.busy.LoadOrStore(session, struct{}{}); busy {
		return nil, ErrNotRetryable
	}
	defer o.busy.Delete(session)

	rec, err := o.deps.Ledger.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if !TransferRetryable(rec) {
		return nil, ErrNotRetryable
	}
	if recipient != "" {
		rec.Recipient = recipient
	}
	rec.FailedStep = ""
	rec.Error = ""
	log.Printf("[pipeline] 🔁 retrying transfer session=%s mint=%s", session, rec.MintAddress)
	return o.transfer(ctx, &rec, rec.Recipient)
}

// TransferRetryable reports whether rec holds a token that may have been
// minted but never reached its recipient. A mint that failed with its address
// recorded timed out waiting for confirmation; if it never landed the retried
// transfer fails and the record stays retryable.
func TransferRetryable(rec mints.Record) bool {
	if rec.State != mints.StateFailed || rec.MintAddress == "" {
		return false
	}
	return rec.FailedStep == string(StepTransfer) || rec.FailedStep == string(StepMint)
}

// claim reserves session for one run. A session already in the ledger is
// refused so an earlier record, and any token it tracks, is never replaced.
func (o *Orchestrator) claim(ctx context.Context, session string) error {
	if _, busy := o.busy.LoadOrStore(session, struct{}{}); busy {
		return ErrSessionInUse
	}
	_, err := o.deps.Ledger.Get(ctx, session)
	switch {
	case errors.Is(err, mints.ErrNotFound):
		return nil
	case err == nil:
		err = ErrSessionInUse
	default:
		err = fmt.Errorf("pipeline: look up session: %w", err)
	}
	o.busy.Delete(session)
	return err
}

func (o *Orchestrator) transfer(ctx context.Context, rec *mints.Record, recipient string) (*Result, error) {
	o.emit(rec.Session, 6, msgTransfer)
	receipt, err := o.deps.Transferor.Transfer(ctx, rec.MintAddress, recipient)
	if err != nil {
		return nil, o.fail(ctx, rec, StepTransfer, err)
	}
	rec.TransferSignature = receipt.Signature
	o.advance(ctx, rec, mints.StateTransferred)
	o.advance(ctx, rec, mints.StateCompleted)

	log.Printf("[pipeline] 🥳 session=%s mint=%s delivered", rec.Session, rec.MintAddress)
	return &Result{
		Message:     SuccessMessage,
		Sender:      receipt.SenderURL,
		Receiver:    receipt.ReceiverURL,
		Transaction: receipt.TransactionURL,
		Mint:        rec.MintAddress,
		Session:     rec.Session,
	}, nil
}

func (o *Orchestrator) emit(session string, step int, message string) {
	o.deps.Notifier.Publish(progress.Event{Session: session, Step: step, Message: message})
}

func (o *Orchestrator) advance(ctx context.Context, rec *mints.Record, state mints.State) {
	rec.State = state
	o.save(ctx, rec)
}

func (o *Orchestrator) fail(ctx context.Context, rec *mints.Record, step Step, err error) error {
	rec.State = mints.StateFailed
	rec.FailedStep = string(step)
	rec.Error = err.Error()
	o.save(ctx, rec)

	if !errors.Is(err, ErrUnsafePrompt) {
		log.Printf("[pipeline] ❌ session=%s step=%s err=%v", rec.Session, step, err)
	}
	return &StepError{Step: step, Err: err}
}

// save writes rec to the ledger. Ledger errors never fail the run.
func (o *Orchestrator) save(ctx context.Context, rec *mints.Record) {
	if err := o.deps.Ledger.Save(context.WithoutCancel(ctx), *rec); err != nil {
		log.Printf("[pipeline] ledger write failed session=%s state=%s: %v", rec.Session, rec.State, err)
	}
}

func imageFileName(session string) string {
	return "image_" + session + ".png"
}
