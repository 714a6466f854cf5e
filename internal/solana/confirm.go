package solana

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

var ErrConfirmationFailed = errors.New("solana: transaction failed on chain")

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	}
	return 0
}

// Reaches reports whether c is at least as strong as want.
func (c Commitment) Reaches(want Commitment) bool {
	return c.rank() > 0 && c.rank() >= want.rank()
}

// Settings are shared by the minter and the transferor.
type Settings struct {
	Cluster        string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Cluster == "" {
		s.Cluster = "devnet"
	}
	if s.ConfirmTimeout <= 0 {
		s.ConfirmTimeout = 90 * time.Second
	}
	if s.PollInterval <= 0 {
		s.PollInterval = time.Second
	}
	return s
}

// Confirm polls the signature until it reaches want, fails on chain or the
// timeout expires.
func Confirm(ctx context.Context, r RPC, sig string, want Commitment, s Settings) error {
	s = s.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, s.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		status, err := r.SignatureStatus(ctx, sig)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return fmt.Errorf("solana: confirm %s: %w", maskShort(sig), ctx.Err())
			}
			log.Printf("[solana] status poll error sig=%s err=%v", maskShort(sig), err)
		case status == nil:
		case status.Err != nil:
			return fmt.Errorf("%w: sig=%s err=%v", ErrConfirmationFailed, sig, status.Err)
		case status.Commitment.Reaches(want):
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("solana: confirm %s at %s: %w", maskShort(sig), want, ctx.Err())
		case <-ticker.C:
		}
	}
}
