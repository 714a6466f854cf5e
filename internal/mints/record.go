// Package mints keeps a ledger of pipeline runs so a minted token whose
// transfer failed can be found and handed over later.
package mints

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("mints: record not found")

type State string

const (
	StateReceived         State = "received"
	StateSafetyChecked    State = "safety_checked"
	StatePromptRewritten  State = "prompt_rewritten"
	StateConfigBuilt      State = "config_built"
	StateImageGenerated   State = "image_generated"
	StateImageUploaded    State = "image_uploaded"
	StateMetadataUploaded State = "metadata_uploaded"
	StateMinted           State = "minted"
	StateTransferred      State = "transferred"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// Record is one pipeline run, keyed by its session.
type Record struct {
	Session           string    `json:"session"`
	Prompt            string    `json:"prompt"`
	Recipient         string    `json:"recipient"`
	State             State     `json:"state"`
	FailedStep        string    `json:"failedStep,omitempty"`
	Error             string    `json:"error,omitempty"`
	Name              string    `json:"name,omitempty"`
	ImageURI          string    `json:"imageUri,omitempty"`
	MetadataURI       string    `json:"metadataUri,omitempty"`
	MintAddress       string    `json:"mintAddress,omitempty"`
	MintSignature     string    `json:"mintSignature,omitempty"`
	TransferSignature string    `json:"transferSignature,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Store persists records. Save replaces any record with the same session.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, session string) (Record, error)
	ListByState(ctx context.Context, state State, limit int) ([]Record, error)
}

func stamp(rec Record, now time.Time) Record {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return rec
}
