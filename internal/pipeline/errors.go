package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("pipeline: invalid request")
	ErrUnsafePrompt   = errors.New("pipeline: unsafe prompt")
	ErrNotRetryable   = errors.New("pipeline: run is not waiting for a transfer")
	ErrSessionInUse   = errors.New("pipeline: session already used")
)

type Step string

const (
	StepSafety         Step = "safety_check"
	StepRewrite        Step = "prompt_rewrite"
	StepMetadata       Step = "metadata"
	StepImage          Step = "image"
	StepUploadImage    Step = "upload_image"
	StepUploadMetadata Step = "upload_metadata"
	StepMint           Step = "mint"
	StepTransfer       Step = "transfer"
)

// StepError records which step of a run failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
