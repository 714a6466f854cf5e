package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aipowergrid/imagine-mint/internal/mints"
	"github.com/aipowergrid/imagine-mint/internal/pipeline"
)

const (
	invalidInputMessage = "Invalid input: Ensure both user_prompt and address are provided as strings."
	unsafePromptMessage = "Unsafe prompt detected"
	processingError     = "Error processing the request"
)

var errRateLimited = errors.New("too many requests, try again shortly")

func (a *App) handleImagine(w http.ResponseWriter, r *http.Request) {
	req, err := pipeline.RequestFromQuery(r.URL.Query())
	if err != nil {
		writeText(w, http.StatusBadRequest, invalidInputMessage)
		return
	}
	if a.limiter != nil && !a.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, errRateLimited)
		return
	}

	ctx := r.Context()
	if a.cfg.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.PipelineTimeout)
		defer cancel()
	}

	result, err := a.pipeline.Run(ctx, req)
	switch {
	case errors.Is(err, pipeline.ErrUnsafePrompt):
		writeText(w, http.StatusInternalServerError, unsafePromptMessage)
	case errors.Is(err, pipeline.ErrInvalidRequest):
		writeText(w, http.StatusBadRequest, invalidInputMessage)
	case errors.Is(err, pipeline.ErrSessionInUse):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		logRequestError("imagine", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": processingError})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (a *App) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"session": uuid.NewString()})
}

func (a *App) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.chain)
}

func (a *App) handleGetMint(w http.ResponseWriter, r *http.Request) {
	rec, err := a.ledger.Get(r.Context(), chi.URLParam(r, "session"))
	if errors.Is(err, mints.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		logRequestError("get mint", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": processingError})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *App) handleListMints(w http.ResponseWriter, r *http.Request) {
	state := mints.State(r.URL.Query().Get("state"))
	if state == "" {
		state = mints.StateFailed
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := a.ledger.ListByState(r.Context(), state, limit)
	if err != nil {
		logRequestError("list mints", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": processingError})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": records, "state": state})
}

func (a *App) handleRetryTransfer(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	recipient := r.URL.Query().Get("address")
	if recipient != "" && !a.isOperator(r) {
		writeError(w, http.StatusForbidden, errOperatorOnly)
		return
	}

	ctx := r.Context()
	if a.cfg.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.PipelineTimeout)
		defer cancel()
	}

	result, err := a.pipeline.RetryTransfer(ctx, session, recipient)
	switch {
	case errors.Is(err, mints.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, pipeline.ErrNotRetryable):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		logRequestError("retry transfer", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": processingError})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}
