package app

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/aipowergrid/imagine-mint/internal/config"
	"github.com/aipowergrid/imagine-mint/internal/mints"
	"github.com/aipowergrid/imagine-mint/internal/pipeline"
	"github.com/aipowergrid/imagine-mint/internal/progress"
)

const operatorKeyHeader = "apikey"

var errOperatorOnly = errors.New("operator key required")

// Pipeline is what the HTTP layer needs from the orchestrator.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	RetryTransfer(ctx context.Context, session, recipient string) (*pipeline.Result, error)
}

// ChainInfo is served to the browser so it can fund the treasury before
// asking for an image.
type ChainInfo struct {
	Cluster         string `json:"cluster"`
	RPCURL          string `json:"rpcUrl"`
	Treasury        string `json:"treasury"`
	DepositLamports uint64 `json:"depositLamports"`
	Minter          string `json:"minter"`
}

type Components struct {
	Pipeline Pipeline
	Notifier *progress.Notifier
	Ledger   mints.Store
	Chain    ChainInfo
	Closers  []func() error
}

type App struct {
	cfg          config.Config
	pipeline     Pipeline
	notifier     *progress.Notifier
	ledger       mints.Store
	chain        ChainInfo
	limiter      *rate.Limiter
	pingInterval time.Duration
	closers      []func() error

	streamsDone chan struct{}
	stopOnce    sync.Once
}

func NewWithComponents(cfg config.Config, c Components) *App {
	a := &App{
		cfg:          cfg,
		pipeline:     c.Pipeline,
		notifier:     c.Notifier,
		ledger:       c.Ledger,
		chain:        c.Chain,
		pingInterval: 15 * time.Second,
		closers:      c.Closers,
		streamsDone:  make(chan struct{}),
	}
	if cfg.ImagineRatePerMinute > 0 {
		burst := cfg.ImagineRateBurst
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.ImagineRatePerMinute)), burst)
	}
	return a
}

func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Cache-Control"},
		AllowCredentials: true,
	}))

	r.Get("/", a.handleIndex)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/progress", a.handleProgress)
	r.Get("/imagine", a.handleImagine)

	r.Route("/api", func(api chi.Router) {
		api.Get("/config", a.handleConfig)
		api.Post("/sessions", a.handleCreateSession)

		api.Group(func(op chi.Router) {
			op.Use(a.requireOperator)
			op.Get("/mints", a.handleListMints)
			op.Get("/mints/{session}", a.handleGetMint)
		})
		// Open so a user can retry their own run; only an operator may
		// redirect the token to another address.
		api.Post("/mints/{session}/transfer", a.handleRetryTransfer)
	})

	return r
}

// isOperator reports whether r carries the configured operator key in the
// apikey header. Without a configured key nobody is an operator.
func (a *App) isOperator(r *http.Request) bool {
	if a.cfg.OperatorAPIKey == "" {
		return false
	}
	given := r.Header.Get(operatorKeyHeader)
	return subtle.ConstantTimeCompare([]byte(given), []byte(a.cfg.OperatorAPIKey)) == 1
}

func (a *App) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.isOperator(r) {
			writeError(w, http.StatusUnauthorized, errOperatorOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StopStreams ends every open progress stream so the server can drain.
func (a *App) StopStreams() {
	a.stopOnce.Do(func() { close(a.streamsDone) })
}

// Close releases resources opened by New.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) allowedOrigins() []string {
	if len(a.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return a.cfg.AllowedOrigins
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error":  err.Error(),
		"status": status,
	})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprint(w, body)
}

func logRequestError(route string, err error) {
	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		log.Printf("❌ %s failed at %s: %v", route, stepErr.Step, stepErr.Err)
		return
	}
	log.Printf("❌ %s failed: %v", route, err)
}
