package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipowergrid/imagine-mint/internal/config"
	"github.com/aipowergrid/imagine-mint/internal/mints"
	"github.com/aipowergrid/imagine-mint/internal/pipeline"
	"github.com/aipowergrid/imagine-mint/internal/progress"
)

type fakePipeline struct {
	mu       sync.Mutex
	runs     []pipeline.Request
	result   *pipeline.Result
	err      error
	retryErr error
	sawCtx   context.Context
}

func (f *fakePipeline) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, req)
	f.sawCtx = ctx
	return f.result, f.err
}

func (f *fakePipeline) RetryTransfer(_ context.Context, session, recipient string) (*pipeline.Result, error) {
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	return &pipeline.Result{Message: pipeline.SuccessMessage, Session: session, Receiver: recipient}, nil
}

func newTestApp(p *fakePipeline, cfg config.Config) (*App, *progress.Notifier, *mints.MemoryStore) {
	notifier := progress.NewNotifier()
	ledger := mints.NewMemoryStore("", 0)
	a := NewWithComponents(cfg, Components{
		Pipeline: p,
		Notifier: notifier,
		Ledger:   ledger,
		Chain:    ChainInfo{Cluster: "devnet", Treasury: "Treasury111", DepositLamports: 50000000, Minter: "Minter111"},
	})
	return a, notifier, ledger
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestImagine_InvalidInput(t *testing.T) {
	p := &fakePipeline{}
	a, _, _ := newTestApp(p, config.Config{})
	h := a.Router()

	for _, target := range []string{
		"/imagine",
		"/imagine?user_prompt=cat",
		"/imagine?address=abc",
		"/imagine?user_prompt=a&user_prompt=b&address=abc",
	} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, invalidInputMessage, rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	}
	assert.Empty(t, p.runs)
}

func TestImagine_Success(t *testing.T) {
	p := &fakePipeline{result: &pipeline.Result{
		Message:     pipeline.SuccessMessage,
		Receiver:    "https://explorer.solana.com/address/Abc/tokens?cluster=devnet",
		Transaction: "https://explorer.solana.com/tx/sig?cluster=devnet",
	}}
	a, _, _ := newTestApp(p, config.Config{PipelineTimeout: time.Minute})

	rec := get(t, a.Router(), "/imagine?user_prompt=a+sunset+over+mountains&address=Abc")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Transfer successful!🥳", body["message"])
	assert.NotEmpty(t, body["transaction"])
	assert.Contains(t, body["receiver"], "Abc")

	require.Len(t, p.runs, 1)
	assert.Equal(t, "a sunset over mountains", p.runs[0].Prompt)
	_, hasDeadline := p.sawCtx.Deadline()
	assert.True(t, hasDeadline)
}

func TestImagine_ErrorMapping(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		status      int
		body        string
		contentType string
	}{
		{"unsafe", &pipeline.StepError{Step: pipeline.StepSafety, Err: pipeline.ErrUnsafePrompt}, 500, "Unsafe prompt detected", "text/plain"},
		{"step failure", &pipeline.StepError{Step: pipeline.StepMint, Err: errors.New("rpc down")}, 500, `{"error":"Error processing the request"}` + "\n", "application/json"},
		{"invalid", pipeline.ErrInvalidRequest, 400, invalidInputMessage, "text/plain"},
		{"session in use", pipeline.ErrSessionInUse, 409, `{"error":"pipeline: session already used","status":409}` + "\n", "application/json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, _, _ := newTestApp(&fakePipeline{err: tc.err}, config.Config{})
			rec := get(t, a.Router(), "/imagine?user_prompt=x&address=y")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.body, rec.Body.String())
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), tc.contentType))
		})
	}
}

func TestImagine_RateLimitedAfterValidation(t *testing.T) {
	p := &fakePipeline{result: &pipeline.Result{}}
	a, _, _ := newTestApp(p, config.Config{ImagineRatePerMinute: 1, ImagineRateBurst: 1})
	h := a.Router()

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/imagine").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/imagine?user_prompt=x&address=y").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/imagine?user_prompt=x&address=y").Code)
	assert.Len(t, p.runs, 1)
}

func TestIndexHealthConfigSessions(t *testing.T) {
	a, _, _ := newTestApp(&fakePipeline{}, config.Config{})
	h := a.Router()

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Imagin' App")

	rec = get(t, h, "/health")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, h, "/api/config")
	assert.JSONEq(t, `{"cluster":"devnet","rpcUrl":"","treasury":"Treasury111","depositLamports":50000000,"minter":"Minter111"}`, rec.Body.String())

	post := httptest.NewRecorder()
	h.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	assert.Equal(t, http.StatusCreated, post.Code)
	var s map[string]string
	require.NoError(t, json.Unmarshal(post.Body.Bytes(), &s))
	assert.Len(t, s["session"], 36)
}

const operatorKey = "op-secret"

func send(t *testing.T, h http.Handler, method, target, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if key != "" {
		req.Header.Set("apikey", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMints(t *testing.T) {
	a, _, ledger := newTestApp(&fakePipeline{}, config.Config{OperatorAPIKey: operatorKey})
	h := a.Router()
	require.NoError(t, ledger.Save(context.Background(), mints.Record{Session: "s1", State: mints.StateFailed, FailedStep: "transfer", MintAddress: "M"}))

	rec := send(t, h, http.MethodGet, "/api/mints/s1", operatorKey)
	require.Equal(t, http.StatusOK, rec.Code)
	var got mints.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "M", got.MintAddress)

	assert.Equal(t, http.StatusNotFound, send(t, h, http.MethodGet, "/api/mints/nope", operatorKey).Code)

	rec = send(t, h, http.MethodGet, "/api/mints?state=failed", operatorKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session":"s1"`)
}

func TestMints_RequireOperatorKey(t *testing.T) {
	for name, cfg := range map[string]config.Config{
		"key configured": {OperatorAPIKey: operatorKey},
		"no key":         {},
	} {
		t.Run(name, func(t *testing.T) {
			a, _, ledger := newTestApp(&fakePipeline{}, cfg)
			h := a.Router()
			require.NoError(t, ledger.Save(context.Background(), mints.Record{Session: "s1", State: mints.StateFailed, Recipient: "Victim"}))

			for _, key := range []string{"", "wrong"} {
				for _, target := range []string{"/api/mints", "/api/mints?state=failed", "/api/mints/s1"} {
					rec := send(t, h, http.MethodGet, target, key)
					assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
					assert.NotContains(t, rec.Body.String(), "s1")
					assert.NotContains(t, rec.Body.String(), "Victim")
				}
			}
		})
	}
}

func TestRetryTransfer_AddressOverrideNeedsOperator(t *testing.T) {
	p := &fakePipeline{}
	a, _, _ := newTestApp(p, config.Config{OperatorAPIKey: operatorKey})
	h := a.Router()

	for _, key := range []string{"", "wrong"} {
		rec := send(t, h, http.MethodPost, "/api/mints/s1/transfer?address=Attacker", key)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NotContains(t, rec.Body.String(), "Attacker")
	}

	rec := send(t, h, http.MethodPost, "/api/mints/s1/transfer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"receiver":""`, "the recorded recipient is kept")

	rec = send(t, h, http.MethodPost, "/api/mints/s1/transfer?address=Abc", operatorKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"receiver":"Abc"`)
}

func TestRetryTransfer(t *testing.T) {
	p := &fakePipeline{}
	a, _, _ := newTestApp(p, config.Config{})
	h := a.Router()

	for err, status := range map[error]int{
		pipeline.ErrNotRetryable: http.StatusConflict,
		mints.ErrNotFound:        http.StatusNotFound,
		errors.New("boom"):       http.StatusInternalServerError,
	} {
		p.retryErr = err
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mints/s1/transfer", nil))
		assert.Equal(t, status, rec.Code, err.Error())
	}
}

func TestProgress_StreamsSessionEvents(t *testing.T) {
	a, notifier, _ := newTestApp(&fakePipeline{}, config.Config{})
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/progress?session=mine", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	require.Eventually(t, func() bool { return notifier.Len() == 1 }, time.Second, 5*time.Millisecond)
	notifier.Publish(progress.Event{Session: "other", Step: 0, Message: "not for me"})
	notifier.Publish(progress.Event{Session: "mine", Step: 0, Message: "Let's begin! 🪄"})
	notifier.Publish(progress.Event{Session: "mine", Step: 1, Message: "Checking prompt safety 👮‍♀️"})

	reader := bufio.NewReader(resp.Body)
	var got []progress.Event
	for len(got) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}
		var e progress.Event
		require.NoError(t, json.Unmarshal([]byte(data), &e))
		got = append(got, e)
	}
	assert.Equal(t, 0, got[0].Step)
	assert.Equal(t, 1, got[1].Step)
	assert.Equal(t, "mine", got[1].Session)

	cancel()
	_, _ = io.Copy(io.Discard, resp.Body)
	assert.Eventually(t, func() bool { return notifier.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestProgress_UnscopedStreamHidesSessions(t *testing.T) {
	a, notifier, _ := newTestApp(&fakePipeline{}, config.Config{})
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return notifier.Len() == 1 }, time.Second, 5*time.Millisecond)
	notifier.Publish(progress.Event{Session: "5f0c6a8e-2d1b-4c3a-9e7f-1a2b3c4d5e6f", Step: 5, Message: "Minting your NFT🔨"})

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}
		assert.NotContains(t, data, "5f0c6a8e")
		assert.JSONEq(t, `{"step":5,"message":"Minting your NFT🔨"}`, data)
		break
	}
}

func TestProgress_Ping(t *testing.T) {
	a, notifier, _ := newTestApp(&fakePipeline{}, config.Config{})
	a.pingInterval = 10 * time.Millisecond
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/progress", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", line)
	assert.Equal(t, 1, notifier.Len())
}

func TestProgress_StopStreams(t *testing.T) {
	a, notifier, _ := newTestApp(&fakePipeline{}, config.Config{})
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return notifier.Len() == 1 }, time.Second, 5*time.Millisecond)

	a.StopStreams()
	a.StopStreams()
	_, err = io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, 0, notifier.Len())
}
