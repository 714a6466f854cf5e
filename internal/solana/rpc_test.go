package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

// jsonRPCServer answers the calls a mint followed by a transfer makes and
// records every request.
func jsonRPCServer(t *testing.T) (*httptest.Server, func() []rpcCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []rpcCall
	blockhash := types.NewAccount().PublicKey.ToBase58()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&call)) {
			return
		}
		mu.Lock()
		calls = append(calls, call)
		n := len(calls)
		mu.Unlock()

		var result string
		switch call.Method {
		case "getLatestBlockhash":
			result = fmt.Sprintf(`{"context":{"slot":1},"value":{"blockhash":%q,"lastValidBlockHeight":100}}`, blockhash)
		case "getMinimumBalanceForRentExemption":
			result = `1461600`
		case "getAccountInfo":
			result = `{"context":{"slot":1},"value":null}`
		case "sendTransaction":
			result = fmt.Sprintf(`"sig%d"`, n)
		case "getSignatureStatuses":
			result = `{"context":{"slot":1},"value":[{"slot":1,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}`
		default:
			t.Errorf("unexpected method %s", call.Method)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, call.ID, result)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []rpcCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]rpcCall(nil), calls...)
	}
}

func commitmentOf(t *testing.T, raw json.RawMessage, key string) string {
	t.Helper()
	var cfg map[string]any
	require.NoError(t, json.Unmarshal(raw, &cfg))
	v, _ := cfg[key].(string)
	return v
}

func TestClusterRPC_MintThenTransferAtConfirmed(t *testing.T) {
	srv, calls := jsonRPCServer(t)
	rpc := NewRPC(srv.URL)
	wallet := types.NewAccount()

	m := NewMinter(rpc, wallet, fastSettings)
	minted, err := m.Mint(context.Background(), mintRequest(m.Address()))
	require.NoError(t, err)

	recipient := types.NewAccount().PublicKey.ToBase58()
	_, err = NewTransferor(rpc, wallet, fastSettings).Transfer(context.Background(), minted.MintAddress, recipient)
	require.NoError(t, err)

	sends := 0
	for _, call := range calls() {
		switch call.Method {
		case "sendTransaction":
			sends++
			require.Len(t, call.Params, 2)
			assert.Equal(t, "confirmed", commitmentOf(t, call.Params[1], "preflightCommitment"))
		case "getLatestBlockhash":
			require.Len(t, call.Params, 1)
			assert.Equal(t, "confirmed", commitmentOf(t, call.Params[0], "commitment"))
		case "getAccountInfo":
			require.Len(t, call.Params, 2)
			assert.Equal(t, "confirmed", commitmentOf(t, call.Params[1], "commitment"))
		}
	}
	assert.Equal(t, 2, sends)
}

func TestClusterRPC_MissingAccount(t *testing.T) {
	srv, _ := jsonRPCServer(t)

	exists, err := NewRPC(srv.URL).AccountExists(context.Background(), types.NewAccount().PublicKey.ToBase58())
	require.NoError(t, err)
	assert.False(t, exists)
}
