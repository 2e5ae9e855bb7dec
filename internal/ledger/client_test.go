package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"

	"github.com/noah-isme/edu-collective-api/pkg/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.LedgerConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Asset:   "EDU",
		Timeout: 2 * time.Second,
	})
}

func TestClientBalanceOf(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/accounts/alice/balance", r.URL.Path)
		assert.Equal(t, "EDU", r.URL.Query().Get("asset"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"account": "alice", "asset": "EDU", "balance": 250})
	}))
	defer srv.Close()

	balance, err := newTestClient(srv.URL).BalanceOf(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(250), balance)
}

func TestClientTransfer(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transfers", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Transfer(context.Background(), "treasury", "bob", 60)
	require.NoError(t, err)
	assert.Equal(t, "EDU", got["asset"])
	assert.Equal(t, "treasury", got["from"])
	assert.Equal(t, "bob", got["to"])
	assert.Equal(t, float64(60), got["amount"])
}

func TestClientTransferFromRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/charges", r.URL.Path)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "INSUFFICIENT_FUNDS", "message": "insufficient funds"})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).TransferFrom(context.Background(), "carol", "treasury", 1000)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPaymentFailed.Code, appErrors.FromError(err).Code)
}

func TestClientTransferAssetOverridesAsset(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).TransferAsset(context.Background(), "USDX", "treasury", "owner", 5)
	require.NoError(t, err)
	assert.Equal(t, "USDX", got["asset"])
}

func TestClientLedgerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Transfer(context.Background(), "treasury", "bob", 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
