package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

func newClient(name string) *httpclient.CircuitBreakerClient {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	return httpclient.NewCircuitBreakerClient(httpclient.New(cfg),
		httpclient.DefaultCircuitBreakerConfig(name),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWebhook_DeliverResetToken(t *testing.T) {
	var got ResetMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	expiry := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
	hook := NewWebhook(newClient("reset-ok"), srv.URL)
	err := hook.DeliverResetToken(context.Background(), &domain.ResetToken{
		Email: "asha@example.com", Token: "lvx1abc-XYZ", UserID: "1", Expiry: expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, "lvx1abc-XYZ", got.Token)
	assert.Equal(t, "asha@example.com", got.Email)
	assert.True(t, expiry.Equal(got.ExpiresAt))
}

func TestWebhook_RejectedDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"bad email"}}`))
	}))
	defer srv.Close()

	hook := NewWebhook(newClient("reset-rejected"), srv.URL)
	err := hook.DeliverResetToken(context.Background(), &domain.ResetToken{Email: "x"})
	assert.ErrorContains(t, err, "bad email")
}
