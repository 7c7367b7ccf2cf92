// Package notify delivers password-reset tokens out of band.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// Poster sends a JSON body. *httpclient.CircuitBreakerClient implements it.
type Poster interface {
	PostJSON(ctx context.Context, url string, v any) (*http.Response, error)
}

// ResetMessage is the webhook body.
type ResetMessage struct {
	Email     string    `json:"email"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Webhook posts reset tokens to a fixed URL.
type Webhook struct {
	client Poster
	url    string
}

// NewWebhook creates a webhook deliverer.
func NewWebhook(client Poster, url string) *Webhook {
	return &Webhook{client: client, url: url}
}

// DeliverResetToken posts t to the webhook URL.
func (w *Webhook) DeliverResetToken(ctx context.Context, t *domain.ResetToken) error {
	resp, err := w.client.PostJSON(ctx, w.url, ResetMessage{
		Email:     t.Email,
		UserID:    t.UserID,
		Token:     t.Token,
		ExpiresAt: t.Expiry,
	})
	if err != nil {
		return fmt.Errorf("post reset token: %w", err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, "reset-webhook")
	}
	_ = resp.Body.Close()
	return nil
}
