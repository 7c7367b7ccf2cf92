package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topics for storefront domain events.
var (
	TopicUserRegistered      = pkgkafka.Topic("user", "registered")
	TopicUserUpdated         = pkgkafka.Topic("user", "updated")
	TopicUserLoggedIn        = pkgkafka.Topic("user", "logged_in")
	TopicUserLoggedOut       = pkgkafka.Topic("user", "logged_out")
	TopicUserPasswordChanged = pkgkafka.Topic("user", "password_changed")
	TopicUserResetRequested  = pkgkafka.Topic("user", "password_reset_requested")
	TopicUserPasswordReset   = pkgkafka.Topic("user", "password_reset")
	TopicCartUpdated         = pkgkafka.Topic("cart", "updated")
	TopicCartCleared         = pkgkafka.Topic("cart", "cleared")
)

// Aggregate types.
const (
	AggregateTypeIdentity = "identity"
	AggregateTypeCart     = "cart"
)

// Source is the event source identifier.
const Source = "storefront"

// Publisher sends an envelope to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// IdentityData is the payload of user events. It never carries the password.
type IdentityData struct {
	IdentityID string `json:"identity_id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email"`
}

// ResetRequestedData is the payload of user.password_reset_requested.
type ResetRequestedData struct {
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
	ExpiresAt  string `json:"expires_at"`
}

// CartLineData is one line within cart events.
type CartLineData struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CartUpdatedData is the payload of cart.updated.
type CartUpdatedData struct {
	CartKey    string         `json:"cart_key"`
	IdentityID string         `json:"identity_id,omitempty"`
	Lines      []CartLineData `json:"lines"`
	ItemCount  int            `json:"item_count"`
	Total      float64        `json:"total"`
}

// CartClearedData is the payload of cart.cleared.
type CartClearedData struct {
	CartKey    string `json:"cart_key"`
	IdentityID string `json:"identity_id,omitempty"`
}

// Producer publishes storefront domain events. A Producer with a nil
// Publisher drops every event, which is how the service runs without Kafka.
type Producer struct {
	pub    Publisher
	logger *slog.Logger
}

// NewProducer creates an event producer. pub may be nil.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	if p == nil || p.pub == nil {
		return nil
	}

	e, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		e.WithCorrelationID(cid)
	}
	if err := p.pub.Publish(ctx, topic, e); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func identityData(id *domain.Identity) IdentityData {
	return IdentityData{IdentityID: id.ID, Name: id.Name, Email: id.Email}
}

// PublishUserRegistered publishes user.registered.
func (p *Producer) PublishUserRegistered(ctx context.Context, id *domain.Identity) error {
	return p.publish(ctx, TopicUserRegistered, "user.registered", id.ID, AggregateTypeIdentity, identityData(id))
}

// PublishUserUpdated publishes user.updated.
func (p *Producer) PublishUserUpdated(ctx context.Context, id *domain.Identity) error {
	return p.publish(ctx, TopicUserUpdated, "user.updated", id.ID, AggregateTypeIdentity, identityData(id))
}

// PublishPasswordChanged publishes user.password_changed.
func (p *Producer) PublishPasswordChanged(ctx context.Context, id *domain.Identity) error {
	return p.publish(ctx, TopicUserPasswordChanged, "user.password_changed", id.ID, AggregateTypeIdentity, identityData(id))
}

// PublishLoggedIn publishes user.logged_in.
func (p *Producer) PublishLoggedIn(ctx context.Context, s *domain.Session) error {
	data := IdentityData{IdentityID: s.ID, Name: s.Name, Email: s.Email}
	return p.publish(ctx, TopicUserLoggedIn, "user.logged_in", s.ID, AggregateTypeIdentity, data)
}

// PublishLoggedOut publishes user.logged_out.
func (p *Producer) PublishLoggedOut(ctx context.Context, s *domain.Session) error {
	data := IdentityData{IdentityID: s.ID, Name: s.Name, Email: s.Email}
	return p.publish(ctx, TopicUserLoggedOut, "user.logged_out", s.ID, AggregateTypeIdentity, data)
}

// PublishResetRequested publishes user.password_reset_requested. The token
// itself is not included.
func (p *Producer) PublishResetRequested(ctx context.Context, t *domain.ResetToken) error {
	data := ResetRequestedData{
		IdentityID: t.UserID,
		Email:      t.Email,
		ExpiresAt:  t.Expiry.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	return p.publish(ctx, TopicUserResetRequested, "user.password_reset_requested", t.UserID, AggregateTypeIdentity, data)
}

// PublishPasswordReset publishes user.password_reset.
func (p *Producer) PublishPasswordReset(ctx context.Context, id *domain.Identity) error {
	return p.publish(ctx, TopicUserPasswordReset, "user.password_reset", id.ID, AggregateTypeIdentity, identityData(id))
}

// PublishCartUpdated publishes cart.updated.
func (p *Producer) PublishCartUpdated(ctx context.Context, key, identityID string, cart domain.Cart) error {
	lines := make([]CartLineData, len(cart))
	for i, l := range cart {
		lines[i] = CartLineData{Name: l.Name, Price: l.Price, Quantity: l.Quantity}
	}
	data := CartUpdatedData{
		CartKey:    key,
		IdentityID: identityID,
		Lines:      lines,
		ItemCount:  cart.ItemCount(),
		Total:      cart.Total(),
	}
	return p.publish(ctx, TopicCartUpdated, "cart.updated", key, AggregateTypeCart, data)
}

// PublishCartCleared publishes cart.cleared.
func (p *Producer) PublishCartCleared(ctx context.Context, key, identityID string) error {
	data := CartClearedData{CartKey: key, IdentityID: identityID}
	return p.publish(ctx, TopicCartCleared, "cart.cleared", key, AggregateTypeCart, data)
}
