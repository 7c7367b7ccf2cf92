package kv

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/store"
)

// CartRepository implements repository.CartRepository.
type CartRepository struct {
	store  store.Store
	logger *slog.Logger
}

// NewCartRepository creates a cart repository over s.
func NewCartRepository(s store.Store, logger *slog.Logger) *CartRepository {
	return &CartRepository{store: s, logger: logger}
}

// Get reads the cart at key.
func (r *CartRepository) Get(ctx context.Context, key string) (domain.Cart, error) {
	var c domain.Cart
	ok, err := getJSON(ctx, r.store, r.logger, key, &c)
	if err != nil {
		return nil, err
	}
	if !ok || c == nil {
		return domain.Cart{}, nil
	}
	return c, nil
}

// Save writes the cart at key.
func (r *CartRepository) Save(ctx context.Context, key string, cart domain.Cart) error {
	if cart == nil {
		cart = domain.Cart{}
	}
	return setJSON(ctx, r.store, key, cart)
}

// Delete removes the cart at key.
func (r *CartRepository) Delete(ctx context.Context, key string) error {
	return remove(ctx, r.store, key)
}
