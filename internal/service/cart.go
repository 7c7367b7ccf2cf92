package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/ui"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Confirmation is what AddToCart reports back to the page.
type Confirmation struct {
	Message string      `json:"message"`
	Cart    domain.Cart `json:"cart"`
}

// CartService manages the active cart and its badge. The active cart is the
// logged-in identity's cart, or the anonymous cart when nobody is logged in.
type CartService struct {
	repo     repository.CartRepository
	sessions *SessionManager
	doc      ui.Document
	producer *event.Producer
	logger   *slog.Logger

	// mu serializes cart read-modify-write within this process.
	mu sync.Mutex
}

// NewCartService creates a cart service and registers the badge refresh as
// a session state hook. doc may be nil.
func NewCartService(
	repo repository.CartRepository,
	sessions *SessionManager,
	doc ui.Document,
	producer *event.Producer,
	logger *slog.Logger,
) *CartService {
	s := &CartService{
		repo:     repo,
		sessions: sessions,
		doc:      doc,
		producer: producer,
		logger:   logger,
	}
	sessions.OnStateChange(func(ctx context.Context, _ *domain.Session) {
		if err := s.RefreshBadge(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to refresh cart badge", slog.String("error", err.Error()))
		}
	})
	return s
}

func (s *CartService) activeKey() (key, identityID string) {
	identityID = s.sessions.currentID()
	return repository.CartKey(identityID), identityID
}

// GetCart returns the active cart; absent or unreadable carts are empty.
func (s *CartService) GetCart(ctx context.Context) (domain.Cart, error) {
	key, _ := s.activeKey()
	cart, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart, nil
}

// mutate applies fn to the active cart, saves it under the key it was read
// from and refreshes the badge.
func (s *CartService) mutate(ctx context.Context, fn func(domain.Cart) (domain.Cart, error)) (domain.Cart, error) {
	s.mu.Lock()
	key, identityID := s.activeKey()
	cart, err := s.repo.Get(ctx, key)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("load cart: %w", err)
	}
	cart, err = fn(cart)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.repo.Save(ctx, key, cart); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("save cart: %w", err)
	}
	s.mu.Unlock()

	s.renderBadge(cart.ItemCount())

	if err := s.producer.PublishCartUpdated(ctx, key, identityID, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("cart_key", key),
			slog.String("error", err.Error()),
		)
	}
	return cart, nil
}

// AddToCart adds one unit of the named product. A product already in the
// cart has its quantity incremented.
func (s *CartService) AddToCart(ctx context.Context, name string, price float64, image string) (*Confirmation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if price < 0 {
		return nil, apperrors.Validation("price must not be negative")
	}

	cart, err := s.mutate(ctx, func(c domain.Cart) (domain.Cart, error) {
		return c.Add(name, price, image), nil
	})
	if err != nil {
		return nil, err
	}
	return &Confirmation{Message: name + " added to cart", Cart: cart}, nil
}

// UpdateQuantity sets a line's quantity; zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, name string, quantity int) (domain.Cart, error) {
	if quantity < 0 {
		return nil, apperrors.Validation("quantity must not be negative")
	}
	return s.mutate(ctx, func(c domain.Cart) (domain.Cart, error) {
		i := c.FindLine(name)
		if i < 0 {
			return nil, apperrors.NotFoundMessage(fmt.Sprintf("%s is not in the cart", name))
		}
		if quantity == 0 {
			return c.Remove(name), nil
		}
		c[i].Quantity = quantity
		return c, nil
	})
}

// RemoveFromCart drops the named line.
func (s *CartService) RemoveFromCart(ctx context.Context, name string) (domain.Cart, error) {
	return s.mutate(ctx, func(c domain.Cart) (domain.Cart, error) {
		if c.FindLine(name) < 0 {
			return nil, apperrors.NotFoundMessage(fmt.Sprintf("%s is not in the cart", name))
		}
		return c.Remove(name), nil
	})
}

// ClearCart deletes the active cart.
func (s *CartService) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	key, identityID := s.activeKey()
	err := s.repo.Delete(ctx, key)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.renderBadge(0)

	if err := s.producer.PublishCartCleared(ctx, key, identityID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("cart_key", key),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// RefreshBadge writes the active cart's item count into the badge element,
// showing it only when the count is positive.
func (s *CartService) RefreshBadge(ctx context.Context) error {
	cart, err := s.GetCart(ctx)
	if err != nil {
		return err
	}
	s.renderBadge(cart.ItemCount())
	return nil
}

func (s *CartService) renderBadge(count int) {
	if s.doc == nil {
		return
	}
	el, ok := s.doc.Element(ui.ElementCartCount)
	if !ok {
		return
	}
	el.SetText(strconv.Itoa(count))
	el.SetVisible(count > 0)
}
