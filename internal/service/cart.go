package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/pricing"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CartView is a cart with its computed totals.
type CartView struct {
	domain.Cart
	Totals pricing.Totals `json:"totals"`
}

func newCartView(c domain.Cart) *CartView {
	return &CartView{Cart: c, Totals: c.Totals()}
}

// CartService keeps one cart per user. Every change loads the snapshot,
// applies one command and saves the whole cart back.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(carts repository.CartRepository, products repository.ProductRepository, logger *slog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddItemInput selects a product variant and quantity.
type AddItemInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"required,gte=1"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Get returns the user's cart. A user without one gets an empty cart.
func (s *CartService) Get(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newCartView(cart), nil
}

// AddItem snapshots the product's current price and stock into the cart.
func (s *CartService) AddItem(ctx context.Context, userID string, input AddItemInput) (*CartView, error) {
	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return s.apply(ctx, userID, domain.AddItem{
		Item: domain.CartItem{
			ProductID:    product.ID,
			Name:         product.Name,
			Image:        product.Image,
			Brand:        product.Brand,
			Price:        product.Price,
			Size:         input.Size,
			Color:        input.Color,
			CountInStock: product.CountInStock,
		},
		Qty: input.Qty,
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*CartView, error) {
	return s.apply(ctx, userID, domain.RemoveItem{ProductID: productID})
}

func (s *CartService) SetShippingAddress(ctx context.Context, userID string, addr domain.ShippingAddress) (*CartView, error) {
	return s.apply(ctx, userID, domain.SetShipping{Address: addr})
}

func (s *CartService) SetPaymentMethod(ctx context.Context, userID, method string) (*CartView, error) {
	return s.apply(ctx, userID, domain.SetPayment{Method: method})
}

// Clear empties the cart's items.
func (s *CartService) Clear(ctx context.Context, userID string) (*CartView, error) {
	return s.apply(ctx, userID, domain.Clear{})
}

// RemoveOrdered drops the lines an order placed at placedAt was built from.
// A cart changed after placedAt is left alone, as is a user without a stored
// cart or a cart holding none of the lines. Calling it twice for the same
// order is a no-op the second time.
func (s *CartService) RemoveOrdered(ctx context.Context, userID string, lines []domain.LineKey, placedAt time.Time) error {
	cart, err := s.carts.Get(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if cart.UpdatedAt.After(placedAt) {
		s.logger.DebugContext(ctx, "cart changed after order, keeping lines",
			slog.String("user_id", userID),
			slog.Time("cart_updated_at", cart.UpdatedAt),
			slog.Time("placed_at", placedAt),
		)
		return nil
	}
	if !slices.ContainsFunc(cart.Items, func(it domain.CartItem) bool {
		return slices.Contains(lines, it.Key())
	}) {
		return nil
	}
	_, err = s.apply(ctx, userID, domain.RemoveLines{Lines: lines})
	return err
}

func (s *CartService) apply(ctx context.Context, userID string, cmd domain.CartCommand) (*CartView, error) {
	name := commandName(cmd)
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	next, err := cart.Apply(cmd)
	if err != nil {
		metrics.CartCommands.WithLabelValues(name, "rejected").Inc()
		return nil, err
	}
	next.UpdatedAt = s.now()

	if err := s.carts.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	metrics.CartCommands.WithLabelValues(name, "applied").Inc()

	s.logger.DebugContext(ctx, "cart updated",
		slog.String("user_id", userID),
		slog.String("command", name),
		slog.Int("items", len(next.Items)),
	)
	return newCartView(next), nil
}

func (s *CartService) load(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, apperrors.Unauthorized("user is required")
	}
	cart, err := s.carts.Get(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return *cart, nil
}

func commandName(cmd domain.CartCommand) string {
	switch cmd.(type) {
	case domain.AddItem:
		return "add_item"
	case domain.RemoveItem:
		return "remove_item"
	case domain.RemoveLines:
		return "remove_lines"
	case domain.SetShipping:
		return "set_shipping"
	case domain.SetPayment:
		return "set_payment"
	case domain.Clear:
		return "clear"
	default:
		return "unknown"
	}
}
