package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// CartCleanerGroup is the consumer group of the cart cleaner.
const CartCleanerGroup = "storefront-cart-cleaner"

// RemoveOrderedFunc drops the ordered lines from a user's cart unless the
// cart changed after placedAt.
type RemoveOrderedFunc func(ctx context.Context, userID string, lines []domain.LineKey, placedAt time.Time) error

// CartCleaner removes the ordered lines from the buyer's cart when the
// synchronous removal at checkout did not happen.
type CartCleaner struct {
	remove RemoveOrderedFunc
	logger *slog.Logger
}

// NewCartCleaner creates a cart cleaner.
func NewCartCleaner(remove RemoveOrderedFunc, logger *slog.Logger) *CartCleaner {
	return &CartCleaner{remove: remove, logger: logger}
}

// Handle processes one order.created event. Other event types are ignored.
func (c *CartCleaner) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	if evt.EventType != EventOrderCreated {
		return nil
	}

	var data OrderCreatedData
	if err := evt.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.EventType, err)
	}
	if data.UserID == "" {
		c.logger.WarnContext(ctx, "order.created without user id", slog.String("order_id", data.OrderID))
		return nil
	}
	if len(data.Items) == 0 {
		return nil
	}

	placedAt := data.PlacedAt
	if placedAt.IsZero() {
		placedAt = evt.Timestamp
	}
	lines := make([]domain.LineKey, len(data.Items))
	for i, it := range data.Items {
		lines[i] = it.LineKey()
	}

	if err := c.remove(ctx, data.UserID, lines, placedAt); err != nil {
		return fmt.Errorf("remove ordered lines for user %s: %w", data.UserID, err)
	}

	c.logger.InfoContext(ctx, "ordered lines removed from cart",
		slog.String("order_id", data.OrderID),
		slog.String("user_id", data.UserID),
		slog.Int("lines", len(lines)),
	)
	return nil
}
