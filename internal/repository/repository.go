package repository

import (
	"context"
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	UserID  *string
	Status  *string
	Page    int
	PerPage int
}

// OrderSummary backs the admin dashboard.
type OrderSummary struct {
	TotalOrders     int64 `json:"total_orders"`
	PaidOrders      int64 `json:"paid_orders"`
	DeliveredOrders int64 `json:"delivered_orders"`
	PaidRevenue     int64 `json:"paid_revenue"`
}

// DailySales is paid revenue for one UTC day. Date is "2006-01-02".
type DailySales struct {
	Date    string `json:"date"`
	Orders  int64  `json:"orders"`
	Revenue int64  `json:"revenue"`
}

// OrderRepository persists orders.
type OrderRepository interface {
	// Create inserts the order and its items atomically.
	Create(ctx context.Context, order *domain.Order) error

	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns a page of orders, newest first, and the total match count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// MarkPaid sets the paid flag if it is not set yet and reports whether
	// this call made the change.
	// A payment id already recorded on another order is a PaymentMismatch.
	MarkPaid(ctx context.Context, id string, result domain.PaymentResult, at time.Time) (bool, error)

	// OrderIDByPaymentID returns the order holding the gateway payment, or
	// NotFound.
	OrderIDByPaymentID(ctx context.Context, paymentID string) (string, error)

	// MarkDelivered sets the delivered flag on a paid, undelivered order and
	// reports whether this call made the change.
	MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error)

	Summary(ctx context.Context) (OrderSummary, error)

	// SalesByDate groups paid orders by the day they were paid, oldest first.
	SalesByDate(ctx context.Context) ([]DailySales, error)
}

// ProductRepository reads the catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetByIDs returns the found products keyed by ID. Missing IDs are
	// simply absent.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

// ReviewRepository persists reviews together with the product aggregate.
type ReviewRepository interface {
	// Create inserts the review and recomputes the product's rating and
	// review count in one transaction, returning the updated product.
	Create(ctx context.Context, review *domain.Review) (*domain.Product, error)

	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)
}

// CartRepository stores one cart snapshot per user.
type CartRepository interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
}
