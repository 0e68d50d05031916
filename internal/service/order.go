package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/pricing"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

// EventPublisher publishes domain events. Failures are logged by the
// services and never fail the operation.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderPaid(ctx context.Context, order *domain.Order) error
	PublishOrderDelivered(ctx context.Context, order *domain.Order) error
	PublishProductReviewed(ctx context.Context, review *domain.Review, product *domain.Product) error
}

// CartClearer removes ordered lines from the buyer's cart.
type CartClearer interface {
	RemoveOrdered(ctx context.Context, userID string, lines []domain.LineKey, placedAt time.Time) error
}

// OrderService implements order placement and fulfillment.
type OrderService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	carts     CartClearer
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	carts CartClearer,
	publisher EventPublisher,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		products:  products,
		carts:     carts,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderItemInput is one submitted cart line. Only the product,
// quantity and variant are trusted; display copy and price come from the
// catalog.
type CreateOrderItemInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Brand     string `json:"brand"`
	Price     int64  `json:"price" validate:"gte=0"`
	Qty       int    `json:"qty" validate:"required,gte=1"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// CreateOrderInput holds the parameters for placing an order. The submitted
// totals are compared against the computed ones and otherwise ignored.
type CreateOrderInput struct {
	Items           []CreateOrderItemInput `json:"order_items" validate:"required,min=1,dive"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	ItemsPrice      int64                  `json:"items_price"`
	ShippingPrice   int64                  `json:"shipping_price"`
	TaxPrice        int64                  `json:"tax_price"`
	TotalPrice      int64                  `json:"total_price"`
}

func (in CreateOrderInput) submittedTotals() pricing.Totals {
	return pricing.Totals{
		ItemsPrice:    in.ItemsPrice,
		ShippingPrice: in.ShippingPrice,
		TaxPrice:      in.TaxPrice,
		TotalPrice:    in.TotalPrice,
	}
}

// Create places an order for userID. Prices are read from the catalog and
// frozen on the order items. The ordered lines are then removed from the
// user's cart; a failure there is logged and the order still stands.
func (s *OrderService) Create(ctx context.Context, userID string, input CreateOrderInput) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("user is required")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.InvalidInput("no order items")
	}
	if input.ShippingAddress.IsMissing() {
		return nil, apperrors.InvalidInput("shipping address is required")
	}

	ids := make([]string, 0, len(input.Items))
	requested := make(map[string]int, len(input.Items))
	for i, it := range input.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, apperrors.InvalidInput(fmt.Sprintf("order_items[%d].product_id is required", i))
		}
		if it.Qty < 1 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("order_items[%d].qty must be at least 1", i))
		}
		if _, seen := requested[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		requested[it.ProductID] += it.Qty
	}

	catalog, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for _, id := range ids {
		p, ok := catalog[id]
		if !ok {
			return nil, apperrors.NotFound("product", id)
		}
		if !p.InStock(requested[id]) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("%s: only %d in stock", p.Name, p.CountInStock))
		}
	}

	orderID := uuid.New().String()
	items := make([]domain.OrderItem, len(input.Items))
	for i, it := range input.Items {
		p := catalog[it.ProductID]
		items[i] = domain.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			Brand:     p.Brand,
			Price:     p.Price,
			Qty:       it.Qty,
			Size:      it.Size,
			Color:     it.Color,
		}
	}

	totals := pricing.ComputeTotals(items)
	if submitted := input.submittedTotals(); submitted != (pricing.Totals{}) && submitted != totals {
		s.logger.WarnContext(ctx, "submitted order totals differ from catalog prices",
			slog.String("user_id", userID),
			slog.Int64("submitted_total", submitted.TotalPrice),
			slog.Int64("computed_total", totals.TotalPrice),
		)
	}

	method := strings.TrimSpace(input.PaymentMethod)
	if method == "" {
		method = domain.DefaultPaymentMethod
	}

	now := s.now()
	order := &domain.Order{
		ID:              orderID,
		UserID:          userID,
		Items:           items,
		ItemsPrice:      totals.ItemsPrice,
		ShippingPrice:   totals.ShippingPrice,
		TaxPrice:        totals.TaxPrice,
		TotalPrice:      totals.TotalPrice,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   method,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	metrics.OrdersCreated.Inc()
	metrics.OrderValue.Observe(float64(order.TotalPrice))

	lines := make([]domain.LineKey, len(items))
	for i, it := range items {
		lines[i] = it.LineKey()
	}
	if err := s.carts.RemoveOrdered(ctx, userID, lines, order.CreatedAt); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove ordered lines from cart",
			slog.String("order_id", order.ID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("user_id", userID),
		slog.Int64("total_price", order.TotalPrice),
	)
	return order, nil
}

// MarkPaid records a capture. Paying an already paid order returns it
// unchanged; only the first call publishes order.paid.
func (s *OrderService) MarkPaid(ctx context.Context, orderID string, result domain.PaymentResult) (*domain.Order, error) {
	changed, err := s.orders.MarkPaid(ctx, orderID, result, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !changed {
		s.logger.InfoContext(ctx, "order already paid", slog.String("order_id", orderID))
		return order, nil
	}

	metrics.PaymentsCaptured.Inc()
	if err := s.publisher.PublishOrderPaid(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.paid event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order paid",
		slog.String("order_id", order.ID),
		slog.String("payment_id", result.ID),
	)
	return order, nil
}

// MarkDelivered moves a paid order to delivered. Admin only.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can mark orders delivered")
	}

	changed, err := s.orders.MarkDelivered(ctx, orderID, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark order delivered: %w", err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !changed {
		switch {
		case !order.IsPaid:
			return nil, apperrors.InvalidState("order not yet paid")
		case order.IsDelivered:
			return nil, apperrors.InvalidState("order already delivered")
		default:
			return nil, apperrors.Conflict("order changed concurrently, retry")
		}
	}

	metrics.OrdersDelivered.Inc()
	if err := s.publisher.PublishOrderDelivered(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.delivered event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order delivered",
		slog.String("order_id", order.ID),
		slog.String("admin_id", actor.UserID),
	)
	return order, nil
}

// GetByID returns an order to its owner or an admin.
func (s *OrderService) GetByID(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !actor.IsAdmin() && !order.IsOwnedBy(actor.UserID) {
		return nil, apperrors.Forbidden("not your order")
	}
	return order, nil
}

// ListForUser returns the caller's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID string, page pagination.Params) (pagination.Result[domain.Order], error) {
	orders, total, err := s.orders.List(ctx, repository.OrderFilter{
		UserID:  &userID,
		Page:    page.Page,
		PerPage: page.PerPage,
	})
	if err != nil {
		return pagination.Result[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return pagination.NewResult(orders, total, page), nil
}

// ListAll returns every order, optionally filtered by status. Admin only.
func (s *OrderService) ListAll(ctx context.Context, actor domain.Actor, status string, page pagination.Params) (pagination.Result[domain.Order], error) {
	if !actor.IsAdmin() {
		return pagination.Result[domain.Order]{}, apperrors.Forbidden("admin role required")
	}

	filter := repository.OrderFilter{Page: page.Page, PerPage: page.PerPage}
	if status != "" {
		if !domain.IsValidStatus(status) {
			return pagination.Result[domain.Order]{}, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", status))
		}
		filter.Status = &status
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return pagination.Result[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return pagination.NewResult(orders, total, page), nil
}

// Summary returns order counts and paid revenue. Admin only.
func (s *OrderService) Summary(ctx context.Context, actor domain.Actor) (repository.OrderSummary, error) {
	if !actor.IsAdmin() {
		return repository.OrderSummary{}, apperrors.Forbidden("admin role required")
	}
	summary, err := s.orders.Summary(ctx)
	if err != nil {
		return repository.OrderSummary{}, fmt.Errorf("order summary: %w", err)
	}
	return summary, nil
}

// SalesByDate returns paid revenue per day of payment. Admin only.
func (s *OrderService) SalesByDate(ctx context.Context, actor domain.Actor) ([]repository.DailySales, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("admin role required")
	}
	sales, err := s.orders.SalesByDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("sales by date: %w", err)
	}
	return sales, nil
}
