package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topics for storefront domain events.
const (
	TopicOrderCreated    = pkgkafka.TopicPrefix + ".order.created"
	TopicOrderPaid       = pkgkafka.TopicPrefix + ".order.paid"
	TopicOrderDelivered  = pkgkafka.TopicPrefix + ".order.delivered"
	TopicProductReviewed = pkgkafka.TopicPrefix + ".product.reviewed"
)

// Event types carried in the envelope.
const (
	EventOrderCreated    = "order.created"
	EventOrderPaid       = "order.paid"
	EventOrderDelivered  = "order.delivered"
	EventProductReviewed = "product.reviewed"
)

// OrderCreatedData is the payload for order.created.
type OrderCreatedData struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Items      []OrderItemData `json:"items"`
	TotalPrice int64           `json:"total_price"`
	PlacedAt   time.Time       `json:"placed_at"`
}

// OrderItemData is one line of an order.created payload.
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Price     int64  `json:"price"`
	Qty       int    `json:"qty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// LineKey is the cart line the item was ordered from.
func (d OrderItemData) LineKey() domain.LineKey {
	return domain.LineKey{ProductID: d.ProductID, Size: d.Size, Color: d.Color}
}

// OrderPaidData is the payload for order.paid.
type OrderPaidData struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	TotalPrice int64     `json:"total_price"`
	PaymentID  string    `json:"payment_id"`
	PaidAt     time.Time `json:"paid_at"`
}

// OrderDeliveredData is the payload for order.delivered.
type OrderDeliveredData struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// ProductReviewedData is the payload for product.reviewed.
type ProductReviewedData struct {
	ProductID  string  `json:"product_id"`
	ReviewID   string  `json:"review_id"`
	UserID     string  `json:"user_id"`
	Rating     int     `json:"rating"`
	NewRating  float64 `json:"new_rating"`
	NumReviews int     `json:"num_reviews"`
}

// Publisher is the Kafka side of the producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	items := make([]OrderItemData, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemData{ProductID: it.ProductID, Price: it.Price, Qty: it.Qty, Size: it.Size, Color: it.Color}
	}
	return p.publish(ctx, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedData{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Items:      items,
		TotalPrice: o.TotalPrice,
		PlacedAt:   o.CreatedAt,
	})
}

func (p *Producer) PublishOrderPaid(ctx context.Context, o *domain.Order) error {
	data := OrderPaidData{OrderID: o.ID, UserID: o.UserID, TotalPrice: o.TotalPrice}
	if o.PaymentResult != nil {
		data.PaymentID = o.PaymentResult.ID
	}
	if o.PaidAt != nil {
		data.PaidAt = *o.PaidAt
	}
	return p.publish(ctx, TopicOrderPaid, EventOrderPaid, o.ID, data)
}

func (p *Producer) PublishOrderDelivered(ctx context.Context, o *domain.Order) error {
	data := OrderDeliveredData{OrderID: o.ID, UserID: o.UserID}
	if o.DeliveredAt != nil {
		data.DeliveredAt = *o.DeliveredAt
	}
	return p.publish(ctx, TopicOrderDelivered, EventOrderDelivered, o.ID, data)
}

func (p *Producer) PublishProductReviewed(ctx context.Context, rv *domain.Review, product *domain.Product) error {
	return p.publish(ctx, TopicProductReviewed, EventProductReviewed, rv.ProductID, ProductReviewedData{
		ProductID:  rv.ProductID,
		ReviewID:   rv.ID,
		UserID:     rv.UserID,
		Rating:     rv.Rating,
		NewRating:  product.Rating,
		NumReviews: product.NumReviews,
	})
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, aggregateID, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
