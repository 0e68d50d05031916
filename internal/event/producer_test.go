package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, event: event})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishOrderCreated(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, discardLogger())
	ctx := logger.WithCorrelationID(context.Background(), "req-42")

	order := &domain.Order{
		ID:         "order-1",
		UserID:     "user-1",
		TotalPrice: 7325,
		Items: []domain.OrderItem{
			{ProductID: "p1", Price: 2500, Qty: 2, Size: "M"},
			{ProductID: "p2", Price: 500, Qty: 1},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishOrderCreated(ctx, order))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicOrderCreated, pub.sent[0].topic)
	evt := pub.sent[0].event
	assert.Equal(t, EventOrderCreated, evt.EventType)
	assert.Equal(t, "order", evt.AggregateType)
	assert.Equal(t, "order-1", evt.AggregateID)
	assert.Equal(t, "req-42", evt.CorrelationID)

	var data OrderCreatedData
	require.NoError(t, evt.UnmarshalData(&data))
	assert.Equal(t, "user-1", data.UserID)
	assert.Equal(t, int64(7325), data.TotalPrice)
	assert.Equal(t, []OrderItemData{
		{ProductID: "p1", Price: 2500, Qty: 2, Size: "M"},
		{ProductID: "p2", Price: 500, Qty: 1},
	}, data.Items)
	assert.True(t, order.CreatedAt.Equal(data.PlacedAt))
}

func TestPublishOrderPaid_CarriesPaymentID(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, discardLogger())
	paidAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	order := &domain.Order{
		ID:            "order-1",
		UserID:        "user-1",
		TotalPrice:    17250,
		IsPaid:        true,
		PaidAt:        &paidAt,
		PaymentResult: &domain.PaymentResult{ID: "PAY-9", Status: "COMPLETED"},
	}
	require.NoError(t, p.PublishOrderPaid(context.Background(), order))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicOrderPaid, pub.sent[0].topic)
	assert.Empty(t, pub.sent[0].event.CorrelationID)

	var data OrderPaidData
	require.NoError(t, pub.sent[0].event.UnmarshalData(&data))
	assert.Equal(t, "PAY-9", data.PaymentID)
	assert.True(t, paidAt.Equal(data.PaidAt))
}

func TestPublishOrderDelivered(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, discardLogger())
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	require.NoError(t, p.PublishOrderDelivered(context.Background(), &domain.Order{
		ID: "order-1", UserID: "user-1", DeliveredAt: &at,
	}))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicOrderDelivered, pub.sent[0].topic)
	var data OrderDeliveredData
	require.NoError(t, pub.sent[0].event.UnmarshalData(&data))
	assert.True(t, at.Equal(data.DeliveredAt))
}

func TestPublishProductReviewed(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProducer(pub, discardLogger())

	rv := &domain.Review{ID: "r1", ProductID: "p1", UserID: "u1", Rating: 5}
	product := &domain.Product{ID: "p1", Rating: 4.5, NumReviews: 2}
	require.NoError(t, p.PublishProductReviewed(context.Background(), rv, product))

	require.Len(t, pub.sent, 1)
	evt := pub.sent[0].event
	assert.Equal(t, TopicProductReviewed, pub.sent[0].topic)
	assert.Equal(t, "product", evt.AggregateType)
	assert.Equal(t, "p1", evt.AggregateID)

	var data ProductReviewedData
	require.NoError(t, evt.UnmarshalData(&data))
	assert.Equal(t, 4.5, data.NewRating)
	assert.Equal(t, 2, data.NumReviews)
}

func TestPublish_WrapsPublisherError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	p := NewProducer(pub, discardLogger())

	err := p.PublishOrderCreated(context.Background(), &domain.Order{ID: "order-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish order.created event")
	assert.ErrorIs(t, err, pub.err)
}
