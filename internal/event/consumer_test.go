package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

type clearRecorder struct {
	users    []string
	lines    []domain.LineKey
	placedAt time.Time
	err      error
}

func (c *clearRecorder) clear(_ context.Context, userID string, lines []domain.LineKey, placedAt time.Time) error {
	c.users = append(c.users, userID)
	c.lines = lines
	c.placedAt = placedAt
	return c.err
}

func orderCreated(userID string) OrderCreatedData {
	return OrderCreatedData{
		OrderID: "order-1",
		UserID:  userID,
		Items: []OrderItemData{
			{ProductID: "p1", Price: 2500, Qty: 2, Size: "M", Color: "blue"},
			{ProductID: "p2", Price: 500, Qty: 1},
		},
		PlacedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCartCleaner_RemovesOrderedLines(t *testing.T) {
	rec := &clearRecorder{}
	cleaner := NewCartCleaner(rec.clear, discardLogger())

	evt, err := pkgkafka.NewEvent(EventOrderCreated, "order-1", orderCreated("user-7"))
	require.NoError(t, err)

	require.NoError(t, cleaner.Handle(context.Background(), evt))
	assert.Equal(t, []string{"user-7"}, rec.users)
	assert.Equal(t, []domain.LineKey{
		{ProductID: "p1", Size: "M", Color: "blue"},
		{ProductID: "p2"},
	}, rec.lines)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), rec.placedAt)
}

func TestCartCleaner_FallsBackToEventTime(t *testing.T) {
	rec := &clearRecorder{}
	cleaner := NewCartCleaner(rec.clear, discardLogger())

	data := orderCreated("user-7")
	data.PlacedAt = time.Time{}
	evt, err := pkgkafka.NewEvent(EventOrderCreated, "order-1", data)
	require.NoError(t, err)

	require.NoError(t, cleaner.Handle(context.Background(), evt))
	assert.Equal(t, evt.Timestamp, rec.placedAt)
}

func TestCartCleaner_SkipsOrderWithoutItems(t *testing.T) {
	rec := &clearRecorder{}
	cleaner := NewCartCleaner(rec.clear, discardLogger())

	evt, err := pkgkafka.NewEvent(EventOrderCreated, "order-1", OrderCreatedData{OrderID: "order-1", UserID: "user-7"})
	require.NoError(t, err)

	require.NoError(t, cleaner.Handle(context.Background(), evt))
	assert.Empty(t, rec.users)
}

func TestCartCleaner_IgnoresOtherEvents(t *testing.T) {
	rec := &clearRecorder{}
	cleaner := NewCartCleaner(rec.clear, discardLogger())

	evt, err := pkgkafka.NewEvent(EventOrderPaid, "order-1", OrderPaidData{OrderID: "order-1", UserID: "user-7"})
	require.NoError(t, err)

	require.NoError(t, cleaner.Handle(context.Background(), evt))
	assert.Empty(t, rec.users)
}

func TestCartCleaner_SkipsMissingUser(t *testing.T) {
	rec := &clearRecorder{}
	cleaner := NewCartCleaner(rec.clear, discardLogger())

	evt, err := pkgkafka.NewEvent(EventOrderCreated, "order-1", orderCreated(""))
	require.NoError(t, err)

	require.NoError(t, cleaner.Handle(context.Background(), evt))
	assert.Empty(t, rec.users)
}

func TestCartCleaner_MalformedPayload(t *testing.T) {
	rec := &clearRecorder{}
	cleaner := NewCartCleaner(rec.clear, discardLogger())

	evt := &pkgkafka.Event{EventType: EventOrderCreated, Data: []byte(`"not an object"`)}
	err := cleaner.Handle(context.Background(), evt)

	require.Error(t, err)
	assert.Empty(t, rec.users)
}

func TestCartCleaner_PropagatesClearError(t *testing.T) {
	rec := &clearRecorder{err: errors.New("redis down")}
	cleaner := NewCartCleaner(rec.clear, discardLogger())

	evt, err := pkgkafka.NewEvent(EventOrderCreated, "order-1", orderCreated("user-7"))
	require.NoError(t, err)

	err = cleaner.Handle(context.Background(), evt)
	require.Error(t, err)
	assert.ErrorIs(t, err, rec.err)
}
