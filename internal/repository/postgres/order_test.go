package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

var orderColumnNames = []string{
	"id", "user_id", "items_price", "shipping_price", "tax_price", "total_price",
	"shipping_address", "payment_method", "is_paid", "paid_at", "payment_result",
	"is_delivered", "delivered_at", "created_at", "updated_at",
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func sampleOrder() *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Order{
		ID:     "order-001",
		UserID: "user-001",
		Items: []domain.OrderItem{
			{ID: "item-001", OrderID: "order-001", ProductID: "prod-001", Name: "Runner", Image: "/r.jpg", Brand: "Acme", Price: 2000, Qty: 2, Size: "42"},
			{ID: "item-002", OrderID: "order-001", ProductID: "prod-002", Name: "Sock", Price: 1500, Qty: 1},
		},
		ItemsPrice:      5500,
		ShippingPrice:   1000,
		TaxPrice:        825,
		TotalPrice:      7325,
		ShippingAddress: domain.ShippingAddress{Address: "1 Main St", City: "Oslo", PostalCode: "0150", Country: "NO"},
		PaymentMethod:   "PayPal",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func expectOrderInsert(mock pgxmock.PgxPoolIface, o *domain.Order) *pgxmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			o.ID, o.UserID,
			o.ItemsPrice, o.ShippingPrice, o.TaxPrice, o.TotalPrice,
			pgxmock.AnyArg(), // shipping address JSON
			o.PaymentMethod, o.CreatedAt, o.UpdatedAt,
		)
}

func expectItemInsert(mock pgxmock.PgxPoolIface, o *domain.Order, i int) *pgxmock.ExpectedExec {
	it := o.Items[i]
	return mock.ExpectExec("INSERT INTO order_items").
		WithArgs(it.ID, o.ID, it.ProductID, it.Name, it.Image, it.Brand, it.Price, it.Qty, it.Size, it.Color, i)
}

func TestOrderRepository_Create_Success(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()

	mock.ExpectBegin()
	expectOrderInsert(mock, o).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectItemInsert(mock, o, 0).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectItemInsert(mock, o, 1).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_ItemInsertRollsBack(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()

	mock.ExpectBegin()
	expectOrderInsert(mock, o).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectItemInsert(mock, o, 0).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order item")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_Success(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	now := time.Now().UTC().Truncate(time.Microsecond)
	paidAt := now.Add(time.Minute)
	addressJSON, _ := json.Marshal(domain.ShippingAddress{Address: "1 Main St", City: "Oslo"})
	resultJSON, _ := json.Marshal(domain.PaymentResult{ID: "PAY-1", Status: "COMPLETED", EmailAddress: "ada@example.com"})
	itemsJSON, _ := json.Marshal([]map[string]any{
		{"id": "item-001", "order_id": "order-001", "product_id": "prod-001", "name": "Runner", "price": 2000, "qty": 2, "size": "42"},
		{"id": "item-002", "order_id": "order-001", "product_id": "prod-002", "name": "Sock", "price": 1500, "qty": 1},
	})

	mock.ExpectQuery("SELECT .+ FROM orders o").
		WithArgs("order-001").
		WillReturnRows(pgxmock.NewRows(append(orderColumnNames, "items")).AddRow(
			"order-001", "user-001", int64(5500), int64(1000), int64(825), int64(7325),
			addressJSON, "PayPal", true, &paidAt, resultJSON,
			false, nil, now, now,
			itemsJSON,
		))

	o, err := repo.GetByID(context.Background(), "order-001")
	require.NoError(t, err)

	assert.Equal(t, "user-001", o.UserID)
	assert.Equal(t, int64(7325), o.TotalPrice)
	assert.Equal(t, "Oslo", o.ShippingAddress.City)
	assert.True(t, o.IsPaid)
	require.NotNil(t, o.PaidAt)
	require.NotNil(t, o.PaymentResult)
	assert.Equal(t, "PAY-1", o.PaymentResult.ID)
	assert.Nil(t, o.DeliveredAt)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 2, o.Items[0].Qty)
	assert.Equal(t, "42", o.Items[0].Size)
	assert.Equal(t, o.Totals(), o.RecomputeTotals())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM orders o").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_FiltersAndLoadsItems(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	now := time.Now().UTC().Truncate(time.Microsecond)
	addressJSON, _ := json.Marshal(domain.ShippingAddress{Address: "1 Main St"})
	userID, status := "user-001", domain.OrderStatusPaid

	mock.ExpectQuery(`SELECT .+ FROM orders o\s+WHERE o.user_id = \$1 AND o.is_paid = TRUE AND o.is_delivered = FALSE`).
		WithArgs("user-001", 10, 10).
		WillReturnRows(pgxmock.NewRows(append(orderColumnNames, "total_count")).
			AddRow("order-002", "user-001", int64(15000), int64(0), int64(2250), int64(17250),
				addressJSON, "PayPal", true, &now, nil, false, nil, now, now, 11).
			AddRow("order-001", "user-001", int64(5500), int64(1000), int64(825), int64(7325),
				addressJSON, "PayPal", true, &now, nil, false, nil, now, now, 11))

	mock.ExpectQuery("SELECT .+ FROM order_items").
		WithArgs([]string{"order-002", "order-001"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "product_id", "name", "image", "brand", "price", "qty", "size", "color"}).
			AddRow("item-003", "order-002", "prod-009", "Jacket", "", "", int64(15000), 1, "", "").
			AddRow("item-001", "order-001", "prod-001", "Runner", "", "", int64(2000), 2, "", "").
			AddRow("item-002", "order-001", "prod-002", "Sock", "", "", int64(1500), 1, "", ""))

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{
		UserID: &userID, Status: &status, Page: 2, PerPage: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, orders, 2)
	assert.Len(t, orders[0].Items, 1)
	assert.Len(t, orders[1].Items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_InvalidStatus(t *testing.T) {
	repo := NewOrderRepository(newMockPool(t))
	status := "shipped"

	_, _, err := repo.List(context.Background(), repository.OrderFilter{Status: &status})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestOrderRepository_MarkPaid(t *testing.T) {
	at := time.Now().UTC()
	result := domain.PaymentResult{ID: "PAY-1", Status: "COMPLETED"}

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"transition", 1, true},
		{"already paid or missing", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			repo := NewOrderRepository(mock)

			mock.ExpectExec(`UPDATE orders\s+SET is_paid = TRUE`).
				WithArgs("order-001", at, pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			ok, err := repo.MarkPaid(context.Background(), "order-001", result, at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestOrderRepository_MarkDelivered(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE orders\s+SET is_delivered = TRUE`).
		WithArgs("order-001", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE orders\s+SET is_delivered = TRUE`).
		WithArgs("order-001", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.MarkDelivered(context.Background(), "order-001", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkDelivered(context.Background(), "order-001", at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_MarkPaid_DBError(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectExec("UPDATE orders").WillReturnError(errors.New("connection reset"))

	_, err := repo.MarkPaid(context.Background(), "order-001", domain.PaymentResult{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark order paid")
}

func TestOrderRepository_Summary(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM orders").
		WillReturnRows(pgxmock.NewRows([]string{"count", "paid", "delivered", "revenue"}).
			AddRow(int64(3), int64(2), int64(1), int64(24575)))

	s, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, repository.OrderSummary{TotalOrders: 3, PaidOrders: 2, DeliveredOrders: 1, PaidRevenue: 24575}, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_MarkPaid_PaymentAlreadyUsed(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectExec(`UPDATE orders\s+SET is_paid = TRUE`).
		WithArgs("order-002", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: database.UniqueViolation, ConstraintName: "uq_orders_payment_id"})

	ok, err := repo.MarkPaid(context.Background(), "order-002", domain.PaymentResult{ID: "PAY-1"}, time.Now())
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperrors.ErrPaymentMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_OrderIDByPaymentID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery(`SELECT id FROM orders WHERE payment_result->>'id' = \$1`).
		WithArgs("PAY-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("order-001"))
	mock.ExpectQuery(`SELECT id FROM orders WHERE payment_result->>'id' = \$1`).
		WithArgs("PAY-2").
		WillReturnError(pgx.ErrNoRows)

	id, err := repo.OrderIDByPaymentID(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, "order-001", id)

	_, err = repo.OrderIDByPaymentID(context.Background(), "PAY-2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_SalesByDate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM orders\s+WHERE is_paid .+ GROUP BY day\s+ORDER BY day`).
		WillReturnRows(pgxmock.NewRows([]string{"day", "count", "revenue"}).
			AddRow("2026-02-28", int64(1), int64(7325)).
			AddRow("2026-03-01", int64(2), int64(17250)))

	sales, err := repo.SalesByDate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []repository.DailySales{
		{Date: "2026-02-28", Orders: 1, Revenue: 7325},
		{Date: "2026-03-01", Orders: 2, Revenue: 17250},
	}, sales)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_SalesByDate_Empty(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM orders").
		WillReturnRows(pgxmock.NewRows([]string{"day", "count", "revenue"}))

	sales, err := repo.SalesByDate(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sales)
	assert.Empty(t, sales)
}
