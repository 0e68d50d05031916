package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const orderColumns = `o.id, o.user_id, o.items_price, o.shipping_price, o.tax_price, o.total_price,
	o.shipping_address, o.payment_method, o.is_paid, o.paid_at, o.payment_result,
	o.is_delivered, o.delivered_at, o.created_at, o.updated_at`

const markPaidQuery = `
	UPDATE orders
	SET is_paid = TRUE, paid_at = $2, payment_result = $3, updated_at = $2
	WHERE id = $1 AND is_paid = FALSE`

// paymentIDIndex keeps one gateway payment from paying two orders.
const paymentIDIndex = "uq_orders_payment_id"

const markDeliveredQuery = `
	UPDATE orders
	SET is_delivered = TRUE, delivered_at = $2, updated_at = $2
	WHERE id = $1 AND is_paid = TRUE AND is_delivered = FALSE`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order row and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "orders.Create", "INSERT INTO orders")
	defer func() { end(err) }()

	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, items_price, shipping_price, tax_price, total_price,
				shipping_address, payment_method, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			o.ID,
			o.UserID,
			o.ItemsPrice,
			o.ShippingPrice,
			o.TaxPrice,
			o.TotalPrice,
			addressJSON,
			o.PaymentMethod,
			o.CreatedAt,
			o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i, item := range o.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items (id, order_id, product_id, name, image, brand, price, qty, size, color, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				item.ID,
				o.ID,
				item.ProductID,
				item.Name,
				item.Image,
				item.Brand,
				item.Price,
				item.Qty,
				item.Size,
				item.Color,
				i,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
}

// GetByID loads an order with its items in a single query.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', oi.id,
						'order_id', oi.order_id,
						'product_id', oi.product_id,
						'name', oi.name,
						'image', oi.image,
						'brand', oi.brand,
						'price', oi.price,
						'qty', oi.qty,
						'size', oi.size,
						'color', oi.color
					) ORDER BY oi.position
				) FILTER (WHERE oi.id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.id = $1
		GROUP BY o.id`

	var itemsJSON []byte
	o, err := scanOrder(r.pool.QueryRow(ctx, query, id).Scan, &itemsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return o, nil
}

// List returns a page of orders, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		cond, err := statusCondition(*filter.Status)
		if err != nil {
			return nil, 0, err
		}
		conditions = append(conditions, cond)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders o
		%s
		ORDER BY o.created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var total int
	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows.Scan, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// loadItems fills the items of every order with one query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, name, image, brand, price, qty, size, color
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("batch load order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.OrderItem, len(orders))
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.ProductID,
			&it.Name,
			&it.Image,
			&it.Brand,
			&it.Price,
			&it.Qty,
			&it.Size,
			&it.Color,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order item rows: %w", err)
	}

	for i := range orders {
		if items, ok := byOrder[orders[i].ID]; ok {
			orders[i].Items = items
		} else {
			orders[i].Items = []domain.OrderItem{}
		}
	}
	return nil
}

// MarkPaid is a single conditional update, so concurrent captures of the
// same order cannot both succeed.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, result domain.PaymentResult, at time.Time) (ok bool, err error) {
	ctx, end := database.TraceQuery(ctx, "orders.MarkPaid", markPaidQuery)
	defer func() { end(err) }()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal payment result: %w", err)
	}

	ct, err := r.pool.Exec(ctx, markPaidQuery, id, at, resultJSON)
	if err != nil {
		if database.IsUniqueViolation(err, paymentIDIndex) {
			return false, apperrors.PaymentMismatch(fmt.Sprintf("payment %s already applied to another order", result.ID))
		}
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// OrderIDByPaymentID returns the order a gateway payment was recorded on.
func (r *OrderRepository) OrderIDByPaymentID(ctx context.Context, paymentID string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM orders WHERE payment_result->>'id' = $1 LIMIT 1`, paymentID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("payment", paymentID)
		}
		return "", fmt.Errorf("find order by payment: %w", err)
	}
	return id, nil
}

// MarkDelivered is a single conditional update guarded by the paid flag.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id string, at time.Time) (ok bool, err error) {
	ctx, end := database.TraceQuery(ctx, "orders.MarkDelivered", markDeliveredQuery)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, markDeliveredQuery, id, at)
	if err != nil {
		return false, fmt.Errorf("mark order delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Summary counts orders and sums paid revenue.
func (r *OrderRepository) Summary(ctx context.Context) (repository.OrderSummary, error) {
	var s repository.OrderSummary
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_paid),
			COUNT(*) FILTER (WHERE is_delivered),
			COALESCE(SUM(total_price) FILTER (WHERE is_paid), 0)::BIGINT
		FROM orders`,
	).Scan(&s.TotalOrders, &s.PaidOrders, &s.DeliveredOrders, &s.PaidRevenue)
	if err != nil {
		return repository.OrderSummary{}, fmt.Errorf("order summary: %w", err)
	}
	return s, nil
}

// SalesByDate sums paid revenue per UTC day of payment.
func (r *OrderRepository) SalesByDate(ctx context.Context) ([]repository.DailySales, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			TO_CHAR(DATE_TRUNC('day', paid_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
			COUNT(*),
			COALESCE(SUM(total_price), 0)::BIGINT
		FROM orders
		WHERE is_paid AND paid_at IS NOT NULL
		GROUP BY day
		ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("sales by date: %w", err)
	}
	defer rows.Close()

	sales := make([]repository.DailySales, 0)
	for rows.Next() {
		var d repository.DailySales
		if err := rows.Scan(&d.Date, &d.Orders, &d.Revenue); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		sales = append(sales, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily sales: %w", err)
	}
	return sales, nil
}

func statusCondition(status string) (string, error) {
	switch status {
	case domain.OrderStatusPendingPayment:
		return "o.is_paid = FALSE", nil
	case domain.OrderStatusPaid:
		return "o.is_paid = TRUE AND o.is_delivered = FALSE", nil
	case domain.OrderStatusDelivered:
		return "o.is_delivered = TRUE", nil
	default:
		return "", apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: %s",
			status, strings.Join(domain.ValidStatuses(), ", ")))
	}
}

// scanOrder scans orderColumns followed by extra destinations.
func scanOrder(scan func(dest ...any) error, extra ...any) (*domain.Order, error) {
	var (
		o           domain.Order
		addressJSON []byte
		resultJSON  []byte
	)

	dest := []any{
		&o.ID,
		&o.UserID,
		&o.ItemsPrice,
		&o.ShippingPrice,
		&o.TaxPrice,
		&o.TotalPrice,
		&addressJSON,
		&o.PaymentMethod,
		&o.IsPaid,
		&o.PaidAt,
		&resultJSON,
		&o.IsDelivered,
		&o.DeliveredAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
	if err := scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if len(addressJSON) > 0 {
		if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}
	if len(resultJSON) > 0 && string(resultJSON) != "null" {
		var pr domain.PaymentResult
		if err := json.Unmarshal(resultJSON, &pr); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		o.PaymentResult = &pr
	}
	return &o, nil
}
