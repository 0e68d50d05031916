package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/pricing"
)

// Derived order statuses.
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusDelivered      = "delivered"
)

// DefaultPaymentMethod is preselected on every new cart.
const DefaultPaymentMethod = "PayPal"

// ValidStatuses returns all order statuses.
func ValidStatuses() []string {
	return []string{OrderStatusPendingPayment, OrderStatusPaid, OrderStatusDelivered}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ShippingAddress is where an order ships.
type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// IsMissing reports whether no street address was given.
func (a ShippingAddress) IsMissing() bool {
	return strings.TrimSpace(a.Address) == ""
}

// PaymentResult is what the gateway reported for a capture.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

// OrderItem is a line frozen at order creation.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Brand     string `json:"brand"`
	Price     int64  `json:"price"`
	Qty       int    `json:"qty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

func (i OrderItem) UnitPrice() int64 { return i.Price }
func (i OrderItem) Quantity() int    { return i.Qty }

// LineKey is the cart line this item was ordered from.
func (i OrderItem) LineKey() LineKey {
	return LineKey{ProductID: i.ProductID, Size: i.Size, Color: i.Color}
}

// LineTotal returns price times quantity.
func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Qty)
}

// Order is a placed order. Only the paid and delivered flags change after
// creation, each at most once, and delivery requires payment.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"order_items"`
	ItemsPrice      int64           `json:"items_price"`
	ShippingPrice   int64           `json:"shipping_price"`
	TaxPrice        int64           `json:"tax_price"`
	TotalPrice      int64           `json:"total_price"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	IsPaid          bool            `json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	PaymentResult   *PaymentResult  `json:"payment_result,omitempty"`
	IsDelivered     bool            `json:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Status derives the lifecycle state from the flags.
func (o *Order) Status() string {
	switch {
	case o.IsDelivered:
		return OrderStatusDelivered
	case o.IsPaid:
		return OrderStatusPaid
	default:
		return OrderStatusPendingPayment
	}
}

// Totals returns the stored price breakdown.
func (o *Order) Totals() pricing.Totals {
	return pricing.Totals{
		ItemsPrice:    o.ItemsPrice,
		ShippingPrice: o.ShippingPrice,
		TaxPrice:      o.TaxPrice,
		TotalPrice:    o.TotalPrice,
	}
}

// RecomputeTotals prices the stored items again. For a consistent order it
// equals Totals().
func (o *Order) RecomputeTotals() pricing.Totals {
	return pricing.ComputeTotals(o.Items)
}

// IsOwnedBy reports whether userID placed the order.
func (o *Order) IsOwnedBy(userID string) bool {
	return o.UserID == userID
}

// MarshalJSON adds the derived status to the encoded order.
func (o Order) MarshalJSON() ([]byte, error) {
	type order Order
	return json.Marshal(struct {
		order
		Status string `json:"status"`
	}{order(o), o.Status()})
}
