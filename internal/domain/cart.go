package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/pricing"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CartItem is a cart line. Price and CountInStock are snapshots taken when
// the line was added.
type CartItem struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Image        string `json:"image"`
	Brand        string `json:"brand"`
	Price        int64  `json:"price"`
	Qty          int    `json:"qty"`
	Size         string `json:"size,omitempty"`
	Color        string `json:"color,omitempty"`
	CountInStock int    `json:"count_in_stock"`
}

func (i CartItem) UnitPrice() int64 { return i.Price }
func (i CartItem) Quantity() int    { return i.Qty }

// LineKey identifies a product variant within a cart.
type LineKey struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

func (i CartItem) Key() LineKey {
	return LineKey{ProductID: i.ProductID, Size: i.Size, Color: i.Color}
}

// sameLine reports whether two items are the same product variant.
func (i CartItem) sameLine(o CartItem) bool {
	return i.Key() == o.Key()
}

// Cart is a user's cart. It changes only through Apply.
type Cart struct {
	UserID          string          `json:"user_id"`
	Items           []CartItem      `json:"cart_items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewCart returns an empty cart for userID.
func NewCart(userID string) Cart {
	return Cart{
		UserID:        userID,
		Items:         []CartItem{},
		PaymentMethod: DefaultPaymentMethod,
	}
}

// Totals prices the cart.
func (c Cart) Totals() pricing.Totals {
	return pricing.ComputeTotals(c.Items)
}

// CartCommand is one of AddItem, RemoveItem, RemoveLines, SetShipping,
// SetPayment or Clear.
type CartCommand interface {
	cartCommand()
}

// AddItem puts Item in the cart with quantity Qty, replacing the quantity
// of an existing line for the same product, size and color.
type AddItem struct {
	Item CartItem
	Qty  int
}

// RemoveItem drops every line of a product.
type RemoveItem struct {
	ProductID string
}

// RemoveLines drops the given variants and leaves every other line alone.
type RemoveLines struct {
	Lines []LineKey
}

// SetShipping sets the shipping address.
type SetShipping struct {
	Address ShippingAddress
}

// SetPayment sets the payment method.
type SetPayment struct {
	Method string
}

// Clear empties the items. Address and payment method stay.
type Clear struct{}

func (AddItem) cartCommand()     {}
func (RemoveItem) cartCommand()  {}
func (RemoveLines) cartCommand() {}
func (SetShipping) cartCommand() {}
func (SetPayment) cartCommand()  {}
func (Clear) cartCommand()       {}

// Apply returns the cart that results from cmd. The receiver is not
// modified.
func (c Cart) Apply(cmd CartCommand) (Cart, error) {
	next := c
	next.Items = slices.Clone(c.Items)
	if next.Items == nil {
		next.Items = []CartItem{}
	}

	switch cmd := cmd.(type) {
	case AddItem:
		item := cmd.Item
		if strings.TrimSpace(item.ProductID) == "" {
			return c, apperrors.InvalidInput("product_id is required")
		}
		if cmd.Qty <= 0 {
			return c, apperrors.InvalidInput("qty must be at least 1")
		}
		if cmd.Qty > item.CountInStock {
			return c, apperrors.InvalidInput(fmt.Sprintf("qty %d exceeds stock of %d", cmd.Qty, item.CountInStock))
		}
		item.Qty = max(1, min(cmd.Qty, item.CountInStock))

		if i := slices.IndexFunc(next.Items, item.sameLine); i >= 0 {
			next.Items[i] = item
		} else {
			next.Items = append(next.Items, item)
		}

	case RemoveItem:
		next.Items = slices.DeleteFunc(next.Items, func(it CartItem) bool {
			return it.ProductID == cmd.ProductID
		})

	case RemoveLines:
		next.Items = slices.DeleteFunc(next.Items, func(it CartItem) bool {
			return slices.Contains(cmd.Lines, it.Key())
		})

	case SetShipping:
		if cmd.Address.IsMissing() {
			return c, apperrors.InvalidInput("shipping address is required")
		}
		next.ShippingAddress = cmd.Address

	case SetPayment:
		method := strings.TrimSpace(cmd.Method)
		if method == "" {
			return c, apperrors.InvalidInput("payment method is required")
		}
		next.PaymentMethod = method

	case Clear:
		next.Items = []CartItem{}

	default:
		return c, apperrors.InvalidInput(fmt.Sprintf("unknown cart command %T", cmd))
	}

	return next, nil
}
