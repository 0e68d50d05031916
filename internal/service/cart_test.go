package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func newCartFixture() (*CartService, *mockCartRepository, *mockProductRepository) {
	carts := new(mockCartRepository)
	products := new(mockProductRepository)
	svc := NewCartService(carts, products, newTestLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, carts, products
}

func savedCart(carts *mockCartRepository) *domain.Cart {
	for _, call := range carts.Calls {
		if call.Method == "Save" {
			return call.Arguments.Get(1).(*domain.Cart)
		}
	}
	return nil
}

func TestCartGet_MissingCartIsEmpty(t *testing.T) {
	svc, carts, _ := newCartFixture()
	ctx := context.Background()
	carts.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))

	view, err := svc.Get(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, "user-1", view.UserID)
	assert.Empty(t, view.Items)
	assert.Equal(t, domain.DefaultPaymentMethod, view.PaymentMethod)
	assert.Zero(t, view.Totals.TotalPrice)
}

func TestCartGet_RequiresUser(t *testing.T) {
	svc, _, _ := newCartFixture()
	_, err := svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestCartAddItem_SnapshotsCatalog(t *testing.T) {
	svc, carts, products := newCartFixture()
	ctx := context.Background()
	carts.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	products.On("GetByID", ctx, "p-shirt").Return(&shirt, nil)
	carts.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	view, err := svc.AddItem(ctx, "user-1", AddItemInput{ProductID: "p-shirt", Qty: 2, Size: "L"})

	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	item := view.Items[0]
	assert.Equal(t, "Shirt", item.Name)
	assert.Equal(t, int64(2500), item.Price)
	assert.Equal(t, 2, item.Qty)
	assert.Equal(t, 10, item.CountInStock)
	assert.Equal(t, int64(5000), view.Totals.ItemsPrice)
	assert.Equal(t, fixedNow, view.UpdatedAt)

	saved := savedCart(carts)
	require.NotNil(t, saved)
	assert.Equal(t, view.Cart, *saved)
}

func TestCartAddItem_OverStockIsRejected(t *testing.T) {
	svc, carts, products := newCartFixture()
	ctx := context.Background()
	carts.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	products.On("GetByID", ctx, "p-lamp").Return(&lamp, nil)

	_, err := svc.AddItem(ctx, "user-1", AddItemInput{ProductID: "p-lamp", Qty: 2})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	carts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCartAddItem_UnknownProduct(t *testing.T) {
	svc, carts, products := newCartFixture()
	ctx := context.Background()
	products.On("GetByID", ctx, "p-gone").Return(nil, apperrors.NotFound("product", "p-gone"))

	_, err := svc.AddItem(ctx, "user-1", AddItemInput{ProductID: "p-gone", Qty: 1})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	carts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCartRemoveItem(t *testing.T) {
	svc, carts, _ := newCartFixture()
	ctx := context.Background()
	existing := domain.NewCart("user-1")
	existing.Items = []domain.CartItem{
		{ProductID: "p-shirt", Price: 2500, Qty: 1, CountInStock: 10},
		{ProductID: "p-mug", Price: 500, Qty: 2, CountInStock: 3},
	}
	carts.On("Get", ctx, "user-1").Return(&existing, nil)
	carts.On("Save", ctx, mock.Anything).Return(nil)

	view, err := svc.RemoveItem(ctx, "user-1", "p-shirt")

	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "p-mug", view.Items[0].ProductID)
	assert.Len(t, existing.Items, 2)
}

func TestCartSetShippingAndPayment(t *testing.T) {
	svc, carts, _ := newCartFixture()
	ctx := context.Background()
	carts.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	carts.On("Save", ctx, mock.Anything).Return(nil)

	view, err := svc.SetShippingAddress(ctx, "user-1", address)
	require.NoError(t, err)
	assert.Equal(t, address, view.ShippingAddress)

	_, err = svc.SetShippingAddress(ctx, "user-1", domain.ShippingAddress{City: "Nowhere"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	view, err = svc.SetPaymentMethod(ctx, "user-1", "  Stripe ")
	require.NoError(t, err)
	assert.Equal(t, "Stripe", view.PaymentMethod)

	_, err = svc.SetPaymentMethod(ctx, "user-1", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCartClear_KeepsAddress(t *testing.T) {
	svc, carts, _ := newCartFixture()
	ctx := context.Background()
	existing := domain.NewCart("user-1")
	existing.ShippingAddress = address
	existing.Items = []domain.CartItem{{ProductID: "p-mug", Price: 500, Qty: 1, CountInStock: 3}}
	carts.On("Get", ctx, "user-1").Return(&existing, nil)
	carts.On("Save", ctx, mock.Anything).Return(nil)

	view, err := svc.Clear(ctx, "user-1")

	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, address, view.ShippingAddress)
}

func TestCartSaveError(t *testing.T) {
	svc, carts, _ := newCartFixture()
	ctx := context.Background()
	carts.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	carts.On("Save", ctx, mock.Anything).Return(errors.New("redis down"))

	_, err := svc.SetPaymentMethod(ctx, "user-1", "PayPal")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "save cart")
}

func TestRemoveOrdered(t *testing.T) {
	placedAt := fixedNow.Add(-time.Minute)
	ordered := []domain.LineKey{{ProductID: "p-shirt", Size: "M"}, {ProductID: "p-mug"}}

	cartWith := func(updatedAt time.Time, items ...domain.CartItem) *domain.Cart {
		c := domain.NewCart("user-1")
		c.Items = items
		c.ShippingAddress = address
		c.UpdatedAt = updatedAt
		return &c
	}

	t.Run("no cart", func(t *testing.T) {
		svc, carts, _ := newCartFixture()
		ctx := context.Background()
		carts.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))

		require.NoError(t, svc.RemoveOrdered(ctx, "user-1", ordered, placedAt))
		carts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("empty cart", func(t *testing.T) {
		svc, carts, _ := newCartFixture()
		ctx := context.Background()
		carts.On("Get", ctx, "user-1").Return(cartWith(placedAt.Add(-time.Hour)), nil)

		require.NoError(t, svc.RemoveOrdered(ctx, "user-1", ordered, placedAt))
		carts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("removes only ordered lines", func(t *testing.T) {
		svc, carts, _ := newCartFixture()
		ctx := context.Background()
		carts.On("Get", ctx, "user-1").Return(cartWith(placedAt.Add(-time.Hour),
			domain.CartItem{ProductID: "p-shirt", Size: "M", Price: 2500, Qty: 1, CountInStock: 10},
			domain.CartItem{ProductID: "p-shirt", Size: "L", Price: 2500, Qty: 1, CountInStock: 10},
			domain.CartItem{ProductID: "p-mug", Price: 500, Qty: 1, CountInStock: 3},
			domain.CartItem{ProductID: "p-lamp", Price: 15000, Qty: 1, CountInStock: 1},
		), nil)
		carts.On("Save", ctx, mock.Anything).Return(nil)

		require.NoError(t, svc.RemoveOrdered(ctx, "user-1", ordered, placedAt))

		saved := savedCart(carts)
		require.NotNil(t, saved)
		assert.Equal(t, []domain.CartItem{
			{ProductID: "p-shirt", Size: "L", Price: 2500, Qty: 1, CountInStock: 10},
			{ProductID: "p-lamp", Price: 15000, Qty: 1, CountInStock: 1},
		}, saved.Items)
		assert.Equal(t, address, saved.ShippingAddress)
		assert.Equal(t, fixedNow, saved.UpdatedAt)
	})

	t.Run("cart changed after order is kept", func(t *testing.T) {
		svc, carts, _ := newCartFixture()
		ctx := context.Background()
		carts.On("Get", ctx, "user-1").Return(cartWith(placedAt.Add(time.Second),
			domain.CartItem{ProductID: "p-mug", Price: 500, Qty: 2, CountInStock: 3},
		), nil)

		require.NoError(t, svc.RemoveOrdered(ctx, "user-1", ordered, placedAt))
		carts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("nothing ordered in cart", func(t *testing.T) {
		svc, carts, _ := newCartFixture()
		ctx := context.Background()
		carts.On("Get", ctx, "user-1").Return(cartWith(placedAt.Add(-time.Hour),
			domain.CartItem{ProductID: "p-lamp", Price: 15000, Qty: 1, CountInStock: 1},
		), nil)

		require.NoError(t, svc.RemoveOrdered(ctx, "user-1", ordered, placedAt))
		carts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("store error", func(t *testing.T) {
		svc, carts, _ := newCartFixture()
		ctx := context.Background()
		carts.On("Get", ctx, "user-1").Return(nil, errors.New("redis down"))

		assert.Error(t, svc.RemoveOrdered(ctx, "user-1", ordered, placedAt))
	})
}
