package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/gateway"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/pricing"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Currency is the only currency orders are priced in.
const Currency = "USD"

// CaptureAmount is a gateway money value.
type CaptureAmount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

// CapturePurchaseUnit is one purchase unit of a capture callback.
type CapturePurchaseUnit struct {
	Amount   CaptureAmount `json:"amount"`
	CustomID string        `json:"custom_id"`
}

// CapturePayer identifies who paid.
type CapturePayer struct {
	EmailAddress string `json:"email_address"`
}

// CaptureInput is the payment callback the client forwards after approving
// the payment with PayPal.
type CaptureInput struct {
	ID            string                `json:"id" validate:"required"`
	Status        string                `json:"status"`
	UpdateTime    string                `json:"update_time"`
	Payer         CapturePayer          `json:"payer"`
	PurchaseUnits []CapturePurchaseUnit `json:"purchase_units"`
}

func (in CaptureInput) capture() *gateway.Capture {
	c := &gateway.Capture{
		ID:         in.ID,
		Status:     in.Status,
		UpdateTime: in.UpdateTime,
		PayerEmail: in.Payer.EmailAddress,
	}
	if len(in.PurchaseUnits) > 0 {
		c.Amount = in.PurchaseUnits[0].Amount.Value
		c.Currency = in.PurchaseUnits[0].Amount.CurrencyCode
		c.CustomID = in.PurchaseUnits[0].CustomID
	}
	return c
}

// PaymentService reconciles gateway captures with orders.
type PaymentService struct {
	orders   repository.OrderRepository
	payer    *OrderService
	verifier gateway.Verifier
	clientID string
	logger   *slog.Logger
}

// NewPaymentService creates a payment service. With a nil verifier the
// callback payload is trusted for status and amount.
func NewPaymentService(
	orders repository.OrderRepository,
	payer *OrderService,
	verifier gateway.Verifier,
	clientID string,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		orders:   orders,
		payer:    payer,
		verifier: verifier,
		clientID: clientID,
		logger:   logger,
	}
}

// ClientID returns the PayPal client id the browser SDK is loaded with.
func (s *PaymentService) ClientID() string {
	return s.clientID
}

// Capture marks the order paid once the capture is completed, in USD, and
// for exactly the order total. A payment already recorded on another order is
// rejected. Capturing a paid order returns it unchanged.
func (s *PaymentService) Capture(ctx context.Context, orderID string, actor domain.Actor, input CaptureInput) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !actor.IsAdmin() && !order.IsOwnedBy(actor.UserID) {
		return nil, apperrors.Forbidden("not your order")
	}
	if order.IsPaid {
		return order, nil
	}

	capture := input.capture()
	if s.verifier != nil {
		capture, err = s.verifier.VerifyCapture(ctx, input.ID)
		if err != nil {
			return nil, fmt.Errorf("verify capture with %s: %w", s.verifier.Name(), err)
		}
	}

	if err := s.check(ctx, order, capture); err != nil {
		return nil, err
	}

	result := domain.PaymentResult{
		ID:           capture.ID,
		Status:       capture.Status,
		UpdateTime:   capture.UpdateTime,
		EmailAddress: capture.PayerEmail,
	}
	if result.ID == "" {
		result.ID = input.ID
	}
	if err := s.checkUnused(ctx, order, result.ID); err != nil {
		return nil, err
	}
	return s.payer.MarkPaid(ctx, order.ID, result)
}

// checkUnused rejects a payment id that already paid a different order. The
// unique index on the payment id backs this up for concurrent captures.
func (s *PaymentService) checkUnused(ctx context.Context, order *domain.Order, paymentID string) error {
	paidOrderID, err := s.orders.OrderIDByPaymentID(ctx, paymentID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("look up payment %s: %w", paymentID, err)
	case paidOrderID != order.ID:
		return s.reject(ctx, order, paymentID, metrics.MismatchReused, "payment already applied to another order")
	}
	return nil
}

func (s *PaymentService) reject(ctx context.Context, order *domain.Order, paymentID, reason, msg string) error {
	metrics.PaymentMismatches.WithLabelValues(reason).Inc()
	s.logger.WarnContext(ctx, "payment capture rejected",
		slog.String("order_id", order.ID),
		slog.String("payment_id", paymentID),
		slog.String("reason", reason),
	)
	return apperrors.PaymentMismatch(msg)
}

func (s *PaymentService) check(ctx context.Context, order *domain.Order, c *gateway.Capture) error {
	reject := func(reason, msg string) error {
		return s.reject(ctx, order, c.ID, reason, msg)
	}

	if c.CustomID != "" && c.CustomID != order.ID {
		return reject(metrics.MismatchReference, fmt.Sprintf("payment was created for order %s", c.CustomID))
	}
	if c.Status != gateway.StatusCompleted {
		return reject(metrics.MismatchStatus, fmt.Sprintf("payment status is %q, not %s", c.Status, gateway.StatusCompleted))
	}
	if c.Currency != "" && !strings.EqualFold(c.Currency, Currency) {
		return reject(metrics.MismatchCurrency, fmt.Sprintf("payment currency %s, expected %s", c.Currency, Currency))
	}
	amount, err := pricing.ParseAmount(c.Amount)
	if err != nil {
		return reject(metrics.MismatchAmount, fmt.Sprintf("invalid payment amount %q", c.Amount))
	}
	if amount != order.TotalPrice {
		return reject(metrics.MismatchAmount, fmt.Sprintf("paid %s, order total is %s",
			pricing.FormatAmount(amount), pricing.FormatAmount(order.TotalPrice)))
	}
	return nil
}
