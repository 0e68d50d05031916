// Package gateway describes the payment gateways a capture can be verified
// against.
package gateway

import "context"

// StatusCompleted is the only capture status that pays an order.
const StatusCompleted = "COMPLETED"

// Capture is a gateway's record of a payment. Amount is the decimal string
// the gateway reported ("73.25"). CustomID is the merchant reference set when
// the payment was created; empty when none was set.
type Capture struct {
	ID         string
	Status     string
	UpdateTime string
	PayerEmail string
	Amount     string
	Currency   string
	CustomID   string
}

// Verifier looks up a capture on the gateway side.
type Verifier interface {
	// Name returns the gateway name (e.g. "paypal").
	Name() string

	// VerifyCapture fetches the gateway's view of the payment with the given
	// ID.
	VerifyCapture(ctx context.Context, paymentID string) (*Capture, error)
}
