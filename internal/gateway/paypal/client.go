// Package paypal verifies captures against the PayPal Orders API.
package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/gateway"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const (
	serviceName = "paypal"

	// DefaultBaseURL is the PayPal sandbox.
	DefaultBaseURL = "https://api-m.sandbox.paypal.com"

	// tokenSlack refreshes a token this long before PayPal expires it.
	tokenSlack = time.Minute
)

// Config holds PayPal API credentials and transport settings.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	HTTP         httpclient.Config
	Breaker      httpclient.CircuitBreakerConfig
}

// Client talks to the PayPal REST API with an OAuth2 client-credentials
// token that is cached until shortly before it expires.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	cfg     Config
	logger  *slog.Logger
	refresh singleflight.Group
	now     func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// New creates a PayPal client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Breaker.Name == "" {
		cfg.Breaker = httpclient.DefaultCircuitBreakerConfig(serviceName)
	}

	return &Client{
		http:   httpclient.NewCircuitBreakerClient(httpclient.New(cfg.HTTP), cfg.Breaker, logger),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Name returns the gateway name.
func (c *Client) Name() string {
	return serviceName
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type orderResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Amount   money  `json:"amount"`
		CustomID string `json:"custom_id"`
	} `json:"purchase_units"`
}

// VerifyCapture fetches the PayPal order paymentID and returns its status
// and first purchase unit amount.
func (c *Client) VerifyCapture(ctx context.Context, paymentID string) (*gateway.Capture, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, apperrors.InvalidInput("payment id is required")
	}

	resp, err := c.getOrder(ctx, paymentID)
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		resp, err = c.getOrder(ctx, paymentID)
	}
	if err != nil {
		return nil, c.mapError(ctx, paymentID, err)
	}

	capture := &gateway.Capture{
		ID:         resp.ID,
		Status:     resp.Status,
		UpdateTime: resp.UpdateTime,
		PayerEmail: resp.Payer.EmailAddress,
	}
	if len(resp.PurchaseUnits) > 0 {
		capture.Amount = resp.PurchaseUnits[0].Amount.Value
		capture.Currency = resp.PurchaseUnits[0].Amount.CurrencyCode
		capture.CustomID = resp.PurchaseUnits[0].CustomID
	}
	return capture, nil
}

func (c *Client) getOrder(ctx context.Context, id string) (*orderResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/v2/checkout/orders/"+url.PathEscape(id), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode paypal order: %w", err)
	}
	return &out, nil
}

// accessToken returns the cached token or fetches a new one. Concurrent
// refreshes share one request.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.refresh.Do("token", func() (any, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode paypal token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("paypal returned an empty access token")
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSlack)
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "paypal access token refreshed", slog.Int("expires_in", tr.ExpiresIn))
	return tr.AccessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// mapError turns transport and upstream failures into application errors.
// An unknown PayPal order is a payment mismatch, not a missing storefront
// order.
func (c *Client) mapError(ctx context.Context, paymentID string, err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) && !se.Temporary() && se.StatusCode != http.StatusUnauthorized && se.StatusCode != http.StatusForbidden {
		if se.StatusCode == http.StatusNotFound {
			return apperrors.PaymentMismatch(fmt.Sprintf("payment %s not found at paypal", paymentID))
		}
		return apperrors.PaymentMismatch(fmt.Sprintf("paypal rejected payment %s: %s", paymentID, se.Message))
	}

	c.logger.ErrorContext(ctx, "paypal request failed",
		slog.String("payment_id", paymentID),
		slog.String("error", err.Error()),
	)
	return apperrors.ServiceUnavailable("payment gateway unavailable")
}
