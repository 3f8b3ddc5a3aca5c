package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/agrolinkhq/agrolink-backend/pkg/config"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultTimeout = 15 * time.Second

	// PaymentStatusCaptured is the only gateway status accepted as proof
	// of settled funds.
	PaymentStatusCaptured = "captured"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
	errInvalidEnv        = fmt.Errorf("razorpay environment must be %q or %q", testEnv, liveEnv)
)

// Order is the gateway-side order created ahead of an online payment.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// Payment is the authoritative view of a payment fetched from the gateway.
type Payment struct {
	ID       string
	OrderID  string
	Status   string
	Amount   int64
	Currency string
	Method   string
}

// Client wraps the Razorpay SDK plus env-specific metadata.
type Client struct {
	api         *razorpay.Client
	environment string
	keySecret   string
	timeout     time.Duration
}

// NewClient initializes the Razorpay SDK once with the configured credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}

	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	if err := validateKeyID(env, keyID); err != nil {
		return nil, err
	}

	api := razorpay.NewClient(keyID, keySecret)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	// The SDK takes whole seconds; every gateway call fails closed once
	// the deadline passes instead of hanging on the transport default.
	seconds := int64(timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	api.SetTimeout(int16(seconds))

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("razorpay client initialized (%s, timeout %s)", env, timeout))
	}

	return &Client{
		api:         api,
		environment: env,
		keySecret:   keySecret,
		timeout:     timeout,
	}, nil
}

// Timeout reports the per-call deadline applied to gateway requests.
func (c *Client) Timeout() time.Duration {
	if c == nil {
		return 0
	}
	return c.timeout
}

// Environment reports the normalized Razorpay environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateOrder registers an order with the gateway for the given amount in
// paise. The receipt ties the gateway order back to our cart.
func (c *Client) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*Order, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("razorpay client not initialized")
	}
	if amountPaise <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %d", amountPaise)
	}
	if currency == "" {
		currency = "INR"
	}

	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
		"receipt":  receipt,
	}
	body, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}

	order := &Order{
		ID:       stringField(body, "id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Receipt:  stringField(body, "receipt"),
	}
	if order.ID == "" {
		return nil, errors.New("razorpay order create: response missing id")
	}
	return order, nil
}

// FetchPayment loads the authoritative payment state from the gateway.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("razorpay client not initialized")
	}
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}

	body, err := c.api.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay payment fetch: %w", err)
	}

	payment := &Payment{
		ID:       stringField(body, "id"),
		OrderID:  stringField(body, "order_id"),
		Status:   stringField(body, "status"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Method:   stringField(body, "method"),
	}
	if payment.ID == "" {
		return nil, errors.New("razorpay payment fetch: response missing id")
	}
	return payment, nil
}

// Refund issues a refund for the given amount in paise and returns the
// gateway refund id.
func (c *Client) Refund(ctx context.Context, paymentID string, amountPaise int64) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.New("razorpay client not initialized")
	}
	if strings.TrimSpace(paymentID) == "" {
		return "", errors.New("payment id is required")
	}
	if amountPaise <= 0 {
		return "", fmt.Errorf("refund amount must be positive, got %d", amountPaise)
	}

	body, err := c.api.Payment.Refund(paymentID, int(amountPaise), nil, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay refund: %w", err)
	}

	refundID := stringField(body, "id")
	if refundID == "" {
		return "", errors.New("razorpay refund: response missing id")
	}
	return refundID, nil
}

// VerifyPaymentSignature checks the checkout callback signature:
// HMAC-SHA256(orderID + "|" + paymentID) keyed with the API secret.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if c == nil {
		return false
	}
	return VerifySignature(orderID, paymentID, signature, c.keySecret)
}

// VerifySignature recomputes the expected callback signature and compares it
// in constant time.
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}

func validateKeyID(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "rzp_test_") {
			return nil
		}
		return fmt.Errorf("razorpay environment %q requires a test key id (rzp_test_)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "rzp_live_") {
			return nil
		}
		return fmt.Errorf("razorpay environment %q requires a live key id (rzp_live_)", liveEnv)
	default:
		return errInvalidEnv
	}
}

func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

func intField(body map[string]interface{}, key string) int64 {
	switch v := body[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
