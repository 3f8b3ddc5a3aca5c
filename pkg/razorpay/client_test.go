package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/agrolinkhq/agrolink-backend/pkg/config"
)

func TestNewClientValidatesCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cases := []struct {
		name    string
		cfg     config.RazorpayConfig
		wantErr string
	}{
		{
			name:    "missing key id",
			cfg:     config.RazorpayConfig{KeySecret: "secret"},
			wantErr: "key id is required",
		},
		{
			name:    "missing secret",
			cfg:     config.RazorpayConfig{KeyID: "rzp_test_abc"},
			wantErr: "key secret is required",
		},
		{
			name:    "live env with test key",
			cfg:     config.RazorpayConfig{KeyID: "rzp_test_abc", KeySecret: "secret", Env: "live"},
			wantErr: "requires a live key id",
		},
		{
			name:    "unknown env",
			cfg:     config.RazorpayConfig{KeyID: "rzp_test_abc", KeySecret: "secret", Env: "sandbox"},
			wantErr: "environment must be",
		},
	}

	for _, tc := range cases {
		if _, err := NewClient(ctx, tc.cfg, nil); err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.wantErr, err)
		}
	}

	client, err := NewClient(ctx, config.RazorpayConfig{KeyID: "rzp_test_abc", KeySecret: "secret"}, nil)
	if err != nil {
		t.Fatalf("valid test config rejected: %v", err)
	}
	if client.Environment() != "test" {
		t.Fatalf("expected test environment, got %q", client.Environment())
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	orderID := "order_123"
	paymentID := "pay_456"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	signature := hex.EncodeToString(mac.Sum(nil))

	if !VerifySignature(orderID, paymentID, signature, secret) {
		t.Fatal("expected valid signature to verify")
	}
	if VerifySignature(orderID, paymentID, signature, "other-secret") {
		t.Fatal("expected wrong secret to fail")
	}
	if VerifySignature(orderID, "pay_789", signature, secret) {
		t.Fatal("expected wrong payment id to fail")
	}
	if VerifySignature(orderID, paymentID, "", secret) {
		t.Fatal("expected empty signature to fail")
	}
}

func TestNewClientAppliesTimeout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	client, err := NewClient(ctx, config.RazorpayConfig{
		KeyID:     "rzp_test_abc",
		KeySecret: "secret",
		Timeout:   3 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if got := client.Timeout(); got != 3*time.Second {
		t.Fatalf("expected 3s gateway timeout, got %s", got)
	}

	fallback, err := NewClient(ctx, config.RazorpayConfig{
		KeyID:     "rzp_test_abc",
		KeySecret: "secret",
	}, nil)
	if err != nil {
		t.Fatalf("new client without timeout: %v", err)
	}
	if got := fallback.Timeout(); got != defaultTimeout {
		t.Fatalf("expected default gateway timeout, got %s", got)
	}
}
