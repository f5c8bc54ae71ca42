package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stagedoor/onboarding-service/internal/domain"
)

func signFor(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestBuildCheckoutConvertsToMinorUnits(t *testing.T) {
	c := NewCheckout("rzp_test_key", "secret")
	order := &domain.PaymentOrder{
		OrderID:         "order-1",
		RazorpayOrderID: "rzp_order_1",
		Amount:          9,
		Currency:        "USD",
	}

	cfg := c.BuildCheckout(order, "Jane Doe", "jane@example.com")

	if cfg.Amount != 900 {
		t.Fatalf("expected amount 900 minor units, got %d", cfg.Amount)
	}
	if cfg.Key != "rzp_test_key" {
		t.Fatalf("expected configured key, got %q", cfg.Key)
	}
	if cfg.OrderID != "rzp_order_1" {
		t.Fatalf("expected gateway order id, got %q", cfg.OrderID)
	}
	if cfg.Prefill.Name != "Jane Doe" || cfg.Prefill.Email != "jane@example.com" {
		t.Fatalf("expected prefill from form, got %+v", cfg.Prefill)
	}
}

func TestBuildCheckoutPrefersOrderKey(t *testing.T) {
	c := NewCheckout("rzp_fallback_key", "")
	order := &domain.PaymentOrder{RazorpayOrderID: "rzp_order_1", KeyID: "rzp_order_key", Amount: 19}

	cfg := c.BuildCheckout(order, "", "")
	if cfg.Key != "rzp_order_key" {
		t.Fatalf("expected order-supplied key to win, got %q", cfg.Key)
	}
}

func TestReady(t *testing.T) {
	if !NewCheckout("rzp_test_key", "").Ready() {
		t.Fatal("expected gateway with a key id to be ready")
	}
	if NewCheckout("", "secret").Ready() {
		t.Fatal("expected gateway without a key id to not be ready")
	}
}

func TestVerifySignature(t *testing.T) {
	const secret = "test_secret"
	c := NewCheckout("rzp_test_key", secret)

	good := signFor(secret, "rzp_order_1", "pay_1")
	if !c.VerifySignature("rzp_order_1", "pay_1", good) {
		t.Fatal("expected a correctly signed callback to pass")
	}
	if c.VerifySignature("rzp_order_1", "pay_2", good) {
		t.Fatal("expected a signature for another payment to fail")
	}
	if c.VerifySignature("rzp_order_1", "pay_1", "not-hex") {
		t.Fatal("expected a malformed signature to fail")
	}
	if c.VerifySignature("rzp_order_1", "pay_1", "") {
		t.Fatal("expected an empty signature to fail")
	}
}

func TestVerifySignatureSkippedWithoutSecret(t *testing.T) {
	c := NewCheckout("rzp_test_key", "")
	if !c.VerifySignature("rzp_order_1", "pay_1", "anything") {
		t.Fatal("expected the local pre-check to be skipped with no secret")
	}
}
