/**
 * @description
 * Abstraction over the hosted Razorpay checkout. The orchestration flow never
 * touches the gateway's concrete shape: it builds an opaque checkout config,
 * hands it to the client, and waits for exactly one of two completion paths —
 * a success callback carrying signature fields, or a dismissal.
 *
 * Key features:
 * - Checkout config construction with amounts converted to minor units.
 * - Local HMAC-SHA256 signature pre-check before the authoritative backend
 *   verification call.
 */
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/stagedoor/onboarding-service/internal/domain"
)

// CheckoutConfig is the options object handed to the hosted checkout. Field
// names follow the gateway's wire format.
type CheckoutConfig struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"` // minor currency units
	Currency    string  `json:"currency"`
	OrderID     string  `json:"order_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
}

// Prefill pre-populates the checkout's contact fields.
type Prefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Theme carries checkout branding.
type Theme struct {
	Color string `json:"color"`
}

// CompletionResponse holds the fields the gateway hands back after a
// user-completed payment.
type CompletionResponse struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// Checkout builds checkout configs and pre-checks completion signatures for
// one Razorpay key pair.
type Checkout struct {
	keyID     string
	keySecret string
}

// NewCheckout creates a Checkout for the given key pair.
func NewCheckout(keyID, keySecret string) *Checkout {
	return &Checkout{keyID: keyID, keySecret: keySecret}
}

// Ready reports whether the gateway is usable. The order-initiation step
// refuses to run until this is true, mirroring the script-loaded gate of the
// hosted checkout.
func (c *Checkout) Ready() bool {
	return c != nil && c.keyID != ""
}

// BuildCheckout produces the config for a payment order. The backend returns
// amounts in major units; the checkout expects minor units.
func (c *Checkout) BuildCheckout(order *domain.PaymentOrder, name, email string) CheckoutConfig {
	key := order.KeyID
	if key == "" {
		key = c.keyID
	}
	return CheckoutConfig{
		Key:         key,
		Amount:      order.Amount * 100,
		Currency:    order.Currency,
		OrderID:     order.RazorpayOrderID,
		Name:        "StageDoor",
		Description: "StageDoor subscription",
		Prefill:     Prefill{Name: name, Email: email},
		Theme:       Theme{Color: "#7c3aed"},
	}
}

// VerifySignature checks the completion signature locally: HMAC-SHA256 of
// "orderID|paymentID" keyed with the secret, hex encoded. The backend verify
// call remains authoritative; this only rejects obviously forged callbacks
// before a network round trip. With no secret configured the check is skipped.
func (c *Checkout) VerifySignature(orderID, paymentID, signature string) bool {
	if c == nil || c.keySecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	expectedRaw, _ := hex.DecodeString(expected)
	return hmac.Equal(provided, expectedRaw)
}
