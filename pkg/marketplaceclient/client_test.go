package marketplaceclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendOTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/otp/send" {
			t.Fatalf("expected path /otp/send, got %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("expected api key header, got %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["email"] != "jane@example.com" || body["otp_type"] != "signup" {
			t.Fatalf("unexpected request body: %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "message": "OTP sent"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	resp, err := client.SendOTP(context.Background(), "jane@example.com", "signup")
	if err != nil {
		t.Fatalf("SendOTP returned error: %v", err)
	}
	if !resp.Success || resp.Message != "OTP sent" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateOrderUnwrapsDataEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/create-order" {
			t.Fatalf("expected path /payments/create-order, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"orderId": "order-1", "razorpayOrderId": "rzp_order_1", "amount": 9, "currency": "USD"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	order, err := client.CreateOrder(context.Background(), nil, "community", "jane@example.com")
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	if order.OrderID != "order-1" || order.RazorpayOrderID != "rzp_order_1" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.Amount != 9 || order.Currency != "USD" {
		t.Fatalf("unexpected order amount: %+v", order)
	}
}

func TestSignUpForwardsIdempotencyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/signup" {
			t.Fatalf("expected path /auth/signup, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "idem-1" {
			t.Fatalf("expected idempotency key header, got %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if err := client.SignUp(context.Background(), SignupRequest{Email: "jane@example.com"}, "idem-1"); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
}

func TestLinkOrderUsesOrderPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/payments/order/order-1" {
			t.Fatalf("expected order path, got %s", r.URL.Path)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	err := client.LinkOrder(context.Background(), "order-1", LinkOrderRequest{RazorpayOrderID: "rzp_order_1", Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("LinkOrder returned error: %v", err)
	}
}

func TestNon2xxBecomesErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "conflict", "message": "Email already registered"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	err := client.SignUp(context.Background(), SignupRequest{Email: "jane@example.com"}, "idem-1")
	if err == nil {
		t.Fatal("expected error for 409 response")
	}

	var apiErr *ErrorResponse
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *ErrorResponse, got %T", err)
	}
	if apiErr.Status != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", apiErr.Status)
	}
	if apiErr.Error() != "Email already registered" {
		t.Fatalf("expected backend message, got %q", apiErr.Error())
	}
}

func TestNon2xxWithUnparsableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	err := client.SignIn(context.Background(), "jane@example.com", "secret123")
	if err == nil {
		t.Fatal("expected error for 502 response")
	}

	var apiErr *ErrorResponse
	if errors.As(err, &apiErr) {
		t.Fatalf("expected a plain error for an unparsable body, got %+v", apiErr)
	}
}
