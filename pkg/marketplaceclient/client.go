/**
 * @description
 * This package provides a client for the marketplace backend REST API, the
 * system of record for users, payment orders, and payments. It encapsulates
 * the logic for making authenticated HTTP requests, handling request body
 * construction, and parsing responses.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package marketplaceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/stagedoor/onboarding-service/internal/domain"
)

// Client is a client for the marketplace backend API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new marketplace API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StatusResponse is the common `{success, message}` shape returned by the OTP
// and payment-verification endpoints.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type otpRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otp_code,omitempty"`
	OTPType string `json:"otp_type"`
}

type createOrderRequest struct {
	UserID           *string `json:"userId"`
	SubscriptionType string  `json:"subscriptionType"`
	Email            string  `json:"email"`
}

type createOrderResponse struct {
	Data domain.PaymentOrder `json:"data"`
}

// VerifyPaymentRequest carries the gateway signature fields to the backend
// verify endpoint.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string  `json:"razorpay_order_id"`
	RazorpayPaymentID string  `json:"razorpay_payment_id"`
	RazorpaySignature string  `json:"razorpay_signature"`
	UserID            *string `json:"userId"`
	Email             string  `json:"email"`
}

// LinkOrderRequest associates a paid order with the account created after
// payment.
type LinkOrderRequest struct {
	UserID          string `json:"userId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
	Email           string `json:"email"`
}

// SignupRequest is the account-creation payload.
type SignupRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Username         string `json:"username"`
	DisplayName      string `json:"display_name"`
	Role             string `json:"role"`
	SubscriptionType string `json:"subscription_type"`
	Bio              string `json:"bio"`
	AvatarURL        string `json:"avatar_url"`
}

// SigninRequest is the sign-in payload.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ErrorResponse represents an error body from the marketplace API.
type ErrorResponse struct {
	Err     string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != "" {
		return e.Err
	}
	return fmt.Sprintf("marketplace api error (status %d)", e.Status)
}

// SendOTP asks the backend to email a one-time code.
func (c *Client) SendOTP(ctx context.Context, email, otpType string) (*StatusResponse, error) {
	return c.doStatus(ctx, "POST", "/otp/send", otpRequest{Email: email, OTPType: otpType}, "")
}

// VerifyOTP confirms a user-entered code against the one generated for email.
func (c *Client) VerifyOTP(ctx context.Context, email, code, otpType string) (*StatusResponse, error) {
	return c.doStatus(ctx, "POST", "/otp/verify", otpRequest{Email: email, OTPCode: code, OTPType: otpType}, "")
}

// ResendOTP asks the backend to email a fresh code.
func (c *Client) ResendOTP(ctx context.Context, email, otpType string) (*StatusResponse, error) {
	return c.doStatus(ctx, "POST", "/otp/resend", otpRequest{Email: email, OTPType: otpType}, "")
}

// CreateOrder creates a payment order for a paid subscription tier.
func (c *Client) CreateOrder(ctx context.Context, userID *string, subscriptionType, email string) (*domain.PaymentOrder, error) {
	payload := createOrderRequest{UserID: userID, SubscriptionType: subscriptionType, Email: email}
	body, err := c.do(ctx, "POST", "/payments/create-order", payload, "")
	if err != nil {
		return nil, err
	}
	var resp createOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode create-order response: %w", err)
	}
	return &resp.Data, nil
}

// VerifyPayment submits the gateway signature fields for verification.
func (c *Client) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*StatusResponse, error) {
	return c.doStatus(ctx, "POST", "/payments/verify", req, "")
}

// LinkOrder associates a paid order with a newly created account.
func (c *Client) LinkOrder(ctx context.Context, orderID string, req LinkOrderRequest) error {
	_, err := c.do(ctx, "PUT", "/payments/order/"+orderID, req, "")
	return err
}

// SignUp creates the account. The idempotency key lets the backend deduplicate
// retried submissions of the same signup session.
func (c *Client) SignUp(ctx context.Context, req SignupRequest, idempotencyKey string) error {
	_, err := c.do(ctx, "POST", "/auth/signup", req, idempotencyKey)
	return err
}

// SignIn authenticates an existing account.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	_, err := c.do(ctx, "POST", "/auth/signin", SigninRequest{Email: email, Password: password}, "")
	return err
}

// doStatus executes a request whose success body is `{success, message}`.
func (c *Client) doStatus(ctx context.Context, method, path string, payload interface{}, idempotencyKey string) (*StatusResponse, error) {
	body, err := c.do(ctx, method, path, payload, idempotencyKey)
	if err != nil {
		return nil, err
	}
	var resp StatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return &resp, nil
}

// do executes a JSON request and returns the raw response body, converting
// non-2xx responses into *ErrorResponse.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, idempotencyKey string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request for %s: %w", path, err)
		}
		reqBody = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request for %s: %w", path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response for %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errResp := &ErrorResponse{Status: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, errResp); err != nil {
			log.Printf("level=warn component=marketplace_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
			return nil, fmt.Errorf("marketplace api returned status %d for %s", resp.StatusCode, path)
		}
		log.Printf("level=warn component=marketplace_client op=%s status=%d err=%q", path, resp.StatusCode, errResp.Error())
		return nil, errResp
	}

	return bodyBytes, nil
}
