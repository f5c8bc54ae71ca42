/**
 * @description
 * Core domain types for the signup flow: the signup form, profile types,
 * subscription plans, and the error taxonomy shared by the service and API
 * layers.
 */
package domain

import "errors"

// ProfileType identifies which side of the marketplace a new account joins.
type ProfileType string

const (
	ProfileArtist   ProfileType = "Artist"
	ProfileVenue    ProfileType = "Venue"
	ProfileInvestor ProfileType = "Investor"
	ProfileLegal    ProfileType = "Legal"
)

// ValidProfileType reports whether t is one of the supported profile types.
func ValidProfileType(t ProfileType) bool {
	switch t {
	case ProfileArtist, ProfileVenue, ProfileInvestor, ProfileLegal:
		return true
	}
	return false
}

// SubscriptionTier determines plan pricing and whether the payment step runs.
type SubscriptionTier string

const (
	TierFree      SubscriptionTier = "free"
	TierCommunity SubscriptionTier = "community"
	TierSingle    SubscriptionTier = "single"
	TierFull      SubscriptionTier = "full"
	TierPremium   SubscriptionTier = "premium"
)

// PlanPrices maps each tier to its monthly price in major currency units.
// The checkout gateway expects minor units, converted at config-build time.
var PlanPrices = map[SubscriptionTier]int64{
	TierFree:      0,
	TierCommunity: 9,
	TierSingle:    19,
	TierFull:      49,
	TierPremium:   99,
}

// ValidTier reports whether t is a known subscription tier.
func ValidTier(t SubscriptionTier) bool {
	_, ok := PlanPrices[t]
	return ok
}

// SignupForm holds every user-entered field for the signup session. It is
// mutated by field-level updates and discarded with the session.
type SignupForm struct {
	Email            string           `json:"email"`
	Password         string           `json:"password"`
	ConfirmPassword  string           `json:"confirm_password"`
	FullName         string           `json:"full_name"`
	Username         string           `json:"username"`
	ProfileType      ProfileType      `json:"profile_type"`
	SubscriptionType SubscriptionTier `json:"subscription_type"`
	AgreeToTerms     bool             `json:"agree_to_terms"`
}

// FormUpdate is a partial update to the signup form. Nil fields are left
// untouched so the client can patch one field at a time.
type FormUpdate struct {
	Email           *string      `json:"email,omitempty"`
	Password        *string      `json:"password,omitempty"`
	ConfirmPassword *string      `json:"confirm_password,omitempty"`
	FullName        *string      `json:"full_name,omitempty"`
	Username        *string      `json:"username,omitempty"`
	ProfileType     *ProfileType `json:"profile_type,omitempty"`
	AgreeToTerms    *bool        `json:"agree_to_terms,omitempty"`
}

// Error taxonomy for the signup flow. Handlers map these to HTTP statuses with
// errors.Is; the messages wrapped around them are surfaced to the user.
var (
	// ErrInvalidInput covers local validation failures. These never reach the
	// network.
	ErrInvalidInput = errors.New("invalid input")
	// ErrVerificationFailed is an OTP mismatch or expiry reported by the
	// backend.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrOrderCreationFailed is a backend or gateway failure while creating a
	// payment order.
	ErrOrderCreationFailed = errors.New("order creation failed")
	// ErrPaymentVerificationFailed is a failed signature verification after
	// checkout completion.
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	// ErrSignupFailed is a backend account-creation rejection, e.g. a
	// duplicate email.
	ErrSignupFailed = errors.New("signup failed")
	// ErrSigninFailed is a backend sign-in rejection.
	ErrSigninFailed = errors.New("signin failed")
	// ErrRateLimited is returned when OTP sends exceed the per-email window.
	ErrRateLimited = errors.New("rate limited")
	// ErrSessionNotFound is returned for unknown or expired signup sessions.
	ErrSessionNotFound = errors.New("signup session not found")
	// ErrInvalidState is returned when an operation arrives in a session state
	// that cannot accept it, e.g. a payment callback with no pending order.
	ErrInvalidState = errors.New("operation not valid in current session state")
)
