/**
 * @description
 * Local validation for the signup flow. Every check here runs before any
 * network call; a failure produces a user-facing message and aborts the
 * operation with no partial side effects.
 */
package app

import (
	"fmt"
	"regexp"

	"github.com/stagedoor/onboarding-service/internal/domain"
)

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpCodePattern = regexp.MustCompile(`^\d{6}$`)
)

// MinPasswordLength is the shortest password the form accepts.
const MinPasswordLength = 6

func invalidInput(message string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, message)
}

// validateEmail rejects addresses that do not match a standard
// local@domain.tld shape.
func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return invalidInput("Please enter a valid email address")
	}
	return nil
}

// validateOTPCode requires exactly 6 digits.
func validateOTPCode(code string) error {
	if !otpCodePattern.MatchString(code) {
		return invalidInput("Verification code must be 6 digits")
	}
	return nil
}

// validateSignupForm is the pre-submission gate. It returns the first failure
// so the user sees one specific message per attempt.
func validateSignupForm(form domain.SignupForm) error {
	if form.Email == "" || form.Password == "" {
		return invalidInput("Email and password are required")
	}
	if err := validateEmail(form.Email); err != nil {
		return err
	}
	if form.FullName == "" {
		return invalidInput("Full name is required")
	}
	if form.Username == "" {
		return invalidInput("Username is required")
	}
	if form.ProfileType == "" {
		return invalidInput("Please select a profile type")
	}
	if !domain.ValidProfileType(form.ProfileType) {
		return invalidInput("Unknown profile type")
	}
	if form.Password != form.ConfirmPassword {
		return invalidInput("Passwords do not match")
	}
	if len(form.Password) < MinPasswordLength {
		return invalidInput(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if !form.AgreeToTerms {
		return invalidInput("You must agree to the terms and conditions")
	}
	return nil
}

// validateSigninInput requires both credentials.
func validateSigninInput(email, password string) error {
	if email == "" || password == "" {
		return invalidInput("Email and password are required")
	}
	return nil
}
