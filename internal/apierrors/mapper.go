package apierrors

import (
	"errors"
	"strings"

	billingProcessor "easylist-server/internal/billing/processor"
	"easylist-server/internal/store"
)

// MapError converts domain/processor errors to APIErrors.
// This function centralizes all error mapping logic to ensure consistent
// error responses across the entire API.
//
// If the error is already an APIError, it returns it as-is.
// If the error is a known domain error, it maps it to an appropriate APIError.
// If the error is unknown, it returns a sanitized InternalError (500).
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	// Check if already an APIError
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, billingProcessor.ErrUserNotFound):
		return NotFound(CodeUserNotFound, "User not found")

	case errors.Is(err, billingProcessor.ErrTokenInvalid):
		return BadRequest(CodeTokenInvalid, "Payment token is invalid, already used, or expired")

	case errors.Is(err, billingProcessor.ErrSubscriptionNotFound):
		return NotFound(CodeSubscriptionNotFound, "No subscription found for this user")

	case errors.Is(err, billingProcessor.ErrNoStripeCustomer):
		return BadRequest(CodeCustomerNotFound, "No payment customer on file. Please complete checkout first.")

	case errors.Is(err, billingProcessor.ErrStripeCustomerNotFound):
		return NotFound(CodeCustomerNotFound, "No payment customer found with this email")

	// Map store errors
	case errors.Is(err, store.ErrNotFound):
		return NotFound(CodeNotFound, "Resource not found")

	// Check for common external service errors by message content
	default:
		return mapExternalServiceError(err)
	}
}

// mapExternalServiceError attempts to identify external service errors
// and map them to appropriate service-specific error responses.
func mapExternalServiceError(err error) *APIError {
	errMsg := strings.ToLower(err.Error())

	// Stripe/payment errors
	if strings.Contains(errMsg, "stripe") || strings.Contains(errMsg, "payment provider") {
		return ServiceUnavailable(
			CodePaymentProviderError,
			"Payment provider is temporarily unavailable. Please try again later.",
			err,
		)
	}

	// Email service errors (Resend)
	if strings.Contains(errMsg, "resend") || strings.Contains(errMsg, "email service") {
		return ServiceUnavailable(
			CodeEmailServiceError,
			"Email service is temporarily unavailable. Please try again later.",
			err,
		)
	}

	// Default: Unknown error - return sanitized 500
	return InternalError(err)
}
