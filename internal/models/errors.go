// internal/models/errors.go
package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the recoverable business outcomes callers are
// expected to branch on.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrRetryLimitReached = errors.New("retry limit reached for order")
)

// ValidationError rejects malformed input before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a state machine violation. The stored
// status is untouched when this is returned.
type InvalidTransitionError struct {
	From PaymentStatus
	To   PaymentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid payment transition from %s to %s", e.From, e.To)
}

// FraudBlockedError is returned when screening blocks a payment. The
// payment exists and has already been failed with reason fraud_detected.
type FraudBlockedError struct {
	Score int
	Flags []string
}

func (e *FraudBlockedError) Error() string {
	return fmt.Sprintf("payment blocked by fraud screening (score %d)", e.Score)
}

// GatewayError reports a provider-side failure or timeout. The payment has
// been transitioned to failed with the details preserved in error_details.
type GatewayError struct {
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway error %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
