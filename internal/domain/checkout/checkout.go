// Package checkout drives a single cart through payment: it opens the
// payment form, validates what the user entered, submits one payment request
// built from the cart at submission time, and reconciles the outcome back into
// the cart and the notification channel.
package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

// State is a checkout lifecycle state.
type State int

const (
	Idle State = iota
	FormOpen
	Validating
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FormOpen:
		return "form_open"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// User-facing notification texts.
const (
	MsgEmptyCart       = "Your cart is empty!"
	MsgMissingFields   = "Please fill in all payment fields!"
	MsgInvalidCard     = "Please enter a valid card number!"
	MsgPaymentFailed   = "Payment failed!"
	msgTransportPrefix = "Payment processing failed: "
	msgSuccessFormat   = "Payment successful! Transaction ID: %s"
)

var (
	// ErrEmptyCart is returned when checkout is requested with nothing in the cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrSubmissionInFlight is returned when a payment is already being submitted.
	ErrSubmissionInFlight = errors.New("payment submission already in progress")
	// ErrFormNotOpen is returned when a payment is submitted without an open form.
	ErrFormNotOpen = errors.New("payment form is not open")
)

// ValidationError reports payment form input that failed validation. Fields
// maps form field names to the reason each one failed.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DeclinedError is returned when the payment service reported a status other
// than COMPLETED. The cart is left untouched.
type DeclinedError struct {
	Status        string
	TransactionID string
	// Reason is the service-provided error message, possibly empty.
	Reason string
}

func (e *DeclinedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("payment declined (%s): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("payment declined (%s)", e.Status)
}

// TransportError is returned when the payment call itself failed. The cart
// is left untouched.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "payment transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Message is the text shown to the user. Only the innermost cause is kept;
// the outer layers name the payment endpoint.
func (e *TransportError) Message() string {
	cause := e.Err
	for next := errors.Unwrap(cause); next != nil; next = errors.Unwrap(cause) {
		cause = next
	}
	return msgTransportPrefix + cause.Error()
}

// Form is the raw payment input for one checkout attempt.
type Form struct {
	CardholderName string `validate:"required"`
	CardNumber     string `validate:"required,min=16"`
	ExpiryDate     string `validate:"required"`
	CVV            string `validate:"required"`
}
