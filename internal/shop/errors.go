package shop

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a user, product, cart item or order does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyCart is returned by Checkout when the cart has no items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrAuth is the root of every authentication failure.
	ErrAuth = errors.New("authentication failed")

	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrAuth)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired token", ErrAuth)
)

// ValidationError reports a rejected input value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TransactionError means the store could not complete an atomic unit of work.
// Nothing from that unit was committed.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransaction reports whether err is (or wraps) a *TransactionError.
func IsTransaction(err error) bool {
	var te *TransactionError
	return errors.As(err, &te)
}
