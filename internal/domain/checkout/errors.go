package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrVerificationFailed is returned when the gateway rejected the payment or
// could not positively confirm it. No local state has been changed; the
// caller must start a fresh checkout attempt, never an automatic retry.
var ErrVerificationFailed = errors.New("payment verification failed")

// ValidationError reports a malformed or incomplete completion request.
// Nothing has been verified or written when it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TotalsMismatchError reports that a client-submitted total disagrees with
// the server-side recomputation. It is a validation failure: the client must
// re-quote the cart.
type TotalsMismatchError struct {
	Field  string
	Client decimal.Decimal
	Server decimal.Decimal
}

func (e *TotalsMismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: client sent %s, server computed %s",
		e.Field, e.Client, e.Server)
}

// PersistenceError reports a write failure after the gateway confirmed the
// payment. This is the most severe failure class: money has moved externally
// with no local order record. It is logged and alerted distinctly from other
// server errors and feeds the reconciliation process.
type PersistenceError struct {
	TransactionID string
	Err           error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting verified payment %s: %v", e.TransactionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
