package order

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrMissingField        = errors.New("missing required field")
	ErrEmptyCart           = errors.New("order must contain at least one item")
	ErrInvalidLine         = errors.New("invalid order line")
	ErrDuplicateProduct    = errors.New("duplicate product in order")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrUnauthorized        = errors.New("user is not allowed to modify this order")
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")
	ErrOrderNotPayable     = errors.New("order is not awaiting payment")
	ErrPaymentRejected     = errors.New("payment rejected")
	ErrPersistence         = errors.New("persistence failure")
)

// ValidationError is a user-correctable input problem. Err is one of the
// sentinels above.
type ValidationError struct {
	Err        error
	Field      string
	ProductIDs []int64
	Detail     string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Field)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure. It matches both ErrPersistence
// and the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

func persistErr(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
