package connectors

import (
	"errors"
	"fmt"
)

// OrderRejectedError means the broker refused an order placement or
// modification. Rejections are recorded as failed orders and never retried;
// a transient failure during placement is treated the same way because the
// order may or may not have reached the exchange.
type OrderRejectedError struct {
	Op      string // e.g. "PlaceOrder"
	Symbol  string
	Message string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("%s rejected for %s: %s", e.Op, e.Symbol, e.Message)
}

// TransientIOError means a status or price query failed in a way that says
// nothing about broker-side state. Status queries are retried indefinitely on
// this kind; price lookups fall back and move on.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s transient failure: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// IsRejected reports whether err is an order rejection.
func IsRejected(err error) bool {
	var rejected *OrderRejectedError
	return errors.As(err, &rejected)
}

// IsTransient reports whether err is a retryable I/O failure.
func IsTransient(err error) bool {
	var transient *TransientIOError
	return errors.As(err, &transient)
}
