package orderbook

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument rejects a request before any mutation.
	ErrInvalidArgument = errors.New("orderbook: invalid argument")
	// ErrNotFound is returned when cancelling an id the book never issued
	// or one that was already cancelled.
	ErrNotFound = errors.New("orderbook: order not found")
	// ErrAlreadyFulfilled is returned when cancelling an id that a market
	// order fully executed.
	ErrAlreadyFulfilled = errors.New("orderbook: order already fulfilled")
)
