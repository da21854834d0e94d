package engine

import "errors"

var (
	// ErrUnknownOrder is returned by Cancel when the id is absent from the
	// book's index.
	ErrUnknownOrder = errors.New("engine: unknown order id")

	// ErrInvalidSequence is returned by the batch processor when, after
	// sorting, two commands still share or invert a sequence number.
	ErrInvalidSequence = errors.New("engine: invalid or duplicate sequence in batch")

	// ErrInvalidSide is reserved for future side-specific validation; no
	// operation in this package currently returns it.
	ErrInvalidSide = errors.New("engine: invalid side for operation")
)
