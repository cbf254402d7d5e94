package buffer

import "errors"

var (
	// ErrResourceExhausted is returned by Pool.Get when the pool refuses
	// to hand out another block (spec.md §4.1).
	ErrResourceExhausted = errors.New("buffer: resource exhausted")

	// ErrWrongPhase is returned when a caller asks for the request-header
	// view while the response-header view is active, or vice versa.
	// spec.md §3's invariant: the two views never coexist for one block.
	ErrWrongPhase = errors.New("buffer: request/response header views may not coexist")

	// ErrAlreadyFreed is returned by operations attempted on a freed block.
	ErrAlreadyFreed = errors.New("buffer: block already freed")
)
