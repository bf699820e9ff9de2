package relay

import "errors"

var (
	// ErrDuplicateEndpoint is returned by Join when the id is already tracked.
	// A correct transport never reuses ids, so this ends the offending
	// connection attempt rather than the process.
	ErrDuplicateEndpoint = errors.New("endpoint id already registered")

	// ErrUnknownEndpoint is returned when a call addresses an endpoint that
	// is not (or no longer) connected.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrNoPendingCall is returned by AcceptCall when no matching attempt is
	// in the Requested state. Usually a benign race with a cancellation.
	ErrNoPendingCall = errors.New("no pending call")

	// ErrSelfCall is returned when an endpoint tries to call itself.
	ErrSelfCall = errors.New("endpoint cannot call itself")
)
