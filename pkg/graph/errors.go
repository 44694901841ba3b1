package graph

import "errors"

// Sentinel errors returned by Store implementations.
var (
	// ErrGraphUnavailable indicates the backing store could not be reached.
	ErrGraphUnavailable = errors.New("graph store unavailable")

	// ErrConflict indicates a compare-and-set operation lost a race, most
	// commonly a lock already held by another run.
	ErrConflict = errors.New("graph conflict")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("graph entity not found")
)
