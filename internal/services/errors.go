package services

import "errors"

// Error classes returned by the services. Handlers map these to HTTP
// codes; services never expose store or chain internals directly.
var (
	// ErrDenied: the caller is not the party a transition requires.
	// Rejected before any write.
	ErrDenied = errors.New("permission denied")

	// ErrNotFound: the record does not resolve for the caller's
	// membership. Deliberately indistinguishable from a foreign record.
	ErrNotFound = errors.New("not found")

	// ErrPrecondition: the record is not in the state the operation
	// requires, and the operation's effect is not already present.
	// (When the effect IS already present the services report success
	// without mutation instead of this error.)
	ErrPrecondition = errors.New("precondition failed")

	// ErrInvalidInput: malformed request data, rejected before any
	// store or chain access.
	ErrInvalidInput = errors.New("invalid input")
)
