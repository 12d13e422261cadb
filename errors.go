package metacache

import "errors"

var (
	// ErrUnknownTier is returned when an operation names a tier that
	// does not exist.
	ErrUnknownTier = errors.New("unknown cache tier")

	// ErrKindMismatch is returned when a value's metadata kind does not
	// match the tier it is being stored into.
	ErrKindMismatch = errors.New("value kind does not match tier")

	// ErrNilValue is returned when a factory or Put supplies no value.
	ErrNilValue = errors.New("nil metadata value")
)
