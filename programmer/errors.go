package programmer

import "errors"

// Errors returned by entities and the bit helpers. Check them with errors.Is.
var (
	// ErrNotImplemented is returned by Base for operations a driver must provide.
	ErrNotImplemented = errors.New("programmer: not implemented")

	// ErrValueUnset is returned when the bitmask is read before the driver reported a value.
	ErrValueUnset = errors.New("programmer: value unset")

	// ErrInvalidBit is returned for bit indices outside 0..MaxBit.
	ErrInvalidBit = errors.New("programmer: invalid bit")

	// ErrInvalidValue is returned when a value does not fit the entity's bit width.
	ErrInvalidValue = errors.New("programmer: invalid value")
)
