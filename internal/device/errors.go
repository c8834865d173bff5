package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID is not in the current snapshot.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrAttributeNotFound is returned when an attribute ID or description is not on the device.
	ErrAttributeNotFound = errors.New("device: attribute not found")

	// ErrReadOnly is returned when writing an attribute that does not support writes.
	ErrReadOnly = errors.New("device: attribute is read-only")

	// ErrInvalidValue is returned when a value does not decode as the attribute's type.
	ErrInvalidValue = errors.New("device: invalid value")

	// ErrNoValue is returned when encoding an absent value for the control tool.
	ErrNoValue = errors.New("device: no value")

	// ErrUnknownType is returned for attribute type names the hub does not define.
	ErrUnknownType = errors.New("device: unknown attribute type")

	// ErrTypeMismatch is returned when a value of one type is stored on an attribute of another.
	ErrTypeMismatch = errors.New("device: value type does not match attribute")
)
