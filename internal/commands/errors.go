package commands

import "errors"

var (
	// ErrNoController is returned by New when Options.Controller is nil.
	ErrNoController = errors.New("commands: controller is required")

	// ErrNoRegistry is returned by New when Options.Registry is nil.
	ErrNoRegistry = errors.New("commands: registry is required")

	// ErrInvalidPayload is returned when a JSON set payload is not an object.
	ErrInvalidPayload = errors.New("commands: payload must be a JSON object")

	// ErrNothingApplied is returned when no key of a JSON set payload could be applied.
	ErrNothingApplied = errors.New("commands: no attribute applied")
)
