package apron

import "errors"

var (
	// ErrNoRunner is returned by New when no command runner is supplied.
	ErrNoRunner = errors.New("apron: runner is required")

	// ErrInvalidRadio is returned when a discovery scan names a radio not in the allow list.
	ErrInvalidRadio = errors.New("apron: invalid radio")

	// ErrEmptyCommand is returned when a raw command has no arguments.
	ErrEmptyCommand = errors.New("apron: empty command")

	// ErrUnknownDevice is returned by the fake controller for ids it does not simulate.
	ErrUnknownDevice = errors.New("apron: unknown device")
)
