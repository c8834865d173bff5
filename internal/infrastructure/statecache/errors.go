package statecache

import "errors"

var (
	// ErrDisabled indicates the Redis mirror is disabled in config.
	ErrDisabled = errors.New("statecache: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("statecache: connection failed")

	// ErrNotFound indicates no status is cached for the device.
	ErrNotFound = errors.New("statecache: device not cached")
)
