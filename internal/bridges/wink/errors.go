package wink

import "errors"

// Domain errors for the wink bridge package.
var (
	// ErrNoMQTTClient is returned by NewBridge without an MQTT client.
	ErrNoMQTTClient = errors.New("wink: MQTT client is required")

	// ErrNoRegistry is returned by NewBridge without a device registry.
	ErrNoRegistry = errors.New("wink: registry is required")

	// ErrNoCommands is returned by NewBridge without a command service.
	ErrNoCommands = errors.New("wink: command service is required")

	// ErrQueueFull is returned when the outbound queue cannot take a message.
	ErrQueueFull = errors.New("wink: publish queue full")

	// ErrStopped is returned when publishing after Stop.
	ErrStopped = errors.New("wink: bridge stopped")
)
