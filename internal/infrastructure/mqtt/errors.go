package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe operation fails.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic, or for a topic under
	// one of the bridge prefixes that does not match any known shape.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrNotInterestingTopic is returned when parsing a topic outside every
	// prefix the bridge owns. Callers ignore such messages.
	ErrNotInterestingTopic = errors.New("mqtt: topic not handled by the bridge")

	// ErrTopicDisabled is returned when formatting a discovery topic while
	// discovery is not configured.
	ErrTopicDisabled = errors.New("mqtt: topic kind not configured")

	// ErrTLSConfig is returned when the configured CA file cannot be used.
	ErrTLSConfig = errors.New("mqtt: invalid TLS configuration")
)
