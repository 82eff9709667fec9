package mqtt

import "errors"

var (
	// ErrConnectionFailed wraps a failed initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned while no session is up.
	ErrNotConnected = errors.New("mqtt: client not connected")

	ErrPublishFailed   = errors.New("mqtt: publish failed")
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrInvalidTopic is returned for an empty topic, a wildcard in a
	// publish topic, or a misplaced wildcard in a filter.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)
