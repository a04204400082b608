package source

import "fmt"

// StateError is returned when a lifecycle operation cannot proceed because of
// the source's current run state.
type StateError struct {
	Running bool
}

func (e *StateError) Error() string {
	if e.Running {
		return "the notification source has already been started"
	}
	return "the notification source has not been started"
}

// ConnectionError indicates an issue opening or maintaining the network
// connection to the MQTT broker. It may wrap an underlying error using Go
// standard error wrapping.
type ConnectionError struct {
	wrapped error
	message string
}

func (e *ConnectionError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ConnectionError) Unwrap() error {
	return e.wrapped
}

// ConnackError indicates that the broker refused a connection attempt with an
// error reason code.
type ConnackError struct {
	ReasonCode byte
}

func (e *ConnackError) Error() string {
	return fmt.Sprintf(
		"received CONNACK packet with error reason code %x",
		e.ReasonCode,
	)
}

// DisconnectError indicates that the broker closed an established connection
// with a DISCONNECT packet.
type DisconnectError struct {
	ReasonCode byte
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf(
		"received DISCONNECT packet with reason code %x",
		e.ReasonCode,
	)
}

// InvalidArgumentError indicates an invalid configuration value. It may wrap
// an underlying error using Go standard error wrapping.
type InvalidArgumentError struct {
	wrapped error
	message string
}

func (e *InvalidArgumentError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.wrapped
}
