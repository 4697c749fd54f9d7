package canbus

import (
	"fmt"
	"time"
)

// Bus is the transport every higher layer talks to. One handle serves one
// logical operation: open, use to completion, close. Handles are not shared
// across goroutines.
type Bus interface {
	// Send transmits one frame with up to 8 data bytes.
	Send(id uint32, data []byte) error

	// Recv waits up to timeout for the next frame. A nil frame together
	// with a nil error means nothing arrived in time.
	Recv(timeout time.Duration) (*Frame, error)

	// Close releases the transport. It is idempotent and swallows
	// transport-level errors.
	Close() error
}

func messageOrDefault(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// ConnectionError reports that the transport could not be opened or is no
// longer usable.
type ConnectionError struct {
	msg string
}

func NewConnectionError(msg string) ConnectionError {
	return ConnectionError{msg: msg}
}

func (e ConnectionError) Error() string {
	return messageOrDefault(e.msg, "CAN transport unavailable")
}

// SendError reports a failed frame transmission.
type SendError struct {
	msg string
}

func NewSendError(msg string) SendError {
	return SendError{msg: msg}
}

func (e SendError) Error() string {
	return messageOrDefault(e.msg, "CAN frame transmission failed")
}

// Open connects the backend selected by name. Known backends are "slcan"
// (serial Lawicel adapter on the given channel) and "loopback" (in-memory,
// for tests and demo runs).
func Open(backend, channel string, bitrate int) (Bus, error) {
	switch backend {
	case "slcan":
		return OpenSLCAN(channel, bitrate)
	case "loopback":
		return NewLoopbackBus(), nil
	default:
		return nil, NewConnectionError(fmt.Sprintf("unknown CAN backend %q", backend))
	}
}

// OpenFunc produces a fresh transport handle. Components that own their
// transport for the duration of an operation take one of these instead of a
// live Bus.
type OpenFunc func() (Bus, error)
