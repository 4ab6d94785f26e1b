package bluebox

import (
	"errors"
	"fmt"
)

var ErrClosed = errors.New("bluebox: connection closed")

// ErrConnectionLost is reported to OnClose when the server answers with the
// connection-lost sentinel.
var ErrConnectionLost = errors.New("bluebox: connection lost")

// HandshakeError reports a failed tunnel handshake.
type HandshakeError struct {
	URL      string
	Response string // body returned by the server, if any
	Err      error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bluebox: handshake with %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("bluebox: handshake with %s failed: unexpected response %q", e.URL, e.Response)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-200 reply from the tunnel servlet.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bluebox: unexpected http status %d", e.StatusCode)
}
