package wire

import "errors"

var (
	// ErrEmptyMessage is returned when decoding a zero-length message.
	ErrEmptyMessage = errors.New("wire: empty message")

	// ErrUnknownFormat is returned for messages that start with none of the
	// format prefixes, such as cross-domain policy files. Callers drop them.
	ErrUnknownFormat = errors.New("wire: unknown message format")
)

// ParseError reports a message that has a known format but cannot be decoded.
//
// The pipeline treats it as recoverable: the message is dropped and the next
// one is processed.
type ParseError struct {
	Format  Format
	Message string
	Err     error // Underlying error, if any
}

func (e *ParseError) Error() string {
	msg := "wire: parse " + string(e.Format) + ": " + e.Message
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}
