package bluebox

import "errors"

// HandshakeToken prefixes the session id returned by the handshake.
const HandshakeToken = "#"

// SessionIDLength is the length of the session id issued by the server.
const SessionIDLength = 32

var ErrBadHandshake = errors.New("bluebox: malformed handshake response")

// Codec multiplexes the session id with each payload and extracts the session
// id from the handshake reply.
type Codec interface {
	Encode(sessionID, message string) string
	Decode(response string) (string, error)
}

// RawCodec prepends the session id to the payload as-is.
type RawCodec struct{}

var _ Codec = RawCodec{}

func (RawCodec) Encode(sessionID, message string) string {
	return sessionID + message
}

func (RawCodec) Decode(response string) (string, error) {
	if len(response) < 1+SessionIDLength || response[:1] != HandshakeToken {
		return "", ErrBadHandshake
	}
	return response[1 : 1+SessionIDLength], nil
}
