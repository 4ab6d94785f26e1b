package wire

// EOM terminates every message on a socket.
const EOM byte = 0x00

// Format prefixes.
const (
	PrefixXML  byte = '<'
	PrefixJSON byte = '{'

	// DefaultSeparator delimits string-format messages unless configured otherwise.
	DefaultSeparator byte = '%'
)

// Handler keys.
const (
	HandlerSys = "sys"
	HandlerExt = "xt"
)

// Format identifies the wire format of a message.
type Format string

const (
	FormatXML    Format = "xml"
	FormatJSON   Format = "json"
	FormatString Format = "str"
)

// Defaults used when a field is missing or malformed.
const (
	DefaultInt    = -1
	DefaultString = "undefined"
)

// ValidSeparator reports whether sep can delimit string messages without
// being confused with the other formats.
func ValidSeparator(sep byte) bool {
	return sep != PrefixXML && sep != PrefixJSON && sep != EOM && sep != '\n'
}
