// Package wire implements the text framing and envelope formats spoken by
// SmartFox-style game servers.
//
// A message is UTF-8 text in one of three formats, selected by its first byte:
//
//   - XML: <msg t='sys'><body action='logOK' r='0'>...</body></msg>
//   - JSON: {"t":"xt","b":{...}}
//   - String: %xt%cmd%roomId%field%...% (the separator is configurable)
//
// # Framing
//
// On a socket every message is terminated by a single 0x00 byte. Framer
// accumulates reads and yields complete messages in arrival order:
//
//	f := wire.NewFramer()
//	for {
//	    n, err := conn.Read(buf)
//	    ...
//	    for _, msg := range f.Feed(buf[:n]) {
//	        env, err := wire.Decode(msg, wire.DefaultSeparator)
//	        ...
//	    }
//	}
//
// # Decoding
//
// Decode returns an Envelope carrying the handler key ("sys" or "xt"), the
// action, the originating room and the format-specific body. XML bodies are
// exposed as a Node tree whose accessors never fail: a missing node or
// attribute yields the caller-supplied default.
//
// # Building
//
// BuildXML, BuildString and BuildJSON produce outbound messages without the
// terminator; the transport appends it.
package wire
