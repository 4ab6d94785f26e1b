package wire

import "bytes"

// Framer splits a byte stream into EOM-terminated messages.
// It is not safe for concurrent use; each connection owns one.
type Framer struct {
	buf []byte
}

func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk to the pending buffer and returns every complete
// message, in order. The trailing incomplete fragment is kept for the next
// call. Empty messages (consecutive terminators) are skipped.
func (f *Framer) Feed(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)

	var msgs []string
	for {
		i := bytes.IndexByte(f.buf, EOM)
		if i < 0 {
			break
		}
		if i > 0 {
			msgs = append(msgs, string(f.buf[:i]))
		}
		f.buf = f.buf[i+1:]
	}

	if len(f.buf) == 0 {
		f.buf = nil
	}
	return msgs
}

// Pending returns the number of buffered bytes not yet terminated.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset drops any partial message.
func (f *Framer) Reset() {
	f.buf = nil
}
