package wire

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pior/sfs/internal"
)

var bufPool = internal.NewBufferPool(256)

// BuildXML returns an XML request:
//
//	<msg t='sys'><body action='joinRoom' r='1'>...</body></msg>
func BuildXML(handler, action string, room int, body string) string {
	buf := bufPool.Get()
	defer bufPool.Put(buf)

	buf.WriteString("<msg t='")
	buf.WriteString(handler)
	buf.WriteString("'><body action='")
	buf.WriteString(action)
	buf.WriteString("' r='")
	buf.WriteString(strconv.Itoa(room))
	buf.WriteString("'>")
	buf.WriteString(body)
	buf.WriteString("</body></msg>")
	return buf.String()
}

// BuildString returns sep-delimited fields, opened and closed by sep.
func BuildString(sep byte, fields ...string) string {
	buf := bufPool.Get()
	defer bufPool.Put(buf)

	buf.WriteByte(sep)
	for _, f := range fields {
		buf.WriteString(f)
		buf.WriteByte(sep)
	}
	return buf.String()
}

// BuildJSON returns {"t":handler,"b":body}.
func BuildJSON(handler string, body any) (string, error) {
	b, err := json.Marshal(struct {
		T string `json:"t"`
		B any    `json:"b"`
	}{handler, body})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CDATA wraps s in a CDATA section. A literal "]]>" in s is split across
// two sections.
func CDATA(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}
