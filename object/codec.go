package object

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pior/sfs/internal"
)

// Wire tags for leaf values.
const (
	TypeString = "s"
	TypeNumber = "n"
	TypeBool   = "b"
	TypeNull   = "x"
)

const (
	rootTag      = "dataObj"
	containerTag = "obj"
	leafTag      = "var"
)

var (
	ErrBadLeaf      = errors.New("object: malformed leaf value")
	ErrNotContainer = errors.New("object: root value must be a map or a list")
	ErrInvalidText  = errors.New("object: text contains characters xml cannot carry")
)

// DecodeError reports a payload that is not a valid serialized object.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "object: decode: " + e.Message + ": " + e.Err.Error()
	}
	return "object: decode: " + e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var bufPool = internal.NewBufferPool(512)

// Encode serializes a map or list into the tagged XML form:
//
//	<dataObj><var n='x' t='n'>150</var><obj o='pos' t='a'>...</obj></dataObj>
//
// Entries are written in sorted key order. Keys and strings holding invalid
// UTF-8 or control characters other than tab, newline and carriage return
// fail with ErrInvalidText.
func Encode(v Value) (string, error) {
	if v.IsScalar() {
		return "", ErrNotContainer
	}

	buf := bufPool.Get()
	defer bufPool.Put(buf)

	buf.WriteString("<" + rootTag + ">")
	if err := writeEntries(buf, v); err != nil {
		return "", err
	}
	buf.WriteString("</" + rootTag + ">")
	return buf.String(), nil
}

func writeEntries(buf *bytes.Buffer, v Value) error {
	for _, key := range v.Keys() {
		if err := writeEntry(buf, key, v.Get(key)); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(buf *bytes.Buffer, key string, e Value) error {
	if !validText(key) || (e.kind == KindString && !validText(e.str)) {
		return ErrInvalidText
	}
	name := escape(key)

	switch e.kind {
	case KindMap, KindList:
		buf.WriteString("<" + containerTag + " o='")
		buf.WriteString(name)
		buf.WriteString("' t='a'>")
		if err := writeEntries(buf, e); err != nil {
			return err
		}
		buf.WriteString("</" + containerTag + ">")
		return nil
	case KindNull:
		buf.WriteString("<" + leafTag + " n='")
		buf.WriteString(name)
		buf.WriteString("' t='" + TypeNull + "' />")
		return nil
	}

	typ, text := leaf(e)
	buf.WriteString("<" + leafTag + " n='")
	buf.WriteString(name)
	buf.WriteString("' t='")
	buf.WriteString(typ)
	buf.WriteString("'>")
	buf.WriteString(text)
	buf.WriteString("</" + leafTag + ">")
	return nil
}

func leaf(e Value) (typ, text string) {
	switch e.kind {
	case KindString:
		return TypeString, escape(e.str)
	case KindNumber:
		return TypeNumber, FormatNumber(e.num)
	case KindBool:
		if e.b {
			return TypeBool, "1"
		}
		return TypeBool, "0"
	}
	return TypeNull, ""
}

// FormatNumber renders f in the canonical textual form used on the wire.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseTyped converts a wire leaf to a Value. Unknown tags and unparseable
// numbers yield Null.
func ParseTyped(typ, text string) Value {
	v, err := ParseLeaf(typ, text)
	if err != nil {
		return Value{}
	}
	return v
}

// ParseLeaf is like ParseTyped but reports unknown tags and unparseable
// numbers as ErrBadLeaf. The null tag yields Null.
func ParseLeaf(typ, text string) (Value, error) {
	switch typ {
	case TypeString:
		return String(text), nil
	case TypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %q", ErrBadLeaf, text)
		}
		return Number(f), nil
	case TypeBool:
		return Bool(text == "1"), nil
	case TypeNull:
		return Value{}, nil
	}
	return Value{}, fmt.Errorf("%w: type %q", ErrBadLeaf, typ)
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
	"\r", "&#13;",
)

func escape(s string) string {
	return escaper.Replace(s)
}

// validText reports whether s survives an XML round trip.
func validText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r < 0x20, r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
			return false
		}
	}
	return true
}

// Decode parses a serialized object. The root element name is not checked,
// only its children are.
func Decode(s string) (Value, error) {
	d := xml.NewDecoder(strings.NewReader(s))
	d.Strict = false

	for {
		tok, err := d.Token()
		if err == io.EOF {
			return Value{}, &DecodeError{Message: "no root element"}
		}
		if err != nil {
			return Value{}, &DecodeError{Message: "invalid xml", Err: err}
		}
		if _, ok := tok.(xml.StartElement); ok {
			root := NewMap()
			if err := decodeChildren(d, root); err != nil {
				return Value{}, err
			}
			return root, nil
		}
	}
}

// decodeChildren reads tokens up to the end of the current element, storing
// every direct leaf or container child into into.
func decodeChildren(d *xml.Decoder, into Value) error {
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return &DecodeError{Message: "unexpected end of payload"}
		}
		if err != nil {
			return &DecodeError{Message: "invalid xml", Err: err}
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			switch t.Name.Local {
			case containerTag:
				child := NewMap()
				if err := decodeChildren(d, child); err != nil {
					return err
				}
				into.Set(attr(t, "o"), child)
			case leafTag:
				text, err := elementText(d)
				if err != nil {
					return err
				}
				typ := attr(t, "t")
				if typ == TypeNull {
					into.Set(attr(t, "n"), Value{})
				} else {
					into.Set(attr(t, "n"), ParseTyped(typ, text))
				}
			default:
				if err := d.Skip(); err != nil {
					return &DecodeError{Message: "invalid xml", Err: err}
				}
			}
		}
	}
}

// elementText collects character data up to the end of the current element.
func elementText(d *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return "", &DecodeError{Message: "unterminated var", Err: err}
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 {
				sb.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return sb.String(), nil
			}
			depth--
		}
	}
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
