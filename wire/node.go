package wire

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// Node is a parsed XML element. All accessors are nil-safe so handlers can
// walk optional paths without checks:
//
//	id := env.Body.Child("login").AttrInt("id", wire.DefaultInt)
type Node struct {
	Name     string
	Attrs    []xml.Attr
	Children []*Node
	text     strings.Builder
}

// ParseXML parses s into a Node tree rooted at its first element.
func ParseXML(s string) (*Node, error) {
	d := xml.NewDecoder(strings.NewReader(s))
	d.Strict = false

	var root *Node
	var stack []*Node
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Format: FormatXML, Message: "invalid xml", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local, Attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, &ParseError{Format: FormatXML, Message: "no root element"}
	}
	if len(stack) > 0 {
		return nil, &ParseError{Format: FormatXML, Message: "unterminated element " + stack[len(stack)-1].Name}
	}
	return root, nil
}

// Child returns the first direct child named name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child named name.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Path follows a chain of child names.
func (n *Node) Path(names ...string) *Node {
	for _, name := range names {
		n = n.Child(name)
	}
	return n
}

// Text returns the concatenated character data directly inside n,
// CDATA sections included.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return n.text.String()
}

// TextOr returns Text, or def when n is missing.
func (n *Node) TextOr(def string) string {
	if n == nil {
		return def
	}
	return n.text.String()
}

// Attr returns the named attribute and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// HasAttr reports whether the named attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// AttrString returns the named attribute or def.
func (n *Node) AttrString(name, def string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return def
}

// AttrInt returns the named attribute parsed as an integer, or def when it
// is missing or malformed.
func (n *Node) AttrInt(name string, def int) int {
	v, ok := n.Attr(name)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

// AttrBool returns true only when the named attribute is "1" or "true".
func (n *Node) AttrBool(name string) bool {
	v, _ := n.Attr(name)
	return v == "1" || v == "true"
}
