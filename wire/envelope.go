package wire

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Envelope is a decoded inbound message.
type Envelope struct {
	Format  Format
	Handler string // "sys", "xt", or the first token of a string message
	Action  string // body action (XML) or command (JSON "c"), empty if absent
	Room    int    // originating room, DefaultInt when absent

	// Body is the <body> element of an XML message.
	Body *Node

	// JSON holds the "b" object of a JSON message.
	JSON map[string]any

	// Fields holds the tokens after the handler key of a string message.
	Fields []string

	Raw string
}

// Decode selects the wire format from the first byte of raw and decodes the
// envelope. sep is the string-format separator.
func Decode(raw string, sep byte) (*Envelope, error) {
	if raw == "" {
		return nil, ErrEmptyMessage
	}
	if strings.Contains(raw, "<!DOCTYPE cross-domain-policy") {
		return nil, ErrUnknownFormat
	}

	switch raw[0] {
	case PrefixXML:
		return decodeXML(raw)
	case PrefixJSON:
		return decodeJSON(raw)
	case sep:
		return decodeString(raw, sep)
	}
	return nil, ErrUnknownFormat
}

func decodeXML(raw string) (*Envelope, error) {
	root, err := ParseXML(raw)
	if err != nil {
		return nil, err
	}
	if root.Name != "msg" {
		return nil, &ParseError{Format: FormatXML, Message: "unexpected root <" + root.Name + ">"}
	}

	handler, ok := root.Attr("t")
	if !ok {
		return nil, &ParseError{Format: FormatXML, Message: "missing msg@t"}
	}

	body := root.Child("body")
	return &Envelope{
		Format:  FormatXML,
		Handler: handler,
		Action:  body.AttrString("action", ""),
		Room:    body.AttrInt("r", DefaultInt),
		Body:    body,
		Raw:     raw,
	}, nil
}

func decodeJSON(raw string) (*Envelope, error) {
	var msg struct {
		T string         `json:"t"`
		B map[string]any `json:"b"`
	}
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, &ParseError{Format: FormatJSON, Message: "invalid json", Err: err}
	}
	if msg.T == "" {
		return nil, &ParseError{Format: FormatJSON, Message: "missing t"}
	}

	env := &Envelope{
		Format:  FormatJSON,
		Handler: msg.T,
		Room:    DefaultInt,
		JSON:    msg.B,
		Raw:     raw,
	}
	if c, ok := msg.B["c"].(string); ok {
		env.Action = c
	}
	if r, ok := msg.B["r"].(float64); ok {
		env.Room = int(r)
	}
	return env, nil
}

func decodeString(raw string, sep byte) (*Envelope, error) {
	if len(raw) < 2 || raw[len(raw)-1] != sep {
		return nil, &ParseError{Format: FormatString, Message: "unterminated string message"}
	}

	parts := strings.Split(raw[1:len(raw)-1], string(sep))
	env := &Envelope{
		Format:  FormatString,
		Handler: parts[0],
		Room:    DefaultInt,
		Fields:  parts[1:],
		Raw:     raw,
	}
	if len(env.Fields) > 0 {
		env.Action = env.Fields[0]
	}
	if len(env.Fields) > 1 {
		if r, err := strconv.Atoi(env.Fields[1]); err == nil {
			env.Room = r
		}
	}
	return env, nil
}

// JSONString returns the string stored under key in a JSON body, or def.
func (e *Envelope) JSONString(key, def string) string {
	if s, ok := e.JSON[key].(string); ok {
		return s
	}
	return def
}

// JSONInt returns the number stored under key in a JSON body, or def.
func (e *Envelope) JSONInt(key string, def int) int {
	if f, ok := e.JSON[key].(float64); ok {
		return int(f)
	}
	return def
}
