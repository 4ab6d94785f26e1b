package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeXML(t *testing.T) {
	env, err := Decode("<msg t='sys'><body action='logOK' r='0'><login n='bob' id='12' mod='1'/></body></msg>", DefaultSeparator)
	require.NoError(t, err)

	assert.Equal(t, FormatXML, env.Format)
	assert.Equal(t, HandlerSys, env.Handler)
	assert.Equal(t, "logOK", env.Action)
	assert.Equal(t, 0, env.Room)

	login := env.Body.Child("login")
	assert.Equal(t, 12, login.AttrInt("id", DefaultInt))
	assert.Equal(t, "bob", login.AttrString("n", DefaultString))
	assert.True(t, login.AttrBool("mod"))
}

func TestDecodeXMLMissingBody(t *testing.T) {
	env, err := Decode("<msg t='sys'></msg>", DefaultSeparator)
	require.NoError(t, err)
	assert.Nil(t, env.Body)
	assert.Equal(t, "", env.Action)
	assert.Equal(t, DefaultInt, env.Room)
}

func TestDecodeXMLErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unterminated", "<msg t='sys'><body action='x'>"},
		{"no handler", "<msg><body/></msg>"},
		{"wrong root", "<foo t='sys'/>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw, DefaultSeparator)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, FormatXML, parseErr.Format)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	env, err := Decode(`{"t":"xt","b":{"r":3,"c":"move","o":{"x":1}}}`, DefaultSeparator)
	require.NoError(t, err)

	assert.Equal(t, FormatJSON, env.Format)
	assert.Equal(t, HandlerExt, env.Handler)
	assert.Equal(t, "move", env.Action)
	assert.Equal(t, 3, env.Room)
	assert.Equal(t, map[string]any{"x": 1.0}, env.JSON["o"])
	assert.Equal(t, "move", env.JSONString("c", DefaultString))
	assert.Equal(t, DefaultInt, env.JSONInt("missing", DefaultInt))
}

func TestDecodeJSONErrors(t *testing.T) {
	for _, raw := range []string{`{"t":`, `{"b":{}}`} {
		_, err := Decode(raw, DefaultSeparator)
		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr, raw)
	}
}

func TestDecodeString(t *testing.T) {
	env, err := Decode("%xt%move%7%10%20%", DefaultSeparator)
	require.NoError(t, err)

	assert.Equal(t, FormatString, env.Format)
	assert.Equal(t, "xt", env.Handler)
	assert.Equal(t, "move", env.Action)
	assert.Equal(t, 7, env.Room)
	assert.Equal(t, []string{"move", "7", "10", "20"}, env.Fields)
}

func TestDecodeStringCustomSeparator(t *testing.T) {
	env, err := Decode("|xt|cmd|x|", '|')
	require.NoError(t, err)
	assert.Equal(t, "xt", env.Handler)
	assert.Equal(t, DefaultInt, env.Room)

	_, err = Decode("%xt%cmd%", '|')
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDecodeIgnored(t *testing.T) {
	_, err := Decode("", DefaultSeparator)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = Decode("hello", DefaultSeparator)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Decode(`<?xml version="1.0"?><!DOCTYPE cross-domain-policy SYSTEM "x"><cross-domain-policy/>`, DefaultSeparator)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestNodeNilSafe(t *testing.T) {
	var n *Node
	assert.Nil(t, n.Child("x"))
	assert.Nil(t, n.Path("a", "b"))
	assert.Equal(t, "", n.Text())
	assert.Equal(t, "dflt", n.TextOr("dflt"))
	assert.Equal(t, DefaultInt, n.AttrInt("id", DefaultInt))
	assert.Equal(t, DefaultString, n.AttrString("n", DefaultString))
	assert.False(t, n.AttrBool("b"))
	assert.Empty(t, n.ChildrenNamed("x"))
}

func TestNodeMalformedAttr(t *testing.T) {
	n, err := ParseXML("<rm id='abc' ucnt=' 4 '/>")
	require.NoError(t, err)
	assert.Equal(t, DefaultInt, n.AttrInt("id", DefaultInt))
	assert.Equal(t, 4, n.AttrInt("ucnt", DefaultInt))
}

func TestNodeTextWithCDATA(t *testing.T) {
	n, err := ParseXML("<body><txt><![CDATA[a <b> & c]]></txt><u i='1'/><u i='2'/></body>")
	require.NoError(t, err)
	assert.Equal(t, "a <b> & c", n.Child("txt").Text())
	assert.Len(t, n.ChildrenNamed("u"), 2)
}
