package sfs

import (
	"sort"
	"strings"

	"github.com/pior/sfs/object"
	"github.com/pior/sfs/wire"
	"github.com/rs/zerolog"
)

// RoomVariable is a room variable sent with SetRoomVariables or
// CreateRoom. A Null value deletes the variable on the server.
type RoomVariable struct {
	Name       string
	Value      object.Value
	Private    bool
	Persistent bool
}

// applyVariables applies a <vars> delta block to vars and returns the names
// that changed, in document order. Variables typed x are deleted; malformed
// ones are logged and leave the previous value in place.
func applyVariables(vars map[string]object.Value, node *wire.Node, logger zerolog.Logger) []string {
	var changed []string
	for _, v := range node.ChildrenNamed("var") {
		name := v.AttrString("n", wire.DefaultString)
		typ := v.AttrString("t", "")
		if typ == object.TypeNull {
			delete(vars, name)
			changed = append(changed, name)
			continue
		}

		value, err := object.ParseLeaf(typ, v.Text())
		if err != nil {
			logger.Warn().Err(err).Str("variable", name).Msg("ignoring malformed variable")
			continue
		}
		vars[name] = value
		changed = append(changed, name)
	}
	return changed
}

// applyBuddyVariables applies <vs><v n='name'>value</v></vs> to vars.
func applyBuddyVariables(vars map[string]string, node *wire.Node) {
	for _, v := range node.ChildrenNamed("v") {
		vars[v.AttrString("n", wire.DefaultString)] = v.Text()
	}
}

func copyValues(m map[string]object.Value) map[string]object.Value {
	out := make(map[string]object.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// typedLeaf returns the wire type and text of a scalar variable value.
// Containers cannot be stored in variables and yield ok=false.
func typedLeaf(v object.Value) (typ, text string, ok bool) {
	switch v.Kind() {
	case object.KindNull:
		return object.TypeNull, "", true
	case object.KindBool:
		b, _ := v.AsBool()
		if b {
			return object.TypeBool, "1", true
		}
		return object.TypeBool, "0", true
	case object.KindNumber:
		n, _ := v.AsNumber()
		return object.TypeNumber, object.FormatNumber(n), true
	case object.KindString:
		s, _ := v.AsString()
		return object.TypeString, s, true
	}
	return "", "", false
}

func writeRoomVariable(sb *strings.Builder, rv RoomVariable) {
	typ, text, ok := typedLeaf(rv.Value)
	if !ok {
		return
	}
	sb.WriteString("<var n='")
	sb.WriteString(wire.EncodeEntities(rv.Name))
	sb.WriteString("' t='")
	sb.WriteString(typ)
	sb.WriteString("' pr='")
	sb.WriteString(flag(rv.Private))
	sb.WriteString("' pe='")
	sb.WriteString(flag(rv.Persistent))
	sb.WriteString("'>")
	sb.WriteString(wire.CDATA(text))
	sb.WriteString("</var>")
}

// userVariablesXML renders vars in sorted key order.
func userVariablesXML(vars map[string]object.Value) string {
	var sb strings.Builder
	sb.WriteString("<vars>")
	for _, name := range sortedKeys(vars) {
		typ, text, ok := typedLeaf(vars[name])
		if !ok {
			continue
		}
		sb.WriteString("<var n='")
		sb.WriteString(wire.EncodeEntities(name))
		sb.WriteString("' t='")
		sb.WriteString(typ)
		sb.WriteString("'>")
		sb.WriteString(wire.CDATA(text))
		sb.WriteString("</var>")
	}
	sb.WriteString("</vars>")
	return sb.String()
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
