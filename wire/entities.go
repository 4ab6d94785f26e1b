package wire

import (
	"strconv"
	"strings"
)

var entityEncoder = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

var namedEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&apos;": "'",
	"&quot;": `"`,
}

// EncodeEntities escapes the five XML metacharacters. Control characters
// other than tab, newline and carriage return are dropped.
func EncodeEntities(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	return entityEncoder.Replace(s)
}

// DecodeEntities reverses EncodeEntities and also resolves numeric
// references (&#65; and &#x41;). Unknown entities are kept verbatim.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for {
		i := strings.IndexByte(s, '&')
		if i < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		sb.WriteString(s[:i])
		s = s[i:]

		end := strings.IndexByte(s, ';')
		if end < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		ent := s[:end+1]
		if r, ok := resolveEntity(ent); ok {
			sb.WriteString(r)
		} else {
			sb.WriteString(ent)
		}
		s = s[end+1:]
	}
}

func resolveEntity(ent string) (string, bool) {
	if r, ok := namedEntities[ent]; ok {
		return r, true
	}
	if !strings.HasPrefix(ent, "&#") {
		return "", false
	}

	num := ent[2 : len(ent)-1]
	base := 10
	if strings.HasPrefix(num, "x") || strings.HasPrefix(num, "X") {
		num = num[1:]
		base = 16
	}
	code, err := strconv.ParseUint(num, base, 32)
	if err != nil || code > 0x10FFFF {
		return "", false
	}
	return string(rune(code)), true
}
