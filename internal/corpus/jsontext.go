package corpus

import (
	"strings"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// writeJSONValue renders v as JSON with ", " and ": " separators. Non-ASCII
// text is written verbatim; only quotes, backslashes and control characters
// are escaped.
func writeJSONValue(sb *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindString:
		writeJSONString(sb, v.text)
	case KindNumber:
		sb.WriteString(numberText(v.text, true))
	case KindBool:
		if v.flag {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeJSONValue(sb, item)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeJSONString(sb, f.Name)
			sb.WriteString(": ")
			writeJSONValue(sb, f.Value)
		}
		sb.WriteByte('}')
	}
}

func writeJSONString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '"':
			sb.WriteString(`\"`)
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\b':
			sb.WriteString(`\b`)
		case r == '\f':
			sb.WriteString(`\f`)
		case r < 0x20:
			sb.WriteString(`\u00`)
			sb.WriteByte(hexDigits[r>>4])
			sb.WriteByte(hexDigits[r&0xF])
		case r == utf8.RuneError && size == 1:
			sb.WriteString(`\ufffd`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}
