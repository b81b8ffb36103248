package payloaddecoder

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/tidwall/jsonc"
)

// NormalizeJSON5 rewrites a JSON5 document into plain JSON. Strings are
// double quoted first so jsonc sees every delimiter; comments and trailing
// commas then go through jsonc, and the remaining JSON5 forms are handled
// here. Infinity and NaN have no JSON spelling and become null.
func NormalizeJSON5(src []byte) ([]byte, error) {
	quoted, err := quoteStrings(src)
	if err != nil {
		return nil, err
	}
	in := jsonc.ToJSON(quoted)
	out := bytes.NewBuffer(make([]byte, 0, len(in)+16))

	for i := 0; i < len(in); {
		c := in[i]
		switch {
		case c == '"' || c == '\'':
			n, err := copyString(out, in[i:])
			if err != nil {
				return nil, fmt.Errorf("offset %d: %w", i, err)
			}
			i += n
		case c == '+' || c == '-' || c == '.' || isDigit(c):
			n, err := copyNumber(out, in[i:])
			if err != nil {
				return nil, fmt.Errorf("offset %d: %w", i, err)
			}
			i += n
		case isIdentStart(c):
			j := i + 1
			for j < len(in) && isIdentPart(in[j]) {
				j++
			}
			word := string(in[i:j])
			switch {
			case isMemberName(in[j:]):
				out.WriteByte('"')
				out.WriteString(word)
				out.WriteByte('"')
			case word == "Infinity" || word == "NaN":
				out.WriteString("null")
			default:
				out.WriteString(word)
			}
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.Bytes(), nil
}

// quoteStrings rewrites every string literal, single or double quoted, as a
// JSON string. Comments are copied untouched.
func quoteStrings(src []byte) ([]byte, error) {
	out := bytes.NewBuffer(make([]byte, 0, len(src)+16))
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			n, err := copyString(out, src[i:])
			if err != nil {
				return nil, fmt.Errorf("offset %d: %w", i, err)
			}
			i += n
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			j := bytes.IndexByte(src[i:], '\n')
			if j < 0 {
				j = len(src) - i
			}
			out.Write(src[i : i+j])
			i += j
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			j := bytes.Index(src[i+2:], []byte("*/"))
			if j < 0 {
				return nil, fmt.Errorf("offset %d: unterminated comment", i)
			}
			out.Write(src[i : i+j+4])
			i += j + 4
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.Bytes(), nil
}

// isMemberName reports whether the next non-space byte is a colon.
func isMemberName(rest []byte) bool {
	for _, c := range rest {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case ':':
			return true
		default:
			return false
		}
	}
	return false
}

func copyString(out *bytes.Buffer, s []byte) (int, error) {
	quote := s[0]
	out.WriteByte('"')
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			out.WriteByte('"')
			return i + 1, nil
		case c == '\\':
			if i+1 >= len(s) {
				return 0, fmt.Errorf("unterminated string")
			}
			i++
			switch esc := s[i]; esc {
			case '\'':
				out.WriteByte('\'')
			case '\n':
			case '\r':
				if i+1 < len(s) && s[i+1] == '\n' {
					i++
				}
			case 'v':
				out.WriteString(`\u000b`)
			case '0':
				out.WriteString(`\u0000`)
			case 'x':
				if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
					return 0, fmt.Errorf("bad \\x escape")
				}
				out.WriteString(`\u00`)
				out.Write(s[i+1 : i+3])
				i += 2
			default:
				out.WriteByte('\\')
				out.WriteByte(esc)
			}
		case c == '"':
			out.WriteString(`\"`)
		default:
			out.WriteByte(c)
		}
	}
	return 0, fmt.Errorf("unterminated string")
}

func copyNumber(out *bytes.Buffer, s []byte) (int, error) {
	i := 0
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		i = 1
	}
	rest := s[i:]

	for _, word := range []string{"Infinity", "NaN"} {
		if bytes.HasPrefix(rest, []byte(word)) {
			out.WriteString("null")
			return i + len(word), nil
		}
	}

	if len(rest) >= 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X') {
		j := 2
		for j < len(rest) && isHex(rest[j]) {
			j++
		}
		v, ok := new(big.Int).SetString(string(rest[2:j]), 16)
		if !ok {
			return 0, fmt.Errorf("bad hexadecimal number")
		}
		if neg {
			v.Neg(v)
		}
		out.WriteString(v.String())
		return i + j, nil
	}

	j := 0
	for j < len(rest) {
		c := rest[j]
		if isDigit(c) || c == '.' || c == 'e' || c == 'E' ||
			((c == '+' || c == '-') && j > 0 && (rest[j-1] == 'e' || rest[j-1] == 'E')) {
			j++
			continue
		}
		break
	}

	num := rest[:j]
	if neg {
		out.WriteByte('-')
	}
	if len(num) > 0 && num[0] == '.' {
		out.WriteByte('0')
	}
	for k, c := range num {
		out.WriteByte(c)
		if c == '.' && (k+1 == len(num) || !isDigit(num[k+1])) {
			out.WriteByte('0')
		}
	}
	return i + j, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
