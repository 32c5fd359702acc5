package utils

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// JSLiteralToJSON converts a value printed by the near CLI (a JavaScript
// literal such as `[ 'a.near', 'b.near' ]` or `{ name: 'dao' }`) into JSON.
func JSLiteralToJSON(lit string) ([]byte, error) {
	s := strings.TrimSpace(lit)
	if s == "" {
		return nil, errors.New("empty literal")
	}

	var b strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			str, n, err := readQuoted(s[i:])
			if err != nil {
				return nil, errors.WithMessagef(err, "error parsing literal %q", lit)
			}
			enc, _ := json.Marshal(str)
			b.Write(enc)
			i += n
		case c == '-' || isDigit(c):
			j := i + 1
			for j < len(s) && (isDigit(s[j]) || strings.IndexByte(".eE+-", s[j]) >= 0) {
				j++
			}
			b.WriteString(s[i:j])
			// BigInt suffix
			if j < len(s) && s[j] == 'n' {
				j++
			}
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			switch word := s[i:j]; word {
			case "true", "false", "null":
				b.WriteString(word)
			case "undefined":
				b.WriteString("null")
			default:
				enc, _ := json.Marshal(word)
				b.Write(enc)
			}
			i = j
		case c == ',':
			k := i + 1
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k == len(s) || s[k] == ']' || s[k] == '}' {
				i++
				continue
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}

	out := []byte(b.String())
	if !json.Valid(out) {
		return nil, errors.Errorf("literal %q is not a JSON value", lit)
	}
	return out, nil
}

// readQuoted reads a quoted string at the start of s and returns its
// unescaped content and the number of bytes consumed. Escapes unknown to Go,
// such as \` or \' inside double quotes, stand for the escaped character.
func readQuoted(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	rest := s[1:]
	for len(rest) > 0 {
		switch {
		case rest[0] == quote:
			return b.String(), len(s) - len(rest) + 1, nil
		case rest == "\\":
			return "", 0, errors.New("unterminated escape")
		case rest[0] != '\\':
			_, size := utf8.DecodeRuneInString(rest)
			b.WriteString(rest[:size])
			rest = rest[size:]
			continue
		}

		r, _, tail, err := strconv.UnquoteChar(rest, quote)
		if err != nil {
			_, size := utf8.DecodeRuneInString(rest[1:])
			b.WriteString(rest[1 : 1+size])
			rest = rest[1+size:]
			continue
		}
		// \xHH names a code point in JavaScript, not a raw byte.
		b.WriteRune(r)
		rest = tail
	}
	return "", 0, errors.New("unterminated string")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
