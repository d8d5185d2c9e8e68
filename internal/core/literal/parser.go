// Package literal parses Python-style literal expressions (dicts, lists, tuples, strings,
// numbers, booleans and None) into JSON-compatible Go values without evaluating anything.
//
// Parsed values use the same types encoding/json produces with UseNumber:
// map[string]any, []any, string, json.Number, bool and nil.
package literal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxDepth = 64

// SyntaxError describes where the input stops being a valid literal.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("literal syntax error at offset %d: %s", e.Offset, e.Msg)
}

// Parse parses a single literal expression. Trailing non-whitespace input is an error.
func Parse(src string) (any, error) {
	p := &parser{src: src}
	p.skipSpace()
	v, err := p.value(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.preview())
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) preview() string {
	end := p.pos + 16
	if end > len(p.src) {
		end = len(p.src)
	}
	return p.src[p.pos:end]
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == ' ', c == '\t', c == '\n', c == '\r', c == '\f', c == '\v':
			p.pos++
		case c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n':
			p.pos += 2
		case c == '#':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *parser) value(depth int) (any, error) {
	if depth > maxDepth {
		return nil, p.errorf("nesting deeper than %d", maxDepth)
	}
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}

	switch c := p.peek(); {
	case c == '{':
		return p.dict(depth)
	case c == '[':
		return p.sequence(depth, '[', ']')
	case c == '(':
		return p.sequence(depth, '(', ')')
	case p.atStringStart():
		return p.stringValue()
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		return p.identifier()
	default:
		return nil, p.errorf("unexpected character %q", rune(c))
	}
}

func (p *parser) dict(depth int) (any, error) {
	p.pos++ // {
	out := make(map[string]any)
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}

		keyPos := p.pos
		key, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		name, ok := key.(string)
		if !ok {
			return nil, &SyntaxError{Offset: keyPos, Msg: fmt.Sprintf("dict key must be a string, got %T", key)}
		}

		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after dict key %q", name)
		}
		p.pos++
		p.skipSpace()

		val, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		out[name] = val

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or '}' in dict")
		}
	}
}

func (p *parser) sequence(depth int, open, closing byte) (any, error) {
	p.pos++ // open
	out := make([]any, 0, 8)
	for {
		p.skipSpace()
		if p.peek() == closing {
			p.pos++
			return out, nil
		}

		val, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, val)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or %q in %q sequence", rune(closing), rune(open))
		}
	}
}

// stringValue reads one or more adjacent string literals, with optional r/u prefixes,
// and concatenates them.
func (p *parser) stringValue() (any, error) {
	var b strings.Builder
	for {
		raw := false
		switch p.peek() {
		case 'r', 'R':
			raw = true
			p.pos++
		case 'u', 'U':
			p.pos++
		}
		s, err := p.stringLiteral(raw)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)

		save := p.pos
		p.skipSpace()
		if !p.atStringStart() {
			p.pos = save
			return b.String(), nil
		}
	}
}

// atStringStart reports a quote, optionally after a single r/u prefix.
func (p *parser) atStringStart() bool {
	switch c := p.peek(); c {
	case '\'', '"':
		return true
	case 'r', 'R', 'u', 'U':
		next := p.pos + 1
		return next < len(p.src) && (p.src[next] == '\'' || p.src[next] == '"')
	default:
		return false
	}
}

func (p *parser) stringLiteral(raw bool) (string, error) {
	quote := p.peek()
	start := p.pos
	triple := strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(quote), 3))
	if triple {
		p.pos += 3
	} else {
		p.pos++
	}

	var b strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", &SyntaxError{Offset: start, Msg: "unterminated string"}
		}
		c := p.src[p.pos]
		switch {
		case triple && strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(quote), 3)):
			p.pos += 3
			return b.String(), nil
		case !triple && c == quote:
			p.pos++
			return b.String(), nil
		case !triple && c == '\n':
			return "", p.errorf("newline in single-quoted string")
		case c == '\\' && !raw:
			if err := p.escape(&b); err != nil {
				return "", err
			}
		case c == '\\' && raw && p.pos+1 < len(p.src):
			b.WriteByte(c)
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
}

func (p *parser) escape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return p.errorf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '\n':
	case '\\', '\'', '"':
		b.WriteByte(c)
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case 'a':
		b.WriteByte('\a')
	case '0':
		b.WriteByte(0)
	case 'x':
		return p.hexEscape(b, 2)
	case 'u':
		return p.hexEscape(b, 4)
	case 'U':
		return p.hexEscape(b, 8)
	default:
		// Unknown escapes are kept verbatim.
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *parser) hexEscape(b *strings.Builder, digits int) error {
	if p.pos+digits > len(p.src) {
		return p.errorf("truncated \\x/\\u escape")
	}
	code, err := strconv.ParseUint(p.src[p.pos:p.pos+digits], 16, 32)
	if err != nil {
		return p.errorf("invalid hex escape %q", p.src[p.pos:p.pos+digits])
	}
	if code > utf8.MaxRune {
		return p.errorf("escape out of unicode range")
	}
	p.pos += digits
	b.WriteRune(rune(code))
	return nil
}

func (p *parser) number() (any, error) {
	start := p.pos
	if c := p.peek(); c == '+' || c == '-' {
		p.pos++
	}
	digits := 0
	isFloat := false
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case isDigit(c):
			digits++
		case c == '_':
		case c == '.':
			isFloat = true
		case c == 'e' || c == 'E':
			isFloat = true
			if next := p.pos + 1; next < len(p.src) && (p.src[next] == '+' || p.src[next] == '-') {
				p.pos++
			}
		default:
			break scan
		}
		p.pos++
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if digits == 0 {
		return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("invalid number %q", text)}
	}
	text = strings.TrimPrefix(text, "+")

	if !isFloat {
		n, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return json.Number(strconv.FormatInt(n, 10)), nil
		}
		if !errors.Is(err, strconv.ErrRange) {
			return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("invalid integer %q", text)}
		}
		// Out of int64 range; keep it as a float.
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("invalid float %q", text)}
	}
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

func (p *parser) identifier() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && (isIdentStart(p.src[p.pos]) || isDigit(p.src[p.pos])) {
		p.pos++
	}
	switch word := p.src[start:p.pos]; word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	default:
		return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("unsupported name %q", word)}
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
