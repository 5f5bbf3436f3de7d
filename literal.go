package pokebattle

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrBadLiteral is returned when a structured value
// doesn't match the expected literal syntax
var ErrBadLiteral = errors.New("malformed literal value")

// A Dict is an insertion-ordered string-keyed mapping,
// the structured value form used inside messages
type Dict struct {
	keys []string
	m    map[string]interface{}
}

// NewDict returns an empty Dict
func NewDict() *Dict {
	return &Dict{m: make(map[string]interface{})}
}

// Set sets key to v, keeping the position of key
// if it is already present
func (d *Dict) Set(key string, v interface{}) *Dict {
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = v

	return d
}

// Get returns the value of key
func (d *Dict) Get(key string) (interface{}, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (d *Dict) Keys() []string { return d.keys }

// Len returns the number of entries
func (d *Dict) Len() int { return len(d.keys) }

// EncodeLiteral renders v as the single-line literal form used
// for structured values on the wire:
// 'str', 42, 1.5, {'k': v, ...}, [v, ...], True, False, None
func EncodeLiteral(v interface{}) string {
	var b strings.Builder
	encodeLiteral(&b, v)
	return b.String()
}

func encodeLiteral(b *strings.Builder, v interface{}) {
	switch x := v.(type) {
	case nil:
		b.WriteString("None")
	case bool:
		if x {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case string:
		b.WriteByte('\'')
		for _, r := range x {
			switch r {
			case '\'':
				b.WriteString(`\'`)
			case '\\':
				b.WriteString(`\\`)
			case '\n':
				b.WriteString(`\n`)
			default:
				b.WriteRune(r)
			}
		}
		b.WriteByte('\'')
	case int:
		b.WriteString(strconv.Itoa(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		b.WriteString(formatFloat(x))
	case []interface{}:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			encodeLiteral(b, e)
		}
		b.WriteByte(']')
	case *Dict:
		b.WriteByte('{')
		for i, k := range x.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			encodeLiteral(b, k)
			b.WriteString(": ")
			encodeLiteral(b, x.m[k])
		}
		b.WriteByte('}')
	default:
		b.WriteString("None")
	}
}

// formatFloat renders floats for the wire; integral values keep
// a trailing .0 so both sides print them identically
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}

	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ParseLiteral parses the literal textual form back into a value:
// strings, ints, floats, *Dict, []interface{}, bools and nil.
// It is a strict parser, not an evaluator: anything else is
// rejected with ErrBadLiteral.
func ParseLiteral(s string) (interface{}, error) {
	p := &litParser{src: s}
	p.ws()

	v, err := p.value()
	if err != nil {
		return nil, err
	}

	p.ws()
	if p.pos != len(p.src) {
		return nil, ErrBadLiteral
	}

	return v, nil
}

type litParser struct {
	src string
	pos int
}

func (p *litParser) ws() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *litParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}

	return p.src[p.pos]
}

func (p *litParser) value() (interface{}, error) {
	switch c := p.peek(); {
	case c == '\'' || c == '"':
		return p.str(c)
	case c == '{':
		return p.dict()
	case c == '[':
		return p.list()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return p.word()
	}
}

func (p *litParser) str(quote byte) (string, error) {
	p.pos++ // opening quote

	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.src) {
				return "", ErrBadLiteral
			}
			switch e := p.src[p.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}

	return "", ErrBadLiteral
}

func (p *litParser) number() (interface{}, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}

	float := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
		} else if c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			float = true
			p.pos++
		} else {
			break
		}
	}

	tok := p.src[start:p.pos]
	if !float {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, ErrBadLiteral
		}
		return n, nil
	}

	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, ErrBadLiteral
	}

	return f, nil
}

func (p *litParser) word() (interface{}, error) {
	for _, w := range []struct {
		tok string
		val interface{}
	}{
		{"True", true},
		{"False", false},
		{"None", nil},
	} {
		if strings.HasPrefix(p.src[p.pos:], w.tok) {
			p.pos += len(w.tok)
			return w.val, nil
		}
	}

	return nil, ErrBadLiteral
}

func (p *litParser) list() ([]interface{}, error) {
	p.pos++ // '['
	p.ws()

	l := []interface{}{}
	if p.peek() == ']' {
		p.pos++
		return l, nil
	}

	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		l = append(l, v)

		p.ws()
		switch p.peek() {
		case ',':
			p.pos++
			p.ws()
		case ']':
			p.pos++
			return l, nil
		default:
			return nil, ErrBadLiteral
		}
	}
}

func (p *litParser) dict() (*Dict, error) {
	p.pos++ // '{'
	p.ws()

	d := NewDict()
	if p.peek() == '}' {
		p.pos++
		return d, nil
	}

	for {
		c := p.peek()
		if c != '\'' && c != '"' {
			return nil, ErrBadLiteral
		}

		k, err := p.str(c)
		if err != nil {
			return nil, err
		}

		p.ws()
		if p.peek() != ':' {
			return nil, ErrBadLiteral
		}
		p.pos++
		p.ws()

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		d.Set(k, v)

		p.ws()
		switch p.peek() {
		case ',':
			p.pos++
			p.ws()
		case '}':
			p.pos++
			return d, nil
		default:
			return nil, ErrBadLiteral
		}
	}
}
