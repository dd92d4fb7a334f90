package data

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// ParseJSON reads a JSON object into a document. Unlike encoding/json it
// keeps the fields in the order they appear in the input, and numbers
// written without a fraction or exponent come back as integers.
func ParseJSON(data []byte) (*domain.Doc, error) {
	p := &jsonParser{data: data, n: len(data)}
	p.skip()
	if p.i >= p.n || p.data[p.i] != '{' {
		return nil, errors.New("expected a JSON object")
	}
	doc, err := p.obj()
	if err != nil {
		return nil, err
	}
	p.skip()
	if p.i != p.n {
		return nil, errors.New("trailing data after JSON")
	}
	return doc, nil
}

// parseJSONValue reads a single JSON value of any shape.
func parseJSONValue(data []byte) (domain.Value, error) {
	p := &jsonParser{data: data, n: len(data)}
	p.skip()
	val, err := p.value()
	if err != nil {
		return domain.Value{}, err
	}
	p.skip()
	if p.i != p.n {
		return domain.Value{}, errors.New("trailing data after JSON")
	}
	return val, nil
}

type jsonParser struct {
	data []byte
	i    int
	n    int
}

func (p *jsonParser) skip() {
	for p.i < p.n {
		switch p.data[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

func (p *jsonParser) value() (domain.Value, error) {
	if p.i >= p.n {
		return domain.Value{}, errors.New("unexpected end of input")
	}
	switch p.data[p.i] {
	case '{':
		doc, err := p.obj()
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Object(doc), nil
	case '[':
		return p.arr()
	case '"':
		s, err := p.str()
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Str(s), nil
	case 't':
		return p.expect("true", domain.Bool(true))
	case 'f':
		return p.expect("false", domain.Bool(false))
	case 'n':
		return p.expect("null", domain.Null())
	default:
		return p.num()
	}
}

func (p *jsonParser) obj() (*domain.Doc, error) {
	p.i++ // skip '{'
	p.skip()
	doc := domain.NewDoc()
	if p.i < p.n && p.data[p.i] == '}' {
		p.i++
		return doc, nil
	}
	for {
		p.skip()
		key, err := p.str()
		if err != nil {
			return nil, err
		}
		p.skip()
		if p.i >= p.n || p.data[p.i] != ':' {
			return nil, errors.New("expected ':'")
		}
		p.i++
		p.skip()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		doc.Set(key, val)
		p.skip()
		if p.i >= p.n {
			return nil, errors.New("unexpected end of object")
		}
		if p.data[p.i] == '}' {
			p.i++
			break
		}
		if p.data[p.i] != ',' {
			return nil, errors.New("expected ',' in object")
		}
		p.i++
	}
	return doc, nil
}

func (p *jsonParser) arr() (domain.Value, error) {
	p.i++ // skip '['
	p.skip()
	var out []domain.Value
	if p.i < p.n && p.data[p.i] == ']' {
		p.i++
		return domain.Array(), nil
	}
	for {
		val, err := p.value()
		if err != nil {
			return domain.Value{}, err
		}
		out = append(out, val)
		p.skip()
		if p.i >= p.n {
			return domain.Value{}, errors.New("unexpected end of array")
		}
		if p.data[p.i] == ']' {
			p.i++
			break
		}
		if p.data[p.i] != ',' {
			return domain.Value{}, errors.New("expected ',' in array")
		}
		p.i++
		p.skip()
	}
	return domain.Array(out...), nil
}

func (p *jsonParser) str() (string, error) {
	if p.i >= p.n || p.data[p.i] != '"' {
		return "", errors.New("expected string")
	}
	for i := p.i + 1; i < p.n; i++ {
		switch p.data[i] {
		case '\\':
			i++
		case '"':
			s, err := decodeString(p.data[p.i+1 : i])
			if err != nil {
				return "", err
			}
			p.i = i + 1
			return s, nil
		}
	}
	return "", errors.New("unterminated string")
}

var unescaped = map[byte]byte{
	'"':  '"',
	'\\': '\\',
	'/':  '/',
	'\'': '\'',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
}

func decodeString(b []byte) (string, error) {
	out := make([]byte, len(b)+2*utf8.UTFMax)

	i := 0 // current byte
	w := 0 // written

	for i < len(b) {
		if w >= len(out)-2*utf8.UTFMax {
			nb := make([]byte, (len(out)+utf8.UTFMax)*2)
			copy(nb, out[:w])
			out = nb
		}
		switch c := b[i]; {
		case c == '\\':
			i++
			if i >= len(b) {
				return "", errors.New("unterminated escape")
			}
			if e, ok := unescaped[b[i]]; ok {
				out[w] = e
				i++
				w++
				continue
			}
			if b[i] != 'u' {
				return "", fmt.Errorf("unknown escape character %q", b[i])
			}
			si, sw, err := utf16Escape(b[i-1:], out[w:])
			if err != nil {
				return "", err
			}
			i += si - 1
			w += sw

		case c < ' ':
			return "", errors.New("invalid control char")

		case c < utf8.RuneSelf:
			out[w] = c
			i++
			w++

		default:
			rr, size := utf8.DecodeRune(b[i:])
			i += size
			w += utf8.EncodeRune(out[w:], rr)
		}
	}
	return string(out[:w]), nil
}

// utf16Escape decodes a \uXXXX escape starting at b[0], pairing
// surrogates when a second escape follows. It reports how many input
// bytes it consumed and how many output bytes it wrote.
func utf16Escape(b []byte, out []byte) (int, int, error) {
	rr := utfRune(b)
	if rr < 0 {
		return 0, 0, errors.New("invalid unicode escape")
	}
	i := 6
	if utf16.IsSurrogate(rr) {
		if dec := utf16.DecodeRune(rr, utfRune(b[i:])); dec != unicode.ReplacementChar {
			return i + 6, utf8.EncodeRune(out, dec), nil
		}
		rr = unicode.ReplacementChar
	}
	return i, utf8.EncodeRune(out, rr), nil
}

func utfRune(b []byte) rune {
	if len(b) < 6 || b[0] != '\\' || b[1] != 'u' {
		return -1
	}
	r, err := strconv.ParseInt(string(b[2:6]), 16, 64)
	if err != nil {
		return -1
	}
	return rune(r)
}

func (p *jsonParser) num() (domain.Value, error) {
	start := p.i
	float := false
loop:
	for p.i < p.n {
		switch c := p.data[p.i]; {
		case c >= '0' && c <= '9', c == '-', c == '+':
			p.i++
		case c == '.', c == 'e', c == 'E':
			float = true
			p.i++
		default:
			break loop
		}
	}
	s := string(p.data[start:p.i])
	if !float {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return domain.Int(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.Value{}, fmt.Errorf("invalid number %q", s)
	}
	return domain.Float(f), nil
}

func (p *jsonParser) expect(lit string, val domain.Value) (domain.Value, error) {
	end := p.i + len(lit)
	if end > p.n || string(p.data[p.i:end]) != lit {
		return domain.Value{}, errors.New("invalid literal")
	}
	p.i = end
	return val, nil
}
