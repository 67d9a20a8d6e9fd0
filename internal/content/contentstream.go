package content

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ErrUndecodableText is returned when a page shows text in an encoding that
// cannot be mapped back to characters without the font's tables.
var ErrUndecodableText = errors.New("text shown in an undecodable font encoding")

type tokenKind int

const (
	tokString tokenKind = iota
	tokNumber
	tokOperator
	tokArray
	tokOther
)

type token struct {
	kind  tokenKind
	text  string  // decoded string, operator name or raw other token
	num   float64 // tokNumber
	elems []token // tokArray
}

// kerning adjustments in a TJ array beyond this many thousandths of an em
// are rendered as a word space.
const wordSpaceAdjust = -200

// textFromContentStream interprets the text operators of a page content
// stream: Tj, TJ, ' and " show strings; Td, TD, T*, Tm and ET start a new line.
func textFromContentStream(data []byte) (string, error) {
	var sb strings.Builder
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}
	lastString := func(operands []token) (string, bool) {
		if len(operands) == 0 || operands[len(operands)-1].kind != tokString {
			return "", false
		}
		return operands[len(operands)-1].text, true
	}

	lx := &lexer{data: data}
	var operands []token
	for {
		tok, ok, err := lx.next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if s, ok := lastString(operands); ok {
				sb.WriteString(s)
			}
		case "'", `"`:
			newline()
			if s, ok := lastString(operands); ok {
				sb.WriteString(s)
			}
		case "TJ":
			if len(operands) > 0 && operands[len(operands)-1].kind == tokArray {
				for _, el := range operands[len(operands)-1].elems {
					switch {
					case el.kind == tokString:
						sb.WriteString(el.text)
					case el.kind == tokNumber && el.num <= wordSpaceAdjust:
						if s := sb.String(); len(s) > 0 && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
							sb.WriteByte(' ')
						}
					}
				}
			}
		case "Td", "TD", "T*", "Tm", "ET":
			newline()
		case "ID":
			if err := lx.skipInlineImage(); err != nil {
				return "", err
			}
		}
		operands = operands[:0]
	}

	return strings.TrimSpace(sb.String()), nil
}

type lexer struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

// next returns the next token; ok is false at the end of the stream. Arrays
// are returned whole.
func (l *lexer) next() (token, bool, error) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.data) {
		return token{}, false, nil
	}

	switch c := l.data[l.pos]; c {
	case '(':
		raw, err := l.literal()
		if err != nil {
			return token{}, false, err
		}
		s, err := decodeShown([]byte(decodePDFString(raw)))
		return token{kind: tokString, text: s}, err == nil, err
	case '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return token{kind: tokOther, text: "<<"}, true, nil
		}
		raw, err := l.hexString()
		if err != nil {
			return token{}, false, err
		}
		s, err := decodeShown(raw)
		return token{kind: tokString, text: s}, err == nil, err
	case '>':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
			l.pos += 2
			return token{kind: tokOther, text: ">>"}, true, nil
		}
		return token{}, false, fmt.Errorf("content stream: unexpected '>' at offset %d", l.pos)
	case '[':
		l.pos++
		arr := token{kind: tokArray}
		for {
			l.skipSpaceAndComments()
			if l.pos >= len(l.data) {
				return token{}, false, errors.New("content stream: unterminated array")
			}
			if l.data[l.pos] == ']' {
				l.pos++
				return arr, true, nil
			}
			el, ok, err := l.next()
			if err != nil {
				return token{}, false, err
			}
			if !ok {
				return token{}, false, errors.New("content stream: unterminated array")
			}
			arr.elems = append(arr.elems, el)
		}
	case ']', ')':
		return token{}, false, fmt.Errorf("content stream: unexpected %q at offset %d", c, l.pos)
	case '{', '}':
		l.pos++
		return token{kind: tokOther, text: string(c)}, true, nil
	case '/':
		start := l.pos
		l.pos++
		l.regular()
		return token{kind: tokOther, text: string(l.data[start:l.pos])}, true, nil
	default:
		start := l.pos
		l.regular()
		word := string(l.data[start:l.pos])
		if n, err := strconv.ParseFloat(word, 64); err == nil {
			return token{kind: tokNumber, num: n, text: word}, true, nil
		}
		return token{kind: tokOperator, text: word}, true, nil
	}
}

func (l *lexer) regular() {
	for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
}

// literal consumes a balanced (...) string and returns its body, escapes
// still in place.
func (l *lexer) literal() ([]byte, error) {
	start := l.pos + 1
	depth := 0
	for i := l.pos; i < len(l.data); i++ {
		switch l.data[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				l.pos = i + 1
				return l.data[start:i], nil
			}
		}
	}
	return nil, errors.New("content stream: unterminated string")
}

func (l *lexer) hexString() ([]byte, error) {
	end := bytes.IndexByte(l.data[l.pos:], '>')
	if end < 0 {
		return nil, errors.New("content stream: unterminated hex string")
	}
	digits := make([]byte, 0, end)
	for _, c := range l.data[l.pos+1 : l.pos+end] {
		if !isWhite(c) {
			digits = append(digits, c)
		}
	}
	l.pos += end + 1
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, hex.DecodedLen(len(digits)))
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("content stream: %w", err)
	}
	return out, nil
}

// skipInlineImage moves past binary image data up to its EI operator.
func (l *lexer) skipInlineImage() error {
	for i := l.pos; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		before := i == 0 || isWhite(l.data[i-1])
		after := i+2 == len(l.data) || isWhite(l.data[i+2])
		if before && after {
			l.pos = i + 2
			return nil
		}
	}
	return errors.New("content stream: unterminated inline image")
}

// decodeShown maps the bytes of a shown string to text. Two-byte strings are
// read as UTF-16BE when they carry a byte order mark or all their high bytes
// are zero; single-byte strings are read as Latin-1. Anything else depends on
// the font's tables and is rejected.
func decodeShown(raw []byte) (string, error) {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		return decodeUTF16BE(raw[2:]), nil
	}
	if len(raw) >= 2 && len(raw)%2 == 0 && highBytesZero(raw) {
		return decodeUTF16BE(raw), nil
	}

	runes := make([]rune, 0, len(raw))
	for _, c := range raw {
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' && c != '\f' {
			return "", ErrUndecodableText
		}
		runes = append(runes, rune(c))
	}
	return string(runes), nil
}

func highBytesZero(raw []byte) bool {
	for i := 0; i < len(raw); i += 2 {
		if raw[i] != 0 {
			return false
		}
	}
	return true
}

func decodeUTF16BE(raw []byte) string {
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
	}
	return string(utf16.Decode(units))
}

func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 == len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '\r':
			// Line continuation.
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			val := int(c - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		default:
			// \\ \( \) and unknown escapes all yield the escaped byte.
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
