package typeexpr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokDot
	tokComma
	tokLAngle
	tokRAngle
	tokLBracket
	tokRBracket
	tokAmp
	tokMinus
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokInt:
		return "integer"
	case tokFloat:
		return "float"
	case tokString:
		return "string"
	case tokDot:
		return "'.'"
	case tokComma:
		return "','"
	case tokLAngle:
		return "'<'"
	case tokRAngle:
		return "'>'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokAmp:
		return "'&'"
	case tokMinus:
		return "'-'"
	default:
		return fmt.Sprintf("token(%d)", k)
	}
}

type token struct {
	Kind tokenKind
	Pos  int
	Text string
}

type scanner struct {
	src string
	off int
}

func (s *scanner) next() (token, error) {
	for s.off < len(s.src) && (s.src[s.off] == ' ' || s.src[s.off] == '\t') {
		s.off++
	}
	if s.off >= len(s.src) {
		return token{Kind: tokEOF, Pos: s.off}, nil
	}
	start := s.off
	ch := s.src[s.off]
	single := map[byte]tokenKind{
		'.': tokDot, ',': tokComma, '<': tokLAngle, '>': tokRAngle,
		'[': tokLBracket, ']': tokRBracket, '&': tokAmp, '-': tokMinus,
	}
	if k, ok := single[ch]; ok {
		s.off++
		return token{Kind: k, Pos: start, Text: s.src[start:s.off]}, nil
	}
	switch {
	case isDigit(ch):
		return s.scanNumber(), nil
	case ch == '"':
		return s.scanString()
	}
	r, size := utf8.DecodeRuneInString(s.src[s.off:])
	if r == '_' || unicode.IsLetter(r) {
		s.off += size
		for s.off < len(s.src) {
			r, size = utf8.DecodeRuneInString(s.src[s.off:])
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			s.off += size
		}
		return token{Kind: tokIdent, Pos: start, Text: s.src[start:s.off]}, nil
	}
	return token{}, &SyntaxError{Input: s.src, Pos: start, Msg: fmt.Sprintf("unexpected character %q", r)}
}

func (s *scanner) scanNumber() token {
	start := s.off
	kind := tokInt
	for s.off < len(s.src) && isDigit(s.src[s.off]) {
		s.off++
	}
	if s.off+1 < len(s.src) && s.src[s.off] == '.' && isDigit(s.src[s.off+1]) {
		kind = tokFloat
		s.off++
		for s.off < len(s.src) && isDigit(s.src[s.off]) {
			s.off++
		}
	}
	if s.off < len(s.src) && (s.src[s.off] == 'e' || s.src[s.off] == 'E') {
		kind = tokFloat
		s.off++
		if s.off < len(s.src) && (s.src[s.off] == '+' || s.src[s.off] == '-') {
			s.off++
		}
		for s.off < len(s.src) && isDigit(s.src[s.off]) {
			s.off++
		}
	}
	return token{Kind: kind, Pos: start, Text: s.src[start:s.off]}
}

func (s *scanner) scanString() (token, error) {
	start := s.off
	s.off++
	var b strings.Builder
	for s.off < len(s.src) {
		ch := s.src[s.off]
		switch ch {
		case '"':
			s.off++
			return token{Kind: tokString, Pos: start, Text: b.String()}, nil
		case '\\':
			if s.off+1 < len(s.src) {
				b.WriteByte(s.src[s.off+1])
				s.off += 2
				continue
			}
		}
		b.WriteByte(ch)
		s.off++
	}
	return token{}, &SyntaxError{Input: s.src, Pos: start, Msg: "unterminated string"}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
