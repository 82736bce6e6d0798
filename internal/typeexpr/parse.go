package typeexpr

import (
	"fmt"
	"strconv"
)

type parser struct {
	sc  scanner
	tok token
}

// Parse parses a complete expression.
func Parse(src string) (*Expr, error) {
	p := &parser{sc: scanner{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.parseConjunction()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != tokEOF {
		return nil, p.errorf("unexpected %s after expression", p.tok.Kind)
	}
	return e, nil
}

// MustParse panics on malformed input. For tests and static tables.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) advance() error {
	tok, err := p.sc.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Input: p.sc.src, Pos: p.tok.Pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(k tokenKind) (token, error) {
	if p.tok.Kind != k {
		return token{}, p.errorf("expected %s, found %s", k, p.tok.Kind)
	}
	tok := p.tok
	return tok, p.advance()
}

func (p *parser) parseConjunction() (*Expr, error) {
	first, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != tokAmp {
		return first, nil
	}
	conj := &Expr{Kind: KindConjunction, Pos: first.Pos, Members: []*Expr{first}}
	for p.tok.Kind == tokAmp {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.parseType()
		if err != nil {
			return nil, err
		}
		conj.Members = append(conj.Members, next)
	}
	return conj, nil
}

func (p *parser) parseType() (*Expr, error) {
	base, err := p.parseName()
	if err != nil {
		return nil, err
	}
	return p.parseArraySuffixes(base)
}

func (p *parser) parseArraySuffixes(base *Expr) (*Expr, error) {
	// T[2][3] is an array of 2 arrays of 3: collect dims left to right,
	// then wrap innermost first.
	type dim struct {
		count   int64
		name    string
		unsized bool
		pos     int
	}
	var dims []dim
	for p.tok.Kind == tokLBracket {
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		d := dim{pos: pos}
		switch p.tok.Kind {
		case tokRBracket:
			d.unsized = true
		case tokInt:
			n, err := strconv.ParseInt(p.tok.Text, 10, 64)
			if err != nil || n < 0 {
				return nil, p.errorf("invalid array length %q", p.tok.Text)
			}
			d.count = n
			if err := p.advance(); err != nil {
				return nil, err
			}
		case tokIdent:
			d.name = p.tok.Text
			if err := p.advance(); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("expected array length, found %s", p.tok.Kind)
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	out := base
	for i := len(dims) - 1; i >= 0; i-- {
		d := dims[i]
		out = &Expr{Kind: KindArray, Pos: d.pos, Elem: out, Count: d.count, CountName: d.name, Unsized: d.unsized}
	}
	return out, nil
}

func (p *parser) parseName() (*Expr, error) {
	e := &Expr{Kind: KindName, Pos: p.tok.Pos}
	for {
		id, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		seg := Segment{Name: id.Text}
		if p.tok.Kind == tokLAngle {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			seg.Args = args
		}
		e.Segments = append(e.Segments, seg)
		if p.tok.Kind != tokDot {
			return e, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseArgs() ([]*Expr, error) {
	if _, err := p.expect(tokLAngle); err != nil {
		return nil, err
	}
	var args []*Expr
	for {
		arg, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.tok.Kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := p.expect(tokRAngle); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *parser) parseArg() (*Expr, error) {
	pos := p.tok.Pos
	neg := false
	if p.tok.Kind == tokMinus {
		neg = true
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind != tokInt && p.tok.Kind != tokFloat {
			return nil, p.errorf("expected number after '-'")
		}
	}
	switch p.tok.Kind {
	case tokInt:
		n, err := strconv.ParseInt(p.tok.Text, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %q", p.tok.Text)
		}
		if neg {
			n = -n
		}
		return &Expr{Kind: KindInt, Pos: pos, Int: n}, p.advance()
	case tokFloat:
		f, err := strconv.ParseFloat(p.tok.Text, 64)
		if err != nil {
			return nil, p.errorf("invalid float %q", p.tok.Text)
		}
		if neg {
			f = -f
		}
		return &Expr{Kind: KindFloat, Pos: pos, Float: f}, p.advance()
	case tokString:
		return &Expr{Kind: KindString, Pos: pos, Str: p.tok.Text}, p.advance()
	case tokIdent:
		if p.tok.Text == "true" || p.tok.Text == "false" {
			e := &Expr{Kind: KindBool, Pos: pos, Bool: p.tok.Text == "true"}
			return e, p.advance()
		}
	}
	return p.parseConjunction()
}
