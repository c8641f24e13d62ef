package value

import (
	"fmt"
	"strings"
	"unicode"

	cerrors "github.com/archetype-run/archetype/internal/core/errors"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tLParen
	tRParen
	tLBracket
	tRBracket
	tComma
	tOr
	tAnd
	tEq
	tNe
	tLt
	tLe
	tGt
	tGe
	tContains
	tNot
	tSizeof
	tIdent
	tVarRef
	tString
)

type token struct {
	kind tokenKind
	text string // literal text, identifier, variable name, or string value
	pos  int
}

type lexer struct {
	src    string
	pos    int
	tokens []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	if err := l.run(); err != nil {
		return nil, err
	}
	l.tokens = append(l.tokens, token{kind: tEOF, pos: len(src)})
	return l.tokens, nil
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '(':
			l.tokens = append(l.tokens, token{kind: tLParen, pos: l.pos})
			l.pos++
		case c == ')':
			l.tokens = append(l.tokens, token{kind: tRParen, pos: l.pos})
			l.pos++
		case c == '[':
			l.tokens = append(l.tokens, token{kind: tLBracket, pos: l.pos})
			l.pos++
		case c == ']':
			l.tokens = append(l.tokens, token{kind: tRBracket, pos: l.pos})
			l.pos++
		case c == ',':
			l.tokens = append(l.tokens, token{kind: tComma, pos: l.pos})
			l.pos++
		case c == '!':
			if l.peekAt(1) == '=' {
				l.tokens = append(l.tokens, token{kind: tNe, pos: l.pos})
				l.pos += 2
			} else {
				l.tokens = append(l.tokens, token{kind: tNot, pos: l.pos})
				l.pos++
			}
		case c == '=':
			if l.peekAt(1) != '=' {
				return l.errf("expected '==' but found '='")
			}
			l.tokens = append(l.tokens, token{kind: tEq, pos: l.pos})
			l.pos += 2
		case c == '<':
			if l.peekAt(1) == '=' {
				l.tokens = append(l.tokens, token{kind: tLe, pos: l.pos})
				l.pos += 2
			} else {
				l.tokens = append(l.tokens, token{kind: tLt, pos: l.pos})
				l.pos++
			}
		case c == '>':
			if l.peekAt(1) == '=' {
				l.tokens = append(l.tokens, token{kind: tGe, pos: l.pos})
				l.pos += 2
			} else {
				l.tokens = append(l.tokens, token{kind: tGt, pos: l.pos})
				l.pos++
			}
		case c == '|':
			if l.peekAt(1) != '|' {
				return l.errf("expected '||' but found '|'")
			}
			l.tokens = append(l.tokens, token{kind: tOr, pos: l.pos})
			l.pos += 2
		case c == '&':
			if l.peekAt(1) != '&' {
				return l.errf("expected '&&' but found '&'")
			}
			l.tokens = append(l.tokens, token{kind: tAnd, pos: l.pos})
			l.pos += 2
		case c == '\'' || c == '"':
			s, err := l.lexString(c)
			if err != nil {
				return err
			}
			l.tokens = append(l.tokens, s)
		case c == '$':
			if l.peekAt(1) != '{' {
				return l.errf("expected '${' but found '$'")
			}
			v, err := l.lexVarRef()
			if err != nil {
				return err
			}
			l.tokens = append(l.tokens, v)
		case isIdentStart(rune(c)) || (c >= '0' && c <= '9'):
			l.tokens = append(l.tokens, l.lexIdent())
		default:
			return l.errf("unexpected character %q", string(c))
		}
	}
	return nil
}

func (l *lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' }
func isIdentPart(r rune) bool  { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' }

func (l *lexer) lexIdent() token {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
		l.pos++
	}
	text := l.src[start:l.pos]
	switch strings.ToLower(text) {
	case "contains":
		return token{kind: tContains, text: text, pos: start}
	case "sizeof":
		return token{kind: tSizeof, text: text, pos: start}
	case "and":
		return token{kind: tAnd, text: text, pos: start}
	case "or":
		return token{kind: tOr, text: text, pos: start}
	case "not":
		return token{kind: tNot, text: text, pos: start}
	case "true", "false":
		return token{kind: tIdent, text: strings.ToLower(text), pos: start}
	case "list", "string", "int":
		return token{kind: tIdent, text: strings.ToLower(text), pos: start}
	default:
		return token{kind: tIdent, text: text, pos: start}
	}
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, l.errAt(start, "unterminated string literal")
		}
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			break
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			b.WriteByte(l.src[l.pos+1])
			l.pos += 2
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{kind: tString, text: b.String(), pos: start}, nil
}

func (l *lexer) lexVarRef() (token, error) {
	start := l.pos
	l.pos += 2 // "${"
	nameStart := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '}' {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{}, l.errAt(start, "unterminated variable reference")
	}
	name := l.src[nameStart:l.pos]
	l.pos++ // "}"
	if name == "" {
		return token{}, l.errAt(start, "empty variable name")
	}
	return token{kind: tVarRef, text: name, pos: start}, nil
}

func (l *lexer) errf(format string, args ...interface{}) error {
	return l.errAt(l.pos, fmt.Sprintf(format, args...))
}

func (l *lexer) errAt(pos int, reason string) error {
	frag := l.src
	if pos < len(l.src) {
		end := pos + 16
		if end > len(l.src) {
			end = len(l.src)
		}
		frag = l.src[pos:end]
	}
	return &cerrors.ParseError{Offset: pos, Text: frag, Reason: reason}
}
