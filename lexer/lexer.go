// Package lexer tokenizes cell-formula source text for package parser.
package lexer

import (
	"strings"

	"ssc/token"
)

type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else if l.ch != 0 {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken scans and returns the next token, advancing the lexer.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	startLine, startColumn := l.line, l.column
	var tok token.Token

	switch l.ch {
	case '+':
		tok = newToken(token.PLUS, l.ch)
	case '-':
		tok = newToken(token.MINUS, l.ch)
	case '*':
		tok = newToken(token.ASTERISK, l.ch)
	case '/':
		tok = newToken(token.SLASH, l.ch)
	case '%':
		tok = newToken(token.PERCENT, l.ch)
	case '^':
		tok = newToken(token.CARET, l.ch)
	case '#':
		tok = newToken(token.HASH, l.ch)
	case '!':
		tok = newToken(token.BANG, l.ch)
	case '&':
		tok = newToken(token.AMPERSAND, l.ch)
	case '|':
		tok = newToken(token.PIPE, l.ch)
	case '?':
		tok = newToken(token.QUESTION, l.ch)
	case ';':
		tok = newToken(token.SEMI, l.ch)
	case ',':
		tok = newToken(token.COMMA, l.ch)
	case '(':
		tok = newToken(token.LPAREN, l.ch)
	case ')':
		tok = newToken(token.RPAREN, l.ch)
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.LE, Literal: "<="}
		case '>':
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "<>"}
		default:
			tok = newToken(token.LT, l.ch)
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GE, Literal: ">="}
		} else {
			tok = newToken(token.GT, l.ch)
		}
	case '=':
		tok = newToken(token.EQ, l.ch)
	case ':':
		tok = newToken(token.COLON, l.ch)
	case '$':
		if ref, ok := l.tryReadReference(); ok {
			ref.Line, ref.Column = startLine, startColumn
			return ref
		}
		tok = newToken(token.ILLEGAL, l.ch)
	case '"':
		tok.Type = token.STRING
		tok.Literal = l.readString()
	case 0:
		tok.Type = token.EOF
		tok.Literal = ""
	default:
		if isLetter(l.ch) {
			if ref, ok := l.tryReadReference(); ok {
				ref.Line, ref.Column = startLine, startColumn
				return ref
			}
			ident := l.readIdentifier()
			tok.Literal = ident
			tok.Type = token.LookupIdent(ident)
			tok.Line, tok.Column = startLine, startColumn
			return tok
		} else if isDigit(l.ch) {
			tok.Literal = l.readNumber()
			tok.Type = token.NUMBER
			tok.Line, tok.Column = startLine, startColumn
			return tok
		}
		tok = newToken(token.ILLEGAL, l.ch)
	}

	tok.Line, tok.Column = startLine, startColumn
	l.readChar()
	return tok
}

func newToken(t token.Type, ch byte) token.Token {
	return token.Token{Type: t, Literal: string(ch)}
}

// tryReadReference attempts to scan a cell reference starting at the current
// position: an optional '$', one or more letters, an optional '$', one or
// more digits. On failure it leaves the lexer position unchanged and returns
// ok=false so the caller can fall back to identifier/illegal scanning.
func (l *Lexer) tryReadReference() (token.Token, bool) {
	save := *l
	var b strings.Builder

	if l.ch == '$' {
		b.WriteByte('$')
		l.readChar()
	}
	if !isLetter(l.ch) {
		*l = save
		return token.Token{}, false
	}
	letterStart := l.position
	for isLetter(l.ch) {
		l.readChar()
	}
	b.WriteString(l.input[letterStart:l.position])

	if l.ch == '$' {
		b.WriteByte('$')
		l.readChar()
	}
	if !isDigit(l.ch) {
		*l = save
		return token.Token{}, false
	}
	digitStart := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	b.WriteString(l.input[digitStart:l.position])

	// A reference followed immediately by more letters (e.g. "A1x") is not a
	// valid reference; reject so the caller falls back to plain identifier
	// scanning under the original position.
	if isLetter(l.ch) {
		*l = save
		return token.Token{}, false
	}
	return token.Token{Type: token.REF, Literal: b.String()}, true
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		save := *l
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if isDigit(l.ch) {
			for isDigit(l.ch) {
				l.readChar()
			}
		} else {
			*l = save
		}
	}
	return l.input[start:l.position]
}

func (l *Lexer) readString() string {
	l.readChar()
	var out strings.Builder
	for l.ch != '"' && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case '\\':
				out.WriteByte('\\')
			case '"':
				out.WriteByte('"')
			case 0:
				return out.String()
			default:
				out.WriteByte(l.ch)
			}
			l.readChar()
			continue
		}
		out.WriteByte(l.ch)
		l.readChar()
	}
	return out.String()
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
