// SPDX-License-Identifier: MPL-2.0

package psast

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// lexer turns PowerShell source into tokens. It is mode-less: generic words,
// parameters and numbers share TokWord/TokParameter, which is enough for
// statement structure and literal extraction.
type lexer struct {
	src string
	pos int
}

// Tokenize splits src into tokens, including comments and newlines, and
// terminates the slice with a TokEOF token.
func Tokenize(src string) ([]Token, error) {
	l := &lexer{src: src}
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks, nil
		}
	}
}

func isSingleQuote(r rune) bool {
	switch r {
	case '\'', '‘', '’', '‚', '‛':
		return true
	}
	return false
}

func isDoubleQuote(r rune) bool {
	switch r {
	case '"', '“', '”', '„':
		return true
	}
	return false
}

// isDash accepts the typographic dashes PowerShell treats as '-'.
func isDash(r rune) bool {
	switch r {
	case '-', '–', '—', '―':
		return true
	}
	return false
}

func isBlank(r rune) bool {
	switch r {
	case ' ', '\t', '\f', '\v', '\u00A0', '\uFEFF':
		return true
	}
	return false
}

// isWordTerminator reports runes that end a generic word.
func isWordTerminator(r rune) bool {
	if isBlank(r) {
		return true
	}
	switch r {
	case '\n', '\r', '(', ')', '{', '}', '[', ']', ';', ',', '|', '&', '=':
		return true
	}
	return false
}

func isVarChar(r rune) bool {
	return r == '_' || r == ':' || r == '?' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *lexer) peek(offset int) rune {
	p := l.pos
	for i := 0; i < offset; i++ {
		if p >= len(l.src) {
			return utf8.RuneError
		}
		_, w := utf8.DecodeRuneInString(l.src[p:])
		p += w
	}
	if p >= len(l.src) {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRuneInString(l.src[p:])
	return r
}

func (l *lexer) advance() rune {
	r, w := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += w
	return r
}

func (l *lexer) token(kind TokenKind, start int, value string) Token {
	return Token{Kind: kind, Text: l.src[start:l.pos], Value: value, Span: Span{Start: start, End: l.pos}}
}

func (l *lexer) errorf(offset int, format string, args ...any) error {
	return newSyntaxError(l.src, offset, format, args...)
}

// next lexes one token.
func (l *lexer) next() (Token, error) {
	for l.pos < len(l.src) {
		r := l.peek(0)
		switch {
		case isBlank(r):
			l.advance()
		case r == '`' && (l.peek(1) == '\n' || (l.peek(1) == '\r' && l.peek(2) == '\n')):
			// line continuation
			l.advance()
			if l.advance() == '\r' {
				l.advance()
			}
		case r == '\r' && l.peek(1) == '\n':
			l.advance()
		default:
			return l.lexToken()
		}
	}
	return Token{Kind: TokEOF, Span: Span{Start: len(l.src), End: len(l.src)}}, nil
}

func (l *lexer) lexToken() (Token, error) {
	start := l.pos
	r := l.peek(0)
	switch {
	case r == '\n' || r == '\r':
		l.advance()
		return l.token(TokNewline, start, "\n"), nil
	case r == '#':
		for l.pos < len(l.src) && l.peek(0) != '\n' && l.peek(0) != '\r' {
			l.advance()
		}
		return l.token(TokComment, start, ""), nil
	case r == '<' && l.peek(1) == '#':
		end := strings.Index(l.src[l.pos+2:], "#>")
		if end < 0 {
			return Token{}, l.errorf(start, "unterminated block comment")
		}
		l.pos += 2 + end + 2
		return l.token(TokComment, start, ""), nil
	case r == ';':
		l.advance()
		return l.token(TokSemicolon, start, ";"), nil
	case r == ',':
		l.advance()
		return l.token(TokComma, start, ","), nil
	case r == '(':
		l.advance()
		return l.token(TokLParen, start, "("), nil
	case r == ')':
		l.advance()
		return l.token(TokRParen, start, ")"), nil
	case r == '{':
		l.advance()
		return l.token(TokLBrace, start, "{"), nil
	case r == '}':
		l.advance()
		return l.token(TokRBrace, start, "}"), nil
	case r == '[':
		l.advance()
		return l.token(TokLBracket, start, "["), nil
	case r == ']':
		l.advance()
		return l.token(TokRBracket, start, "]"), nil
	case r == '|':
		l.advance()
		if l.peek(0) == '|' {
			l.advance()
			return l.token(TokOperator, start, "||"), nil
		}
		return l.token(TokPipe, start, "|"), nil
	case r == '&':
		l.advance()
		if l.peek(0) == '&' {
			l.advance()
			return l.token(TokOperator, start, "&&"), nil
		}
		return l.token(TokOperator, start, "&"), nil
	case r == '=':
		l.advance()
		return l.token(TokOperator, start, "="), nil
	case isSingleQuote(r):
		return l.lexVerbatimString()
	case isDoubleQuote(r):
		return l.lexExpandableString()
	case r == '@':
		return l.lexAt()
	case r == '$':
		return l.lexDollar()
	default:
		return l.lexWord()
	}
}

func (l *lexer) lexVerbatimString() (Token, error) {
	start := l.pos
	l.advance()
	var sb strings.Builder
	for l.pos < len(l.src) {
		r := l.advance()
		if isSingleQuote(r) {
			if isSingleQuote(l.peek(0)) && l.pos < len(l.src) {
				sb.WriteRune(l.advance())
				continue
			}
			return l.token(TokString, start, sb.String()), nil
		}
		sb.WriteRune(r)
	}
	return Token{}, l.errorf(start, "unterminated string")
}

var backtickEscapes = map[rune]string{
	'0': "\x00", 'a': "\a", 'b': "\b", 'e': "\x1b", 'f': "\f",
	'n': "\n", 'r': "\r", 't': "\t", 'v': "\v",
}

func (l *lexer) lexExpandableString() (Token, error) {
	start := l.pos
	l.advance()
	var sb strings.Builder
	for l.pos < len(l.src) {
		r := l.advance()
		switch {
		case r == '`':
			if l.pos >= len(l.src) {
				return Token{}, l.errorf(start, "unterminated string")
			}
			esc := l.advance()
			if s, ok := backtickEscapes[esc]; ok {
				sb.WriteString(s)
			} else {
				sb.WriteRune(esc)
			}
		case isDoubleQuote(r):
			if isDoubleQuote(l.peek(0)) && l.pos < len(l.src) {
				sb.WriteRune(l.advance())
				continue
			}
			return l.token(TokExpandString, start, sb.String()), nil
		case r == '$' && l.peek(0) == '(':
			subStart := l.pos - 1
			l.advance()
			if err := l.skipBalanced(TokRParen); err != nil {
				return Token{}, err
			}
			sb.WriteString(l.src[subStart:l.pos])
		default:
			sb.WriteRune(r)
		}
	}
	return Token{}, l.errorf(start, "unterminated string")
}

// skipBalanced consumes tokens until the closer matching an already-consumed
// opener, honoring nested groups, strings and comments.
func (l *lexer) skipBalanced(closer TokenKind) error {
	start := l.pos
	depth := 0
	for {
		tok, err := l.next()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == TokEOF:
			return l.errorf(start, "missing closing %s", closer)
		case tok.opensGroup():
			depth++
		case tok.closesGroup():
			if depth == 0 {
				if tok.Kind != closer {
					return l.errorf(tok.Span.Start, "unexpected %s", tok.Kind)
				}
				return nil
			}
			depth--
		}
	}
}

func (l *lexer) lexAt() (Token, error) {
	start := l.pos
	next := l.peek(1)
	switch {
	case next == '(':
		l.pos += 2
		return l.token(TokAtParen, start, "@("), nil
	case next == '{':
		l.pos += 2
		return l.token(TokAtBrace, start, "@{"), nil
	case isSingleQuote(next) || isDoubleQuote(next):
		return l.lexHereString()
	case isVarChar(next):
		l.advance()
		for l.pos < len(l.src) && isVarChar(l.peek(0)) {
			l.advance()
		}
		return l.token(TokVariable, start, l.src[start+1:l.pos]), nil
	default:
		return l.lexWord()
	}
}

func (l *lexer) lexHereString() (Token, error) {
	start := l.pos
	l.advance() // @
	quote := l.advance()
	expandable := isDoubleQuote(quote)
	for l.pos < len(l.src) && isBlank(l.peek(0)) {
		l.advance()
	}
	switch {
	case l.peek(0) == '\n':
		l.advance()
	case l.peek(0) == '\r' && l.peek(1) == '\n':
		l.pos += 2
	default:
		return Token{}, l.errorf(start, "here-string header must be followed by a line break")
	}
	bodyStart := l.pos
	for lineStart := l.pos; lineStart <= len(l.src); {
		rest := l.src[lineStart:]
		if r, w := utf8.DecodeRuneInString(rest); w > 0 && ((expandable && isDoubleQuote(r)) || (!expandable && isSingleQuote(r))) && strings.HasPrefix(rest[w:], "@") {
			bodyEnd := lineStart - 1
			if bodyEnd > bodyStart && l.src[bodyEnd-1] == '\r' {
				bodyEnd--
			}
			if bodyEnd < bodyStart {
				bodyEnd = bodyStart
			}
			value := l.src[bodyStart:bodyEnd]
			l.pos = lineStart + w + 1
			kind := TokString
			if expandable {
				kind = TokExpandString
			}
			return l.token(kind, start, value), nil
		}
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		lineStart += nl + 1
	}
	return Token{}, l.errorf(start, "unterminated here-string")
}

func (l *lexer) lexDollar() (Token, error) {
	start := l.pos
	next := l.peek(1)
	switch {
	case next == '(':
		l.pos += 2
		return l.token(TokDollarParen, start, "$("), nil
	case next == '{':
		l.pos += 2
		var sb strings.Builder
		for l.pos < len(l.src) {
			r := l.advance()
			if r == '`' && l.pos < len(l.src) {
				sb.WriteRune(l.advance())
				continue
			}
			if r == '}' {
				return l.token(TokVariable, start, sb.String()), nil
			}
			sb.WriteRune(r)
		}
		return Token{}, l.errorf(start, "unterminated braced variable")
	case next == '_' && !isVarChar(l.peek(2)), next == '$', next == '?', next == '^':
		l.pos += 2
		return l.token(TokVariable, start, string(next)), nil
	case isVarChar(next):
		l.advance()
		for l.pos < len(l.src) && isVarChar(l.peek(0)) {
			l.advance()
		}
		return l.token(TokVariable, start, l.src[start+1:l.pos]), nil
	default:
		return l.lexWord()
	}
}

func (l *lexer) lexWord() (Token, error) {
	start := l.pos
	first := l.advance()
	param := isDash(first) && (unicode.IsLetter(l.peek(0)) || l.peek(0) == '_')
	for l.pos < len(l.src) {
		r := l.peek(0)
		if param && r == ':' {
			// -Name:value binds the following token as the argument.
			l.advance()
			break
		}
		if r == '`' {
			l.advance()
			if l.pos < len(l.src) {
				l.advance()
			}
			continue
		}
		if isWordTerminator(r) {
			break
		}
		l.advance()
	}
	text := l.src[start:l.pos]
	if isDash(first) && l.pos > start+utf8.RuneLen(first) {
		rest := text[utf8.RuneLen(first):]
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsLetter(r) || r == '_' || r == '?' {
			return l.token(TokParameter, start, strings.TrimSuffix(rest, ":")), nil
		}
	}
	return l.token(TokWord, start, text), nil
}
