// SPDX-License-Identifier: MPL-2.0

package psast

import (
	"fmt"
	"strings"
)

const (
	// TokEOF marks the end of input.
	TokEOF TokenKind = iota
	// TokNewline is a statement-terminating line break.
	TokNewline
	// TokSemicolon is an explicit statement separator.
	TokSemicolon
	// TokComment is a line (#) or block (<# #>) comment.
	TokComment
	// TokWord is a generic token: command names, barewords, numbers, keywords.
	TokWord
	// TokParameter is a dash-prefixed command parameter (-Name, -Name:).
	TokParameter
	// TokVariable is a $variable, ${braced variable} or @splat.
	TokVariable
	// TokString is a single-quoted (verbatim) string or here-string.
	TokString
	// TokExpandString is a double-quoted (expandable) string or here-string.
	TokExpandString
	// TokLParen is "(".
	TokLParen
	// TokRParen is ")".
	TokRParen
	// TokLBrace is "{".
	TokLBrace
	// TokRBrace is "}".
	TokRBrace
	// TokLBracket is "[".
	TokLBracket
	// TokRBracket is "]".
	TokRBracket
	// TokAtParen is "@(" (array subexpression).
	TokAtParen
	// TokAtBrace is "@{" (hashtable literal).
	TokAtBrace
	// TokDollarParen is "$(" (subexpression).
	TokDollarParen
	// TokComma is ",".
	TokComma
	// TokPipe is "|".
	TokPipe
	// TokOperator covers "=", "&", "&&", "||".
	TokOperator
)

type (
	// TokenKind classifies a lexical token.
	TokenKind int

	// Span is a half-open byte range [Start, End) into the parsed source.
	Span struct {
		Start int
		End   int
	}

	// Token is a single lexical token.
	Token struct {
		Kind TokenKind
		// Text is the raw source text of the token.
		Text string
		// Value is the decoded value: string contents without quotes and with
		// escapes applied, parameter names without the dash, variable names
		// without the sigil. For other kinds it equals Text.
		Value string
		Span  Span
	}
)

var tokenKindNames = map[TokenKind]string{
	TokEOF:          "end of input",
	TokNewline:      "newline",
	TokSemicolon:    "';'",
	TokComment:      "comment",
	TokWord:         "word",
	TokParameter:    "parameter",
	TokVariable:     "variable",
	TokString:       "string",
	TokExpandString: "expandable string",
	TokLParen:       "'('",
	TokRParen:       "')'",
	TokLBrace:       "'{'",
	TokRBrace:       "'}'",
	TokLBracket:     "'['",
	TokRBracket:     "']'",
	TokAtParen:      "'@('",
	TokAtBrace:      "'@{'",
	TokDollarParen:  "'$('",
	TokComma:        "','",
	TokPipe:         "'|'",
	TokOperator:     "operator",
}

// String returns a human-readable name for the token kind.
func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Text returns the source text covered by the span. Out-of-range spans
// yield the empty string.
func (s Span) Text(src string) string {
	if s.Start < 0 || s.End > len(src) || s.Start > s.End {
		return ""
	}
	return src[s.Start:s.End]
}

// Position converts a byte offset into a 1-based line and column.
func Position(src string, offset int) (line, col int) {
	if offset > len(src) {
		offset = len(src)
	}
	line = 1 + strings.Count(src[:offset], "\n")
	lineStart := strings.LastIndexByte(src[:offset], '\n') + 1
	col = 1 + len([]rune(src[lineStart:offset]))
	return line, col
}

// IsWord reports whether the token is a generic word equal to s, ignoring case.
func (t Token) IsWord(s string) bool {
	return t.Kind == TokWord && strings.EqualFold(t.Text, s)
}

// IsOperator reports whether the token is the given operator.
func (t Token) IsOperator(op string) bool {
	return t.Kind == TokOperator && t.Text == op
}

// opensGroup reports whether the token opens a bracketed group.
func (t Token) opensGroup() bool {
	switch t.Kind {
	case TokLParen, TokLBrace, TokLBracket, TokAtParen, TokAtBrace, TokDollarParen:
		return true
	default:
		return false
	}
}

// closesGroup reports whether the token closes a bracketed group.
func (t Token) closesGroup() bool {
	switch t.Kind {
	case TokRParen, TokRBrace, TokRBracket:
		return true
	default:
		return false
	}
}
