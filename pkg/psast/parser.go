// SPDX-License-Identifier: MPL-2.0

package psast

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	namedBlockNames = map[string]bool{
		"begin": true, "process": true, "end": true, "dynamicparam": true, "clean": true,
	}

	// bodyKeywords introduce statements that end with a script block body.
	bodyKeywords = map[string]bool{
		"if": true, "switch": true, "foreach": true, "for": true, "while": true,
		"do": true, "try": true, "trap": true, "data": true,
	}

	// flowKeywords take an optional pipeline operand.
	flowKeywords = map[string]bool{
		"return": true, "throw": true, "break": true, "continue": true, "exit": true,
	}

	continuations = map[string][]string{
		"if":  {"elseif", "else"},
		"try": {"catch", "finally"},
		"do":  {"while", "until"},
	}
)

type parser struct {
	src  string
	toks []Token
	pos  int
}

// Parse parses a PowerShell script into its root [ScriptBlock]. Comments are
// dropped from the tree except #Requires directives, which are collected on
// the root.
func Parse(src string) (*ScriptBlock, error) {
	all, err := Tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, toks: make([]Token, 0, len(all))}
	root := &ScriptBlock{}
	for _, t := range all {
		if t.Kind == TokComment {
			if r := parseRequires(t); r != nil {
				root.Requires = append(root.Requires, r)
			}
			continue
		}
		p.toks = append(p.toks, t)
	}

	if err := p.parseBody(root, TokEOF); err != nil {
		return nil, err
	}
	root.setSpan(Span{Start: 0, End: len(src)})
	link(root, nil)
	return root, nil
}

func link(n, parent Node) {
	n.setParent(parent)
	for _, c := range n.Children() {
		link(c, n)
	}
}

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) peekN(n int) Token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

// lookPastNewlines returns the first non-newline token at or after pos+n.
func (p *parser) lookPastNewlines(n int) Token {
	i := p.pos + n
	for i < len(p.toks)-1 && p.toks[i].Kind == TokNewline {
		i++
	}
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if t.Kind != TokEOF {
		p.pos++
	}
	return t
}

func (p *parser) prev() (Token, bool) {
	if p.pos == 0 {
		return Token{}, false
	}
	return p.toks[p.pos-1], true
}

func (p *parser) skipNewlines() {
	for p.peek().Kind == TokNewline {
		p.pos++
	}
}

func (p *parser) skipTerminators() {
	for k := p.peek().Kind; k == TokNewline || k == TokSemicolon; k = p.peek().Kind {
		p.pos++
	}
}

func (p *parser) errorf(t Token, format string, args ...any) error {
	return newSyntaxError(p.src, t.Span.Start, format, args...)
}

// atElementEnd reports tokens that terminate a pipeline element.
func atElementEnd(t Token) bool {
	switch t.Kind {
	case TokEOF, TokNewline, TokSemicolon, TokPipe, TokRParen, TokRBrace, TokRBracket:
		return true
	default:
		return false
	}
}

// continuesLine reports whether a trailing element lets the expression carry
// on past a newline.
func continuesLine(n Node) bool {
	tn, ok := n.(*TokenNode)
	if !ok {
		return false
	}
	switch tn.Token.Kind {
	case TokComma, TokParameter, TokOperator:
		return true
	default:
		return false
	}
}

func isNumeric(s string) bool {
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, ".")
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsDigit(r)
}

func isIdentifier(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r) || r == '_'
}

func newExpression(elems []Node) *Expression {
	e := &Expression{Elements: elems}
	if len(elems) > 0 {
		e.setSpan(Span{Start: elems[0].Span().Start, End: elems[len(elems)-1].Span().End})
	}
	return e
}

// parseBody parses an optional param block followed by statements until
// closer, which is left unconsumed.
func (p *parser) parseBody(sb *ScriptBlock, closer TokenKind) error {
	p.skipTerminators()
	pb, err := p.tryParamBlock()
	if err != nil {
		return err
	}
	sb.ParamBlock = pb

	for {
		p.skipTerminators()
		t := p.peek()
		switch {
		case t.Kind == closer:
			return nil
		case t.Kind == TokEOF:
			return p.errorf(t, "missing closing %s", closer)
		case t.closesGroup():
			return p.errorf(t, "unexpected %s", t.Kind)
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return err
		}
		sb.Statements = append(sb.Statements, stmt)
	}
}

// tryParamBlock parses [attributes] param(...) when present. Anything else
// rewinds and yields nil.
func (p *parser) tryParamBlock() (*ParamBlock, error) {
	save := p.pos
	var attrs []*Attribute
	for p.peek().Kind == TokLBracket {
		a, err := p.parseAttribute()
		if err != nil {
			p.pos = save
			return nil, nil
		}
		attrs = append(attrs, a)
		p.skipNewlines()
	}

	kw := p.peek()
	if !kw.IsWord("param") || p.lookPastNewlines(1).Kind != TokLParen {
		p.pos = save
		return nil, nil
	}
	p.advance()
	p.skipNewlines()
	p.advance()

	params, end, err := p.parseParameterList()
	if err != nil {
		return nil, err
	}
	start := kw.Span.Start
	if len(attrs) > 0 {
		start = attrs[0].Span().Start
	}
	pb := &ParamBlock{Attributes: attrs, Parameters: params}
	pb.setSpan(Span{Start: start, End: end})
	return pb, nil
}

// parseParameterList parses parameters after an already consumed "(" and
// returns the end offset of the closing ")".
func (p *parser) parseParameterList() ([]*Parameter, int, error) {
	var params []*Parameter
	for {
		p.skipNewlines()
		t := p.peek()
		switch t.Kind {
		case TokRParen:
			p.advance()
			return params, t.Span.End, nil
		case TokComma:
			p.advance()
			continue
		case TokEOF:
			return nil, 0, p.errorf(t, "missing closing ')' in parameter list")
		}
		param, err := p.parseParameter()
		if err != nil {
			return nil, 0, err
		}
		params = append(params, param)
	}
}

func (p *parser) parseParameter() (*Parameter, error) {
	start := p.peek().Span.Start
	var attrs []*Attribute
	for p.peek().Kind == TokLBracket {
		a, err := p.parseAttribute()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
		p.skipNewlines()
	}

	t := p.peek()
	if t.Kind != TokVariable {
		return nil, p.errorf(t, "expected parameter variable, found %s", t.Kind)
	}
	p.advance()
	param := &Parameter{Attributes: attrs, Name: t.Value}
	end := t.Span.End

	if p.lookPastNewlines(0).IsOperator("=") {
		p.skipNewlines()
		p.advance()
		p.skipNewlines()
		elems, err := p.parseExpressionElements(true)
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return nil, p.errorf(p.peek(), "missing default value for parameter $%s", param.Name)
		}
		param.Default = elems
		end = elems[len(elems)-1].Span().End
	}
	param.setSpan(Span{Start: start, End: end})
	return param, nil
}

// parseAttribute parses [TypeName] or [TypeName(args)].
func (p *parser) parseAttribute() (*Attribute, error) {
	open := p.advance()
	a := &Attribute{}
	nameStart := p.peek().Span.Start
	nameEnd := nameStart
	depth := 0

	for {
		t := p.peek()
		switch {
		case t.Kind == TokEOF || t.Kind == TokNewline:
			return nil, p.errorf(open, "missing closing ']'")
		case t.Kind == TokLBracket:
			depth++
			p.advance()
			nameEnd = t.Span.End
		case t.Kind == TokRBracket && depth > 0:
			depth--
			p.advance()
			nameEnd = t.Span.End
		case t.Kind == TokRBracket:
			p.advance()
			a.TypeName = strings.TrimSpace(p.src[nameStart:nameEnd])
			if a.TypeName == "" {
				return nil, p.errorf(open, "missing type name")
			}
			a.IsTypeConstraint = true
			a.setSpan(Span{Start: open.Span.Start, End: t.Span.End})
			return a, nil
		case t.Kind == TokLParen && depth == 0:
			p.advance()
			a.TypeName = strings.TrimSpace(p.src[nameStart:nameEnd])
			if err := p.parseAttributeArguments(a); err != nil {
				return nil, err
			}
			p.skipNewlines()
			closer := p.peek()
			if closer.Kind != TokRBracket {
				return nil, p.errorf(closer, "missing closing ']' after attribute arguments")
			}
			p.advance()
			a.setSpan(Span{Start: open.Span.Start, End: closer.Span.End})
			return a, nil
		default:
			p.advance()
			nameEnd = t.Span.End
		}
	}
}

func (p *parser) parseAttributeArguments(a *Attribute) error {
	for {
		p.skipNewlines()
		t := p.peek()
		switch t.Kind {
		case TokRParen:
			p.advance()
			return nil
		case TokComma:
			p.advance()
			continue
		case TokEOF:
			return p.errorf(t, "missing closing ')' in attribute arguments")
		}

		if t.Kind == TokWord && isIdentifier(t.Text) {
			next := p.peekN(1)
			switch {
			case next.IsOperator("="):
				p.advance()
				p.advance()
				p.skipNewlines()
				elems, err := p.parseExpressionElements(true)
				if err != nil {
					return err
				}
				if len(elems) == 0 {
					return p.errorf(p.peek(), "missing value for attribute argument %s", t.Text)
				}
				value := newExpression(elems)
				arg := &NamedArgument{Name: t.Text, Value: value}
				arg.setSpan(Span{Start: t.Span.Start, End: value.Span().End})
				a.Named = append(a.Named, arg)
				continue
			case next.Kind == TokComma || next.Kind == TokRParen || next.Kind == TokNewline:
				p.advance()
				arg := &NamedArgument{Name: t.Text}
				arg.setSpan(t.Span)
				a.Named = append(a.Named, arg)
				continue
			}
		}

		elems, err := p.parseExpressionElements(true)
		if err != nil {
			return err
		}
		if len(elems) == 0 {
			return p.errorf(t, "unexpected %s in attribute arguments", t.Kind)
		}
		a.Positional = append(a.Positional, newExpression(elems))
	}
}

// parseExpressionElements collects primaries until an element end (or a
// comma when stopAtComma is set). Newlines after operators are skipped.
func (p *parser) parseExpressionElements(stopAtComma bool) ([]Node, error) {
	var elems []Node
	for {
		t := p.peek()
		if stopAtComma && t.Kind == TokComma {
			return elems, nil
		}
		if atElementEnd(t) {
			if t.Kind == TokNewline && len(elems) > 0 && continuesLine(elems[len(elems)-1]) {
				p.skipNewlines()
				continue
			}
			return elems, nil
		}
		n, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		elems = append(elems, n)
	}
}

// parseStatement dispatches on the leading keyword, defaulting to a pipeline.
func (p *parser) parseStatement() (Node, error) {
	t := p.peek()
	if t.Kind == TokWord {
		kw := strings.ToLower(t.Text)
		switch {
		case (kw == "function" || kw == "filter" || kw == "workflow") && p.peekN(1).Kind == TokWord:
			return p.parseFunction()
		case (kw == "class" || kw == "enum") && p.peekN(1).Kind == TokWord:
			return p.parseTypeDefinition()
		case kw == "using":
			return p.parseUsing()
		case namedBlockNames[kw] && p.lookPastNewlines(1).Kind == TokLBrace:
			return p.parseNamedBlock()
		case bodyKeywords[kw] || flowKeywords[kw]:
			return p.parseKeywordStatement()
		}
	}
	return p.parsePipeline()
}

func (p *parser) parseFunction() (*FunctionDefinition, error) {
	kw := p.advance()
	name := p.advance()
	fn := &FunctionDefinition{Keyword: strings.ToLower(kw.Text), Name: name.Text}

	p.skipNewlines()
	if p.peek().Kind == TokLParen {
		p.advance()
		params, _, err := p.parseParameterList()
		if err != nil {
			return nil, err
		}
		fn.Parameters = params
		p.skipNewlines()
	}

	if p.peek().Kind != TokLBrace {
		return nil, p.errorf(p.peek(), "missing body for %s %s", fn.Keyword, fn.Name)
	}
	body, err := p.parseBraceBody()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	fn.setSpan(Span{Start: kw.Span.Start, End: body.Span().End})
	return fn, nil
}

// parseBraceBody parses { ... } into a ScriptBlock spanning both braces.
func (p *parser) parseBraceBody() (*ScriptBlock, error) {
	open := p.advance()
	body := &ScriptBlock{}
	if err := p.parseBody(body, TokRBrace); err != nil {
		return nil, err
	}
	closer := p.advance()
	body.setSpan(Span{Start: open.Span.Start, End: closer.Span.End})
	return body, nil
}

func (p *parser) parseTypeDefinition() (*TypeDefinition, error) {
	kw := p.advance()
	name := p.advance()
	td := &TypeDefinition{Keyword: strings.ToLower(kw.Text), Name: name.Text}

	// Base types and interfaces.
	for p.peek().Kind != TokLBrace {
		if t := p.peek(); t.Kind == TokEOF || t.closesGroup() {
			return nil, p.errorf(t, "missing body for %s %s", td.Keyword, td.Name)
		}
		p.advance()
	}
	p.advance()

	for {
		p.skipTerminators()
		t := p.peek()
		if t.Kind == TokRBrace {
			p.advance()
			td.setSpan(Span{Start: kw.Span.Start, End: t.Span.End})
			return td, nil
		}
		if t.Kind == TokEOF {
			return nil, p.errorf(t, "missing closing '}' for %s %s", td.Keyword, td.Name)
		}
		m, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		td.Members = append(td.Members, m)
	}
}

// parseMember parses a class property, method or constructor, or an enum
// label.
func (p *parser) parseMember() (Node, error) {
	start := p.peek().Span.Start
	var attrs []*Attribute
	var elems []Node
	for {
		t := p.peek()
		switch {
		case t.Kind == TokLBracket:
			a, err := p.parseAttribute()
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, a)
			elems = append(elems, a)
		case t.Kind == TokWord && p.peekN(1).Kind == TokLParen:
			p.advance()
			p.advance()
			params, _, err := p.parseParameterList()
			if err != nil {
				return nil, err
			}
			// Constructor chaining (": base(...)") runs up to the body.
			for p.peek().Kind != TokLBrace {
				if c := p.peek(); c.Kind == TokEOF || c.closesGroup() {
					return nil, p.errorf(c, "missing body for method %s", t.Text)
				}
				p.advance()
			}
			body, err := p.parseBraceBody()
			if err != nil {
				return nil, err
			}
			m := &FunctionDefinition{Keyword: "method", Name: t.Text, Attributes: attrs, Parameters: params, Body: body}
			m.setSpan(Span{Start: start, End: body.Span().End})
			return m, nil
		case t.Kind == TokNewline && len(elems) == len(attrs):
			// Attributes on their own line apply to the next line.
			p.skipNewlines()
		case atElementEnd(t):
			if len(elems) == 0 {
				return nil, p.errorf(t, "unexpected %s in type body", t.Kind)
			}
			return newExpression(elems), nil
		case t.IsOperator("="):
			p.advance()
			elems = append(elems, tokenNode(t))
			rest, err := p.parseExpressionElements(false)
			if err != nil {
				return nil, err
			}
			elems = append(elems, rest...)
		default:
			n, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			elems = append(elems, n)
		}
	}
}

func (p *parser) parseUsing() (*UsingStatement, error) {
	kw := p.advance()
	end := kw.Span.End
	for !atElementEnd(p.peek()) {
		end = p.advance().Span.End
	}
	u := &UsingStatement{}
	u.setSpan(Span{Start: kw.Span.Start, End: end})
	return u, nil
}

func (p *parser) parseNamedBlock() (*NamedBlock, error) {
	kw := p.advance()
	p.skipNewlines()
	body, err := p.parseBraceBody()
	if err != nil {
		return nil, err
	}
	nb := &NamedBlock{Name: strings.ToLower(kw.Text), Statements: body.Statements}
	nb.setSpan(Span{Start: kw.Span.Start, End: body.Span().End})
	return nb, nil
}

func isContinuation(keyword, word string) bool {
	for _, c := range continuations[keyword] {
		if strings.EqualFold(c, word) {
			return true
		}
	}
	return false
}

func (p *parser) parseKeywordStatement() (*KeywordStatement, error) {
	kw := p.advance()
	ks := &KeywordStatement{Keyword: strings.ToLower(kw.Text)}
	end := kw.Span.End
	done := func() (*KeywordStatement, error) {
		ks.setSpan(Span{Start: kw.Span.Start, End: end})
		return ks, nil
	}

	if flowKeywords[ks.Keyword] {
		if !atElementEnd(p.peek()) {
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			ks.Elements = append(ks.Elements, stmt)
			end = stmt.Span().End
		}
		return done()
	}

	haveBody := false
	tail := false
	for {
		t := p.peek()
		switch {
		case t.Kind == TokLBrace && !tail:
			sb, err := p.parseScriptBlockExpression()
			if err != nil {
				return nil, err
			}
			ks.Elements = append(ks.Elements, sb)
			end = sb.Span().End
			haveBody = true

			next := p.lookPastNewlines(0)
			if next.Kind != TokWord || !isContinuation(ks.Keyword, next.Text) {
				return done()
			}
			p.skipNewlines()
			p.advance()
			ks.Elements = append(ks.Elements, bareword(next))
			end = next.Span.End
			haveBody = false
			// do { } while (...) has no second body.
			tail = ks.Keyword == "do"
		case t.Kind == TokNewline && !haveBody && !tail:
			p.advance()
		case atElementEnd(t):
			return done()
		default:
			n, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			ks.Elements = append(ks.Elements, n)
			end = n.Span().End
		}
	}
}

func (p *parser) parsePipeline() (*Pipeline, error) {
	pl := &Pipeline{}
	for {
		elem, err := p.parsePipelineElement()
		if err != nil {
			return nil, err
		}
		pl.Elements = append(pl.Elements, elem)

		t := p.peek()
		if t.Kind == TokPipe {
			p.advance()
			p.skipNewlines()
			continue
		}
		// A line starting with '|' continues the previous pipeline.
		if t.Kind == TokNewline && p.lookPastNewlines(0).Kind == TokPipe {
			p.skipNewlines()
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
	pl.setSpan(Span{Start: pl.Elements[0].Span().Start, End: pl.Elements[len(pl.Elements)-1].Span().End})
	return pl, nil
}

func (p *parser) parsePipelineElement() (Node, error) {
	t := p.peek()
	if atElementEnd(t) {
		return nil, p.errorf(t, "expected a pipeline element, found %s", t.Kind)
	}
	if (t.Kind == TokWord && !isNumeric(t.Text)) || t.IsOperator("&") {
		return p.parseCommand()
	}
	return p.parseExpression()
}

func (p *parser) parseCommand() (*Command, error) {
	cmd := &Command{}
	first := p.peek()

	var nameExpr *Expression
	if first.IsOperator("&") {
		p.advance()
		nameExpr = newExpression([]Node{tokenNode(first)})
	} else {
		arg, err := p.parseArgument()
		if err != nil {
			return nil, err
		}
		nameExpr = arg
	}
	name := &CommandElement{Kind: ElementName, Value: nameExpr}
	name.setSpan(nameExpr.Span())
	cmd.Elements = append(cmd.Elements, name)

	for {
		t := p.peek()
		if atElementEnd(t) {
			break
		}
		if t.Kind == TokParameter {
			p.advance()
			ce := &CommandElement{Kind: ElementParameter, Name: t.Value}
			ce.setSpan(t.Span)
			if strings.HasSuffix(t.Text, ":") && !atElementEnd(p.peek()) {
				arg, err := p.parseArgument()
				if err != nil {
					return nil, err
				}
				ce.Value = arg
				ce.extendTo(arg.Span().End)
			}
			cmd.Elements = append(cmd.Elements, ce)
			continue
		}
		arg, err := p.parseArgument()
		if err != nil {
			return nil, err
		}
		ce := &CommandElement{Kind: ElementArgument, Value: arg}
		ce.setSpan(arg.Span())
		cmd.Elements = append(cmd.Elements, ce)
	}

	cmd.setSpan(Span{Start: first.Span.Start, End: cmd.Elements[len(cmd.Elements)-1].Span().End})
	return cmd, nil
}

// parseArgument parses one command argument: adjacent primaries form a
// single argument and commas build an array argument.
func (p *parser) parseArgument() (*Expression, error) {
	var elems []Node
	for {
		n, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		elems = append(elems, n)

		next := p.peek()
		if next.Kind == TokComma {
			p.advance()
			elems = append(elems, tokenNode(next))
			p.skipNewlines()
			continue
		}
		if n.Span().End == next.Span.Start && !atElementEnd(next) && next.Kind != TokParameter {
			continue
		}
		return newExpression(elems), nil
	}
}

// parseExpression parses an expression statement. An assignment operator
// takes the rest of the statement as its right-hand side.
func (p *parser) parseExpression() (*Expression, error) {
	var elems []Node
	for {
		t := p.peek()
		if atElementEnd(t) {
			if t.Kind == TokNewline && len(elems) > 0 && continuesLine(elems[len(elems)-1]) {
				p.skipNewlines()
				continue
			}
			break
		}
		if t.IsOperator("=") {
			p.advance()
			elems = append(elems, tokenNode(t))
			p.skipNewlines()
			if atElementEnd(p.peek()) {
				return nil, p.errorf(p.peek(), "missing expression after '='")
			}
			rhs, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			elems = append(elems, rhs)
			break
		}
		n, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		elems = append(elems, n)
	}
	if len(elems) == 0 {
		return nil, p.errorf(p.peek(), "expected an expression, found %s", p.peek().Kind)
	}
	return newExpression(elems), nil
}

func tokenNode(t Token) *TokenNode {
	n := &TokenNode{Token: t}
	n.setSpan(t.Span)
	return n
}

func bareword(t Token) *Bareword {
	n := &Bareword{Text: t.Text}
	n.setSpan(t.Span)
	return n
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.peek()
	switch t.Kind {
	case TokString, TokExpandString:
		p.advance()
		n := &StringLiteral{Value: t.Value, Expandable: t.Kind == TokExpandString}
		n.setSpan(t.Span)
		return n, nil
	case TokVariable:
		p.advance()
		n := &Variable{
			Name:   t.Value,
			Splat:  strings.HasPrefix(t.Text, "@"),
			Braced: strings.HasPrefix(t.Text, "${"),
		}
		n.setSpan(t.Span)
		return n, nil
	case TokWord:
		p.advance()
		return bareword(t), nil
	case TokParameter, TokOperator, TokComma:
		p.advance()
		return tokenNode(t), nil
	case TokLBrace:
		return p.parseScriptBlockExpression()
	case TokAtBrace:
		return p.parseHashtable()
	case TokAtParen, TokDollarParen, TokLParen:
		open := p.advance()
		return p.parseGroup(open, open.Text, TokRParen)
	case TokLBracket:
		if prev, ok := p.prev(); ok && prev.Span.End == t.Span.Start && isIndexable(prev.Kind) {
			open := p.advance()
			return p.parseGroup(open, "[", TokRBracket)
		}
		return p.parseAttribute()
	}
	return nil, p.errorf(t, "unexpected %s", t.Kind)
}

func isIndexable(k TokenKind) bool {
	switch k {
	case TokVariable, TokWord, TokString, TokExpandString, TokRParen, TokRBracket, TokRBrace:
		return true
	default:
		return false
	}
}

// parseGroup parses statements after an already consumed opener up to and
// including closer.
func (p *parser) parseGroup(open Token, sigil string, closer TokenKind) (*SubExpression, error) {
	sub := &SubExpression{Sigil: sigil}
	for {
		p.skipTerminators()
		t := p.peek()
		if t.Kind == closer {
			p.advance()
			sub.setSpan(Span{Start: open.Span.Start, End: t.Span.End})
			return sub, nil
		}
		if t.Kind == TokEOF || t.closesGroup() {
			return nil, p.errorf(open, "missing closing %s", closer)
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		sub.Statements = append(sub.Statements, stmt)
	}
}

func (p *parser) parseScriptBlockExpression() (*ScriptBlockExpression, error) {
	body, err := p.parseBraceBody()
	if err != nil {
		return nil, err
	}
	sb := &ScriptBlockExpression{Body: body}
	sb.setSpan(body.Span())
	return sb, nil
}

func (p *parser) parseHashtable() (*Hashtable, error) {
	open := p.advance()
	h := &Hashtable{}
	for {
		p.skipTerminators()
		t := p.peek()
		switch {
		case t.Kind == TokRBrace:
			p.advance()
			h.setSpan(Span{Start: open.Span.Start, End: t.Span.End})
			return h, nil
		case t.Kind == TokEOF:
			return nil, p.errorf(open, "missing closing '}' in hashtable")
		}

		keyNode, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if eq := p.peek(); !eq.IsOperator("=") {
			return nil, p.errorf(eq, "missing '=' after hashtable key")
		}
		p.advance()
		p.skipNewlines()
		if atElementEnd(p.peek()) {
			return nil, p.errorf(p.peek(), "missing value for hashtable key")
		}
		value, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		entry := &HashEntry{Key: p.keyText(keyNode), Value: value}
		entry.setSpan(Span{Start: keyNode.Span().Start, End: value.Span().End})
		h.Entries = append(h.Entries, entry)
	}
}

func (p *parser) keyText(n Node) string {
	switch k := n.(type) {
	case *StringLiteral:
		return k.Value
	case *Bareword:
		return k.Text
	}
	return Text(p.src, n)
}

// parseRequires recognizes a "#Requires" line comment and collects its
// -Modules (or -Module) specifications.
func parseRequires(t Token) *RequiresDirective {
	const prefix = "#requires"
	text := t.Text
	if len(text) < len(prefix) || !strings.EqualFold(text[:len(prefix)], prefix) {
		return nil
	}
	rest := text[len(prefix):]
	if r, _ := utf8.DecodeRuneInString(rest); rest != "" && !isBlank(r) {
		return nil
	}

	d := &RequiresDirective{}
	d.setSpan(t.Span)
	toks, err := Tokenize(rest)
	if err != nil {
		return d
	}

	for i := 0; i < len(toks); i++ {
		tk := toks[i]
		if tk.Kind != TokParameter || !(strings.EqualFold(tk.Value, "Modules") || strings.EqualFold(tk.Value, "Module")) {
			continue
		}
		var group []Token
		flush := func() {
			if len(group) > 0 {
				d.Modules = append(d.Modules, moduleSpec(rest, group))
			}
			group = nil
		}
		depth := 0
		j := i + 1
		for ; j < len(toks); j++ {
			g := toks[j]
			if g.Kind == TokEOF || (depth == 0 && g.Kind == TokParameter) {
				break
			}
			switch {
			case g.opensGroup():
				depth++
			case g.closesGroup():
				depth--
			case depth == 0 && g.Kind == TokComma:
				flush()
				continue
			}
			group = append(group, g)
		}
		flush()
		i = j - 1
	}
	return d
}

func moduleSpec(src string, group []Token) string {
	if len(group) == 1 {
		switch group[0].Kind {
		case TokString, TokExpandString, TokWord:
			return group[0].Value
		}
	}
	return src[group[0].Span.Start:group[len(group)-1].Span.End]
}
