// SPDX-License-Identifier: MPL-2.0

package psast

import "strings"

type (
	// Node is implemented by every syntax tree node.
	Node interface {
		// Span returns the source extent of the node.
		Span() Span
		// Parent returns the enclosing node, or nil for the root.
		Parent() Node
		// Children returns the direct child nodes in source order.
		Children() []Node

		setParent(Node)
	}

	nodeBase struct {
		span   Span
		parent Node
	}

	// ScriptBlock is a script file or a { ... } block. Statements holds the
	// implicit (unnamed) block; explicit begin/process/end blocks are
	// NamedBlock statements.
	ScriptBlock struct {
		nodeBase
		ParamBlock *ParamBlock
		Statements []Node
		// Requires lists #Requires directives. Only populated on the root.
		Requires []*RequiresDirective
	}

	// NamedBlock is a begin/process/end/dynamicparam/clean block.
	NamedBlock struct {
		nodeBase
		Name       string
		Statements []Node
	}

	// ParamBlock is a param(...) declaration with its leading attributes.
	ParamBlock struct {
		nodeBase
		Attributes []*Attribute
		Parameters []*Parameter
	}

	// Parameter is one entry of a param block or function parameter list.
	Parameter struct {
		nodeBase
		Attributes []*Attribute
		Name       string
		Default    []Node
	}

	// Attribute is [Name(args)] or a bare type constraint [Name].
	Attribute struct {
		nodeBase
		TypeName         string
		IsTypeConstraint bool
		Positional       []*Expression
		Named            []*NamedArgument
	}

	// NamedArgument is Name = value (or a bare Name switch) inside an attribute.
	NamedArgument struct {
		nodeBase
		Name  string
		Value *Expression
	}

	// FunctionDefinition is a function, filter, workflow or class method.
	// Methods have a TypeDefinition parent.
	FunctionDefinition struct {
		nodeBase
		Keyword    string
		Name       string
		Attributes []*Attribute
		Parameters []*Parameter
		Body       *ScriptBlock
	}

	// TypeDefinition is a class or enum definition.
	TypeDefinition struct {
		nodeBase
		Keyword string
		Name    string
		Members []Node
	}

	// UsingStatement is a using namespace/module/assembly statement.
	UsingStatement struct {
		nodeBase
	}

	// Pipeline is a statement made of one or more |-separated elements,
	// each a *Command or an *Expression.
	Pipeline struct {
		nodeBase
		Elements []Node
	}

	// Command is a command invocation: a name followed by parameters and
	// arguments.
	Command struct {
		nodeBase
		Elements []*CommandElement
	}

	// CommandElement is the command name, a parameter or an argument.
	CommandElement struct {
		nodeBase
		Kind CommandElementKind
		// Name is the parameter name without its dash (Kind == ElementParameter).
		Name string
		// Value is the argument (Kind == ElementArgument or ElementName), or the
		// colon-bound argument of a parameter (-Name:value).
		Value *Expression
	}

	// CommandElementKind distinguishes command elements.
	CommandElementKind int

	// KeywordStatement is a control-flow statement (if, foreach, try, ...).
	KeywordStatement struct {
		nodeBase
		Keyword  string
		Elements []Node
	}

	// Expression is a run of primary elements that is not parsed further.
	Expression struct {
		nodeBase
		Elements []Node
	}

	// StringLiteral is a quoted string or here-string.
	StringLiteral struct {
		nodeBase
		Value      string
		Expandable bool
	}

	// Bareword is a generic word: number, command name argument, keyword.
	Bareword struct {
		nodeBase
		Text string
	}

	// Variable is $name, ${name} or @splat.
	Variable struct {
		nodeBase
		Name   string
		Splat  bool
		Braced bool
	}

	// TokenNode wraps punctuation or operators kept inside elements.
	TokenNode struct {
		nodeBase
		Token Token
	}

	// ScriptBlockExpression is a { ... } used as a value.
	ScriptBlockExpression struct {
		nodeBase
		Body *ScriptBlock
	}

	// SubExpression is $( ... ), @( ... ) (Array set) or ( ... ).
	SubExpression struct {
		nodeBase
		Sigil      string
		Statements []Node
	}

	// Hashtable is @{ key = value; ... }.
	Hashtable struct {
		nodeBase
		Entries []*HashEntry
	}

	// HashEntry is one key = value pair.
	HashEntry struct {
		nodeBase
		Key   string
		Value Node
	}

	// RequiresDirective is a #Requires comment.
	RequiresDirective struct {
		nodeBase
		// Modules lists -Modules specifications: plain names unquoted,
		// hashtable specifications as written.
		Modules []string
	}
)

const (
	// ElementName is the command name.
	ElementName CommandElementKind = iota
	// ElementParameter is a -Parameter.
	ElementParameter
	// ElementArgument is a positional or parameter argument.
	ElementArgument
)

func (n *nodeBase) Span() Span       { return n.span }
func (n *nodeBase) Parent() Node     { return n.parent }
func (n *nodeBase) setParent(p Node) { n.parent = p }
func (n *nodeBase) setSpan(s Span)   { n.span = s }
func (n *nodeBase) extendTo(end int) { n.span.End = end }

// Children implementations.

func (n *ScriptBlock) Children() []Node {
	var out []Node
	for _, r := range n.Requires {
		out = append(out, r)
	}
	if n.ParamBlock != nil {
		out = append(out, n.ParamBlock)
	}
	return append(out, n.Statements...)
}

func (n *NamedBlock) Children() []Node { return append([]Node(nil), n.Statements...) }

func (n *ParamBlock) Children() []Node {
	out := make([]Node, 0, len(n.Attributes)+len(n.Parameters))
	for _, a := range n.Attributes {
		out = append(out, a)
	}
	for _, p := range n.Parameters {
		out = append(out, p)
	}
	return out
}

func (n *Parameter) Children() []Node {
	out := make([]Node, 0, len(n.Attributes)+len(n.Default))
	for _, a := range n.Attributes {
		out = append(out, a)
	}
	return append(out, n.Default...)
}

func (n *Attribute) Children() []Node {
	out := make([]Node, 0, len(n.Positional)+len(n.Named))
	for _, e := range n.Positional {
		out = append(out, e)
	}
	for _, a := range n.Named {
		out = append(out, a)
	}
	return out
}

func (n *NamedArgument) Children() []Node {
	if n.Value == nil {
		return nil
	}
	return []Node{n.Value}
}

func (n *FunctionDefinition) Children() []Node {
	var out []Node
	for _, a := range n.Attributes {
		out = append(out, a)
	}
	for _, p := range n.Parameters {
		out = append(out, p)
	}
	if n.Body != nil {
		out = append(out, n.Body)
	}
	return out
}

func (n *TypeDefinition) Children() []Node { return append([]Node(nil), n.Members...) }
func (n *UsingStatement) Children() []Node { return nil }
func (n *Pipeline) Children() []Node       { return append([]Node(nil), n.Elements...) }

func (n *Command) Children() []Node {
	out := make([]Node, 0, len(n.Elements))
	for _, e := range n.Elements {
		out = append(out, e)
	}
	return out
}

func (n *CommandElement) Children() []Node {
	if n.Value == nil {
		return nil
	}
	return []Node{n.Value}
}

func (n *KeywordStatement) Children() []Node      { return append([]Node(nil), n.Elements...) }
func (n *Expression) Children() []Node            { return append([]Node(nil), n.Elements...) }
func (n *StringLiteral) Children() []Node         { return nil }
func (n *Bareword) Children() []Node              { return nil }
func (n *Variable) Children() []Node              { return nil }
func (n *TokenNode) Children() []Node             { return nil }
func (n *ScriptBlockExpression) Children() []Node { return []Node{n.Body} }
func (n *SubExpression) Children() []Node         { return append([]Node(nil), n.Statements...) }
func (n *RequiresDirective) Children() []Node     { return nil }

func (n *Hashtable) Children() []Node {
	out := make([]Node, 0, len(n.Entries))
	for _, e := range n.Entries {
		out = append(out, e)
	}
	return out
}

func (n *HashEntry) Children() []Node {
	if n.Value == nil {
		return nil
	}
	return []Node{n.Value}
}

// CommandName returns the command name text, or "" when the first element
// is not a plain word (for example "& $scriptBlock").
func (n *Command) CommandName() string {
	if len(n.Elements) == 0 || n.Elements[0].Kind != ElementName || n.Elements[0].Value == nil {
		return ""
	}
	if v, ok := n.Elements[0].Value.Constant(); ok {
		return v
	}
	return ""
}

// Constant returns the literal value of a single-element expression made of a
// non-expandable string, an expandable string without interpolation, or a
// bareword.
func (e *Expression) Constant() (string, bool) {
	if e == nil || len(e.Elements) != 1 {
		return "", false
	}
	switch v := e.Elements[0].(type) {
	case *StringLiteral:
		if v.Expandable && strings.ContainsRune(v.Value, '$') {
			return "", false
		}
		return v.Value, true
	case *Bareword:
		return v.Text, true
	}
	return "", false
}

// Text returns the source text covered by the node.
func Text(src string, n Node) string {
	if n == nil {
		return ""
	}
	return n.Span().Text(src)
}
