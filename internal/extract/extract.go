// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/psmbuild/psmbuild/pkg/psast"
	"github.com/psmbuild/psmbuild/pkg/types"
)

type (
	// Options control extraction.
	Options struct {
		// SkipRequires leaves the #Requires -Modules line out of the body.
		SkipRequires bool
	}

	// Record is the validated content of one definition source file. It is
	// never modified after Extract returns it.
	Record struct {
		// Name is the file's base name; it is the exported name.
		Name types.DefinitionName `json:"name" yaml:"name"`
		// ParsedName is the name written after the definition keyword.
		ParsedName string `json:"parsed_name" yaml:"parsed_name"`
		// Keyword is function, filter or workflow.
		Keyword string               `json:"keyword" yaml:"keyword"`
		Path    types.FilesystemPath `json:"path" yaml:"path"`
		// Requires lists required module specifications in declaration order
		// without duplicates. Empty when Options.SkipRequires is set.
		Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
		// AliasLines holds the text of top-level alias-setting commands.
		AliasLines []string          `json:"alias_lines,omitempty" yaml:"alias_lines,omitempty"`
		Aliases    []types.AliasName `json:"aliases,omitempty" yaml:"aliases,omitempty"`
		// Body is the text emitted into the module: the requires line, the
		// definition's source extent and the alias lines.
		Body string `json:"body" yaml:"body"`
	}
)

var (
	definitionKeywords = []string{"function", "filter", "workflow"}
	aliasCommands      = []string{"Set-Alias", "New-Alias", "sal", "nal"}
	aliasAttributes    = []string{
		"Alias", "AliasAttribute",
		"System.Management.Automation.Alias", "System.Management.Automation.AliasAttribute",
	}
	// Set-Alias/New-Alias parameters that take no argument.
	aliasSwitches = []string{"Force", "PassThru", "WhatIf", "Confirm", "Verbose", "Debug"}

	dashReplacer = strings.NewReplacer("—", "-", "–", "-")
)

// Extract validates content as a single-definition source file and builds its
// record. path names the file; its base name becomes the record name.
// Every failure is a *StructuralError.
func Extract(path types.FilesystemPath, content string, opts Options) (*Record, error) {
	name := types.DefinitionNameFromPath(path)
	if err := name.Validate(); err != nil {
		return nil, &StructuralError{Path: path, Kind: ViolationName, Detail: "file name is not a valid definition name", Err: err}
	}

	root, err := psast.Parse(content)
	if err != nil {
		line := 0
		if synErr, ok := errors.AsType[*psast.SyntaxError](err); ok {
			line = synErr.Line
		}
		return nil, &StructuralError{Path: path, Kind: ViolationSyntax, Line: line, Detail: "parse failed", Err: err}
	}

	violation := func(kind ViolationKind, n psast.Node, format string, args ...any) error {
		line, _ := psast.Position(content, n.Span().Start)
		return &StructuralError{Path: path, Kind: kind, Line: line, Detail: fmt.Sprintf(format, args...)}
	}

	if root.ParamBlock != nil {
		return nil, violation(ViolationExecutionBlock, root.ParamBlock, "script-level param block outside the definition")
	}

	var (
		defs       []*psast.FunctionDefinition
		aliasCalls []*psast.Command
		aliasStmts []psast.Node
	)
	for _, stmt := range root.Statements {
		switch s := stmt.(type) {
		case *psast.FunctionDefinition:
			if slices.Contains(definitionKeywords, strings.ToLower(s.Keyword)) {
				defs = append(defs, s)
				continue
			}
			return nil, violation(ViolationStatement, s, "unexpected %s definition", s.Keyword)
		case *psast.NamedBlock:
			return nil, violation(ViolationExecutionBlock, s, "%s block outside the definition", s.Name)
		case *psast.TypeDefinition:
			return nil, violation(ViolationStatement, s, "%s %s defined at top level", s.Keyword, s.Name)
		case *psast.UsingStatement:
			return nil, violation(ViolationStatement, s, "using statement at top level")
		default:
			if cmd, ok := aliasCommand(stmt); ok {
				aliasCalls = append(aliasCalls, cmd)
				aliasStmts = append(aliasStmts, stmt)
				continue
			}
			return nil, violation(ViolationStatement, stmt, "statement outside the definition: %s", firstLine(psast.Text(content, stmt)))
		}
	}
	if len(defs) != 1 {
		return nil, &StructuralError{
			Path:   path,
			Kind:   ViolationDefinitionCount,
			Detail: fmt.Sprintf("found %d top-level definitions, want exactly 1", len(defs)),
		}
	}
	def := defs[0]

	rec := &Record{
		Name:       name,
		ParsedName: def.Name,
		Keyword:    strings.ToLower(def.Keyword),
		Path:       path,
	}
	if !opts.SkipRequires {
		rec.Requires = requiredModules(root)
	}

	var aliases []string
	for i, cmd := range aliasCalls {
		rec.AliasLines = append(rec.AliasLines, psast.Text(content, aliasStmts[i]))
		if v, ok := aliasValue(cmd); ok {
			aliases = append(aliases, v)
		}
	}
	aliases = append(aliases, attributeAliases(def)...)
	for _, a := range dedupe(aliases) {
		alias := types.AliasName(a)
		if err := alias.Validate(); err != nil {
			return nil, &StructuralError{Path: path, Kind: ViolationAlias, Detail: "declared alias cannot be exported", Err: err}
		}
		rec.Aliases = append(rec.Aliases, alias)
	}

	var lines []string
	if len(rec.Requires) > 0 {
		lines = append(lines, "#Requires -Modules "+strings.Join(rec.Requires, ", "))
	}
	lines = append(lines, psast.Text(content, def))
	lines = append(lines, rec.AliasLines...)
	rec.Body = NormalizeDashes(strings.Join(lines, "\n"))
	return rec, nil
}

// NormalizeDashes replaces em and en dashes with '-'.
func NormalizeDashes(s string) string { return dashReplacer.Replace(s) }

// aliasCommand returns the command of a statement that is a single
// alias-setting command.
func aliasCommand(stmt psast.Node) (*psast.Command, bool) {
	pl, ok := stmt.(*psast.Pipeline)
	if !ok || len(pl.Elements) != 1 {
		return nil, false
	}
	cmd, ok := pl.Elements[0].(*psast.Command)
	if !ok {
		return nil, false
	}
	name := cmd.CommandName()
	for _, a := range aliasCommands {
		if strings.EqualFold(name, a) {
			return cmd, true
		}
	}
	return nil, false
}

// aliasValue returns the alias an alias-setting command defines: the
// argument of -Name, or the first positional argument.
func aliasValue(cmd *psast.Command) (string, bool) {
	var positional []*psast.Expression
	elems := cmd.Elements[1:]
	for i := 0; i < len(elems); i++ {
		el := elems[i]
		switch el.Kind {
		case psast.ElementParameter:
			if el.Value != nil {
				if strings.EqualFold(el.Name, "Name") {
					return el.Value.Constant()
				}
				continue
			}
			if isSwitch(el.Name) || i+1 >= len(elems) || elems[i+1].Kind != psast.ElementArgument {
				continue
			}
			i++
			if strings.EqualFold(el.Name, "Name") {
				return elems[i].Value.Constant()
			}
		case psast.ElementArgument:
			positional = append(positional, el.Value)
		}
	}
	if len(positional) == 0 {
		return "", false
	}
	return positional[0].Constant()
}

func isSwitch(param string) bool {
	for _, s := range aliasSwitches {
		if strings.EqualFold(param, s) {
			return true
		}
	}
	return false
}

// attributeAliases collects the positional string arguments of alias
// attributes attached to the definition's own param block. Attributes on
// parameters and on param blocks of nested script blocks have a different
// parent and are ignored.
func attributeAliases(def *psast.FunctionDefinition) []string {
	if def.Body == nil || def.Body.ParamBlock == nil {
		return nil
	}
	own := psast.Node(def.Body.ParamBlock)
	var out []string
	for _, attr := range psast.FindAll[*psast.Attribute](def) {
		if attr.Parent() != own || attr.IsTypeConstraint || !isAliasAttribute(attr.TypeName) {
			continue
		}
		for _, arg := range attr.Positional {
			out = append(out, expressionStrings(arg)...)
		}
	}
	return out
}

func isAliasAttribute(typeName string) bool {
	for _, a := range aliasAttributes {
		if strings.EqualFold(typeName, a) {
			return true
		}
	}
	return false
}

// expressionStrings returns the constant strings of an attribute argument:
// a single string, a comma list, or an @(...) array of either.
func expressionStrings(e *psast.Expression) []string {
	if v, ok := e.Constant(); ok {
		return []string{v}
	}
	var out []string
	for _, el := range e.Elements {
		switch v := el.(type) {
		case *psast.StringLiteral:
			if !v.Expandable || !strings.ContainsRune(v.Value, '$') {
				out = append(out, v.Value)
			}
		case *psast.Bareword:
			out = append(out, v.Text)
		case *psast.SubExpression:
			if v.Sigil != "@(" && v.Sigil != "(" {
				continue
			}
			for _, stmt := range v.Statements {
				pl, ok := stmt.(*psast.Pipeline)
				if !ok || len(pl.Elements) != 1 {
					continue
				}
				if inner, ok := pl.Elements[0].(*psast.Expression); ok {
					out = append(out, expressionStrings(inner)...)
				}
			}
		}
	}
	return out
}

// requiredModules returns the -Modules specifications of every #Requires
// directive, without duplicates.
func requiredModules(root *psast.ScriptBlock) []string {
	var mods []string
	for _, r := range root.Requires {
		mods = append(mods, r.Modules...)
	}
	return dedupe(mods)
}

// dedupe drops case-insensitive duplicates, keeping the first spelling.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, s := range items {
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i]) + " ..."
	}
	return s
}
