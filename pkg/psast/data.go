// SPDX-License-Identifier: MPL-2.0

package psast

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// KindString is a quoted string.
	KindString ValueKind = iota
	// KindNumber is a numeric literal, kept as written.
	KindNumber
	// KindBool is $true or $false.
	KindBool
	// KindNull is $null.
	KindNull
	// KindArray is @(...) or a comma list.
	KindArray
	// KindTable is a nested @{...}.
	KindTable
	// KindRaw is any other expression, kept verbatim.
	KindRaw
)

// ErrNotDataFile is returned when a data file does not consist of a single
// hashtable literal.
var ErrNotDataFile = errors.New("data file must contain a single hashtable")

type (
	// ValueKind classifies a data-file value.
	ValueKind int

	// Value is one value of a data file (psd1).
	Value struct {
		Kind ValueKind
		// Str holds the string contents, the number text or the raw expression.
		Str   string
		Bool  bool
		Items []Value
		Table *Table
	}

	// Table is an ordered hashtable with case-insensitive keys. The first
	// spelling of a key is kept.
	Table struct {
		keys   []string
		values map[string]Value
	}
)

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{values: make(map[string]Value)}
}

// StringValue returns a string value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// StringArray returns an array of string values. A nil or empty slice yields
// an empty array.
func StringArray(items []string) Value {
	v := Value{Kind: KindArray, Items: make([]Value, 0, len(items))}
	for _, s := range items {
		v.Items = append(v.Items, StringValue(s))
	}
	return v
}

// TableValue wraps a table.
func TableValue(t *Table) Value { return Value{Kind: KindTable, Table: t} }

// Strings returns the string items of an array value, or the value itself for
// a single string. Non-string items are skipped.
func (v Value) Strings() []string {
	switch v.Kind {
	case KindString:
		return []string{v.Str}
	case KindArray:
		out := make([]string, 0, len(v.Items))
		for _, it := range v.Items {
			if it.Kind == KindString {
				out = append(out, it.Str)
			}
		}
		return out
	default:
		return nil
	}
}

// Len returns the number of keys.
func (t *Table) Len() int { return len(t.keys) }

// Keys returns keys in insertion order.
func (t *Table) Keys() []string { return append([]string(nil), t.keys...) }

// Get looks up a key, ignoring case.
func (t *Table) Get(key string) (Value, bool) {
	v, ok := t.values[strings.ToLower(key)]
	return v, ok
}

// Set stores a value. Existing keys keep their position and spelling.
func (t *Table) Set(key string, v Value) {
	lk := strings.ToLower(key)
	if _, ok := t.values[lk]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[lk] = v
}

// Delete removes a key if present.
func (t *Table) Delete(key string) {
	lk := strings.ToLower(key)
	if _, ok := t.values[lk]; !ok {
		return
	}
	delete(t.values, lk)
	for i, k := range t.keys {
		if strings.ToLower(k) == lk {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := NewTable()
	for _, k := range t.keys {
		v, _ := t.Get(k)
		c.Set(k, v.clone())
	}
	return c
}

func (v Value) clone() Value {
	switch v.Kind {
	case KindArray:
		items := make([]Value, len(v.Items))
		for i, it := range v.Items {
			items[i] = it.clone()
		}
		v.Items = items
	case KindTable:
		if v.Table != nil {
			v.Table = v.Table.Clone()
		}
	}
	return v
}

// ParseData parses a data file whose only statement is a hashtable literal.
func ParseData(src string) (*Table, error) {
	root, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if root.ParamBlock != nil || len(root.Statements) != 1 {
		return nil, ErrNotDataFile
	}
	h, ok := singleHashtable(root.Statements[0])
	if !ok {
		return nil, ErrNotDataFile
	}
	return tableFrom(src, h), nil
}

func singleHashtable(stmt Node) (*Hashtable, bool) {
	pl, ok := stmt.(*Pipeline)
	if !ok || len(pl.Elements) != 1 {
		return nil, false
	}
	expr, ok := pl.Elements[0].(*Expression)
	if !ok || len(expr.Elements) != 1 {
		return nil, false
	}
	h, ok := expr.Elements[0].(*Hashtable)
	return h, ok
}

func tableFrom(src string, h *Hashtable) *Table {
	t := NewTable()
	for _, e := range h.Entries {
		t.Set(e.Key, valueOf(src, e.Value))
	}
	return t
}

func valueOf(src string, n Node) Value {
	raw := Value{Kind: KindRaw, Str: Text(src, n)}
	switch v := n.(type) {
	case *Pipeline:
		if len(v.Elements) == 1 {
			return valueOf(src, v.Elements[0])
		}
	case *Expression:
		return expressionValue(src, v)
	case *StringLiteral:
		if v.Expandable && strings.ContainsRune(v.Value, '$') {
			return raw
		}
		return StringValue(v.Value)
	case *Bareword:
		if isNumeric(v.Text) {
			return Value{Kind: KindNumber, Str: v.Text}
		}
	case *Variable:
		switch strings.ToLower(v.Name) {
		case "true":
			return Value{Kind: KindBool, Bool: true}
		case "false":
			return Value{Kind: KindBool}
		case "null":
			return Value{Kind: KindNull}
		}
	case *SubExpression:
		if v.Sigil == "@(" {
			arr := Value{Kind: KindArray, Items: []Value{}}
			for _, stmt := range v.Statements {
				item := valueOf(src, stmt)
				if item.Kind == KindArray && isCommaList(stmt) {
					arr.Items = append(arr.Items, item.Items...)
					continue
				}
				arr.Items = append(arr.Items, item)
			}
			return arr
		}
	case *Hashtable:
		return TableValue(tableFrom(src, v))
	}
	return raw
}

func isCommaList(stmt Node) bool {
	pl, ok := stmt.(*Pipeline)
	if !ok || len(pl.Elements) != 1 {
		return false
	}
	expr, ok := pl.Elements[0].(*Expression)
	if !ok {
		return false
	}
	for _, el := range expr.Elements {
		if tn, ok := el.(*TokenNode); ok && tn.Token.Kind == TokComma {
			return true
		}
	}
	return false
}

func expressionValue(src string, e *Expression) Value {
	var groups [][]Node
	var cur []Node
	for _, el := range e.Elements {
		if tn, ok := el.(*TokenNode); ok && tn.Token.Kind == TokComma {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, el)
	}
	groups = append(groups, cur)

	groupValue := func(g []Node) Value {
		if len(g) == 1 {
			return valueOf(src, g[0])
		}
		if len(g) == 0 {
			return Value{Kind: KindRaw}
		}
		return Value{Kind: KindRaw, Str: src[g[0].Span().Start:g[len(g)-1].Span().End]}
	}

	if len(groups) == 1 {
		return groupValue(groups[0])
	}
	arr := Value{Kind: KindArray, Items: make([]Value, 0, len(groups))}
	for _, g := range groups {
		arr.Items = append(arr.Items, groupValue(g))
	}
	return arr
}

// FormatData renders a table as a data file.
func FormatData(t *Table) string {
	var sb strings.Builder
	writeTable(&sb, t, 0)
	sb.WriteString("\n")
	return sb.String()
}

func writeTable(sb *strings.Builder, t *Table, depth int) {
	sb.WriteString("@{\n")
	for i, k := range t.keys {
		if depth == 0 && i > 0 {
			sb.WriteString("\n")
		}
		v, _ := t.Get(k)
		indent(sb, depth+1)
		sb.WriteString(formatKey(k))
		sb.WriteString(" = ")
		writeValue(sb, v, depth+1)
		sb.WriteString("\n")
	}
	indent(sb, depth)
	sb.WriteString("}")
}

func writeValue(sb *strings.Builder, v Value, depth int) {
	switch v.Kind {
	case KindString:
		sb.WriteString(QuoteString(v.Str))
	case KindNumber, KindRaw:
		sb.WriteString(v.Str)
	case KindBool:
		if v.Bool {
			sb.WriteString("$true")
		} else {
			sb.WriteString("$false")
		}
	case KindNull:
		sb.WriteString("$null")
	case KindArray:
		if len(v.Items) == 0 {
			sb.WriteString("@()")
			return
		}
		sb.WriteString("@(\n")
		for _, it := range v.Items {
			indent(sb, depth+1)
			writeValue(sb, it, depth+1)
			sb.WriteString("\n")
		}
		indent(sb, depth)
		sb.WriteString(")")
	case KindTable:
		if v.Table == nil {
			sb.WriteString("@{}")
			return
		}
		writeTable(sb, v.Table, depth)
	default:
		panic(fmt.Sprintf("psast: unknown value kind %d", v.Kind))
	}
}

func indent(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("    ", depth))
}

func formatKey(k string) string {
	for i, r := range k {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return QuoteString(k)
	}
	if k == "" {
		return "''"
	}
	return k
}

// QuoteString renders s as a single-quoted string literal. Every quote
// character the lexer accepts is doubled.
func QuoteString(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for _, r := range s {
		if isSingleQuote(r) {
			sb.WriteRune(r)
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('\'')
	return sb.String()
}
