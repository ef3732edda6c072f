// SPDX-License-Identifier: MPL-2.0

// Package psast parses PowerShell source into a typed syntax tree.
//
// The parser covers the subset of the language that module assembly needs to
// reason about: statement boundaries, function/filter/workflow definitions,
// param blocks and their attributes, named script blocks, class and enum
// definitions, commands with their elements, and the literal forms used by
// module manifest data files (hashtables, arrays, strings, numbers). It does
// not evaluate anything.
//
// Every node keeps its source [Span] and a link to its parent, so callers can
// take the exact extent of a definition and answer structural questions such
// as "is this attribute attached to the param block of that function" by
// walking parents instead of matching on text.
//
// # Entry points
//
//   - [Parse]: parse a script into a [ScriptBlock] root.
//   - [ParseData]: parse a data file (psd1) into a [Table].
//   - [Inspect], [FindAll], [Enclosing]: tree traversal.
//   - [FormatData]: render a [Table] back to data-file syntax.
package psast
