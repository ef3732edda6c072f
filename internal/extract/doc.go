// SPDX-License-Identifier: MPL-2.0

// Package extract turns one definition source file into a validated
// [Record]: the single top-level function it defines, the modules it
// requires and the aliases it declares.
//
// A source file may contain, at top level, exactly one function, filter or
// workflow definition, alias-setting commands (Set-Alias, New-Alias, sal,
// nal), comments and #Requires directives. Anything else (script-level param
// blocks, begin/process/end blocks, classes, using statements, loose
// commands) is a structural violation.
//
// The record is keyed by the file's base name, not by the name written after
// the function keyword. Both are kept: [Record.Name] drives export
// bookkeeping and [Record.ParsedName] is informational.
package extract
