// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	VCSUnavailableId Id = iota + 1
	StructuralViolationId
	NoSourcesId
	ReservedDelimiterId
	AmbiguousDescriptorId
	DescriptorDeclinedId
	DescriptorLoadFailedId
	ConfigLoadFailedId
	ProjectLoadFailedId
	TargetOverlapsSourceId
	AnalyzerFailedId
	InvalidEncodingId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	slug     string      // name accepted by `psmbuild explain`
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) Slug() string {
	return i.slug
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue markdown with the glamour style at stylePath
// ("auto", "dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.extLinks) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			sb.WriteString("\n- <" + string(link) + ">")
		}
		md += sb.String()
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	vcsUnavailableIssue = &Issue{
		id:   VCSUnavailableId,
		slug: "vcs-unavailable",
		mdMsg: `
# Version control is not available!

psmbuild asks version control which source files have uncommitted changes,
so that only committed content ends up in the module. The lookup failed for
this source directory, and nothing was built for it.

## Common causes:
- The source directory is not inside a git working tree
- The ` + "`git`" + ` binary is not on PATH

## Things you can try:
- Build from committed content only after ` + "`git init`" + ` and a first commit
- Use the built-in git implementation:
~~~cue
vcs: backend: "go-git"
~~~

- Build whatever is on disk, without version control:
~~~
$ psmbuild build --include-uncommitted
~~~`,
		extLinks: []HttpLink{"https://git-scm.com/downloads"},
	}

	structuralViolationIssue = &Issue{
		id:   StructuralViolationId,
		slug: "structural-violation",
		mdMsg: `
# A source file does not hold exactly one function!

Every ` + "`.ps1`" + ` file in a source directory must contain one function,
filter or workflow definition whose name matches the file name. The only
other top-level statements allowed are ` + "`#Requires -Modules`" + ` lines and
` + "`Set-Alias`" + `/` + "`New-Alias`" + ` commands.

## Things you can try:
- Move statements that run at import time into the function body
- Split a file with several functions into one file per function
- Remove script-level ` + "`param()`" + ` and ` + "`begin`/`process`/`end`" + ` blocks
- Inspect what psmbuild sees in a single file:
~~~
$ psmbuild inspect ./src/Get-Thing.ps1
~~~`,
		extLinks: []HttpLink{"https://learn.microsoft.com/powershell/module/microsoft.powershell.core/about/about_functions"},
	}

	noSourcesIssue = &Issue{
		id:   NoSourcesId,
		slug: "no-sources",
		mdMsg: `
# No source files were found!

The source directory produced no definitions, so no module was written.

## Things you can try:
- Check the module's ` + "`include`" + ` and ` + "`exclude`" + ` patterns in psmbuild.toml
- Commit new files, or build with ` + "`--include-uncommitted`" + `
- Make sure the source path points at the directory that holds the ` + "`.ps1`" + ` files`,
	}

	reservedDelimiterIssue = &Issue{
		id:   ReservedDelimiterId,
		slug: "reserved-delimiter",
		mdMsg: `
# An exported name contains a comma!

Export lists are written as comma-separated names, so a function or alias name
containing ` + "`,`" + ` cannot be exported. The artifact was not kept.

## Things you can try:
- Rename the file and the function so the name has no comma
- Remove the comma from the alias name`,
	}

	ambiguousDescriptorIssue = &Issue{
		id:   AmbiguousDescriptorId,
		slug: "ambiguous-descriptor",
		mdMsg: `
# More than one module manifest was found!

The source directory contains several ` + "`.psd1`" + ` files and psmbuild cannot
tell which one describes the module. The module itself was built; the manifest
was not.

## Things you can try:
- Keep a single ` + "`.psd1`" + ` file in the source directory
- Move data files into a subdirectory`,
		extLinks: []HttpLink{"https://learn.microsoft.com/powershell/scripting/developer/module/how-to-write-a-powershell-module-manifest"},
	}

	descriptorDeclinedIssue = &Issue{
		id:   DescriptorDeclinedId,
		slug: "descriptor-declined",
		mdMsg: `
# The manifest was not regenerated!

Some files in the source directory have uncommitted changes and psmbuild
asked before writing a manifest that may not match them. The question was
declined, or could not be asked because the terminal is not interactive.

## Things you can try:
- Commit or stash your changes and build again
- Answer yes automatically:
~~~
$ psmbuild build --yes
~~~`,
	}

	descriptorLoadFailedIssue = &Issue{
		id:   DescriptorLoadFailedId,
		slug: "descriptor-load-failed",
		mdMsg: `
# The module manifest could not be read!

A module manifest must be a single hashtable literal: ` + "`@{ ... }`" + `.

## Things you can try:
- Check the file with ` + "`Test-ModuleManifest`" + ` in PowerShell
- Remove statements outside the hashtable`,
		extLinks: []HttpLink{"https://learn.microsoft.com/powershell/module/microsoft.powershell.core/test-modulemanifest"},
	}

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		slug: "config-load-failed",
		mdMsg: `
# Failed to load configuration!

The user configuration file could not be loaded or does not match the schema.

## Things you can try:
- Show where psmbuild looks for it:
~~~
$ psmbuild config path
~~~

- Compare it with the schema:
~~~
$ psmbuild config dump
~~~

- Start over with the defaults:
~~~
$ psmbuild config init --force
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	projectLoadFailedIssue = &Issue{
		id:   ProjectLoadFailedId,
		slug: "project-load-failed",
		mdMsg: `
# Failed to load psmbuild.toml!

## Example project file:
~~~toml
include_uncommitted = false

[[module]]
source = "src/Public"
target = "out/MyModule"
exclude = ["*.Tests.ps1"]
~~~

## Things you can try:
- Check the TOML syntax
- Pass the source and target directly:
~~~
$ psmbuild build ./src/Public ./out/MyModule
~~~`,
		extLinks: []HttpLink{"https://toml.io/en/v1.0.0"},
	}

	targetOverlapsSourceIssue = &Issue{
		id:   TargetOverlapsSourceId,
		slug: "target-overlaps-source",
		mdMsg: `
# The target directory overlaps the source directory!

psmbuild deletes and recreates the target directory on every build, so it can
neither be the source directory nor contain it.

## Things you can try:
- Use a sibling output directory such as ` + "`out/<ModuleName>`" + ``,
	}

	analyzerFailedIssue = &Issue{
		id:   AnalyzerFailedId,
		slug: "analyzer-failed",
		mdMsg: `
# The syntax check could not run!

The configured analyzer command failed before reporting findings. The module
was built; only the check is missing.

## Things you can try:
- Run the command by hand with ` + "`ARTIFACT`" + ` set to the .psm1 path
- Skip the check:
~~~
$ psmbuild build --skip-syntax-check
~~~

- Fall back to the built-in parser check:
~~~cue
analyzer: command: ""
~~~`,
		extLinks: []HttpLink{"https://learn.microsoft.com/powershell/utility-modules/psscriptanalyzer/overview"},
	}

	invalidEncodingIssue = &Issue{
		id:   InvalidEncodingId,
		slug: "invalid-encoding",
		mdMsg: `
# Unknown output encoding!

## Accepted names:
- ` + "`utf8`" + `, ` + "`utf8bom`" + `
- ` + "`unicode`" + ` / ` + "`utf16le`" + `, ` + "`bigendianunicode`" + ` / ` + "`utf16be`" + `
- ` + "`utf32`" + `, ` + "`bigendianutf32`" + `
- any WHATWG encoding label, for example ` + "`windows-1252`" + ``,
	}

	issues = map[Id]*Issue{
		vcsUnavailableIssue.Id():       vcsUnavailableIssue,
		structuralViolationIssue.Id():  structuralViolationIssue,
		noSourcesIssue.Id():            noSourcesIssue,
		reservedDelimiterIssue.Id():    reservedDelimiterIssue,
		ambiguousDescriptorIssue.Id():  ambiguousDescriptorIssue,
		descriptorDeclinedIssue.Id():   descriptorDeclinedIssue,
		descriptorLoadFailedIssue.Id(): descriptorLoadFailedIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		projectLoadFailedIssue.Id():    projectLoadFailedIssue,
		targetOverlapsSourceIssue.Id(): targetOverlapsSourceIssue,
		analyzerFailedIssue.Id():       analyzerFailedIssue,
		invalidEncodingIssue.Id():      invalidEncodingIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, is := range issues {
		out = append(out, is)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// Lookup finds an issue by slug, ignoring case.
func Lookup(slug string) (*Issue, bool) {
	for _, is := range issues {
		if strings.EqualFold(is.slug, slug) {
			return is, true
		}
	}
	return nil, false
}
