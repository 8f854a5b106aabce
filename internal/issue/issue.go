// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ChannelNotFoundId Id = iota + 1
	ChannelParseErrorId
	RecipeNotFoundId
	InvalidRecipeId
	FetchFailedId
	ChecksumMismatchId
	DependencyCycleId
	UnresolvedInputId
	PhaseFailedId
	InstallPlanFailedId
	ConfigLoadFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	channelNotFoundIssue = &Issue{
		id: ChannelNotFoundId,
		mdMsg: `
# No recipes found!

pkgchan did not find any channel files (` + "`*.cue`" + `) in the configured channel directories.

## Things you can try:
- Pass a channel directory explicitly:
~~~
$ pkgchan --channel ./channel list
~~~
- Or list it in your config file:
~~~cue
channels: ["/path/to/channel"]
~~~
- Check the effective configuration:
~~~
$ pkgchan config show
~~~`,
	}

	channelParseErrorIssue = &Issue{
		id: ChannelParseErrorId,
		mdMsg: `
# Failed to parse channel file!

A channel file does not match the recipe schema.

## Common mistakes:
- ` + "`recipes`" + ` must be a list of recipe objects
- git sources need a full 40-character ` + "`commit`" + ` and a ` + "`sha256`" + `
- ` + "`insert-after`" + ` and ` + "`insert-before`" + ` phases need both ` + "`anchor`" + ` and ` + "`script`" + `
- unknown fields are rejected

## Things you can try:
~~~
$ pkgchan validate
~~~`,
	}

	recipeNotFoundIssue = &Issue{
		id: RecipeNotFoundId,
		mdMsg: `
# Recipe not found!

No recipe in the loaded channels matches the requested name and version.

## Things you can try:
- List the available recipes and versions:
~~~
$ pkgchan list
~~~
- Drop the ` + "`@version`" + ` suffix to pick the newest version`,
	}

	invalidRecipeIssue = &Issue{
		id: InvalidRecipeId,
		mdMsg: `
# Invalid recipe!

A recipe was rejected when it was constructed.

## Things you can try:
- Check that every phase override names an anchor present in the build system's sequence
- Keep install destinations inside the output tree (no ` + "`..`" + `)
- Give every input a unique label`,
	}

	fetchFailedIssue = &Issue{
		id: FetchFailedId,
		mdMsg: `
# Failed to fetch source!

The recipe's source could not be downloaded or cloned.

## Things you can try:
- Check your network connection and the source URL
- Raise the timeout:
~~~
$ PKGCHAN_FETCH_TIMEOUT=30m pkgchan build <name>
~~~
- For private git repositories, export ` + "`PKGCHAN_GIT_TOKEN`" + ` or configure an SSH key`,
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum mismatch!

The fetched source does not match the checksum pinned in the recipe.
Nothing was written to the cache.

## Things you can try:
- If upstream re-released the artifact, verify it and update ` + "`sha256`" + ` in the recipe
- Git sources are hashed as a NAR of the checked-out tree, not as an archive`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

A recipe depends on itself through its inputs.

## Things you can try:
- Inspect the build order:
~~~
$ pkgchan plan <name>
~~~
- Break the cycle by removing one of the inputs in the reported chain`,
	}

	unresolvedInputIssue = &Issue{
		id: UnresolvedInputId,
		mdMsg: `
# Input could not be realized!

One of the recipe's inputs failed to build, so the recipe itself was not built.

## Things you can try:
- Build the failing input on its own to see its error:
~~~
$ pkgchan build <input>
~~~
- Check that the input's name and version exist in the channel`,
	}

	phaseFailedIssue = &Issue{
		id: PhaseFailedId,
		mdMsg: `
# Build phase failed!

A phase script exited with an error. The staging tree was discarded.

## Things you can try:
- Re-run with debug logging to see the phase output:
~~~
$ pkgchan --log-level debug build <name>
~~~
- Keep the staging tree for inspection:
~~~
$ pkgchan build --keep-staging <name>
~~~`,
	}

	installPlanFailedIssue = &Issue{
		id: InstallPlanFailedId,
		mdMsg: `
# Install plan failed!

An install entry could not be applied. No files were placed in the output tree.

## Things you can try:
- Check that each entry's ` + "`source`" + ` exists in the staging tree after the build phases
- Sources must stay inside the staging tree, including through symlinks
- Entries with ` + "`mode: \"symlink\"`" + ` link into the staging tree, so build them with
~~~
$ pkgchan build --keep-staging <name>
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your config file could not be parsed or holds invalid values.

## Things you can try:
- Show the effective configuration:
~~~
$ pkgchan config show
~~~
- Check ` + "`PKGCHAN_*`" + ` environment variables, which override the file
- Move the file aside to fall back to defaults`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

pkgchan could not write to the store, cache or work directory.

## Things you can try:
- Check ownership of the directories shown by ` + "`pkgchan config show`" + `
- Point ` + "`store_dir`" + `, ` + "`cache_dir`" + ` and ` + "`work_dir`" + ` at writable locations`,
	}

	issues = map[Id]*Issue{
		channelNotFoundIssue.Id():   channelNotFoundIssue,
		channelParseErrorIssue.Id(): channelParseErrorIssue,
		recipeNotFoundIssue.Id():    recipeNotFoundIssue,
		invalidRecipeIssue.Id():     invalidRecipeIssue,
		fetchFailedIssue.Id():       fetchFailedIssue,
		checksumMismatchIssue.Id():  checksumMismatchIssue,
		dependencyCycleIssue.Id():   dependencyCycleIssue,
		unresolvedInputIssue.Id():   unresolvedInputIssue,
		phaseFailedIssue.Id():       phaseFailedIssue,
		installPlanFailedIssue.Id(): installPlanFailedIssue,
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		permissionDeniedIssue.Id():  permissionDeniedIssue,
	}
)

// Values returns every catalogued issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
}

func Get(id Id) *Issue {
	return issues[id]
}
