// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	FileNotFoundId Id = iota + 1
	ManifestParseErrorId
	NoPackageFoundId
	MissingKeyId
	ConfigLoadFailedId
	InstallFailedId
	ProtocolActivationFailedId
	ListenFailedId
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
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	fileNotFoundIssue = &Issue{
		id: FileNotFoundId,
		mdMsg: `
# File not found!

A file crxhost needs does not exist or cannot be read.

## Things you can try:
- Check the path for typos
- Make sure the file is readable by the current user`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Failed to parse manifest.json!

The app package has a manifest that is not valid JSON, or it is missing a
required field.

## Required fields:
~~~json
{
  "name": "My App",
  "version": "1.0.0"
}
~~~

## Things you can try:
- Validate the file with a JSON linter
- Make sure "version" is dotted numbers only (1.2.3.4, no suffixes)
- Check the field path in the error message above`,
		extLinks: []HttpLink{"https://developer.chrome.com/docs/extensions/reference/manifest"},
	}

	noPackageFoundIssue = &Issue{
		id: NoPackageFoundId,
		mdMsg: `
# No app package found!

crxhost looked for a package in this order and found nothing usable:

1. the directory given with --app-dir
2. the embedded bundle (unpacked-crx next to the executable)
3. the installed package store for the app id

## Things you can try:
- Run an unpacked app directly:
~~~
$ crxhost run --app-dir /path/to/app
~~~

- Install a packed app, then run it by id:
~~~
$ crxhost install app.crx
$ crxhost run --app-id gidgenkbbabolejbgbpnhbimgjbffefm
~~~`,
	}

	missingKeyIssue = &Issue{
		id: MissingKeyId,
		mdMsg: `
# Cannot determine the app id!

No --app-id was given and the manifest has no "key" to derive one from.

## Things you can try:
- Pass the id explicitly with --app-id
- Add the public key of the app to manifest.json as "key"
- Print the id derived from a manifest:
~~~
$ crxhost id /path/to/app
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be loaded or is invalid.

## Things you can try:
- Show the effective configuration:
~~~
$ crxhost config show
~~~

- Check CUE syntax and field names against the schema
- Unset CRXHOST_* environment variables that may override values`,
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# Failed to install the package!

The archive is not a readable .crx or .zip file, contains unsafe paths, or
has no valid manifest.

## Things you can try:
- Re-download the archive
- Pass --app-id when installing a bare .zip without a manifest key
- Check that the store directory is writable (CRXHOST_STORE_PATH)`,
	}

	protocolActivationFailedIssue = &Issue{
		id: ProtocolActivationFailedId,
		mdMsg: `
# Failed to activate the resource protocol!

Another app already holds the protocol scheme, or the app directory
disappeared after it was resolved.

## Things you can try:
- Stop other crxhost instances sharing this process
- Run again; the app directory is resolved at startup`,
	}

	listenFailedIssue = &Issue{
		id: ListenFailedId,
		mdMsg: `
# Failed to start the HTTP bridge!

The listen address is in use or not allowed.

## Things you can try:
- Pick another port:
~~~
$ crxhost run --listen 127.0.0.1:0
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

crxhost does not have permission to read or write a required path.

## Things you can try:
- Check ownership of the store directory
- Run with a different CRXHOST_STORE_PATH`,
	}

	issues = map[Id]*Issue{
		fileNotFoundIssue.Id():             fileNotFoundIssue,
		manifestParseErrorIssue.Id():       manifestParseErrorIssue,
		noPackageFoundIssue.Id():           noPackageFoundIssue,
		missingKeyIssue.Id():               missingKeyIssue,
		configLoadFailedIssue.Id():         configLoadFailedIssue,
		installFailedIssue.Id():            installFailedIssue,
		protocolActivationFailedIssue.Id(): protocolActivationFailedIssue,
		listenFailedIssue.Id():             listenFailedIssue,
		permissionDeniedIssue.Id():         permissionDeniedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
