// SPDX-License-Identifier: MPL-2.0

// Package crxstore keeps unpacked app packages on disk, one directory per
// identifier and version:
//
//	<root>/<id>/<version>/manifest.json
//
// Lookup is a pure query used by the locator; Install unpacks a .crx (CRX2
// or CRX3) or bare .zip archive into the store.
package crxstore
