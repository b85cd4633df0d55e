// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes JSON and CUE documents through an embedded CUE
// schema. manifest.json, native client .nmf files and config.cue all take
// the same route: size check, unify with a schema definition, validate, then
// decode into a Go value. Errors carry the document name and the CUE path of
// the offending field.
//
//	res, err := cueutil.ParseAndDecode[Manifest](schema, data, "#Manifest",
//		cueutil.WithFilename(path), cueutil.WithJSON())
package cueutil
