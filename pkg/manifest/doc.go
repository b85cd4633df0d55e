// SPDX-License-Identifier: MPL-2.0

// Package manifest parses the manifest.json descriptor of an app package.
//
// Parsing goes through an embedded CUE schema so that a manifest missing a
// required field (name, version) or carrying a malformed version is rejected
// with the path of the offending field, instead of surfacing later as a zero
// value. Keys the schema does not model are accepted and ignored.
package manifest
