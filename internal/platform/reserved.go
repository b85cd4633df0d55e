// SPDX-License-Identifier: MPL-2.0

// Package platform holds host OS quirks the store has to respect when
// writing archive contents to disk.
package platform

import "strings"

// reservedStems are device names Windows refuses as file names, with or
// without an extension.
var reservedStems = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// IsReservedName reports whether a single path segment names a Windows
// device. Only the part before the first dot counts: "nul.tar.gz" is as
// reserved as "NUL".
func IsReservedName(segment string) bool {
	stem, _, _ := strings.Cut(segment, ".")
	_, ok := reservedStems[strings.ToUpper(strings.TrimRight(stem, " "))]
	return ok
}

// UnwritableSegment reports whether segment cannot be created as a file
// or directory on goos. Outside Windows every segment is writable.
func UnwritableSegment(goos, segment string) bool {
	if goos != "windows" {
		return false
	}
	if IsReservedName(segment) {
		return true
	}
	// Windows strips trailing dots and spaces, so "a." and "a" collide.
	return strings.TrimRight(segment, ". ") != segment || strings.ContainsAny(segment, `<>:"|?*`)
}
