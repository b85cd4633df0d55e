// SPDX-License-Identifier: MPL-2.0

// Package version compares the dotted numeric version strings used by app
// manifests (e.g. "1.2.3.4").
//
// Unlike semantic versions, manifest versions may have any number of
// components and carry no pre-release or build metadata. Comparison is
// positional; a shorter version is treated as having zeros in its missing
// trailing positions, so "1.2" and "1.2.0" are equal.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Less means the left version orders before the right one.
	Less Ordering = -1
	// Equal means both versions have the same numeric value.
	Equal Ordering = 0
	// Greater means the left version orders after the right one.
	Greater Ordering = 1

	separator = "."
)

// ErrInvalidVersion is the sentinel error wrapped by ParseError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Ordering is the result of comparing two versions.
	Ordering int

	// Version is a parsed dotted numeric version.
	Version struct {
		components []uint64
		original   string
	}

	// ParseError is returned when a version string contains an empty or
	// non-numeric component. It wraps ErrInvalidVersion for errors.Is().
	ParseError struct {
		Value     string
		Component string
		Position  int
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Value == "" {
		return "invalid version \"\": must not be empty"
	}
	return fmt.Sprintf("invalid version %q: component %d (%q) is not a non-negative integer", e.Value, e.Position+1, e.Component)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for programmatic detection.
func (e *ParseError) Unwrap() error { return ErrInvalidVersion }

// String returns a human-readable name for the ordering.
func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "unknown"
	}
}

// Parse parses a dotted numeric version. Every component must consist only of
// ASCII digits; signs, whitespace and empty components are rejected rather
// than coerced to zero.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, &ParseError{Value: s}
	}

	parts := strings.Split(s, separator)
	components := make([]uint64, len(parts))
	for i, part := range parts {
		if !isDigits(part) {
			return Version{}, &ParseError{Value: s, Component: part, Position: i}
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			// Only overflow can reach here.
			return Version{}, &ParseError{Value: s, Component: part, Position: i}
		}
		components[i] = n
	}

	return Version{components: components, original: s}, nil
}

// String returns the version as it was originally written.
func (v Version) String() string { return v.original }

// Len returns the number of components in the version.
func (v Version) Len() int { return len(v.components) }

// Compare orders v against other with zero padding for missing components.
func (v Version) Compare(other Version) Ordering {
	n := max(len(v.components), len(other.components))
	for i := range n {
		a, b := v.component(i), other.component(i)
		switch {
		case a < b:
			return Less
		case a > b:
			return Greater
		}
	}
	return Equal
}

func (v Version) component(i int) uint64 {
	if i < len(v.components) {
		return v.components[i]
	}
	return 0
}

// Compare parses and compares two version strings.
func Compare(a, b string) (Ordering, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// IsUpgrade reports whether candidate is strictly newer than current.
// An unparsable version on either side is an error, never "no upgrade".
func IsUpgrade(current, candidate string) (bool, error) {
	ord, err := Compare(candidate, current)
	if err != nil {
		return false, err
	}
	return ord == Greater, nil
}

// Highest returns the greatest valid version among candidates and its index.
// Invalid entries are skipped. ok is false when no candidate parses.
// Ties keep the earliest entry.
func Highest(candidates []string) (best Version, index int, ok bool) {
	index = -1
	for i, s := range candidates {
		v, err := Parse(s)
		if err != nil {
			continue
		}
		if !ok || v.Compare(best) == Greater {
			best, index, ok = v, i, true
		}
	}
	return best, index, ok
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
