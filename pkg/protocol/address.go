// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"fmt"
	"net/url"
	"strings"
)

const schemeSep = "://"

// Address is a parsed resource address.
type Address struct {
	Raw       string
	Scheme    string
	Namespace string
	// Path is the decoded relative path with the query and fragment removed.
	// It has no leading slash.
	Path string
}

// ParseAddress splits raw into scheme, namespace and relative path.
// It does not validate the path against any package root.
func ParseAddress(raw string) (Address, error) {
	scheme, rest, ok := strings.Cut(raw, schemeSep)
	if !ok || scheme == "" {
		return Address{}, fmt.Errorf("address %q has no scheme", raw)
	}

	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}

	namespace, rel, _ := strings.Cut(rest, "/")
	if namespace == "" {
		return Address{}, fmt.Errorf("address %q has no namespace", raw)
	}

	decoded, err := url.PathUnescape(rel)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: %w", raw, err)
	}

	return Address{
		Raw:       raw,
		Scheme:    scheme,
		Namespace: namespace,
		Path:      strings.TrimLeft(decoded, "/"),
	}, nil
}

// FormatAddress builds an address for rel inside namespace.
func FormatAddress(scheme, namespace, rel string) string {
	return scheme + schemeSep + namespace + "/" + strings.TrimLeft(rel, "/")
}
