// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"path/filepath"
	"strings"
)

// resolvePath maps rel onto a file below root. root must already be an
// absolute path with symlinks evaluated. The result is checked twice: once
// lexically and once after evaluating symlinks, so a link inside the package
// cannot point outside it.
func resolvePath(root, rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", errOutsideRoot
	}

	joined := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, joined) {
		return "", errOutsideRoot
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", err
	}
	if !within(root, resolved) {
		return "", errOutsideRoot
	}
	return resolved, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func realDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
