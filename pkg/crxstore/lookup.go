// SPDX-License-Identifier: MPL-2.0

package crxstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/crxhost/crxhost/pkg/appid"
	"github.com/crxhost/crxhost/pkg/locator"
	"github.com/crxhost/crxhost/pkg/manifest"
	"github.com/crxhost/crxhost/pkg/version"
)

type versionDir struct {
	name string
	v    version.Version
}

// Lookup returns the highest installed version of id whose manifest parses
// and declares the same version as its directory. It returns nil, nil when
// nothing usable is installed. Lookup never writes.
func (s *Store) Lookup(ctx context.Context, id appid.ID) (*locator.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !safeSegment(string(id)) {
		return nil, fmt.Errorf("lookup %q: unsafe identifier", id)
	}

	names, err := s.Versions(id)
	if err != nil {
		return nil, err
	}

	// Try the highest remaining version until one loads.
	for len(names) > 0 {
		_, i, ok := version.Highest(names)
		if !ok {
			break
		}
		name := names[i]
		names = slices.Delete(names, i, i+1)

		dir := filepath.Join(s.root, string(id), name)
		m, err := manifest.Load(dir)
		if err != nil {
			s.logger.Warn("skipping installed package", "id", id, "version", name, "err", err)
			continue
		}
		if m.Version != name {
			s.logger.Warn("skipping installed package with mismatched version",
				"id", id, "dir", name, "manifest", m.Version)
			continue
		}
		return &locator.Candidate{ID: id, Version: m.Version, Dir: dir, Manifest: m}, nil
	}
	return nil, nil
}

// Versions lists the installed version directories for id, highest first.
// Directories whose names are not versions are ignored.
func (s *Store) Versions(id appid.ID) ([]string, error) {
	dirs, err := s.versions(id)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = d.name
	}
	return out, nil
}

func (s *Store) versions(id appid.ID) ([]versionDir, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(id)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store for %s: %w", id, err)
	}

	var dirs []versionDir
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		v, err := version.Parse(e.Name())
		if err != nil {
			continue
		}
		dirs = append(dirs, versionDir{name: e.Name(), v: v})
	}

	slices.SortStableFunc(dirs, func(a, b versionDir) int {
		return int(b.v.Compare(a.v))
	})
	return dirs, nil
}

// safeSegment reports whether s can be used as a single path element.
func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && !strings.ContainsRune(s, 0)
}
