// SPDX-License-Identifier: MPL-2.0

package crxstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/crxhost/crxhost/internal/platform"
	"github.com/crxhost/crxhost/pkg/appid"
	"github.com/crxhost/crxhost/pkg/locator"
	"github.com/crxhost/crxhost/pkg/manifest"
)

var (
	// ErrUnsafeEntry is the sentinel error wrapped by UnsafeEntryError.
	ErrUnsafeEntry = errors.New("unsafe archive entry")
	// ErrArchiveTooLarge is returned when an archive unpacks beyond the size limit.
	ErrArchiveTooLarge = errors.New("archive exceeds unpacked size limit")
)

// UnsafeEntryError is returned when an archive entry would be written
// outside the destination directory.
type UnsafeEntryError struct {
	Name string
}

// Error implements the error interface.
func (e *UnsafeEntryError) Error() string {
	return fmt.Sprintf("archive entry %q escapes the destination", e.Name)
}

// Unwrap returns ErrUnsafeEntry so callers can use errors.Is for programmatic detection.
func (e *UnsafeEntryError) Unwrap() error { return ErrUnsafeEntry }

// Install unpacks the archive at archivePath into <root>/<id>/<version>.
// The identifier is explicitID when given, else derived from the manifest
// key, else taken from the CRX header. Installing a version that is already
// present leaves the existing copy untouched and returns it.
func (s *Store) Install(ctx context.Context, archivePath, explicitID string) (*locator.Candidate, error) {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	hdr, err := parseHeader(data)
	if err != nil {
		return nil, &InvalidCRXError{Path: archivePath, Reason: err.Error()}
	}
	payload := data[hdr.PayloadOffset:]

	// Insecure entry names are reported with a usable reader; unpack
	// rejects them itself.
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if zr == nil {
		return nil, &InvalidCRXError{Path: archivePath, Reason: err.Error()}
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	tmp, err := os.MkdirTemp(s.root, ".install-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	if err := s.unpack(ctx, zr, tmp); err != nil {
		return nil, err
	}

	m, err := manifest.Load(tmp)
	if err != nil {
		return nil, err
	}

	id, err := installID(explicitID, m, hdr.ID)
	if err != nil {
		return nil, err
	}
	if !safeSegment(string(id)) {
		return nil, fmt.Errorf("install: unsafe identifier %q", id)
	}

	dest := filepath.Join(s.root, string(id), m.Version)
	if _, err := os.Stat(dest); err == nil {
		s.logger.Info("version already installed", "id", id, "version", m.Version, "dir", dest)
		existing, err := manifest.Load(dest)
		if err != nil {
			return nil, err
		}
		return &locator.Candidate{ID: id, Version: existing.Version, Dir: dest, Manifest: existing}, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create package directory: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return nil, fmt.Errorf("move package into store: %w", err)
	}

	s.logger.Info("installed package", "id", id, "name", m.Name, "version", m.Version, "format", hdr.Format)
	return &locator.Candidate{ID: id, Version: m.Version, Dir: dest, Manifest: m}, nil
}

func installID(explicitID string, m *manifest.Manifest, headerID appid.ID) (appid.ID, error) {
	if explicitID != "" || m.HasKey() {
		return appid.Resolve(explicitID, m)
	}
	if headerID != "" {
		return headerID, nil
	}
	return "", &appid.MissingKeyError{Manifest: m.Name}
}

func (s *Store) unpack(ctx context.Context, zr *zip.Reader, dest string) error {
	var total int64
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := entryPath(dest, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		case mode&fs.ModeSymlink != 0:
			s.logger.Debug("skipping symlink entry", "name", f.Name)
			continue
		case !mode.IsRegular():
			continue
		}

		n, err := s.extractFile(f, target, s.maxUnpackSize-total)
		if err != nil {
			return err
		}
		total += n
	}
	return nil
}

func (s *Store) extractFile(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	n, copyErr := io.Copy(out, io.LimitReader(rc, budget+1))
	closeErr := out.Close()
	if copyErr != nil {
		return n, fmt.Errorf("extract %s: %w", f.Name, copyErr)
	}
	if closeErr != nil {
		return n, closeErr
	}
	if n > budget {
		return n, ErrArchiveTooLarge
	}
	return n, nil
}

// entryPath maps a zip entry name below dest, rejecting absolute names,
// names that climb out of dest and names the host cannot create.
func entryPath(dest, name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", &UnsafeEntryError{Name: name}
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &UnsafeEntryError{Name: name}
	}
	for seg := range strings.SplitSeq(clean, "/") {
		if platform.UnwritableSegment(runtime.GOOS, seg) {
			return "", &UnsafeEntryError{Name: name}
		}
	}

	target := filepath.Join(dest, filepath.FromSlash(clean))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &UnsafeEntryError{Name: name}
	}
	return target, nil
}
