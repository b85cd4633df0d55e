// SPDX-License-Identifier: MPL-2.0

// Package hostinfo reads host.toml, the descriptor shipped next to the
// embedded bundle. It names the default app, the runtime id and the
// auto-update feed of the host build.
package hostinfo

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the descriptor file name.
const FileName = "host.toml"

// ErrInvalidHostInfo is the sentinel error wrapped by InvalidHostInfoError.
var ErrInvalidHostInfo = errors.New("invalid host descriptor")

type (
	// Info is the typed view of host.toml. All fields are optional.
	Info struct {
		AppID       string      `toml:"app_id"`
		RuntimeID   string      `toml:"runtime_id"`
		AutoUpdater AutoUpdater `toml:"auto_updater"`
	}

	// AutoUpdater configures where update feeds are fetched from.
	AutoUpdater struct {
		NutsFeedBaseURL string `toml:"nuts_feed_base_url"`
	}

	// InvalidHostInfoError is returned when host.toml cannot be decoded or
	// holds an unusable value.
	InvalidHostInfoError struct {
		Path string
		// Line is 0 when the failure has no source position.
		Line int
		Err  error
	}
)

// Error implements the error interface.
func (e *InvalidHostInfoError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap exposes ErrInvalidHostInfo and the cause.
func (e *InvalidHostInfoError) Unwrap() []error { return []error{ErrInvalidHostInfo, e.Err} }

// Load reads path. A missing file yields an empty Info and no error.
func Load(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Info{}, nil
		}
		return nil, fmt.Errorf("read host descriptor: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes host.toml bytes. Unknown keys are rejected.
func Parse(data []byte, path string) (*Info, error) {
	var info Info
	dec := toml.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&info); err != nil {
		ie := &InvalidHostInfoError{Path: path, Err: err}
		var derr *toml.DecodeError
		var serr *toml.StrictMissingError
		switch {
		case errors.As(err, &derr):
			ie.Line, _ = derr.Position()
		case errors.As(err, &serr) && len(serr.Errors) > 0:
			ie.Line, _ = serr.Errors[0].Position()
		}
		return nil, ie
	}

	if base := info.AutoUpdater.NutsFeedBaseURL; base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, &InvalidHostInfoError{Path: path, Err: fmt.Errorf("nuts_feed_base_url %q is not an http(s) URL", base)}
		}
	}
	return &info, nil
}

// FeedURL returns the update feed for a host build, or "" when no feed
// base URL is configured:
//
//	<base>/update/<platform>_<arch>/<version>
//
// The feed server keys releases by Node platform and arch names, so goos and
// goarch are translated (windows -> win32, amd64 -> x64, 386 -> ia32).
func (i *Info) FeedURL(goos, goarch, hostVersion string) string {
	base := i.AutoUpdater.NutsFeedBaseURL
	if base == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "update/" + FeedPlatform(goos) + "_" + FeedArch(goarch) + "/" + hostVersion
}

var (
	feedPlatforms = map[string]string{
		"windows": "win32",
		"solaris": "sunos",
	}
	feedArchs = map[string]string{
		"amd64":   "x64",
		"386":     "ia32",
		"ppc64le": "ppc64",
	}
)

// FeedPlatform maps a GOOS value onto the feed's platform name.
func FeedPlatform(goos string) string {
	if p, ok := feedPlatforms[goos]; ok {
		return p
	}
	return goos
}

// FeedArch maps a GOARCH value onto the feed's arch name.
func FeedArch(goarch string) string {
	if a, ok := feedArchs[goarch]; ok {
		return a
	}
	return goarch
}
