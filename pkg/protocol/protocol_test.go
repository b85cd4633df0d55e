// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"github.com/crxhost/crxhost/internal/testutil"
	"github.com/crxhost/crxhost/pkg/appid"
	"github.com/crxhost/crxhost/pkg/locator"
	"github.com/crxhost/crxhost/pkg/manifest"
)

const testID appid.ID = "abcdefghijklmnopabcdefghijklmnop"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestApp writes a package with the given files and returns it resolved.
func newTestApp(t *testing.T, files map[string]string, opts ...testutil.ManifestOption) *locator.ResolvedApp {
	t.Helper()
	dir := testutil.WritePackage(t, filepath.Join(t.TempDir(), "app"),
		testutil.ManifestJSON(t, "test app", "1.0", opts...), files)
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("manifest.Load() error: %v", err)
	}
	return &locator.ResolvedApp{ID: testID, Manifest: m, Dir: dir, Source: locator.SourceExplicit}
}

func activeServer(t *testing.T, app *locator.ResolvedApp, opts ...ServerOption) *Server {
	t.Helper()
	s := NewServer(NewRegistry(), opts...)
	if err := s.Activate(context.Background(), app); err != nil {
		t.Fatalf("Activate() error: %v", err)
	}
	t.Cleanup(s.Deactivate)
	return s
}

func addr(rel string) string {
	return FormatAddress(DefaultScheme, string(testID), rel)
}

func TestHandle_ServesFile(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, map[string]string{"js/main.js": "console.log(1)"})
	s := activeServer(t, app)

	resp, err := s.Handle(context.Background(), addr("js/main.js?v=3#top"))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if string(resp.Data) != "console.log(1)" {
		t.Errorf("Data = %q", resp.Data)
	}
	if !strings.Contains(resp.MIMEType, "javascript") {
		t.Errorf("MIMEType = %q, want javascript", resp.MIMEType)
	}
	if resp.Generated {
		t.Error("file response should not be marked generated")
	}
}

func TestHandle_BackgroundPage(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, testutil.WithBackgroundScripts("a.js", "b.js"))
	s := activeServer(t, app)

	for range 2 {
		resp, err := s.Handle(context.Background(), addr(BackgroundPagePath))
		if err != nil {
			t.Fatalf("Handle() error: %v", err)
		}
		page := string(resp.Data)
		if n := strings.Count(page, "<script"); n != 2 {
			t.Errorf("page has %d script tags, want 2:\n%s", n, page)
		}
		a := strings.Index(page, `<script src="a.js" type="text/javascript"></script>`)
		b := strings.Index(page, `<script src="b.js" type="text/javascript"></script>`)
		if a < 0 || b < 0 || a > b {
			t.Errorf("scripts missing or out of order:\n%s", page)
		}
		if body := strings.Index(page, "<body>"); body < 0 || a < body || b > strings.Index(page, "</body>") {
			t.Errorf("scripts should load inside <body>:\n%s", page)
		}
		if !resp.Generated || !strings.HasPrefix(resp.MIMEType, "text/html") {
			t.Errorf("unexpected response metadata: %+v", resp)
		}
	}

	if st := s.Stats(); st.Entries != 0 || st.Reads != 0 {
		t.Errorf("background page should bypass cache and disk, stats = %+v", st)
	}
}

func TestHandle_BackgroundPageEscapes(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, testutil.WithBackgroundScripts(`x"><img src=y>.js`))
	s := activeServer(t, app)

	resp, err := s.Handle(context.Background(), addr(BackgroundPagePath))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if strings.Contains(string(resp.Data), "<img") {
		t.Errorf("script path was not escaped:\n%s", resp.Data)
	}
}

func TestHandle_PathTraversal(t *testing.T) {
	t.Parallel()

	outside := filepath.Join(t.TempDir(), "secret.txt")
	testutil.MustWriteFile(t, outside, "secret")

	app := newTestApp(t, map[string]string{"ok.txt": "ok"})
	if err := os.Symlink(outside, filepath.Join(app.Dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	s := activeServer(t, app)

	tests := []string{
		"../../etc/passwd",
		"../secret.txt",
		"%2e%2e/%2e%2e/etc/passwd",
		"js/../../../secret.txt",
		"link.txt",
	}

	for _, rel := range tests {
		resp, err := s.Handle(context.Background(), DefaultScheme+"://"+string(testID)+"/"+rel)
		if !errors.Is(err, ErrResourceUnavailable) {
			t.Errorf("Handle(%q) error = %v, want ErrResourceUnavailable", rel, err)
		}
		if resp != nil {
			t.Errorf("Handle(%q) returned content %q", rel, resp.Data)
		}
	}
}

func TestHandle_ConcurrentMissesReadOnce(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, map[string]string{"big.bin": "payload"})

	var reads atomic.Int32
	release := make(chan struct{})
	s := activeServer(t, app, WithReadFile(func(path string) ([]byte, error) {
		reads.Add(1)
		<-release
		return os.ReadFile(path)
	}))

	const n = 16
	results := make([][]byte, n)
	errs := make([]error, n)
	var started, wg sync.WaitGroup
	started.Add(n)
	for i := range n {
		wg.Go(func() {
			started.Done()
			resp, err := s.Handle(context.Background(), addr("big.bin"))
			errs[i] = err
			if resp != nil {
				results[i] = resp.Data
			}
		})
	}
	started.Wait()
	close(release)
	wg.Wait()

	if got := reads.Load(); got != 1 {
		t.Errorf("file read %d times, want 1", got)
	}
	for i := range n {
		if errs[i] != nil {
			t.Fatalf("request %d error: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], []byte("payload")) {
			t.Errorf("request %d got %q", i, results[i])
		}
	}
	if st := s.Stats(); st.Misses != 1 || st.Reads != 1 {
		t.Errorf("Stats() = %+v, want one miss and one read", st)
	}
}

func TestHandle_CachesForActivation(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, map[string]string{"data.txt": "v1"})
	s := activeServer(t, app)
	ctx := context.Background()

	if _, err := s.Handle(ctx, addr("late.txt")); !errors.Is(err, ErrResourceUnavailable) {
		t.Fatalf("Handle(missing) error = %v", err)
	}
	first, err := s.Handle(ctx, addr("data.txt"))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	testutil.MustWriteFile(t, filepath.Join(app.Dir, "late.txt"), "now here")
	testutil.MustWriteFile(t, filepath.Join(app.Dir, "data.txt"), "v2")

	if _, err := s.Handle(ctx, addr("late.txt")); !errors.Is(err, ErrResourceUnavailable) {
		t.Errorf("cached failure should be returned again, got %v", err)
	}
	second, err := s.Handle(ctx, addr("data.txt"))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if string(second.Data) != string(first.Data) || string(second.Data) != "v1" {
		t.Errorf("cached payload changed: %q then %q", first.Data, second.Data)
	}

	st := s.Stats()
	// The missing file fails before any read.
	if st.Misses != 2 || st.Reads != 1 || st.Hits != 2 || st.Entries != 2 {
		t.Errorf("Stats() = %+v, want 2 misses, 1 read, 2 hits, 2 entries", st)
	}
}

func TestHandle_DirectoryIsUnavailable(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, map[string]string{"sub/file.txt": "x"})
	s := activeServer(t, app)

	for _, rel := range []string{"sub", ""} {
		if _, err := s.Handle(context.Background(), addr(rel)); !errors.Is(err, ErrResourceUnavailable) {
			t.Errorf("Handle(%q) error = %v, want ErrResourceUnavailable", rel, err)
		}
	}
}

func TestHandle_NamespaceMismatch(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, map[string]string{"a.txt": "a"})
	s := activeServer(t, app)

	tests := []string{
		FormatAddress(DefaultScheme, "ppppppppppppppppppppppppppppppp", "a.txt"),
		FormatAddress("https", string(testID), "a.txt"),
		"not an address",
	}
	for _, address := range tests {
		_, err := s.Handle(context.Background(), address)
		if !errors.Is(err, ErrNamespaceMismatch) {
			t.Errorf("Handle(%q) error = %v, want ErrNamespaceMismatch", address, err)
		}
	}

	if st := s.Stats(); st.Entries != 0 || st.Misses != 0 {
		t.Errorf("foreign requests must not touch the cache, stats = %+v", st)
	}
}

func TestServer_Lifecycle(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, map[string]string{"a.txt": "a"})
	reg := NewRegistry()
	s := NewServer(reg)
	ctx := context.Background()

	if _, err := s.Handle(ctx, addr("a.txt")); !errors.Is(err, ErrInactive) {
		t.Errorf("Handle() before Activate error = %v, want ErrInactive", err)
	}
	s.Deactivate() // no-op while inactive

	if err := s.Activate(ctx, app); err != nil {
		t.Fatalf("Activate() error: %v", err)
	}
	if err := s.Activate(ctx, app); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Activate() error = %v, want ErrAlreadyActive", err)
	}

	other := NewServer(reg)
	if err := other.Activate(ctx, app); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("Activate() on held scheme error = %v, want ErrAlreadyActive", err)
	}
	if other.State().String() != "inactive" {
		t.Errorf("failed activation should leave server inactive, got %s", other.State())
	}

	if _, err := reg.Dispatch(ctx, addr("a.txt")); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if s.Stats().Entries != 1 {
		t.Fatalf("expected one cache entry, got %+v", s.Stats())
	}

	s.Deactivate()
	s.Deactivate()
	if reg.Registered(DefaultScheme) {
		t.Error("Deactivate should unregister the scheme")
	}
	if s.App() != nil {
		t.Error("App() should be nil after Deactivate")
	}
	if _, err := reg.Dispatch(ctx, addr("a.txt")); !errors.Is(err, ErrInactive) {
		t.Errorf("Dispatch() after Deactivate error = %v, want ErrInactive", err)
	}

	if err := s.Activate(ctx, app); err != nil {
		t.Fatalf("reactivate error: %v", err)
	}
	defer s.Deactivate()
	if st := s.Stats(); st.Entries != 0 {
		t.Errorf("cache should be empty after reactivation, stats = %+v", st)
	}
}

func TestServer_ActivateMissingDir(t *testing.T) {
	t.Parallel()

	app := &locator.ResolvedApp{ID: testID, Manifest: &manifest.Manifest{Name: "x", Version: "1"}, Dir: filepath.Join(t.TempDir(), "gone")}
	reg := NewRegistry()
	s := NewServer(reg)
	if err := s.Activate(context.Background(), app); err == nil {
		t.Fatal("Activate() should fail for a missing directory")
	}
	if reg.Registered(DefaultScheme) {
		t.Error("failed activation must not register the scheme")
	}
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    Address
		wantErr bool
	}{
		{raw: "chrome-extension://abc/js/a.js?x=1", want: Address{Scheme: "chrome-extension", Namespace: "abc", Path: "js/a.js"}},
		{raw: "chrome-extension://abc/a%20b.txt#frag", want: Address{Scheme: "chrome-extension", Namespace: "abc", Path: "a b.txt"}},
		{raw: "chrome-extension://abc", want: Address{Scheme: "chrome-extension", Namespace: "abc"}},
		{raw: "chrome-extension://abc//double", want: Address{Scheme: "chrome-extension", Namespace: "abc", Path: "double"}},
		{raw: "no-scheme", wantErr: true},
		{raw: "chrome-extension:///path", wantErr: true},
		{raw: "chrome-extension://abc/%zz", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseAddress(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAddress(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		tt.want.Raw = tt.raw
		if got != tt.want {
			t.Errorf("ParseAddress(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestDetectMIMEType(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if got := detectMIMEType("icon.noext", png); got != "image/png" {
		t.Errorf("sniffed type = %q, want image/png", got)
	}
	if got := detectMIMEType("page.html", nil); !strings.HasPrefix(got, "text/html") {
		t.Errorf("extension type = %q, want text/html", got)
	}
}
