// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crxhost/crxhost/internal/config"
	"github.com/crxhost/crxhost/internal/issue"
	"github.com/crxhost/crxhost/internal/testutil"
	"github.com/crxhost/crxhost/pkg/types"
)

const testKey = "Y3J4aG9zdC1jbGktdGVzdC1wdWJsaWMta2V5LW1hdGVyaWFs"

// syncBuffer is a bytes.Buffer safe for one writer and one poller.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var pageURL = regexp.MustCompile(`http://[^\s\x1b]+`)

// testConfig isolates a run from the machine: no embedded bundle, a private
// store and no host descriptor.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.StoreDir = filepath.Join(root, "store")
	cfg.EmbeddedDir = filepath.Join(root, "no-bundle")
	cfg.HostFile = filepath.Join(root, "host.toml")
	cfg.Watch.Debounce = "20ms"
	return cfg
}

func writeApp(t *testing.T) string {
	t.Helper()
	return testutil.WritePackage(t, filepath.Join(t.TempDir(), "app"),
		testutil.ManifestJSON(t, "Run App", "1.0", testutil.WithKey(testKey), testutil.WithBackgroundScripts("main.js")),
		map[string]string{"main.js": "console.log('run')"})
}

// waitForPage polls out until the background page is announced.
func waitForPage(t *testing.T, out *syncBuffer, done <-chan error) string {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		if m := pageURL.FindString(out.String()); m != "" {
			return m
		}
		select {
		case err := <-done:
			t.Fatalf("runHost() returned early: %v", err)
		case <-deadline:
			t.Fatalf("background page never announced; output: %q", out.String())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunHost_ServesUntilCanceled(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	app := NewApp(Dependencies{Stdout: out, Stderr: io.Discard})
	cfg := testConfig(t)
	flags := &runFlagValues{selectFlags: selectFlags{appDir: writeApp(t)}, listen: "127.0.0.1:0"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.runHost(ctx, cfg, &rootFlagValues{}, flags) }()

	page := waitForPage(t, out, done)
	if !strings.Contains(page, "/app/icgacnibandpffbnfcdpjoicdaojiblk/_generated_background_page.html") {
		t.Errorf("page URL = %q", page)
	}

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(page)
	if err != nil {
		t.Fatalf("GET background page: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	testutil.MustClose(t, resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `src="main.js"`) {
		t.Errorf("background page = %d %q", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runHost() error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runHost() did not stop after cancel")
	}
}

func TestRunHost_WatchRelaunches(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		relaunch []string
	)
	out := &syncBuffer{}
	app := NewApp(Dependencies{
		Stdout: out,
		Stderr: io.Discard,
		Relaunch: func(_ context.Context, args []string) error {
			mu.Lock()
			defer mu.Unlock()
			relaunch = args
			return nil
		},
	})
	app.args = []string{"run", "--watch", "--app-dir", "x"}

	dir := writeApp(t)
	cfg := testConfig(t)
	flags := &runFlagValues{selectFlags: selectFlags{appDir: dir}, listen: "127.0.0.1:0", watch: true}

	done := make(chan error, 1)
	go func() { done <- app.runHost(context.Background(), cfg, &rootFlagValues{}, flags) }()
	waitForPage(t, out, done)

	// The watcher starts after the announcement; keep touching the app
	// until the change is seen.
	deadline := time.After(10 * time.Second)
	for i := 0; ; i++ {
		testutil.MustWriteFile(t, filepath.Join(dir, "main.js"), strings.Repeat("x", i+1))
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("runHost() error: %v", err)
			}
			mu.Lock()
			defer mu.Unlock()
			if strings.Join(relaunch, " ") != "run --watch --app-dir x" {
				t.Errorf("relaunched with %q", relaunch)
			}
			return
		case <-deadline:
			t.Fatal("change did not trigger a relaunch")
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func TestRunHost_Failures(t *testing.T) {
	t.Parallel()

	t.Run("no package", func(t *testing.T) {
		t.Parallel()

		app := NewApp(Dependencies{Stdout: io.Discard, Stderr: io.Discard})
		err := app.runHost(context.Background(), testConfig(t), &rootFlagValues{}, &runFlagValues{})
		if got := exitCodeFor(err); got != types.ExitNoPackage {
			t.Errorf("exit code = %s, want %s (err %v)", got, types.ExitNoPackage, err)
		}
	})

	t.Run("address in use", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = ln.Close() })

		app := NewApp(Dependencies{Stdout: io.Discard, Stderr: io.Discard})
		flags := &runFlagValues{selectFlags: selectFlags{appDir: writeApp(t)}, listen: ln.Addr().String()}
		err = app.runHost(context.Background(), testConfig(t), &rootFlagValues{}, flags)
		if issueFor(err) != issue.ListenFailedId {
			t.Errorf("issueFor(%v) = %v, want ListenFailedId", err, issueFor(err))
		}
	})

	t.Run("broken host descriptor", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		testutil.MustWriteFile(t, cfg.HostFile, "unknown_key = 1\n")
		app := NewApp(Dependencies{Stdout: io.Discard, Stderr: io.Discard})
		err := app.runHost(context.Background(), cfg, &rootFlagValues{}, &runFlagValues{selectFlags: selectFlags{appDir: writeApp(t)}})
		if issueFor(err) != issue.ConfigLoadFailedId {
			t.Errorf("issueFor(%v) = %v, want ConfigLoadFailedId", err, issueFor(err))
		}
		var ae *issue.ActionableError
		if !errors.As(err, &ae) || ae.Resource != cfg.HostFile {
			t.Errorf("error should name %s, got %v", cfg.HostFile, err)
		}
	})
}
