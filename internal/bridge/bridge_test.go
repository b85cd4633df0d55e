// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/goleak"

	"github.com/crxhost/crxhost/internal/core/serverbase"
	"github.com/crxhost/crxhost/internal/testutil"
	"github.com/crxhost/crxhost/pkg/appid"
	"github.com/crxhost/crxhost/pkg/locator"
	"github.com/crxhost/crxhost/pkg/manifest"
	"github.com/crxhost/crxhost/pkg/protocol"
)

const testID appid.ID = "abcdefghijklmnopabcdefghijklmnop"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

// newActive returns a bridge over an activated protocol server.
func newActive(t *testing.T, files map[string]string) (*Bridge, *protocol.Server) {
	t.Helper()

	dir := testutil.WritePackage(t, filepath.Join(t.TempDir(), "app"),
		testutil.ManifestJSON(t, "bridge app", "1.0", testutil.WithBackgroundScripts("main.js")), files)
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("manifest.Load() error: %v", err)
	}

	registry := protocol.NewRegistry()
	srv := protocol.NewServer(registry)
	app := &locator.ResolvedApp{ID: testID, Manifest: m, Dir: dir, Source: locator.SourceExplicit}
	if err := srv.Activate(context.Background(), app); err != nil {
		t.Fatalf("Activate() error: %v", err)
	}
	t.Cleanup(srv.Deactivate)

	return New(registry, WithMetrics(NewMetrics(srv.Stats))), srv
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return rec
}

func TestResource_StatusMapping(t *testing.T) {
	t.Parallel()

	b, _ := newActive(t, map[string]string{
		"main.js":           "console.log(1)",
		"css/my style.css":  "body{}",
		"img/logo.svg":      `<svg xmlns="http://www.w3.org/2000/svg"></svg>`,
		"nested/a/b/c.json": `{"ok":true}`,
	})

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
		wantType   string
	}{
		{"file", "/app/" + string(testID) + "/main.js", http.StatusOK, "console.log(1)", "javascript"},
		{"query ignored", "/app/" + string(testID) + "/main.js?v=3", http.StatusOK, "console.log(1)", "javascript"},
		{"escaped space", "/app/" + string(testID) + "/css/my%20style.css", http.StatusOK, "body{}", "text/css"},
		{"nested", "/app/" + string(testID) + "/nested/a/b/c.json", http.StatusOK, `{"ok":true}`, "json"},
		{"missing", "/app/" + string(testID) + "/nope.js", http.StatusNotFound, "", ""},
		{"wrong namespace", "/app/bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb/main.js", http.StatusForbidden, "", ""},
		{"escaped traversal", "/app/" + string(testID) + "/%2e%2e/%2e%2e/etc/passwd", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := get(t, b.Handler(), tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantType != "" && !strings.Contains(rec.Header().Get("Content-Type"), tt.wantType) {
				t.Errorf("Content-Type = %q, want it to contain %q", rec.Header().Get("Content-Type"), tt.wantType)
			}
		})
	}
}

func TestResource_BackgroundPage(t *testing.T) {
	t.Parallel()

	b, _ := newActive(t, map[string]string{"main.js": ""})

	rec := get(t, b.Handler(), "/app/"+string(testID)+"/"+protocol.BackgroundPagePath)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `<script src="main.js"`) {
		t.Errorf("background page missing script tag: %q", rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}
}

func TestResource_Inactive(t *testing.T) {
	t.Parallel()

	b, srv := newActive(t, map[string]string{"main.js": ""})
	srv.Deactivate()

	if rec := get(t, b.Handler(), "/app/"+string(testID)+"/main.js"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("resource status = %d, want 503", rec.Code)
	}
	if rec := get(t, b.Handler(), "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz status = %d, want 503", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	b, _ := newActive(t, nil)

	rec := get(t, b.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), protocol.DefaultScheme) {
		t.Errorf("body %q should name the scheme", rec.Body.String())
	}
}

func TestMetrics_ExportsCacheStats(t *testing.T) {
	t.Parallel()

	b, _ := newActive(t, map[string]string{"main.js": "x"})
	for range 3 {
		get(t, b.Handler(), "/app/"+string(testID)+"/main.js")
	}
	get(t, b.Handler(), "/app/"+string(testID)+"/missing.js")

	rec := get(t, b.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`crxhost_bridge_requests_total{outcome="ok"} 3`,
		`crxhost_bridge_requests_total{outcome="unavailable"} 1`,
		"crxhost_protocol_cache_hits_total 2",
		"crxhost_protocol_file_reads_total 1",
		"crxhost_protocol_cache_entries 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{&protocol.ResourceUnavailableError{Address: "a", Err: os.ErrNotExist}, http.StatusNotFound},
		{&protocol.NamespaceMismatchError{Address: "a", Want: "b"}, http.StatusForbidden},
		{&protocol.InactiveError{Scheme: "s"}, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	b, _ := newActive(t, map[string]string{"main.js": "served"})

	if err := b.Start(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if b.base.State() != serverbase.StateActive {
		t.Errorf("State() = %s, want active", b.base.State())
	}
	if err := b.Start(context.Background(), "127.0.0.1:0"); err == nil {
		t.Error("second Start() should fail")
	}

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + b.Addr() + "/app/" + string(testID) + "/main.js")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	testutil.MustClose(t, resp.Body)
	if string(body) != "served" {
		t.Errorf("body = %q, want served", body)
	}

	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if b.Addr() != "" {
		t.Errorf("Addr() = %q after Stop, want empty", b.Addr())
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}

func TestStart_ListenFailure(t *testing.T) {
	t.Parallel()

	b, _ := newActive(t, nil)
	if err := b.Start(context.Background(), "not-an-address"); err == nil {
		t.Fatal("Start() should fail for a bad address")
	}
	if b.base.State() != serverbase.StateInactive {
		t.Errorf("State() = %s, want inactive", b.base.State())
	}
}
