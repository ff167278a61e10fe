package mediaserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"ydhouse/internal/services"
)

func newTestServer(t *testing.T, size int) (*Server, []byte) {
	t.Helper()
	vault := t.TempDir()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(filepath.Join(vault, "a.mp4"), data, 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	srv := New(vault, Options{
		AllowedOrigins:    []string{"tauri://localhost", "http://localhost:3000"},
		FallbackPortStart: 8080,
		FallbackPortEnd:   8089,
	}, nil)
	return srv, data
}

func get(t *testing.T, srv *Server, target, rangeHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRangeFetch(t *testing.T) {
	srv, data := newTestServer(t, 1048576)
	rec := get(t, srv, "/video/a.mp4", "bytes=0-1023")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 1024 || !bytes.Equal(rec.Body.Bytes(), data[:1024]) {
		t.Fatalf("body length = %d", rec.Body.Len())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-1023/1048576" {
		t.Fatalf("Content-Range = %q", got)
	}
	if rec.Header().Get("Content-Type") != "video/mp4" || rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Fatalf("headers = %v", rec.Header())
	}
}

func TestOpenEndedRange(t *testing.T) {
	srv, data := newTestServer(t, 1048576)
	rec := get(t, srv, "/video/a.mp4", "bytes=1048500-")
	if rec.Code != http.StatusPartialContent || rec.Body.Len() != 76 {
		t.Fatalf("status = %d len = %d", rec.Code, rec.Body.Len())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 1048500-1048575/1048576" {
		t.Fatalf("Content-Range = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), data[1048500:]) {
		t.Fatal("body mismatch")
	}
}

func TestFullResponses(t *testing.T) {
	srv, data := newTestServer(t, 4096)
	for _, header := range []string{"", "bytes=0-", "bytes=0-99999", "items=1-2"} {
		rec := get(t, srv, "/video/a.mp4", header)
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: status = %d", header, rec.Code)
		}
		if rec.Header().Get("Content-Length") != "4096" || !bytes.Equal(rec.Body.Bytes(), data) {
			t.Fatalf("%q: full body not served", header)
		}
	}
}

func TestUnsatisfiableRange(t *testing.T) {
	srv, _ := newTestServer(t, 100)
	for _, header := range []string{"bytes=100-", "bytes=50-10"} {
		rec := get(t, srv, "/video/a.mp4", header)
		if rec.Code != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("%q: status = %d", header, rec.Code)
		}
		if got := rec.Header().Get("Content-Range"); got != "bytes */100" {
			t.Fatalf("%q: Content-Range = %q", header, got)
		}
	}
}

func TestRangeBodiesMatchFile(t *testing.T) {
	const size = 5000
	srv, data := newTestServer(t, size)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		a := rng.IntN(size)
		b := a + rng.IntN(size-a)
		if a == 0 && b == size-1 {
			continue
		}
		rec := get(t, srv, "/video/a.mp4", fmt.Sprintf("bytes=%d-%d", a, b))
		if rec.Code != http.StatusPartialContent {
			t.Fatalf("[%d,%d]: status = %d", a, b, rec.Code)
		}
		if want := fmt.Sprintf("bytes %d-%d/%d", a, b, size); rec.Header().Get("Content-Range") != want {
			t.Fatalf("[%d,%d]: Content-Range = %q", a, b, rec.Header().Get("Content-Range"))
		}
		if rec.Header().Get("Content-Length") != strconv.Itoa(b-a+1) {
			t.Fatalf("[%d,%d]: Content-Length = %q", a, b, rec.Header().Get("Content-Length"))
		}
		if !bytes.Equal(rec.Body.Bytes(), data[a:b+1]) {
			t.Fatalf("[%d,%d]: body mismatch", a, b)
		}
	}
}

func TestPathEscapeReturnsNotFound(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	outside := filepath.Join(filepath.Dir(srv.vaultDir), "secret.mp4")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	targets := []string{
		"/video/../etc/passwd",
		"/video/%2e%2e/secret.mp4",
		"/video/..%2Fsecret.mp4",
		"/video/sub/%2E%2E/%2E%2E/secret.mp4",
		"/video/missing.mp4",
		"/video/",
		"/other/a.mp4",
	}
	for _, target := range targets {
		rec := get(t, srv, target, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
		if bytes.Contains(rec.Body.Bytes(), []byte("secret")) {
			t.Fatalf("%s: leaked file contents", target)
		}
	}
}

func TestResolveClassifiesEscape(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	if _, err := srv.resolve("%2e%2e/x"); !errors.Is(err, services.ErrPathEscape) {
		t.Fatalf("expected path escape, got %v", err)
	}
	if _, err := srv.resolve("nope.mp4"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEncodedNamesAndSubdirectories(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	dir := filepath.Join(srv.vaultDir, "10_videos", "리베라루츠대학", "2024", "첫 영상")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "video.mp4"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := BuildURL(1, "vault/10_videos/리베라루츠대학/2024/첫 영상/video.mp4")
	path := target[len("http://127.0.0.1:1"):]
	rec := get(t, srv, path, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Fatalf("%s: status = %d body = %q", path, rec.Code, rec.Body.String())
	}
}

func TestHeadAndOptions(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	req := httptest.NewRequest(http.MethodHead, "/video/a.mp4", nil)
	req.Header.Set("Range", "bytes=10-19")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusPartialContent || rec.Body.Len() != 0 || rec.Header().Get("Content-Length") != "10" {
		t.Fatalf("HEAD status = %d len = %d headers = %v", rec.Code, rec.Body.Len(), rec.Header())
	}

	req = httptest.NewRequest(http.MethodOptions, "/video/a.mp4", nil)
	req.Header.Set("Origin", "tauri://localhost")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "tauri://localhost" {
		t.Fatalf("CORS origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Access-Control-Allow-Headers") != "content-type, range" {
		t.Fatalf("CORS headers = %q", rec.Header().Get("Access-Control-Allow-Headers"))
	}

	req = httptest.NewRequest(http.MethodGet, "/video/a.mp4", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin must not be allowed")
	}

	req = httptest.NewRequest(http.MethodPost, "/video/a.mp4", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d", rec.Code)
	}
}

func TestContentType(t *testing.T) {
	cases := []struct{ path, want string }{
		{"a.mp4", "video/mp4"},
		{"A.MP4", "video/mp4"},
		{"b.unknownext", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := contentType(tc.path); got != tc.want {
			t.Fatalf("contentType(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestStartIsIdempotentAndStops(t *testing.T) {
	srv, data := newTestServer(t, 2048)
	ctx := context.Background()
	port, err := srv.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	again, err := srv.Start(ctx)
	if err != nil || again != port {
		t.Fatalf("second Start = %d, %v; want %d", again, err, port)
	}
	if got, ok := srv.Status(); !ok || got != port {
		t.Fatalf("Status = %d, %v", got, ok)
	}

	mediaURL, err := srv.URL("vault/a.mp4")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, mediaURL, nil)
	req.Header.Set("Range", "bytes=1000-")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", mediaURL, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent || !bytes.Equal(body, data[1000:]) {
		t.Fatalf("live status = %d len = %d", resp.StatusCode, len(body))
	}

	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, ok := srv.Status(); ok {
		t.Fatal("server still reported running")
	}
	if _, err := srv.URL("vault/a.mp4"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("URL after stop: %v", err)
	}
}

func TestStartFallsBackToPortRange(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	var tried []string
	srv.listen = func(network, address string) (net.Listener, error) {
		tried = append(tried, address)
		if address == "127.0.0.1:8082" {
			return net.Listen(network, "127.0.0.1:0")
		}
		return nil, errors.New("address in use")
	}
	if _, err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	want := []string{"127.0.0.1:0", "127.0.0.1:8080", "127.0.0.1:8081", "127.0.0.1:8082"}
	if fmt.Sprint(tried) != fmt.Sprint(want) {
		t.Fatalf("tried = %v", tried)
	}
}

func TestStartReportsPortUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	srv.listen = func(string, string) (net.Listener, error) {
		return nil, errors.New("address in use")
	}
	if _, err := srv.Start(context.Background()); !errors.Is(err, services.ErrPortUnavailable) {
		t.Fatalf("expected port unavailable, got %v", err)
	}
	if _, ok := srv.Status(); ok {
		t.Fatal("failed start left server running")
	}
}

func TestBuildURL(t *testing.T) {
	got := BuildURL(8080, "vault/10_videos/채널/제목 #1/video.mp4")
	want := "http://127.0.0.1:8080/video/10_videos/%EC%B1%84%EB%84%90/%EC%A0%9C%EB%AA%A9%20%231/video.mp4"
	if got != want {
		t.Fatalf("BuildURL = %q, want %q", got, want)
	}
}
