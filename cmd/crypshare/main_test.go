package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CRYPSHARE_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "classify", "/download_file/My%20Clip.MP4", "My Clip.MP4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"kind:    video", "#ico-video", "preview: /uploads/My%20Clip.MP4"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	out, err = execute(t, "classify", "/download_folder/docs/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "kind:    folder") || strings.Contains(out, "preview:") {
		t.Errorf("unexpected folder output:\n%s", out)
	}
}

func TestResetCommand(t *testing.T) {
	var method string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		fmt.Fprint(w, "OK")
	}))
	defer ts.Close()

	out, err := execute(t, "--base-url", ts.URL, "reset")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPut || strings.TrimSpace(out) != "OK" {
		t.Errorf("unexpected reset: method %s, output %q", method, out)
	}
}

func TestRenderCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list_html":
			fmt.Fprint(w, `<ul><li><a href="/download_file/new.png">new.png</a></li></ul>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	dir := t.TempDir()
	template := filepath.Join(dir, "files.html")
	page := `<html><body><ul id="fileList"><li><a href="/download_file/old.zip">old.zip</a></li></ul></body></html>`
	if err := os.WriteFile(template, []byte(page), 0644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "out.html")

	if _, err := execute(t, "--base-url", ts.URL, "render", "--template", template, "-o", output); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "new.png") || strings.Contains(string(data), "old.zip") {
		t.Errorf("expected the fetched listing in the page:\n%s", data)
	}

	out, err := execute(t, "--base-url", ts.URL, "render", "--template", template, "--cold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "old.zip") || !strings.Contains(out, "file-card") {
		t.Errorf("expected the embedded listing rendered to stdout:\n%s", out)
	}
}

func TestRenderCommandWithoutTargets(t *testing.T) {
	template := filepath.Join(t.TempDir(), "files.html")
	if err := os.WriteFile(template, []byte("<html><body></body></html>"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "render", "--template", template, "--cold"); err == nil {
		t.Fatal("expected an error for a page without targets")
	}
}

func TestQRCommand(t *testing.T) {
	out, err := execute(t, "qr", "http://192.168.1.20:8888")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "Link: http://192.168.1.20:8888\n") {
		t.Errorf("unexpected header %q", strings.SplitN(out, "\n", 2)[0])
	}
	if !strings.ContainsRune(out, '█') {
		t.Error("expected a rendered code")
	}

	png := filepath.Join(t.TempDir(), "share.png")
	if _, err := execute(t, "--base-url", "http://localhost:9000", "qr", "--host", "10.0.0.2", "--png", png); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(png); err != nil || info.Size() == 0 {
		t.Errorf("expected a PNG file, got %v", err)
	}
}

func TestBasePort(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"http://localhost:8888", 8888},
		{"http://example.test", 80},
		{"https://example.test", 443},
	}
	for _, tt := range tests {
		if got := basePort(tt.url); got != tt.want {
			t.Errorf("basePort(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestRelayShareURL(t *testing.T) {
	if got := relayShareURL("192.168.1.5:8890"); got != "http://192.168.1.5:8890" {
		t.Errorf("unexpected URL %q", got)
	}
	if got := relayShareURL(":8890"); !strings.HasSuffix(got, ":8890") || strings.HasPrefix(got, "http://:") {
		t.Errorf("expected a concrete host, got %q", got)
	}
	if got := relayShareURL("bad"); got != "" {
		t.Errorf("expected empty URL for a bad address, got %q", got)
	}
}
