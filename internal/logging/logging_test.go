package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	UseLogger(zap.New(core))
	t.Cleanup(func() { UseLogger(zap.NewNop()) })
	return logs
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	logs := observe(t)

	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		FromContext(r.Context()).Info("handling")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list_html", nil))

	if seen == "" {
		t.Fatal("expected request id in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("expected header %q, got %q", seen, got)
	}

	handling := logs.FilterMessage("handling").All()
	if len(handling) != 1 || handling[0].ContextMap()["request_id"] != seen {
		t.Errorf("expected handler log tagged with %q, got %+v", seen, handling)
	}

	completed := logs.FilterMessage("request completed").All()
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion log, got %d", len(completed))
	}
	if status := completed[0].ContextMap()["status"]; status != int64(http.StatusTeapot) {
		t.Errorf("expected status 418 in log, got %v", status)
	}
	if completed[0].Level != zapcore.InfoLevel {
		t.Errorf("expected info level, got %s", completed[0].Level)
	}
}

func TestMiddlewareWarnsOnServerError(t *testing.T) {
	logs := observe(t)

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/uploads/a.png", nil))

	completed := logs.FilterMessage("request completed").All()
	if len(completed) != 1 || completed[0].Level != zapcore.WarnLevel {
		t.Errorf("expected one warn-level completion log, got %+v", completed)
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	observe(t)

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}

func TestMiddlewarePreservesFlusher(t *testing.T) {
	observe(t)

	var ok bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = w.(http.Flusher)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events", nil))
	if !ok {
		t.Error("expected wrapped writer to implement http.Flusher")
	}
}

func TestOutsideRequest(t *testing.T) {
	logs := observe(t)

	if id := RequestID(context.Background()); id != "" {
		t.Errorf("expected no request id, got %q", id)
	}
	FromContext(context.Background()).Info("background")
	if logs.FilterMessage("background").Len() != 1 {
		t.Error("expected bare context to log through the global logger")
	}
}

func TestInitWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crypshare.log")
	if err := Init(Config{Level: "warn", Format: "json", OutputPath: path}); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { UseLogger(zap.NewNop()) })

	Info("dropped")
	Named("sync").Warn("kept", zap.String("trigger", "poll"))
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Error("info entry should be filtered at warn level")
	}
	for _, want := range []string{`"msg":"kept"`, `"logger":"sync"`, `"trigger":"poll"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}
