package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestRecordersExposeSeries(t *testing.T) {
	RecordSyncCycle("poll", true)
	RecordFetch(20 * time.Millisecond)
	SetSyncState(2)
	SetListingEntries("image", 4)
	RecordPushEvent("refresh")
	SetRelaySubscribers(1)
	RecordRelayEvent("refresh")
	RecordPublish("file", time.Millisecond, false)

	out := scrape(t)
	for _, want := range []string{
		`crypshare_sync_cycles_total{result="success",trigger="poll"}`,
		`crypshare_sync_state 2`,
		`crypshare_listing_entries{kind="image"} 4`,
		`crypshare_push_events_total{event="refresh"}`,
		`crypshare_relay_sse_subscribers 1`,
		`crypshare_publish_total{sink="file",status="error"}`,
		`crypshare_fetch_duration_seconds_count`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in scrape output", want)
		}
	}
}

func TestMiddlewareLabelsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /uploads/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Middleware(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/a.png", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}

	out := scrape(t)
	if !strings.Contains(out, `crypshare_http_requests_total{method="GET",path="GET /uploads/{name}",status="418"}`) {
		t.Error("expected the request counted under its route pattern")
	}
	if strings.Contains(out, `path="/uploads/a.png"`) {
		t.Error("raw path must not be used as a label")
	}
}
