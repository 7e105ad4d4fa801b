package livesync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rillToMe/CrypShare/internal/client"
	"github.com/rillToMe/CrypShare/internal/dom"
	"github.com/rillToMe/CrypShare/internal/view"
)

const gridPage = `<html><body>
<ul id="fileList"><li><a href="/uploads/seed.png">seed.png</a></li></ul>
</body></html>`

func newSession(t *testing.T, page string) *view.Session {
	t.Helper()
	doc, err := dom.ParseDocument(page)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	return view.NewSession(doc, view.Options{}, nil)
}

func listingOf(names ...string) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, n := range names {
		b.WriteString(`<li><a href="/download_file/` + n + `">` + n + `</a></li>`)
	}
	b.WriteString("</ul>")
	return b.String()
}

// gatedFetcher blocks each call until its gate is closed.
type gatedFetcher struct {
	mu      sync.Mutex
	calls   int
	bodies  []string
	errs    []error
	gates   []chan struct{}
	started chan int
}

func newGatedFetcher(n int) *gatedFetcher {
	f := &gatedFetcher{
		bodies:  make([]string, n),
		errs:    make([]error, n),
		gates:   make([]chan struct{}, n),
		started: make(chan int, n),
	}
	for i := range f.gates {
		f.gates[i] = make(chan struct{})
	}
	return f
}

func (f *gatedFetcher) FetchListing(ctx context.Context) (string, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()
	if i >= len(f.gates) {
		return "", errors.New("unexpected fetch")
	}
	f.started <- i
	select {
	case <-f.gates[i]:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return f.bodies[i], f.errs[i]
}

type fakePush struct {
	mu     sync.Mutex
	subs   int
	events chan client.Event
	errs   chan error
}

func newFakePush() *fakePush {
	return &fakePush{events: make(chan client.Event, 10), errs: make(chan error, 2)}
}

func (p *fakePush) Subscribe(ctx context.Context) (<-chan client.Event, <-chan error) {
	p.mu.Lock()
	p.subs++
	p.mu.Unlock()
	return p.events, p.errs
}

func (p *fakePush) subscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs
}

type harness struct {
	ch      *Channel
	renders chan Render
	tickers chan time.Duration
	tick    chan time.Time
	cancel  context.CancelFunc
	done    chan error
}

func start(t *testing.T, session *view.Session, f Fetcher, push PushSource) *harness {
	t.Helper()
	h := &harness{
		renders: make(chan Render, 10),
		tickers: make(chan time.Duration, 10),
		tick:    make(chan time.Time),
		done:    make(chan error, 1),
	}
	h.ch = New(Options{
		Session:      session,
		Fetcher:      f,
		Push:         push,
		PollInterval: 50 * time.Millisecond,
		OnRender:     func(r Render) { h.renders <- r },
	})
	h.ch.newTicker = func(d time.Duration) (<-chan time.Time, func()) {
		h.tickers <- d
		return h.tick, func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.ch.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func (h *harness) nextRender(t *testing.T) Render {
	t.Helper()
	select {
	case r := <-h.renders:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for render")
		return Render{}
	}
}

func waitStarted(t *testing.T, f *gatedFetcher, want int) {
	t.Helper()
	select {
	case got := <-f.started:
		if got != want {
			t.Fatalf("expected fetch %d to start, got %d", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch %d", want)
	}
}

func TestMachineTransitions(t *testing.T) {
	idle := NewMachine(false)
	if idle.State() != Idle {
		t.Fatalf("expected idle, got %s", idle.State())
	}
	if idle.PushFailed() || idle.State() != Idle {
		t.Error("idle must be terminal")
	}

	m := NewMachine(true)
	if m.State() != Live {
		t.Fatalf("expected live, got %s", m.State())
	}
	if !m.PushFailed() {
		t.Error("first push failure should transition")
	}
	if m.PushFailed() {
		t.Error("second push failure must not transition again")
	}
	if m.State() != Polling {
		t.Errorf("expected polling, got %s", m.State())
	}
}

func TestRunIdleReturnsImmediately(t *testing.T) {
	session := newSession(t, "<html><body><p>nothing here</p></body></html>")
	push := newFakePush()
	ch := New(Options{Session: session, Fetcher: newGatedFetcher(0), Push: push})

	done := make(chan error, 1)
	go func() { done <- ch.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return for a page without targets")
	}
	if push.subscriptions() != 0 {
		t.Error("idle channel must not subscribe")
	}
	if ch.State() != Idle {
		t.Errorf("expected idle, got %s", ch.State())
	}
}

func TestRunColdStartRendersEmbedded(t *testing.T) {
	h := start(t, newSession(t, gridPage), newGatedFetcher(0), newFakePush())

	r := h.nextRender(t)
	if r.Trigger != TriggerColdStart {
		t.Fatalf("expected cold start render, got %s", r.Trigger)
	}
	if len(r.Snapshot) != 1 || r.Snapshot[0].Name != "seed.png" {
		t.Errorf("unexpected cold start snapshot %+v", r.Snapshot)
	}
	if !strings.Contains(r.Page, "file-card") {
		t.Error("expected the page to carry grid cards after cold start")
	}
	if !strings.Contains(r.Fragment, "seed.png") {
		t.Errorf("expected a fragment rebuilt from the snapshot, got %q", r.Fragment)
	}
}

func TestRunRefreshAndPingTrigger(t *testing.T) {
	f := newGatedFetcher(2)
	f.bodies[0] = listingOf("one.png")
	f.bodies[1] = listingOf("two.mp4")
	push := newFakePush()
	h := start(t, newSession(t, gridPage), f, push)
	h.nextRender(t)

	push.events <- client.Event{Name: "message", Data: "x"}
	push.events <- client.Event{Name: TriggerRefresh}
	waitStarted(t, f, 0)
	close(f.gates[0])
	if r := h.nextRender(t); r.Trigger != TriggerRefresh || r.Snapshot[0].Name != "one.png" {
		t.Errorf("unexpected render %+v", r)
	}

	push.events <- client.Event{Name: TriggerPing}
	waitStarted(t, f, 1)
	close(f.gates[1])
	if r := h.nextRender(t); r.Trigger != TriggerPing || r.Snapshot[0].Name != "two.mp4" {
		t.Errorf("unexpected render %+v", r)
	}
	if h.ch.State() != Live {
		t.Errorf("expected live, got %s", h.ch.State())
	}
}

func TestRunLastResolvedWins(t *testing.T) {
	f := newGatedFetcher(2)
	f.bodies[0] = listingOf("older.png")
	f.bodies[1] = listingOf("newer.png")
	push := newFakePush()
	h := start(t, newSession(t, gridPage), f, push)
	h.nextRender(t)

	push.events <- client.Event{Name: TriggerRefresh}
	waitStarted(t, f, 0)
	push.events <- client.Event{Name: TriggerRefresh}
	waitStarted(t, f, 1)

	close(f.gates[1])
	if r := h.nextRender(t); r.Snapshot[0].Name != "newer.png" {
		t.Fatalf("expected newer first, got %+v", r.Snapshot)
	}
	close(f.gates[0])
	last := h.nextRender(t)
	if last.Snapshot[0].Name != "older.png" {
		t.Fatalf("expected the last resolved response to win, got %+v", last.Snapshot)
	}
	if strings.Contains(last.Page, "newer.png") {
		t.Error("final page still shows the earlier-resolved listing")
	}
}

func TestRunFallsBackToPollingOnce(t *testing.T) {
	f := newGatedFetcher(3)
	f.bodies[0] = listingOf("polled.png")
	f.errs[1] = errors.New("connection refused")
	f.bodies[2] = listingOf("recovered.mp4")
	push := newFakePush()
	h := start(t, newSession(t, gridPage), f, push)
	h.nextRender(t)

	push.errs <- errors.New("stream reset")
	push.errs <- errors.New("stream reset again")

	select {
	case d := <-h.tickers:
		if d != 50*time.Millisecond {
			t.Errorf("expected poll interval 50ms, got %s", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected polling to start")
	}

	h.tick <- time.Now()
	waitStarted(t, f, 0)
	close(f.gates[0])
	if r := h.nextRender(t); r.Trigger != TriggerPoll || r.Snapshot[0].Name != "polled.png" {
		t.Errorf("unexpected poll render %+v", r)
	}

	// A failed poll is not rendered and does not stop polling.
	h.tick <- time.Now()
	waitStarted(t, f, 1)
	close(f.gates[1])
	select {
	case r := <-h.renders:
		t.Errorf("failed fetch must not render, got %+v", r)
	case <-time.After(100 * time.Millisecond):
	}

	h.tick <- time.Now()
	waitStarted(t, f, 2)
	close(f.gates[2])
	if r := h.nextRender(t); r.Trigger != TriggerPoll || r.Snapshot[0].Name != "recovered.mp4" {
		t.Errorf("expected polling to continue after a failed fetch, got %+v", r)
	}

	if h.ch.State() != Polling {
		t.Errorf("expected polling, got %s", h.ch.State())
	}
	if len(h.tickers) != 0 {
		t.Error("ticker started more than once")
	}
	if push.subscriptions() != 1 {
		t.Errorf("expected exactly one subscription, got %d", push.subscriptions())
	}
}

func TestRunNilPushStartsPolling(t *testing.T) {
	h := start(t, newSession(t, gridPage), newGatedFetcher(0), nil)
	h.nextRender(t)

	select {
	case <-h.tickers:
	case <-time.After(2 * time.Second):
		t.Fatal("expected polling to start without a push source")
	}
	if h.ch.State() != Polling {
		t.Errorf("expected polling, got %s", h.ch.State())
	}
}

func TestRunClosedPushFallsBack(t *testing.T) {
	push := newFakePush()
	close(push.errs)
	h := start(t, newSession(t, gridPage), newGatedFetcher(0), push)
	h.nextRender(t)

	select {
	case <-h.tickers:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a closed push channel to start polling")
	}
}
