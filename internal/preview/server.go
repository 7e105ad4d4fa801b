// Package preview serves the mirrored page to local browsers. It exposes
// the same /list_html and /events interface as the upstream server, so the
// page works unchanged when opened through the relay.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rillToMe/CrypShare/internal/events"
	"github.com/rillToMe/CrypShare/internal/logging"
	"github.com/rillToMe/CrypShare/internal/metrics"
	"github.com/rillToMe/CrypShare/internal/qr"
)

// DefaultKeepAlive is the interval between SSE keepalive comments.
const DefaultKeepAlive = 15 * time.Second

// Config configures the relay.
type Config struct {
	// Upstream is the listing server that previews and downloads are
	// proxied to.
	Upstream string
	// ShareURL is encoded by /qr.png; empty disables the endpoint.
	ShareURL  string
	KeepAlive time.Duration
	// State reports the sync state for /healthz.
	State func() string
}

// Server is the relay HTTP server.
type Server struct {
	mu       sync.RWMutex
	page     []byte
	fragment []byte
	entries  int
	updated  time.Time

	broadcaster *events.Broadcaster
	proxy       *httputil.ReverseProxy
	shareURL    string
	keepAlive   time.Duration
	state       func() string
	log         *zap.Logger
}

// NewServer creates a relay that proxies file requests to cfg.Upstream.
func NewServer(cfg Config, broadcaster *events.Broadcaster) (*Server, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", cfg.Upstream)
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if broadcaster == nil {
		broadcaster = events.NewBroadcaster()
	}

	s := &Server{
		broadcaster: broadcaster,
		shareURL:    cfg.ShareURL,
		keepAlive:   cfg.KeepAlive,
		state:       cfg.State,
		log:         logging.Named("preview"),
	}

	s.proxy = httputil.NewSingleHostReverseProxy(upstream)
	s.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.FromContext(r.Context()).Warn("upstream request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		s.sendError(w, r, http.StatusBadGateway, "upstream unavailable")
	}
	return s, nil
}

// Update stores a newly rendered page and notifies SSE subscribers.
func (s *Server) Update(trigger string, page, fragment []byte, entries int) {
	s.mu.Lock()
	s.page = page
	s.fragment = fragment
	s.entries = entries
	s.updated = time.Now()
	s.mu.Unlock()

	s.broadcaster.Publish(events.Event{
		Type:    events.EventRefresh,
		Trigger: trigger,
		Entries: entries,
	})
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /files", s.handlePage)
	mux.HandleFunc("GET /files.html", s.handlePage)
	mux.HandleFunc("GET /list_html", s.handleFragment)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.shareURL != "" {
		mux.HandleFunc("GET /qr.png", s.handleQR)
	}

	mux.Handle("/uploads/", s.proxy)
	mux.Handle("/download_file/", s.proxy)
	mux.Handle("/download_folder/", s.proxy)

	return logging.Middleware(metrics.Middleware(mux))
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("relay listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Shutdown does not wait for hijacked or streaming connections; close
	// them once the grace period ends.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ─── Page ───────────────────────────────────────────────────────────────────

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	page := s.page
	s.mu.RUnlock()

	if page == nil {
		s.sendError(w, r, http.StatusServiceUnavailable, "no page rendered yet")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(page)
}

func (s *Server) handleFragment(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fragment := s.fragment
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(fragment)
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	log := logging.FromContext(r.Context())
	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)
	log.Debug("event stream opened", zap.Int("subscribers", s.broadcaster.Count()))
	defer log.Debug("event stream closed")

	writeEvent(w, events.Event{Type: events.EventPing, Timestamp: time.Now().Unix()})
	flusher.Flush()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, event)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event events.Event) {
	data, err := events.MarshalEvent(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
}

// ─── Health ─────────────────────────────────────────────────────────────────

type healthResponse struct {
	Status      string `json:"status"`
	State       string `json:"state,omitempty"`
	Entries     int    `json:"entries"`
	Subscribers int    `json:"subscribers"`
	Updated     string `json:"updated,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := healthResponse{Status: "ok", Entries: s.entries}
	if !s.updated.IsZero() {
		resp.Updated = s.updated.UTC().Format(time.RFC3339)
	}
	s.mu.RUnlock()

	if s.state != nil {
		resp.State = s.state()
	}
	resp.Subscribers = s.broadcaster.Count()

	s.sendJSON(w, http.StatusOK, resp)
}

// ─── QR ─────────────────────────────────────────────────────────────────────

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	data, err := qr.PNG(s.shareURL, 256)
	if err != nil {
		logging.FromContext(r.Context()).Error("QR generation failed", zap.Error(err))
		s.sendError(w, r, http.StatusInternalServerError, "QR generation failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type errorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	s.sendJSON(w, code, errorResponse{Error: message, Code: code, RequestID: logging.RequestID(r.Context())})
}
