package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rillToMe/CrypShare/internal/client"
	"github.com/rillToMe/CrypShare/internal/config"
	"github.com/rillToMe/CrypShare/internal/events"
	"github.com/rillToMe/CrypShare/internal/listing"
	"github.com/rillToMe/CrypShare/internal/livesync"
	"github.com/rillToMe/CrypShare/internal/logging"
	"github.com/rillToMe/CrypShare/internal/metrics"
	"github.com/rillToMe/CrypShare/internal/preview"
	"github.com/rillToMe/CrypShare/internal/publish"
	"github.com/rillToMe/CrypShare/internal/qr"
	"github.com/rillToMe/CrypShare/internal/retry"
	"github.com/rillToMe/CrypShare/internal/watcher"
)

func newMirrorCmd() *cobra.Command {
	var (
		listen   string
		metricsA string
		output   string
		template string
		section  string
		interval time.Duration
		exclude  []string
	)

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Keep the rendered page in sync with the listing server",
		Long: `mirror renders the files page once from its embedded listing, then
refreshes it on every push event from the server. When the event stream
fails it polls the listing instead. Each render is published to the
configured sinks and served by the local relay.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			if fs.Changed("listen") {
				cfg.ListenAddr = listen
			}
			if fs.Changed("metrics") {
				cfg.MetricsAddr = metricsA
			}
			if fs.Changed("output") {
				cfg.OutputFile = output
			}
			if fs.Changed("template") {
				cfg.TemplateFile = template
			}
			if fs.Changed("section") {
				cfg.Section = section
			}
			if fs.Changed("poll-interval") {
				cfg.PollInterval = interval
			}
			if fs.Changed("exclude") {
				cfg.Exclude = exclude
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMirror(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&listen, "listen", "", "relay listen address (empty disables)")
	f.StringVar(&metricsA, "metrics", "", "metrics listen address (empty disables)")
	f.StringVarP(&output, "output", "o", "", "write each render to this file")
	f.StringVar(&template, "template", "", "local page template, reloaded on change")
	f.StringVar(&section, "section", "", "initially active section (images, videos, others)")
	f.DurationVar(&interval, "poll-interval", livesync.DefaultPollInterval, "polling period after the event stream fails")
	f.StringSliceVar(&exclude, "exclude", nil, "glob patterns of entry names to hide")

	return cmd
}

func runMirror(ctx context.Context, cfg *config.Config) error {
	filter, err := listing.NewFilter(cfg.Exclude)
	if err != nil {
		return err
	}

	c := newClient(cfg)

	sinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}
	var publisher *publish.Publisher
	if len(sinks) > 0 {
		publisher = publish.NewPublisher(retry.DefaultConfig(), sinks...)
		publisher.Start(ctx)
		defer publisher.Stop()
	}

	var current atomic.Pointer[livesync.Channel]

	var relay *preview.Server
	if cfg.ListenAddr != "" {
		relay, err = preview.NewServer(preview.Config{
			Upstream: cfg.BaseURL,
			ShareURL: relayShareURL(cfg.ListenAddr),
			State: func() string {
				if ch := current.Load(); ch != nil {
					return ch.State().String()
				}
				return "starting"
			},
		}, events.NewBroadcaster())
		if err != nil {
			return err
		}
		go func() {
			if err := relay.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
				logging.Error("relay server error", zap.Error(err))
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
		defer metricsServer.Close()
	}

	var changes <-chan struct{}
	if cfg.TemplateFile != "" {
		w, err := watcher.New(cfg.TemplateFile, 0)
		if err != nil {
			return err
		}
		changes = w.Changes()
		go w.Run(ctx)
	}

	onRender := func(r livesync.Render) {
		page := []byte(r.Page)
		if publisher != nil {
			publisher.Submit(page)
		}
		if relay != nil {
			relay.Update(r.Trigger, page, []byte(r.Fragment), len(r.Snapshot))
		}
	}

	logging.Info("mirror starting",
		zap.String("base_url", cfg.BaseURL),
		zap.Int("sinks", len(sinks)),
		zap.Bool("relay", relay != nil),
	)

	page, err := loadPage(ctx, cfg, c)
	if err != nil {
		return err
	}

	// Each page load gets its own session and channel, the way a browser
	// reload starts the sync over.
	for {
		session, err := newSession(page, cfg, filter)
		if err != nil {
			return err
		}
		ch := livesync.New(livesync.Options{
			Session:      session,
			Fetcher:      c,
			Push:         client.NewSSEClient(cfg.URL(cfg.EventsPath)),
			PollInterval: cfg.PollInterval,
			OnRender:     onRender,
		})
		current.Store(ch)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- ch.Run(runCtx) }()

		reload := false
		for !reload {
			select {
			case <-ctx.Done():
				cancel()
				if done != nil {
					<-done
				}
				logging.Info("mirror stopped")
				return nil

			case <-changes:
				reload = true

			case err := <-done:
				done = nil
				if err != nil {
					cancel()
					return err
				}
				if ch.State() == livesync.Idle {
					logging.Warn("page has no listing targets; waiting for a template change")
				}
			}
		}

		cancel()
		if done != nil {
			<-done
		}

		next, err := loadPage(ctx, cfg, c)
		if err != nil {
			logging.Error("template reload failed, keeping previous page", zap.Error(err))
		} else {
			page = next
			logging.Info("template changed, reloading")
		}
	}
}

// relayShareURL is the address other devices on the network should open.
func relayShareURL(listenAddr string) string {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return ""
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = qr.LocalIP()
	}
	return qr.ShareURL(host, port, false)
}
