package livesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rillToMe/CrypShare/internal/classify"
	"github.com/rillToMe/CrypShare/internal/client"
	"github.com/rillToMe/CrypShare/internal/listing"
	"github.com/rillToMe/CrypShare/internal/logging"
	"github.com/rillToMe/CrypShare/internal/metrics"
	"github.com/rillToMe/CrypShare/internal/view"
)

// Triggers that start a sync cycle.
const (
	TriggerColdStart = "cold-start"
	TriggerRefresh   = "refresh"
	TriggerPing      = "ping"
	TriggerPoll      = "poll"
)

// DefaultPollInterval is the polling period after the push channel fails.
const DefaultPollInterval = 3 * time.Second

var errPushClosed = errors.New("push channel closed")

// Fetcher returns the raw listing fragment.
type Fetcher interface {
	FetchListing(ctx context.Context) (string, error)
}

// PushSource opens a push subscription. The error channel delivers at most
// one error; both channels close when the subscription ends.
type PushSource interface {
	Subscribe(ctx context.Context) (<-chan client.Event, <-chan error)
}

// Render describes one completed render.
type Render struct {
	Trigger  string
	Fragment string
	Snapshot listing.Snapshot
	Page     string
}

// Options configures a Channel.
type Options struct {
	Session *view.Session
	Fetcher Fetcher
	// Push may be nil, in which case the channel polls from the start.
	Push         PushSource
	PollInterval time.Duration
	// OnRender is called on the loop goroutine after every render.
	OnRender func(Render)
}

type fetchResult struct {
	trigger  string
	fragment string
	err      error
	took     time.Duration
}

// Channel runs the sync loop. The session's page is only touched from the
// goroutine running Run.
type Channel struct {
	session   *view.Session
	fetcher   Fetcher
	push      PushSource
	interval  time.Duration
	onRender  func(Render)
	machine   *Machine
	newTicker func(time.Duration) (<-chan time.Time, func())
	log       *zap.Logger
}

// New creates a channel. The machine starts Idle when the session has no
// targets.
func New(opts Options) *Channel {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Channel{
		session:   opts.Session,
		fetcher:   opts.Fetcher,
		push:      opts.Push,
		interval:  opts.PollInterval,
		onRender:  opts.OnRender,
		machine:   NewMachine(opts.Session != nil && opts.Session.HasTargets()),
		newTicker: realTicker,
		log:       logging.Named("livesync"),
	}
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// State returns the current sync state.
func (c *Channel) State() State {
	return c.machine.State()
}

// Run renders the embedded listing once, then keeps the page current until
// ctx is cancelled. It returns immediately when the page has no targets.
func (c *Channel) Run(ctx context.Context) error {
	if c.machine.State() == Idle {
		c.log.Info("no rendering targets, sync disabled")
		return nil
	}

	snap := c.session.ColdStart()
	c.rendered(TriggerColdStart, "", snap)

	results := make(chan fetchResult)
	var wg sync.WaitGroup
	defer wg.Wait()

	var (
		events     <-chan client.Event
		errs       <-chan error
		cancelPush context.CancelFunc = func() {}
		tick       <-chan time.Time
		stopTick   = func() {}
	)
	defer func() {
		cancelPush()
		stopTick()
	}()

	startPolling := func(reason error) {
		cancelPush()
		events, errs = nil, nil
		if !c.machine.PushFailed() {
			return
		}
		c.log.Warn("push channel unavailable, polling",
			zap.Error(reason), zap.Duration("interval", c.interval))
		tick, stopTick = c.newTicker(c.interval)
	}

	if c.push == nil {
		startPolling(errors.New("no push source"))
	} else {
		var pushCtx context.Context
		pushCtx, cancelPush = context.WithCancel(ctx)
		events, errs = c.push.Subscribe(pushCtx)
		c.log.Info("live sync started")
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			metrics.RecordPushEvent(ev.Name)
			if ev.Name == TriggerRefresh || ev.Name == TriggerPing {
				c.fetch(ctx, &wg, results, ev.Name)
			}

		case err, ok := <-errs:
			if !ok {
				err = errPushClosed
			}
			startPolling(err)

		case <-tick:
			c.fetch(ctx, &wg, results, TriggerPoll)

		case r := <-results:
			c.apply(r)
		}
	}
}

// fetch starts one listing fetch. Fetches are neither queued nor
// coalesced; results are applied in the order they complete.
func (c *Channel) fetch(ctx context.Context, wg *sync.WaitGroup, results chan<- fetchResult, trigger string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		start := time.Now()
		body, err := c.fetcher.FetchListing(ctx)
		r := fetchResult{trigger: trigger, fragment: body, err: err, took: time.Since(start)}
		select {
		case results <- r:
		case <-ctx.Done():
		}
	}()
}

func (c *Channel) apply(r fetchResult) {
	metrics.RecordFetch(r.took)
	if r.err != nil {
		metrics.RecordSyncCycle(r.trigger, false)
		c.log.Warn("listing fetch failed", zap.String("trigger", r.trigger), zap.Error(r.err))
		return
	}
	snap := c.session.ProjectFragment(r.fragment)
	metrics.RecordSyncCycle(r.trigger, true)
	c.rendered(r.trigger, r.fragment, snap)
}

func (c *Channel) rendered(trigger, fragment string, snap listing.Snapshot) {
	counts := snap.Count()
	for _, k := range classify.Kinds {
		metrics.SetListingEntries(k.String(), counts[k])
	}
	c.log.Debug("listing rendered", zap.String("trigger", trigger), zap.Int("entries", len(snap)))

	if c.onRender == nil {
		return
	}
	if fragment == "" && trigger == TriggerColdStart {
		fragment = listing.Fragment(snap)
	}
	c.onRender(Render{
		Trigger:  trigger,
		Fragment: fragment,
		Snapshot: snap,
		Page:     c.session.Render(),
	})
}
