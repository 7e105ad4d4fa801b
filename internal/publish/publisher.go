package publish

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rillToMe/CrypShare/internal/logging"
	"github.com/rillToMe/CrypShare/internal/metrics"
	"github.com/rillToMe/CrypShare/internal/retry"
)

// Publisher hands rendered pages to its sinks on a background worker. Only
// the newest pending page is kept: a page submitted while another is
// waiting replaces it.
type Publisher struct {
	sinks  []Sink
	retry  retry.Config
	queue  chan []byte
	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
	log    *zap.Logger
}

// NewPublisher creates a publisher for sinks. Failed writes are retried
// according to cfg.
func NewPublisher(cfg retry.Config, sinks ...Sink) *Publisher {
	return &Publisher{
		sinks: sinks,
		retry: cfg,
		queue: make(chan []byte, 1),
		log:   logging.Named("publish"),
	}
}

// Sinks returns the configured sinks.
func (p *Publisher) Sinks() []Sink {
	return p.sinks
}

// Start launches the worker goroutine.
func (p *Publisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.worker(ctx)
	names := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		names[i] = s.Name()
	}
	p.log.Info("publisher started", zap.Strings("sinks", names))
}

// Stop signals the worker to stop and waits for it to finish. A page still
// queued is dropped.
func (p *Publisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.log.Info("publisher stopped")
}

// Submit queues page for publication without blocking. A page already
// waiting in the queue is replaced.
func (p *Publisher) Submit(page []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case p.queue <- page:
		return
	default:
	}
	select {
	case <-p.queue:
		p.log.Debug("replaced pending page")
	default:
	}
	p.queue <- page
}

// Publish writes page to every sink now, retrying each sink independently.
// It returns the joined errors of the sinks that still failed.
func (p *Publisher) Publish(ctx context.Context, page []byte) error {
	var errs []error
	for _, s := range p.sinks {
		start := time.Now()
		err := retry.Do(ctx, p.retry, func() error {
			return retry.Retryable(s.Put(ctx, page))
		})
		metrics.RecordPublish(s.Name(), time.Since(start), err == nil)
		if err != nil {
			p.log.Error("publish failed", zap.String("sink", s.Name()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		p.log.Debug("page published", zap.String("sink", s.Name()), zap.Int("bytes", len(page)))
	}
	return errors.Join(errs...)
}

func (p *Publisher) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case page := <-p.queue:
			p.Publish(ctx, page)
		}
	}
}
