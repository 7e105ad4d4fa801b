package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rillToMe/CrypShare/internal/logging"
)

// maxEventLine bounds a single line of the event stream.
const maxEventLine = 4 << 20

// ErrStreamClosed is reported when the server ends the event stream.
var ErrStreamClosed = errors.New("event stream closed")

// Event is one dispatched Server-Sent Event.
type Event struct {
	Name string
	Data string
}

// SSEClient opens a single event-stream connection. It never reconnects:
// the first failure is reported and the subscription ends.
type SSEClient struct {
	url        string
	httpClient *http.Client
}

// NewSSEClient creates a client for the event stream at url.
func NewSSEClient(url string) *SSEClient {
	return &SSEClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 0, // No timeout for SSE
		},
	}
}

// URL returns the stream address.
func (c *SSEClient) URL() string {
	return c.url
}

// Subscribe connects to the stream. Events arrive on the first channel. A
// connect error, non-200 status, read error or end of stream is sent once on
// the error channel, then both channels close. Cancelling ctx closes both
// channels without an error.
func (c *SSEClient) Subscribe(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		err := c.stream(ctx, events)
		if err != nil && ctx.Err() == nil {
			errs <- err
		}
	}()

	return events, errs
}

func (c *SSEClient) stream(ctx context.Context, events chan<- Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: c.url, Code: resp.StatusCode}
	}

	log := logging.Named("sse")
	log.Info("event stream connected", zap.String("url", c.url))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	var (
		name string
		data []string
	)

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if len(data) > 0 {
				ev := Event{Name: name, Data: strings.Join(data, "\n")}
				if ev.Name == "" {
					ev.Name = "message"
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return nil
				default:
					log.Debug("event dropped (channel full)", zap.String("event", ev.Name))
				}
			}
			name, data = "", nil
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return ErrStreamClosed
}
