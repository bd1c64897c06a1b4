package bridge

import (
	"context"
	"math/rand"
	"time"

	"github.com/stnma7e/bookmarktabgroups/internal/engine"
)

const (
	defaultPumpInterval = 2 * time.Second
	defaultPumpJitter   = 0.2
	defaultPumpLimit    = 100
)

// EventSource is the slice of the client the pump depends on.
type EventSource interface {
	PollEvents(ctx context.Context, cursor string, limit int) (EventFeed, error)
}

// EventSink is the slice of the engine the pump feeds.
type EventSink interface {
	HandleTabEvent(ctx context.Context, ev engine.TabEvent) error
	HandleBookmarkEvent(ctx context.Context, ev engine.BookmarkEvent) error
}

type PumpOptions struct {
	Interval time.Duration
	Jitter   float64
	Limit    int
	Logger   engine.Logger
}

// Pump polls the bridge's change feed and dispatches events to the engine.
// The cursor advances only after a page is fully dispatched, so a failed
// page is re-fetched on the next poll.
type Pump struct {
	source   EventSource
	sink     EventSink
	interval time.Duration
	jitter   float64
	limit    int
	logger   engine.Logger
	cursor   string
	rng      *rand.Rand
}

func NewPump(source EventSource, sink EventSink, opts PumpOptions) *Pump {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPumpInterval
	}
	jitter := opts.Jitter
	if jitter < 0 || jitter > 1 {
		jitter = defaultPumpJitter
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPumpLimit
	}
	return &Pump{
		source:   source,
		sink:     sink,
		interval: interval,
		jitter:   jitter,
		limit:    limit,
		logger:   opts.Logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run polls until the context is canceled. Poll failures are logged and
// retried on the next tick; they never stop the pump.
func (p *Pump) Run(ctx context.Context) {
	timer := time.NewTimer(p.nextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := p.PumpOnce(ctx); err != nil && ctx.Err() == nil {
			p.logf("event pump: %v", err)
		}
		timer.Reset(p.nextDelay())
	}
}

// PumpOnce drains the feed until the bridge reports no further page.
func (p *Pump) PumpOnce(ctx context.Context) error {
	for {
		feed, err := p.source.PollEvents(ctx, p.cursor, p.limit)
		if err != nil {
			return err
		}
		for _, ev := range feed.TabEvents {
			if err := p.sink.HandleTabEvent(ctx, ev); err != nil {
				p.logf("tab event %s for %s: %v", ev.Type, ev.WindowID, err)
			}
		}
		for _, ev := range feed.BookmarkEvents {
			if err := p.sink.HandleBookmarkEvent(ctx, ev); err != nil {
				p.logf("bookmark event %s for %s: %v", ev.Type, ev.FolderID, err)
			}
		}
		if feed.NextCursor == nil || *feed.NextCursor == p.cursor {
			return nil
		}
		p.cursor = *feed.NextCursor
	}
}

func (p *Pump) nextDelay() time.Duration {
	if p.jitter == 0 {
		return p.interval
	}
	factor := 1 + ((p.rng.Float64()*2)-1)*p.jitter
	return time.Duration(float64(p.interval) * factor)
}

func (p *Pump) logf(format string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
