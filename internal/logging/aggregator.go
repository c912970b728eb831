package logging

import (
	"log/slog"
	"sync"
	"time"
)

// Aggregator batches high-frequency events (PTY output chunks arrive many
// times per second) into periodic summary lines instead of one line per
// event. Each (component, event) pair gets a counter; the attrs of the most
// recent Record win, which is enough context for a summary.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	tallies map[eventKey]*eventTally

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type eventKey struct {
	component string
	event     string
}

type eventTally struct {
	count int64
	attrs []slog.Attr
}

// NewAggregator creates an aggregator flushing summaries every interval.
// A nil logger drops everything recorded.
func NewAggregator(logger *slog.Logger, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Aggregator{
		logger:   logger,
		interval: interval,
		tallies:  make(map[eventKey]*eventTally),
		stop:     make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.flush()
			case <-a.stop:
				return
			}
		}
	}()
}

// Stop halts the flush loop and emits whatever is still pending. Safe to
// call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()
	a.flush()
}

// Record counts one occurrence of an event. Later attrs replace earlier
// ones for the same key.
func (a *Aggregator) Record(component, event string, attrs ...slog.Attr) {
	key := eventKey{component: component, event: event}

	a.mu.Lock()
	defer a.mu.Unlock()
	tally := a.tallies[key]
	if tally == nil {
		tally = &eventTally{}
		a.tallies[key] = tally
	}
	tally.count++
	if len(attrs) > 0 {
		tally.attrs = attrs
	}
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	pending := a.tallies
	a.tallies = make(map[eventKey]*eventTally)
	a.mu.Unlock()

	if a.logger == nil || len(pending) == 0 {
		return
	}
	for key, tally := range pending {
		args := []any{
			slog.String("component", key.component),
			slog.String("event", key.event),
			slog.Int64("count", tally.count),
			slog.Duration("window", a.interval),
		}
		for _, attr := range tally.attrs {
			args = append(args, attr)
		}
		a.logger.Info("event_summary", args...)
	}
}
