// Package metrics holds the in-process counters exposed at GET /metrics
// and periodically flushed to a durable sink (ClickHouse) so restarts
// don't lose cumulative totals.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/malwarescan/oracle/internal/storage"
)

const flushInterval = 30 * time.Second

// Registry holds live counters in memory and flushes deltas to a
// storage.MetricsSink on a fixed interval. Reads never block on the sink.
type Registry struct {
	sink storage.MetricsSink

	mu       sync.Mutex
	counters map[string]*int64

	stop chan struct{}
	done chan struct{}
}

// New creates a Registry and starts its background flush loop. Close must
// be called to stop the loop and perform a final flush.
func New(sink storage.MetricsSink) *Registry {
	r := &Registry{
		sink:     sink,
		counters: make(map[string]*int64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.flushLoop()
	return r
}

// Incr adds delta to the named counter, creating it at zero if unseen.
func (r *Registry) Incr(name string, delta int64) {
	r.mu.Lock()
	c, ok := r.counters[name]
	if !ok {
		var zero int64
		c = &zero
		r.counters[name] = c
	}
	r.mu.Unlock()
	atomic.AddInt64(c, delta)
}

// Snapshot returns the current in-memory value of every counter.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		out[name] = atomic.LoadInt64(c)
	}
	return out
}

func (r *Registry) flushLoop() {
	defer close(r.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.flush(context.Background())
		case <-r.stop:
			r.flush(context.Background())
			return
		}
	}
}

// flush writes the delta accumulated since the previous flush for each
// counter, resetting the in-memory value to zero. Cumulative totals live
// in the sink (see storage.ClickHouseClient.ReadCounters), so an
// in-process restart never double-counts or loses history.
func (r *Registry) flush(ctx context.Context) {
	if r.sink == nil {
		return
	}
	r.mu.Lock()
	deltas := make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		if d := atomic.SwapInt64(c, 0); d != 0 {
			deltas[name] = d
		}
	}
	r.mu.Unlock()

	for name, delta := range deltas {
		if err := r.sink.IncrCounter(ctx, name, delta); err != nil {
			// Re-add the delta so the next flush retries it rather than
			// losing it silently.
			r.Incr(name, delta)
		}
	}
}

// Totals returns the durable cumulative counters from the sink, merged
// with any not-yet-flushed in-memory deltas, for /metrics responses.
func (r *Registry) Totals(ctx context.Context) (map[string]int64, error) {
	var totals map[string]int64
	if r.sink != nil {
		var err error
		totals, err = r.sink.ReadCounters(ctx)
		if err != nil {
			return nil, fmt.Errorf("metrics: read counters: %w", err)
		}
	}
	if totals == nil {
		totals = make(map[string]int64)
	}
	for name, v := range r.Snapshot() {
		totals[name] += v
	}
	return totals, nil
}

// Close stops the flush loop after one final flush.
func (r *Registry) Close() {
	close(r.stop)
	<-r.done
}
