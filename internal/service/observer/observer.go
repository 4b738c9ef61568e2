package observer

import (
	"context"
	"time"
)

// maxConsecutiveFailures is the ceiling after which a collector is excluded
// from collection until process restart.
const maxConsecutiveFailures = 5

// Meta describes a collector: display name, collection interval, enabled
// flag and the env keys it cannot run without.
type Meta struct {
	Name            string
	IntervalMinutes int
	Enabled         bool
	RequiresConfig  []string
}

// Snapshot is one collector's flat result. Empty means nothing to report.
type Snapshot map[string]any

// Collector produces a snapshot of some slice of the world. Implementations
// may return an error or an empty snapshot; the registry handles both.
type Collector interface {
	Meta() Meta
	Observe(ctx context.Context, ownerID int64) (Snapshot, error)
}

// entry wraps a collector with its gating and fault-isolation state.
type entry struct {
	collector Collector
	meta      Meta

	lastCollectedAt time.Time
	lastData        Snapshot
	failures        int
}

// safeObserve checks the interval, calls the collector, caches the result
// and absorbs errors. On failure it returns the last good data.
func (e *entry) safeObserve(ctx context.Context, ownerID int64, now time.Time, onError func(name string, failures int, err error)) Snapshot {
	if !e.shouldCollect(now) {
		return e.lastData
	}

	data, err := e.collector.Observe(ctx, ownerID)
	if err != nil {
		e.failures++
		if onError != nil {
			onError(e.meta.Name, e.failures, err)
		}
		return e.lastData
	}

	e.lastData = data
	e.lastCollectedAt = now
	e.failures = 0
	return data
}

func (e *entry) shouldCollect(now time.Time) bool {
	if e.lastCollectedAt.IsZero() {
		return true
	}
	return now.Sub(e.lastCollectedAt) >= time.Duration(e.meta.IntervalMinutes)*time.Minute
}
