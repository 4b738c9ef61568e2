package observer

import (
	"context"
	"os"
	"time"

	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// Registry holds the collectors registered at startup. Registration is
// explicit: no directory scanning or reflection.
type Registry struct {
	entries []*entry
	now     func() time.Time
}

func NewRegistry(loc *time.Location) *Registry {
	return &Registry{
		now: func() time.Time { return time.Now().In(loc) },
	}
}

// Register adds a collector. A collector missing one of its required env
// keys is registered disabled so discovery of the others is unaffected.
func (r *Registry) Register(ctx context.Context, c Collector) {
	logger := log.FromCtx(ctx)
	meta := c.Meta()

	var missing []string
	for _, key := range meta.RequiresConfig {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		meta.Enabled = false
		logger.Info().
			Str("collector", meta.Name).
			Strs("missing", missing).
			Msg("collector auto-disabled, missing config")
	}

	r.entries = append(r.entries, &entry{collector: c, meta: meta})
	logger.Info().
		Str("collector", meta.Name).
		Int("interval_minutes", meta.IntervalMinutes).
		Bool("enabled", meta.Enabled).
		Msg("collector registered")
}

// CollectAll runs every enabled collector that hasn't hit the failure
// ceiling and merges non-empty snapshots keyed by collector name.
func (r *Registry) CollectAll(ctx context.Context, ownerID int64) map[string]Snapshot {
	logger := log.FromCtx(ctx)
	now := r.now()

	results := make(map[string]Snapshot)
	for _, e := range r.entries {
		if !e.meta.Enabled {
			continue
		}
		if e.failures >= maxConsecutiveFailures {
			continue
		}

		data := e.safeObserve(ctx, ownerID, now, func(name string, failures int, err error) {
			logger.Warn().
				Str("collector", name).
				Int("consecutive_failures", failures).
				Err(err).
				Msg("collector failed")
			if failures == maxConsecutiveFailures {
				logger.Error().
					Str("collector", name).
					Msg("collector hit failure ceiling, excluded until restart")
			}
		})
		if len(data) > 0 {
			results[e.meta.Name] = data
		}
	}
	return results
}

// List reports collector status for diagnostics.
func (r *Registry) List() []Meta {
	metas := make([]Meta, 0, len(r.entries))
	for _, e := range r.entries {
		metas = append(metas, e.meta)
	}
	return metas
}
