package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

const checkInterval = 60 * time.Second

// Checker polls for due reminders and delivers them. A reminder is marked
// fired only after successful delivery, so a failed send retries on the
// next pass.
type Checker struct {
	reminders core.RemindersRepository
	sender    core.Sender
	now       func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

func NewChecker(reminders core.RemindersRepository, sender core.Sender, loc *time.Location) *Checker {
	return &Checker{
		reminders: reminders,
		sender:    sender,
		now:       func() time.Time { return time.Now().In(loc) },
		stop:      make(chan struct{}),
	}
}

// Start runs the polling loop until shutdown. Implements srv.Service.
func (c *Checker) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Dur("interval", checkInterval).Msg("reminder checker started")

	for {
		c.check(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-c.stop:
			return nil
		case <-time.After(checkInterval):
		}
	}
}

func (c *Checker) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Checker) check(ctx context.Context) {
	logger := log.FromCtx(ctx)

	due, err := c.reminders.Due(ctx, c.now())
	if err != nil {
		logger.Error().Err(err).Msg("reminder query failed")
		return
	}

	for _, r := range due {
		if err := c.sender.Send(ctx, r.OwnerID, "⏰ Reminder: "+r.Message); err != nil {
			logger.Error().Err(err).Int64("id", r.ID).Msg("failed to fire reminder")
			continue
		}
		if err := c.reminders.MarkFired(ctx, r.ID); err != nil {
			logger.Error().Err(err).Int64("id", r.ID).Msg("failed to mark reminder fired")
			continue
		}
		logger.Info().Int64("id", r.ID).Msg("reminder fired")
	}
}
