// Package sweep runs the periodic expiry pass over sent quotes.
package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/lock"
)

const lockKey = "sweep:expire"

// Expirer moves overdue quotes to expired.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Sweeper runs one expiry pass at a time across every worker replica.
type Sweeper struct {
	Quotes  Expirer
	Locker  lock.Locker
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Run performs a single pass. A pass already running on another replica is
// not an error.
func (s Sweeper) Run(ctx context.Context) (int, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var count int
	err := s.Locker.TryWithLock(ctx, lockKey, timeout, func(ctx context.Context) error {
		n, err := s.Quotes.ExpireStale(ctx)
		count = n
		return err
	})
	if errors.Is(err, lock.ErrHeld) {
		s.Logger.Debug().Msg("expiry sweep held by another worker")
		return 0, nil
	}
	return count, err
}

// Schedule registers the sweep on a cron scheduler. The caller starts and
// stops the returned scheduler.
func Schedule(ctx context.Context, spec string, s Sweeper) (*cron.Cron, error) {
	logger := cronLogger{log: s.Logger}
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(spec, func() {
		started := time.Now()
		n, err := s.Run(ctx)
		if err != nil {
			s.Logger.Error().Err(err).Msg("expiry sweep failed")
			return
		}
		s.Logger.Debug().Int("expired", n).Dur("took", time.Since(started)).Msg("expiry sweep done")
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
