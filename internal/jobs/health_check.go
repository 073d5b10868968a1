package jobs

import (
	"context"
	"log/slog"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ServingReporter interface {
	SetServing(serving bool)
}

// StartHealthCheck pings the database right away and then on every interval,
// reporting the result until ctx is done. Only transitions are logged.
func StartHealthCheck(ctx context.Context, interval time.Duration, db Pinger, reporter ServingReporter, logger *slog.Logger) {
	if db == nil || reporter == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}

	c := &checker{db: db, reporter: reporter, logger: logger, timeout: timeout}
	c.run(ctx)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.run(ctx)
			}
		}
	}()
}

type checker struct {
	db       Pinger
	reporter ServingReporter
	logger   *slog.Logger
	timeout  time.Duration
	known    bool
	healthy  bool
}

func (c *checker) run(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.db.Ping(tickCtx)
	cancel()

	healthy := err == nil
	c.reporter.SetServing(healthy)
	if c.known && c.healthy == healthy {
		return
	}
	c.known, c.healthy = true, healthy
	if healthy {
		c.logger.InfoContext(ctx, "database healthy")
	} else {
		c.logger.ErrorContext(ctx, "database health check failed", slog.Any("error", err))
	}
}
