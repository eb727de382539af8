package retention

import (
	"context"
	"database/sql"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/open-sift/logsift/internal/db"
)

type Cleaner struct {
	db          *sql.DB
	historyDays int
	interval    time.Duration
}

// New creates a new retention cleaner with a default interval of 1 hour.
func New(database *sql.DB, historyDays int) *Cleaner {
	return &Cleaner{
		db:          database,
		historyDays: historyDays,
		interval:    time.Hour,
	}
}

// Run starts the retention cleanup job. It runs cleanup immediately on start,
// then repeats every interval. It respects context cancellation.
func (c *Cleaner) Run(ctx context.Context) error {
	// Run immediately on start
	if err := c.cleanup(); err != nil {
		log.Warnf("retention: initial cleanup failed: %v", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.cleanup(); err != nil {
				log.Warnf("retention: cleanup failed: %v", err)
			}
		}
	}
}

// cleanup deletes history rows older than historyDays.
func (c *Cleaner) cleanup() error {
	cutoff := time.Now().UTC().AddDate(0, 0, -c.historyDays).Truncate(time.Hour)

	removed, err := db.PruneEvents(c.db, cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Infof("retention: removed %d history rows older than %s", removed, cutoff.Format(time.RFC3339))
	}
	return nil
}
