package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/database"
)

// walWarnBytes is the WAL size that still gets flagged after a checkpoint
const walWarnBytes = 64 << 20

// MaintenanceJob truncates the WAL and refreshes planner statistics
type MaintenanceJob struct {
	db      *database.DB
	timeout time.Duration
	log     zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		timeout: 2 * time.Minute,
		log:     log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Debug().Msg("Starting maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.db.WALCheckpoint(ctx, "TRUNCATE"); err != nil {
		return fmt.Errorf("maintenance checkpoint: %w", err)
	}

	// Stale statistics only slow queries down
	if err := j.db.Optimize(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Optimize failed")
	}

	stats, err := j.db.GetStats(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read database stats")
		return nil
	}

	event := j.log.Info()
	if stats.WALSizeBytes > walWarnBytes {
		event = j.log.Warn()
	}
	event.
		Str("database", j.db.Name()).
		Int64("size_bytes", stats.SizeBytes).
		Int64("wal_size_bytes", stats.WALSizeBytes).
		Int64("freelist_pages", stats.FreelistCount).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed")

	return nil
}
