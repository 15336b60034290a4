package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/riskgovernor/internal/database"
	"github.com/rs/zerolog"
)

// CheckCoreDatabasesJob verifies integrity of the governor database
type CheckCoreDatabasesJob struct {
	log     zerolog.Logger
	db      *database.DB
	timeout time.Duration
}

// NewCheckCoreDatabasesJob creates a new CheckCoreDatabasesJob
func NewCheckCoreDatabasesJob(db *database.DB) *CheckCoreDatabasesJob {
	return &CheckCoreDatabasesJob{
		log:     zerolog.Nop(),
		db:      db,
		timeout: time.Minute,
	}
}

// SetLogger sets the logger for the job
func (j *CheckCoreDatabasesJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *CheckCoreDatabasesJob) Name() string {
	return "check_core_databases"
}

// Run executes the check core databases job
func (j *CheckCoreDatabasesJob) Run() error {
	if j.db == nil {
		j.log.Warn().Msg("Database not initialized, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	// Corruption of the audit ledger cannot be auto-recovered
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().
			Err(err).
			Str("database", j.db.Name()).
			Msg("Core database integrity check failed")
		return fmt.Errorf("database %s is corrupted: %w", j.db.Name(), err)
	}

	j.log.Info().Str("database", j.db.Name()).Msg("Core database integrity check passed")
	return nil
}
