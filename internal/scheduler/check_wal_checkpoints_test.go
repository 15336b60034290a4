package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	testingpkg "github.com/aristath/riskgovernor/internal/testing"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil)
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabase(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil)
	job.SetLogger(zerolog.New(nil).Level(zerolog.Disabled))

	assert.NoError(t, job.Run()) // Should handle nil database gracefully
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "governor")
	defer cleanup()

	job := NewCheckWALCheckpointsJob(db)
	assert.NoError(t, job.Run())
}
