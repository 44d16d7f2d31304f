package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/vqe/internal/database"
)

// CheckpointSchedule runs the WAL checkpoint every 15 minutes.
const CheckpointSchedule = "0 */15 * * * *"

// largeWALFrames is the WAL size past which a passive checkpoint is followed
// by a truncating one.
const largeWALFrames = 1000

// CheckpointJob keeps the runs database WAL from growing without bound
type CheckpointJob struct {
	log zerolog.Logger
	db  *database.DB
}

// NewCheckpointJob creates a new CheckpointJob
func NewCheckpointJob(db *database.DB, log zerolog.Logger) *CheckpointJob {
	return &CheckpointJob{
		log: log.With().Str("job", "wal_checkpoint").Logger(),
		db:  db,
	}
}

// Name returns the job name
func (j *CheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes a passive checkpoint and truncates the WAL when it is large
func (j *CheckpointJob) Run() error {
	if j.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := j.db.QueryRowContext(context.Background(), "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		return fmt.Errorf("failed to checkpoint %s: %w", j.db.Name(), err)
	}

	if frames > largeWALFrames {
		j.log.Warn().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large, truncating")
		return j.db.WALCheckpoint("TRUNCATE")
	}

	j.log.Debug().
		Str("database", j.db.Name()).
		Int("wal_frames", frames).
		Bool("busy", busy != 0).
		Msg("WAL checkpoint status OK")
	return nil
}
