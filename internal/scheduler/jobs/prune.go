package jobs

import (
	"context"
	"time"

	"github.com/wonny/aegis-risk/pkg/logger"
)

// SnapshotPruner deletes stored metric snapshots
type SnapshotPruner interface {
	PruneMetrics(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotPruneJob removes metric snapshots older than the retention window
type SnapshotPruneJob struct {
	store     SnapshotPruner
	schedule  string
	retention time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

// NewSnapshotPruneJob creates a new prune job
func NewSnapshotPruneJob(store SnapshotPruner, schedule string, retention time.Duration, log *logger.Logger) *SnapshotPruneJob {
	return &SnapshotPruneJob{
		store:     store,
		schedule:  schedule,
		retention: retention,
		logger:    log,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *SnapshotPruneJob) Name() string {
	return "snapshot_prune"
}

// Schedule returns the cron schedule
func (j *SnapshotPruneJob) Schedule() string {
	return j.schedule
}

// Run executes the job
func (j *SnapshotPruneJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)

	pruned, err := j.store.PruneMetrics(ctx, cutoff)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"cutoff": cutoff.Format(time.RFC3339),
		"pruned": pruned,
	}).Info("Metric snapshots pruned")

	return nil
}
