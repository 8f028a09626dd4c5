package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32 // 처음 N번 실패
	runs     atomic.Int32
	block    bool
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if j.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestScheduler(retries int) *Scheduler {
	return New(logger.Nop(), WithRetry(retries, time.Millisecond))
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler(0)

	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "@hourly"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "0 */15 * * * *"}))

	err := s.AddJob(&countingJob{name: "a", schedule: "@hourly"})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob(&countingJob{name: "bad", schedule: "not a schedule"})
	assert.ErrorContains(t, err, "failed to schedule")

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler(0)
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@hourly"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.cron.Entries())

	assert.Error(t, s.RemoveJob("a"))
	_, err := s.RunJobSync("a")
	assert.Error(t, err)
}

func TestRunJobSync_RetriesUntilSuccess(t *testing.T) {
	s := newTestScheduler(3)
	job := &countingJob{name: "flaky", schedule: "@hourly", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, int32(3), job.runs.Load())
	assert.Equal(t, 3, result.Attempts)
}

func TestRunJobSync_ExhaustsRetries(t *testing.T) {
	s := newTestScheduler(1)
	job := &countingJob{name: "broken", schedule: "@hourly", failures: 100}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "transient", result.Error)
	assert.Equal(t, int32(2), job.runs.Load())

	history, err := s.GetJobHistory("broken")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Equal(t, 0.0, history.GetSuccessRate())
}

func TestGetJobStats(t *testing.T) {
	s := newTestScheduler(0)
	ok := &countingJob{name: "ok", schedule: "@hourly"}
	require.NoError(t, s.AddJob(ok))

	for i := 0; i < 3; i++ {
		_, err := s.RunJobSync("ok")
		require.NoError(t, err)
	}

	stats := s.GetJobStats()["ok"]
	assert.Equal(t, "@hourly", stats.Schedule)
	assert.Equal(t, 3, stats.TotalRuns)
	assert.Equal(t, 3, stats.SuccessCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
	require.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := newTestScheduler(3)
	job := &countingJob{name: "slow", schedule: "@hourly", block: true}
	require.NoError(t, s.AddJob(job))
	s.Start()

	done := make(chan JobResult, 1)
	go func() {
		result, _ := s.RunJobSync("slow")
		done <- result
	}()

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)
	s.Stop()

	select {
	case result := <-done:
		assert.False(t, result.Success)
		// 취소 후 재시도하지 않음
		assert.Equal(t, int32(1), job.runs.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not canceled")
	}
}

func TestJobHistory_KeepsLast100(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 120; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Len(t, h.GetFailedResults(), 50)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-12)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
}
