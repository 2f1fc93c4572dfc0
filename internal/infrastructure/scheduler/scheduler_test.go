package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestRegister_RejectsDuplicatesAndNils(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, Every(time.Hour), false))
	assert.ErrorIs(t, s.Register(job, Every(time.Hour), false), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Hour), false), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil, false), ErrNilSchedule)
}

func TestScheduler_RunsDueJobOnStart(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Tick: 5 * time.Millisecond})
	job := &countingJob{name: "archive"}
	require.NoError(t, s.Register(job, Every(time.Hour), true))

	done := make(chan JobResult, 1)
	s.OnJobComplete(func(r JobResult) { done <- r })

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case r := <-done:
		assert.True(t, r.Success)
		assert.Equal(t, "archive", r.JobName)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	info, err := s.GetJobInfo("archive")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.RunCount)
	assert.Equal(t, "@every 1h0m0s", info.Schedule)
	// next run is one interval after the start, not immediately again
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_NotDueWithoutRunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Tick: 5 * time.Millisecond})
	job := &countingJob{name: "archive"}
	require.NoError(t, s.Register(job, Every(time.Hour), false))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int32(0), job.runs.Load())
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Tick: 5 * time.Millisecond})
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Millisecond), true))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// still in flight, so no overlapping second run
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	info, err := s.GetJobInfo("slow")
	require.NoError(t, err)
	require.NotNil(t, info.LastResult)
	assert.ErrorIs(t, info.LastResult.Error, context.Canceled)
}

func TestRunNow(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	boom := errors.New("boom")
	require.NoError(t, s.Register(&countingJob{name: "a", err: boom}, Every(time.Hour), false))

	result, err := s.RunNow(context.Background(), "a")
	assert.ErrorIs(t, err, boom)
	assert.True(t, result.Manual)
	assert.False(t, result.Success)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
