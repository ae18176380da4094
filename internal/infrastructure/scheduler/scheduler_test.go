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

type stubJob struct {
	name   string
	runs   atomic.Int64
	runErr error
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub job for tests" }

func (j *stubJob) Run(_ context.Context) error {
	j.runs.Add(1)
	return j.runErr
}

func newTestScheduler() *Scheduler {
	return NewScheduler(DefaultSchedulerConfig())
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "cleanup"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	err := s.Register(&stubJob{name: "cleanup"}, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&stubJob{name: "other"}, nil), ErrNilSchedule)
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "cleanup"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	// RunNow works without starting the scheduler loop.
	result, err := s.RunNow(context.Background(), "cleanup")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "cleanup", result.JobName)
	assert.Equal(t, int64(1), job.runs.Load())

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	require.NotNil(t, infos[0].LastResult)
	assert.True(t, infos[0].LastResult.Success)
}

func TestScheduler_RunNow_UnknownJob(t *testing.T) {
	s := newTestScheduler()

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNow_JobFailure(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "flaky", runErr: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "flaky")
	assert.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, job.runErr, result.Error)
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&stubJob{name: "cleanup"}, NewIntervalSchedule(time.Hour)))

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&stubJob{name: "cleanup"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.DisableJob("cleanup"))
	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.False(t, infos[0].Enabled)

	require.NoError(t, s.EnableJob("cleanup"))
	assert.True(t, s.ListJobs()[0].Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.EnableJob("missing"), ErrJobNotFound)
}
