package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndTrigger(t *testing.T) {
	s := NewScheduler(0)
	calls := 0
	require.NoError(t, s.Add(JobReminders, "@every 1h", func(ctx context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}))
	require.NoError(t, s.Add(JobBackup, "", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("bucket gone")
	}))

	assert.Error(t, s.Add(JobReminders, "", nil))
	assert.Error(t, s.Add(JobAudit, "not a schedule", nil))
	assert.Equal(t, []string{JobBackup, JobReminders}, s.Names())

	res, err := s.Trigger(context.Background(), JobReminders)
	require.NoError(t, err)
	assert.Equal(t, 1, res)

	_, err = s.Trigger(context.Background(), JobBackup)
	assert.EqualError(t, err, "bucket gone")

	_, err = s.Trigger(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestJobsDoNotOverlap(t *testing.T) {
	s := NewScheduler(0)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Add(JobAudit, "", func(ctx context.Context) (interface{}, error) {
		close(started)
		<-release
		return "done", nil
	}))

	done := make(chan interface{})
	go func() {
		res, _ := s.Trigger(context.Background(), JobAudit)
		done <- res
	}()
	<-started

	res, err := s.Trigger(context.Background(), JobAudit)
	require.NoError(t, err)
	assert.Nil(t, res)

	close(release)
	assert.Equal(t, "done", <-done)
}
