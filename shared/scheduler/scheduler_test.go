package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"viral-finder/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary string

func (s summary) GetSummary() string { return string(s) }

type fakeAgent struct {
	runs    int
	partial error
	err     error
}

func (f *fakeAgent) Name() string { return "Fake Agent" }

func (f *fakeAgent) Initialize() error { return nil }

func (f *fakeAgent) RunOnce(ctx context.Context, events *AgentEvents) error {
	f.runs++
	if f.err != nil {
		return f.err
	}
	if f.partial != nil {
		events.OnPartialFailure(f.partial, time.Millisecond)
	}
	events.OnSuccess(summary("did things"), time.Millisecond)
	return nil
}

func TestRunOnceSuccess(t *testing.T) {
	agent := &fakeAgent{}
	s := New(&config.Config{}, agent)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, agent.runs)
	assert.True(t, s.Monitor().IsHealthy())
	assert.Contains(t, s.Monitor().GetStatusSummary(), "did things")
}

func TestRunOncePartialFailureStaysHealthy(t *testing.T) {
	agent := &fakeAgent{partial: errors.New("one keyword failed")}
	s := New(&config.Config{}, agent)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.True(t, s.Monitor().IsHealthy())
}

func TestRunOnceFailure(t *testing.T) {
	agent := &fakeAgent{err: errors.New("all keywords failed")}
	s := New(&config.Config{}, agent)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Fake Agent run failed")
	assert.False(t, s.Monitor().IsHealthy())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := &config.Config{}
	cfg.Watch.Schedule = "not a schedule"
	cfg.Monitoring.HealthPort = 0

	s := New(cfg, &fakeAgent{})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add cron job")
}
