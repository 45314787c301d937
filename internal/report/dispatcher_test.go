package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProcessor struct {
	mu   sync.Mutex
	seen []string
	gate chan struct{}
}

func (p *countingProcessor) Process(_ context.Context, jobID string) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	p.seen = append(p.seen, jobID)
	p.mu.Unlock()
	return nil
}

func (p *countingProcessor) Seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func TestDispatcher_RunsScheduledJobs(t *testing.T) {
	proc := &countingProcessor{}
	d := NewDispatcher(proc, 2)
	d.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, d.Schedule(context.Background(), id))
	}
	d.Close()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, proc.Seen())
	assert.ErrorIs(t, d.Schedule(context.Background(), "late"), ErrDispatcherClosed)
}

func TestDispatcher_QueuesWhileWorkersAreBusy(t *testing.T) {
	proc := &countingProcessor{gate: make(chan struct{})}
	d := NewDispatcher(proc, 1)
	d.Start(context.Background())

	require.NoError(t, d.Schedule(context.Background(), "first"))
	require.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, 5*time.Millisecond)
	for _, id := range []string{"second", "third", "fourth"} {
		require.NoError(t, d.Schedule(context.Background(), id))
	}
	assert.Equal(t, 3, d.Pending())

	close(proc.gate)
	d.Close()
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, proc.Seen())
}

func TestDispatcher_ScheduleHonorsCancelledContext(t *testing.T) {
	d := NewDispatcher(&countingProcessor{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Schedule(ctx, "a"), context.Canceled)
	assert.Zero(t, d.Pending())
}

func TestStartGeneration_SaturatedPoolStillAcceptsJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	proc := &countingProcessor{gate: make(chan struct{})}
	d := NewDispatcher(proc, 2)
	d.Start(ctx)
	svc := NewService(f.repo, d)

	var ids []string
	for i := 0; i < 10; i++ {
		sub, err := svc.StartGeneration(ctx, 1, SubmitInput{EntryIDs: []string{"e1"}})
		require.NoError(t, err, "submission %d", i)
		assert.Equal(t, JobPending, sub.Status)
		ids = append(ids, sub.JobID)
	}
	for _, id := range ids {
		assert.Equal(t, JobPending, f.reload(t, id).Status)
	}

	close(proc.gate)
	d.Close()
	assert.ElementsMatch(t, ids, proc.Seen())
}
