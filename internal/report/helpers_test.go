package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/journal"
	"github.com/suPer8Hu/journal-platform/internal/testutil"
)

// recordingTimer fires immediately and remembers every requested wait.
type recordingTimer struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (t *recordingTimer) After(d time.Duration) <-chan time.Time {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (t *recordingTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

type step struct {
	text  string
	err   error
	block bool
	panic bool
}

// scriptedProvider answers with the configured steps in order, repeating the
// last one once the script runs out.
type scriptedProvider struct {
	mu      sync.Mutex
	steps   []step
	calls   int
	prompts []string
	onCall  func()
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	p.mu.Lock()
	i := p.calls
	if i >= len(p.steps) {
		i = len(p.steps) - 1
	}
	s := p.steps[i]
	p.calls++
	p.prompts = append(p.prompts, prompt)
	hook := p.onCall
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	if s.panic {
		panic("provider exploded")
	}
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fixture struct {
	repo    *Repo
	entries *journal.Repo
	timer   *recordingTimer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t, &Job{}, &Report{}, &journal.Entry{})
	return &fixture{
		repo:    NewRepo(db),
		entries: journal.NewRepo(db),
		timer:   &recordingTimer{},
	}
}

func (f *fixture) worker(p *scriptedProvider, opts ...WorkerOption) *Worker {
	opts = append([]WorkerOption{WithTimer(f.timer)}, opts...)
	return NewWorker(f.repo, f.entries, p, opts...)
}

func (f *fixture) seedEntry(t *testing.T, userID uint64, id, date, title string) {
	t.Helper()
	require.NoError(t, f.entries.Create(context.Background(), &journal.Entry{
		ID: id, UserID: userID, Title: title, Content: "Notes for " + title, EntryDate: date,
	}))
}

func (f *fixture) seedJob(t *testing.T, userID uint64, ids ...string) *Job {
	t.Helper()
	id, err := common.NewULID()
	require.NoError(t, err)
	j := &Job{ID: id, UserID: userID, EntryIDs: ids, Status: JobPending}
	require.NoError(t, f.repo.CreateJob(context.Background(), j))
	return j
}

func (f *fixture) reload(t *testing.T, id string) *Job {
	t.Helper()
	j, err := f.repo.GetJobByID(context.Background(), id)
	require.NoError(t, err)
	return j
}
