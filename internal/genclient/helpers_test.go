package genclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu          sync.Mutex
	submitID    string
	submitErr   error
	submitted   [][]string
	statuses    []*JobStatus
	statusErr   error
	statusCalls int
}

func (f *fakeAPI) Submit(_ context.Context, entryIDs []string, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, entryIDs)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitID, nil
}

// Status replays the scripted statuses; the last one repeats.
func (f *fakeAPI) Status(_ context.Context, jobID string) (*JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if len(f.statuses) == 0 {
		return &JobStatus{JobID: jobID, Status: StatusPending}, nil
	}
	st := *f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return &st, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeAPI) script(statuses ...*JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = statuses
}

func completed(jobID string) *JobStatus {
	return &JobStatus{
		JobID:  jobID,
		Status: StatusCompleted,
		Report: "# Weekly Progress Report",
		Period: &Period{Start: "2026-02-05", End: "2026-02-10"},
	}
}

func completedWith(jobID, report string) *JobStatus {
	st := completed(jobID)
	st.Report = report
	return st
}

func processing(jobID string) *JobStatus {
	return &JobStatus{JobID: jobID, Status: StatusProcessing}
}

type manualTicker struct {
	c chan time.Time
}

func (m *manualTicker) Chan() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()                  {}

// manualClock hands out tickers that only fire when the test says so.
type manualClock struct {
	mu      sync.Mutex
	tickers map[time.Duration]*manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{tickers: map[time.Duration]*manualTicker{}}
}

func (m *manualClock) newTicker(d time.Duration) Ticker {
	t := &manualTicker{c: make(chan time.Time)}
	m.mu.Lock()
	m.tickers[d] = t
	m.mu.Unlock()
	return t
}

// tick fires the most recent ticker created for d and waits until its loop
// has picked the tick up.
func (m *manualClock) tick(t *testing.T, d time.Duration) {
	t.Helper()
	var tk *manualTicker
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		tk = m.tickers[d]
		return tk != nil
	}, time.Second, 5*time.Millisecond)

	select {
	case tk.c <- time.Now():
	case <-time.After(time.Second):
		t.Fatalf("ticker %s not consumed", d)
	}
}

// quietTimers keeps the background loops from firing during a test.
func quietTimers() []Option {
	return []Option{WithPollInterval(time.Hour), WithStepInterval(time.Hour)}
}
