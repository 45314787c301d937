package genclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_PollsUntilCompleted(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{submitID: "job-1"}
	api.script(processing("job-1"), completed("job-1"))
	store := NewMemoryStorage()

	c := NewController(api, store, quietTimers()...)
	defer c.Close()

	var seen []State
	c.Subscribe(func(s State) { seen = append(seen, s) })

	require.NoError(t, c.Generate(ctx, []string{"e1", "e2"}))
	st := c.State()
	assert.True(t, st.IsGenerating)
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, "job-1", st.JobID)
	assert.True(t, st.Minimized)
	v, ok, _ := store.Get(ctx, KeyJobID)
	assert.True(t, ok)
	assert.Equal(t, "job-1", v)
	assert.Equal(t, [][]string{{"e1", "e2"}}, api.submitted)

	c.Poll(ctx)
	st = c.State()
	assert.False(t, st.IsGenerating)
	assert.Equal(t, StepDone, st.Step)
	require.NotNil(t, st.Result)
	assert.Equal(t, "# Weekly Progress Report", st.Result.Report)
	assert.Equal(t, &Period{Start: "2026-02-05", End: "2026-02-10"}, st.Result.Period)
	_, ok, _ = store.Get(ctx, KeyResults)
	assert.True(t, ok)
	assert.Equal(t, 2, api.calls())

	require.NotEmpty(t, seen)
	assert.Equal(t, StepDone, seen[len(seen)-1].Step)
}

func TestGenerate_IgnoresEmptySelection(t *testing.T) {
	api := &fakeAPI{submitID: "job-1"}
	c := NewController(api, NewMemoryStorage(), quietTimers()...)
	defer c.Close()

	require.NoError(t, c.Generate(context.Background(), nil))
	assert.Empty(t, api.submitted)
	assert.True(t, c.State().Idle())
}

func TestReloadResumesPolling(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	api := &fakeAPI{submitID: "job-1"}
	api.script(processing("job-1"))

	first := NewController(api, store, quietTimers()...)
	require.NoError(t, first.Generate(ctx, []string{"e1"}))
	require.True(t, first.State().IsGenerating)
	first.Close()

	_, hasResult, _ := store.Get(ctx, KeyResults)
	require.False(t, hasResult)

	api.script(completed("job-1"))
	reloaded := NewController(api, store, quietTimers()...)
	defer reloaded.Close()

	st := reloaded.State()
	assert.True(t, st.Idle())

	require.NoError(t, reloaded.Mount(ctx))
	st = reloaded.State()
	assert.Equal(t, "job-1", st.JobID)
	assert.False(t, st.IsGenerating)
	assert.Equal(t, StepDone, st.Step)
	require.NotNil(t, st.Result)
	assert.Equal(t, completed("job-1"), st.Result)
}

func TestMount_CachedResultSkipsNetwork(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	require.NoError(t, store.Set(ctx, KeyJobID, "job-9"))
	require.NoError(t, store.Set(ctx, KeyResults, `{"job_id":"job-9","status":"completed","report":"done","period":{"start":"2026-02-02","end":"2026-02-06"}}`))

	api := &fakeAPI{}
	c := NewController(api, store, quietTimers()...)
	defer c.Close()

	require.NoError(t, c.Mount(ctx))
	st := c.State()
	require.NotNil(t, st.Result)
	assert.Equal(t, "done", st.Result.Report)
	assert.Equal(t, StepDone, st.Step)
	assert.False(t, st.IsGenerating)
	assert.Zero(t, api.calls())
}

func TestPoll_FailureClearsPersistedState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	api := &fakeAPI{submitID: "job-1"}
	api.script(&JobStatus{JobID: "job-1", Status: StatusFailed, Error: "no entries found for the given IDs"})

	c := NewController(api, store, quietTimers()...)
	defer c.Close()

	require.NoError(t, c.Generate(ctx, []string{"e1"}))
	st := c.State()
	assert.False(t, st.IsGenerating)
	assert.Zero(t, st.Step)
	assert.Equal(t, "no entries found for the given IDs", st.Error)
	assert.Nil(t, st.Result)
	assert.Empty(t, st.JobID)

	_, ok, _ := store.Get(ctx, KeyJobID)
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, KeyResults)
	assert.False(t, ok)

	// a later resync keeps the error visible and does not revive the job
	calls := api.calls()
	require.NoError(t, c.Sync(ctx))
	st = c.State()
	assert.Empty(t, st.JobID)
	assert.False(t, st.IsGenerating)
	assert.Equal(t, "no entries found for the given IDs", st.Error)
	assert.Equal(t, calls, api.calls())
}

func TestPoll_FailureWithoutMessageUsesDefault(t *testing.T) {
	api := &fakeAPI{submitID: "job-1"}
	api.script(&JobStatus{JobID: "job-1", Status: StatusFailed})
	c := NewController(api, NewMemoryStorage(), quietTimers()...)
	defer c.Close()

	require.NoError(t, c.Generate(context.Background(), []string{"e1"}))
	assert.Equal(t, msgGenerationFailed, c.State().Error)
}

func TestPoll_NotFoundResetsEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	require.NoError(t, store.Set(ctx, KeyJobID, "gone"))

	api := &fakeAPI{statusErr: ErrNotFound}
	c := NewController(api, store, quietTimers()...)
	defer c.Close()

	require.NoError(t, c.Mount(ctx))
	assert.True(t, c.State().Idle())
	_, ok, _ := store.Get(ctx, KeyJobID)
	assert.False(t, ok)
}

func TestPoll_TransportErrorKeepsWaiting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	require.NoError(t, store.Set(ctx, KeyJobID, "job-1"))

	api := &fakeAPI{statusErr: errors.New("connection refused")}
	c := NewController(api, store, quietTimers()...)
	defer c.Close()

	require.NoError(t, c.Mount(ctx))
	st := c.State()
	assert.True(t, st.IsGenerating)
	assert.Equal(t, "job-1", st.JobID)
	_, ok, _ := store.Get(ctx, KeyJobID)
	assert.True(t, ok)
}

func TestGenerate_SubmitFailure(t *testing.T) {
	ctx := context.Background()

	api := &fakeAPI{submitErr: &APIError{StatusCode: 422, Message: "entry_ids is required"}}
	c := NewController(api, NewMemoryStorage(), quietTimers()...)
	defer c.Close()

	err := c.Generate(ctx, []string{"e1"})
	require.Error(t, err)
	st := c.State()
	assert.False(t, st.IsGenerating)
	assert.Equal(t, "entry_ids is required", st.Error)
	assert.Empty(t, st.JobID)

	api2 := &fakeAPI{submitErr: errors.New("dial tcp: refused")}
	c2 := NewController(api2, NewMemoryStorage(), quietTimers()...)
	defer c2.Close()
	require.Error(t, c2.Generate(ctx, []string{"e1"}))
	assert.Equal(t, msgSubmitFailed, c2.State().Error)
}

func TestGenerate_DropsPreviousResult(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	require.NoError(t, store.Set(ctx, KeyResults, `{"job_id":"old","status":"completed","report":"old"}`))

	api := &fakeAPI{submitID: "job-2"}
	api.script(processing("job-2"))
	c := NewController(api, store, quietTimers()...)
	defer c.Close()
	require.NoError(t, c.Mount(ctx))
	require.NotNil(t, c.State().Result)

	require.NoError(t, c.Generate(ctx, []string{"e1"}))
	st := c.State()
	assert.Nil(t, st.Result)
	assert.Equal(t, "job-2", st.JobID)
	_, ok, _ := store.Get(ctx, KeyResults)
	assert.False(t, ok)
}

func TestStepAnimationIsCapped(t *testing.T) {
	clock := newManualClock()
	api := &fakeAPI{submitID: "job-1"}
	api.script(processing("job-1"))
	c := NewController(api, NewMemoryStorage(), WithTickers(clock.newTicker))
	defer c.Close()

	require.NoError(t, c.Generate(context.Background(), []string{"e1"}))
	for i := 0; i < 5; i++ {
		clock.tick(t, DefaultStepInterval)
	}
	assert.Equal(t, maxAnimatedStep, c.State().Step)
	assert.True(t, c.State().IsGenerating)

	api.script(completed("job-1"))
	clock.tick(t, DefaultPollInterval)
	require.Eventually(t, func() bool { return c.State().Step == StepDone }, time.Second, 5*time.Millisecond)
}

func TestClearAndMinimize(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	api := &fakeAPI{submitID: "job-1"}
	api.script(completed("job-1"))
	c := NewController(api, store, quietTimers()...)
	defer c.Close()

	require.NoError(t, c.Generate(ctx, []string{"e1"}))
	c.SetMinimized(false)
	assert.False(t, c.State().Minimized)

	require.NoError(t, c.Clear(ctx))
	assert.True(t, c.State().Idle())
	_, ok, _ := store.Get(ctx, KeyResults)
	assert.False(t, ok)
}

func TestVisibilityChangeResyncs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	api := &fakeAPI{}
	c := NewController(api, store, quietTimers()...)
	defer c.Close()
	require.NoError(t, c.Mount(ctx))

	require.NoError(t, store.Set(ctx, KeyResults, `{"job_id":"job-3","status":"completed","report":"r"}`))
	require.NoError(t, c.VisibilityChanged(ctx, false))
	assert.Nil(t, c.State().Result)

	require.NoError(t, c.VisibilityChanged(ctx, true))
	require.NotNil(t, c.State().Result)
	assert.Equal(t, "job-3", c.State().JobID)
}

func TestSiblingClientsStayInStep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	bus := NewMemoryBus()
	api := &fakeAPI{submitID: "job-1"}
	api.script(completed("job-1"))

	a := NewController(api, store, append(quietTimers(), WithBus(bus))...)
	defer a.Close()
	b := NewController(api, store, append(quietTimers(), WithBus(bus))...)
	defer b.Close()
	require.NoError(t, a.Mount(ctx))
	require.NoError(t, b.Mount(ctx))

	require.NoError(t, a.Generate(ctx, []string{"e1"}))
	require.NotNil(t, a.State().Result)
	require.Eventually(t, func() bool { return b.State().Result != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "job-1", b.State().JobID)

	require.NoError(t, a.Clear(ctx))
	require.Eventually(t, func() bool { return b.State().Idle() }, time.Second, 5*time.Millisecond)
}
