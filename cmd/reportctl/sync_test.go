package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/journal-platform/internal/genclient"
)

// offlineAPI fails every call; saving must work from cached state alone.
type offlineAPI struct{ calls atomic.Int32 }

func (a *offlineAPI) Submit(context.Context, []string, string) (string, error) {
	a.calls.Add(1)
	return "", errors.New("offline")
}

func (a *offlineAPI) Status(context.Context, string) (*genclient.JobStatus, error) {
	a.calls.Add(1)
	return nil, errors.New("offline")
}

type stubSaver struct {
	saved []*genclient.JobStatus
	err   error
}

func (s *stubSaver) SaveReport(_ context.Context, st *genclient.JobStatus) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, st)
	return "rep-1", nil
}

func cacheResult(t *testing.T, store genclient.Storage) {
	t.Helper()
	b, err := json.Marshal(genclient.JobStatus{
		JobID:  "job-1",
		Status: genclient.StatusCompleted,
		Report: "# Weekly Progress Report",
		Period: &genclient.Period{Start: "2026-02-05", End: "2026-02-10"},
	})
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), genclient.KeyResults, string(b)))
	require.NoError(t, store.Set(context.Background(), genclient.KeyJobID, "job-1"))
}

func TestSaveResult_StoresBroadcastsAndClears(t *testing.T) {
	ctx := context.Background()
	store := genclient.NewMemoryStorage()
	cacheResult(t, store)

	bus := genclient.NewMemoryBus()
	api := &offlineAPI{}
	ctrl := genclient.NewController(api, store, genclient.WithBus(bus))
	defer ctrl.Close()

	var refreshed atomic.Int32
	sibling := genclient.NewTabSync(bus, func() { refreshed.Add(1) }, true)
	require.NoError(t, sibling.Start(ctx))
	defer sibling.Close()

	tabs := genclient.NewTabSync(bus, func() {}, false)
	defer tabs.Close()
	saver := &stubSaver{}

	id, err := saveResult(ctx, ctrl, saver, tabs)
	require.NoError(t, err)
	assert.Equal(t, "rep-1", id)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, "# Weekly Progress Report", saver.saved[0].Report)
	assert.Zero(t, api.calls.Load())

	require.Eventually(t, func() bool { return refreshed.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, ok, _ := store.Get(ctx, genclient.KeyResults)
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, genclient.KeyJobID)
	assert.False(t, ok)
	assert.Nil(t, ctrl.State().Result)
}

func TestSaveResult_NothingCached(t *testing.T) {
	ctrl := genclient.NewController(&offlineAPI{}, genclient.NewMemoryStorage())
	defer ctrl.Close()

	_, err := saveResult(context.Background(), ctrl, &stubSaver{}, genclient.NewTabSync(nil, func() {}, false))
	assert.ErrorIs(t, err, errNoResult)
}

func TestSaveResult_KeepsResultWhenServerRejects(t *testing.T) {
	ctx := context.Background()
	store := genclient.NewMemoryStorage()
	cacheResult(t, store)
	ctrl := genclient.NewController(&offlineAPI{}, store)
	defer ctrl.Close()

	_, err := saveResult(ctx, ctrl, &stubSaver{err: errors.New("status 503: down")}, genclient.NewTabSync(nil, func() {}, false))
	require.Error(t, err)

	_, ok, _ := store.Get(ctx, genclient.KeyResults)
	assert.True(t, ok)
}
