package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/journal-platform/internal/testutil"
)

func TestStore_JSONRoundTripAndDelete(t *testing.T) {
	s := NewFromClient(testutil.Redis(t))
	ctx := context.Background()

	type dash struct {
		Count int `json:"count"`
	}
	ok, err := s.GetJSON(ctx, "user_dashboard_1", &dash{})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetJSON(ctx, "user_dashboard_1", dash{Count: 3}, time.Minute))
	var got dash
	ok, err = s.GetJSON(ctx, "user_dashboard_1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, got.Count)

	require.NoError(t, s.Delete(ctx, "user_dashboard_1", "missing"))
	ok, err = s.GetJSON(ctx, "user_dashboard_1", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.GetJSON(ctx, "", &got)
	assert.Error(t, err)
}

func TestClientStorage_Namespaced(t *testing.T) {
	s := NewFromClient(testutil.Redis(t))
	ctx := context.Background()

	a := s.ClientStorage("user-1")
	b := s.ClientStorage("user-2")
	require.NoError(t, a.Set(ctx, "report_generation_job_id", "job-1"))

	v, ok, err := a.Get(ctx, "report_generation_job_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "job-1", v)

	_, ok, err = b.Get(ctx, "report_generation_job_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Delete(ctx, "report_generation_job_id", "report_generation_results"))
	_, ok, err = a.Get(ctx, "report_generation_job_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBus_PublishSubscribe(t *testing.T) {
	s := NewFromClient(testutil.Redis(t))
	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()

	bus := s.Bus("journal_sync")
	msgs, cancel, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bus.Publish(ctx, []byte(`{"type":"data-changed"}`)))
	select {
	case m := <-msgs:
		assert.JSONEq(t, `{"type":"data-changed"}`, string(m))
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	cancel()
	cancel()
	for range msgs {
	}
}
