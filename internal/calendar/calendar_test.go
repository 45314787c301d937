package calendar

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/journal-platform/internal/journal"
	"github.com/suPer8Hu/journal-platform/internal/task"
)

type stubEntries []journal.Entry

func (s stubEntries) ListAll(context.Context, uint64) ([]journal.Entry, error) { return s, nil }

type stubTasks struct {
	tasks []task.Task
	err   error
}

func (s stubTasks) ListDated(context.Context, uint64) ([]task.Task, error) { return s.tasks, s.err }

func ptr(s string) *string { return &s }

func TestEvents_GroupsByDate(t *testing.T) {
	entries := stubEntries{
		{ID: "e1", Title: "Sprint kickoff", EntryDate: "2026-02-02"},
		{ID: "e2", Title: "Retro", EntryDate: "2026-02-06"},
	}
	tasks := stubTasks{tasks: []task.Task{
		{ID: "t1", Name: "Ship v2", DueDate: ptr("2026-02-02"), Priority: task.PriorityHigh},
		{ID: "t2", Name: "No date"},
	}}

	got, err := NewService(entries, tasks).Events(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 2)

	day := got["2026-02-02"]
	require.Len(t, day, 2)
	assert.Equal(t, TypeJournal, day[0].Type)
	assert.Equal(t, TypeTask, day[1].Type)
	assert.Equal(t, "Ship v2", day[1].Title)
	assert.Equal(t, task.PriorityHigh, day[1].Priority)

	assert.Len(t, got["2026-02-06"], 1)
}

func TestEvents_PropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewService(stubEntries{}, stubTasks{err: boom}).Events(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}
