package calendar

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/journal-platform/internal/journal"
	"github.com/suPer8Hu/journal-platform/internal/task"
)

type EventType string

const (
	TypeJournal EventType = "journal"
	TypeTask    EventType = "task"
)

type Event struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Date      string        `json:"date"`
	Type      EventType     `json:"type"`
	Priority  task.Priority `json:"priority,omitempty"`
	Completed bool          `json:"completed,omitempty"`
}

type EntrySource interface {
	ListAll(ctx context.Context, userID uint64) ([]journal.Entry, error)
}

type TaskSource interface {
	ListDated(ctx context.Context, userID uint64) ([]task.Task, error)
}

type Service struct {
	entries EntrySource
	tasks   TaskSource
}

func NewService(entries EntrySource, tasks TaskSource) *Service {
	return &Service{entries: entries, tasks: tasks}
}

// Events merges entries and dated tasks into a map keyed by YYYY-MM-DD.
// Within a day, journal entries come before tasks.
func (s *Service) Events(ctx context.Context, userID uint64) (map[string][]Event, error) {
	var (
		entries []journal.Entry
		tasks   []task.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		entries, err = s.entries.ListAll(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		tasks, err = s.tasks.ListDated(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]Event)
	for _, e := range entries {
		out[e.EntryDate] = append(out[e.EntryDate], Event{
			ID: e.ID, Title: e.Title, Date: e.EntryDate, Type: TypeJournal,
		})
	}
	for _, t := range tasks {
		if t.DueDate == nil || *t.DueDate == "" {
			continue
		}
		d := *t.DueDate
		out[d] = append(out[d], Event{
			ID: t.ID, Title: t.Name, Date: d, Type: TypeTask,
			Priority: t.Priority, Completed: t.Completed,
		})
	}
	for d := range out {
		sort.SliceStable(out[d], func(i, j int) bool {
			return out[d][i].Type == TypeJournal && out[d][j].Type != TypeJournal
		})
	}
	return out, nil
}
