package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type Kind string

const (
	KindEntry  Kind = "entry"
	KindTask   Kind = "task"
	KindReport Kind = "report"
)

var (
	ErrUnknownKind = errors.New("unknown vault item kind")
	ErrNotFound    = errors.New("vault item not found")
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindEntry, KindTask, KindReport:
		return k, nil
	case "entries", "journal":
		return KindEntry, nil
	case "tasks":
		return KindTask, nil
	case "reports":
		return KindReport, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Item is one soft-deleted record as shown in the vault.
type Item struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Date      string    `json:"date,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}

// Trashable is implemented once per record kind.
type Trashable interface {
	ListTrashed(ctx context.Context, userID uint64) ([]Item, error)
	Restore(ctx context.Context, userID uint64, id string) error
	Purge(ctx context.Context, userID uint64, id string) error
}

// Invalidator is notified after a restore or purge changes a user's data.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uint64)
}

type Index struct {
	Entries []Item `json:"entries"`
	Tasks   []Item `json:"tasks"`
	Reports []Item `json:"reports"`
}

type Service struct {
	kinds   map[Kind]Trashable
	changed Invalidator
}

func NewService(entries, tasks, reports Trashable, changed Invalidator) *Service {
	return &Service{
		kinds: map[Kind]Trashable{
			KindEntry:  entries,
			KindTask:   tasks,
			KindReport: reports,
		},
		changed: changed,
	}
}

// Index lists every trashed record of the user, newest deletion first.
func (s *Service) Index(ctx context.Context, userID uint64) (*Index, error) {
	idx := &Index{}
	g, gctx := errgroup.WithContext(ctx)
	for kind, dst := range map[Kind]*[]Item{KindEntry: &idx.Entries, KindTask: &idx.Tasks, KindReport: &idx.Reports} {
		t := s.kinds[kind]
		g.Go(func() error {
			items, err := t.ListTrashed(gctx, userID)
			if err != nil {
				return fmt.Errorf("list trashed %s: %w", kind, err)
			}
			if items == nil {
				items = []Item{}
			}
			*dst = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *Service) Restore(ctx context.Context, userID uint64, kind, id string) error {
	return s.apply(ctx, userID, kind, func(t Trashable) error { return t.Restore(ctx, userID, id) })
}

// Purge permanently deletes a trashed record.
func (s *Service) Purge(ctx context.Context, userID uint64, kind, id string) error {
	return s.apply(ctx, userID, kind, func(t Trashable) error { return t.Purge(ctx, userID, id) })
}

func (s *Service) apply(ctx context.Context, userID uint64, kind string, fn func(Trashable) error) error {
	k, err := ParseKind(kind)
	if err != nil {
		return err
	}
	if err := fn(s.kinds[k]); err != nil {
		return err
	}
	if s.changed != nil {
		s.changed.Invalidate(ctx, userID)
	}
	return nil
}
