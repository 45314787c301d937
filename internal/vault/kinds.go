package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/suPer8Hu/journal-platform/internal/journal"
	"github.com/suPer8Hu/journal-platform/internal/report"
	"github.com/suPer8Hu/journal-platform/internal/task"
)

func notFound(err error, sentinel error) error {
	if errors.Is(err, sentinel) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

type entryTrash struct {
	repo  *journal.Repo
	media journal.MediaStore
}

// NewEntryTrash adapts journal entries. Purging an entry also removes its
// attachments from media.
func NewEntryTrash(repo *journal.Repo, media journal.MediaStore) Trashable {
	return &entryTrash{repo: repo, media: media}
}

func (t *entryTrash) ListTrashed(ctx context.Context, userID uint64) ([]Item, error) {
	rows, err := t.repo.ListTrashed(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(rows))
	for _, e := range rows {
		out = append(out, Item{ID: e.ID, Kind: KindEntry, Title: e.Title, Date: e.EntryDate, DeletedAt: e.DeletedAt.Time})
	}
	return out, nil
}

func (t *entryTrash) Restore(ctx context.Context, userID uint64, id string) error {
	return notFound(t.repo.Restore(ctx, userID, id), journal.ErrNotFound)
}

func (t *entryTrash) Purge(ctx context.Context, userID uint64, id string) error {
	e, err := t.repo.Purge(ctx, userID, id)
	if err != nil {
		return notFound(err, journal.ErrNotFound)
	}
	if paths := e.MediaPaths(); len(paths) > 0 && t.media != nil {
		if err := t.media.Delete(ctx, paths...); err != nil {
			logrus.WithField("entry_id", id).WithError(err).Warn("purged entry left media behind")
		}
	}
	return nil
}

type taskTrash struct {
	repo *task.Repo
}

func NewTaskTrash(repo *task.Repo) Trashable {
	return &taskTrash{repo: repo}
}

func (t *taskTrash) ListTrashed(ctx context.Context, userID uint64) ([]Item, error) {
	rows, err := t.repo.ListTrashed(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(rows))
	for _, tk := range rows {
		it := Item{ID: tk.ID, Kind: KindTask, Title: tk.Name, DeletedAt: tk.DeletedAt.Time}
		if tk.DueDate != nil {
			it.Date = *tk.DueDate
		}
		out = append(out, it)
	}
	return out, nil
}

func (t *taskTrash) Restore(ctx context.Context, userID uint64, id string) error {
	return notFound(t.repo.Restore(ctx, userID, id), task.ErrNotFound)
}

func (t *taskTrash) Purge(ctx context.Context, userID uint64, id string) error {
	return notFound(t.repo.Purge(ctx, userID, id), task.ErrNotFound)
}

type reportTrash struct {
	repo *report.Repo
}

func NewReportTrash(repo *report.Repo) Trashable {
	return &reportTrash{repo: repo}
}

func (t *reportTrash) ListTrashed(ctx context.Context, userID uint64) ([]Item, error) {
	rows, err := t.repo.ListTrashed(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(rows))
	for _, r := range rows {
		p := r.Period.Data()
		out = append(out, Item{ID: r.ID, Kind: KindReport, Title: r.Title, Date: p.Start + " - " + p.End, DeletedAt: r.DeletedAt.Time})
	}
	return out, nil
}

func (t *reportTrash) Restore(ctx context.Context, userID uint64, id string) error {
	return notFound(t.repo.Restore(ctx, userID, id), report.ErrNotFound)
}

func (t *reportTrash) Purge(ctx context.Context, userID uint64, id string) error {
	return notFound(t.repo.Purge(ctx, userID, id), report.ErrNotFound)
}
