package journal

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("journal entry not found")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, e *Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repo) Save(ctx context.Context, e *Entry) error {
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *Repo) Get(ctx context.Context, userID uint64, id string) (*Entry, error) {
	var e Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns one page of entries ordered by entry date, newest first.
// A non-empty search matches title or content.
func (r *Repo) List(ctx context.Context, userID uint64, search string, page, pageSize int) ([]Entry, int64, error) {
	q := r.db.WithContext(ctx).Model(&Entry{}).Where("user_id = ?", userID)
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("(title LIKE ? OR content LIKE ?)", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Entry
	if err := q.
		Order("entry_date DESC").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListAll returns every live entry of the user without pagination.
func (r *Repo) ListAll(ctx context.Context, userID uint64) ([]Entry, error) {
	var out []Entry
	if err := r.db.WithContext(ctx).
		Select("id", "title", "entry_date").
		Where("user_id = ?", userID).
		Order("entry_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindForReport resolves entry ids owned by the user, ordered by entry date
// ascending. Unknown or foreign ids are silently dropped.
func (r *Repo) FindForReport(ctx context.Context, userID uint64, ids []string) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []Entry
	if err := r.db.WithContext(ctx).
		Select("id", "title", "content", "entry_date").
		Where("user_id = ? AND id IN ?", userID, ids).
		Order("entry_date ASC").
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Entry{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

type dayCount struct {
	EntryDate string
	N         int
}

// ActivitySince counts entries per day from the given date (inclusive).
func (r *Repo) ActivitySince(ctx context.Context, userID uint64, since string) (map[string]int, error) {
	var rows []dayCount
	if err := r.db.WithContext(ctx).Model(&Entry{}).
		Select("entry_date, COUNT(*) AS n").
		Where("user_id = ? AND entry_date >= ?", userID, since).
		Group("entry_date").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.EntryDate] = row.N
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&Entry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ListTrashed(ctx context.Context, userID uint64) ([]Entry, error) {
	var out []Entry
	if err := r.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND deleted_at IS NOT NULL", userID).
		Order("deleted_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Restore(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).Unscoped().Model(&Entry{}).
		Where("user_id = ? AND id = ? AND deleted_at IS NOT NULL", userID, id).
		Update("deleted_at", nil)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Purge permanently deletes a trashed entry and returns it so the caller can
// remove its media.
func (r *Repo) Purge(ctx context.Context, userID uint64, id string) (*Entry, error) {
	var e Entry
	err := r.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND id = ? AND deleted_at IS NOT NULL", userID, id).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Unscoped().Delete(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}
