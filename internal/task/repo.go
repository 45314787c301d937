package task

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("task not found")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, t *Task) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) Save(ctx context.Context, t *Task) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *Repo) Get(ctx context.Context, userID uint64, id string) (*Task, error) {
	var t Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns the user's tasks, newest first.
func (r *Repo) List(ctx context.Context, userID uint64) ([]Task, error) {
	var out []Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListOpen returns tasks that are not completed, active work first.
func (r *Repo) ListOpen(ctx context.Context, userID uint64, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND completed = ?", userID, false).
		Order("status ASC").
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListDated returns the tasks that carry a due date.
func (r *Repo) ListDated(ctx context.Context, userID uint64) ([]Task, error) {
	var out []Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND due_date IS NOT NULL AND due_date <> ''", userID).
		Order("due_date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTrashed returns soft-deleted tasks, most recently deleted first.
func (r *Repo) ListTrashed(ctx context.Context, userID uint64) ([]Task, error) {
	var out []Task
	if err := r.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND deleted_at IS NOT NULL", userID).
		Order("deleted_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Restore(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).Unscoped().Model(&Task{}).
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

// Purge permanently removes a task that is already in the trash.
func (r *Repo) Purge(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND id = ? AND deleted_at IS NOT NULL", userID, id).
		Delete(&Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
