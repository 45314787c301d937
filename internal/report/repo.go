package report

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrJobNotFound    = errors.New("report job not found")
	ErrNotFound       = errors.New("report not found")
	ErrJobTransition  = errors.New("report job cannot make this transition")
	nonTerminalStates = []JobStatus{JobPending, JobProcessing}
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting creates job, or returns the job already stored under
// the same (user, idempotency key) pair. The bool reports whether a new row
// was written.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.CreateJob(ctx, job); err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.CreateJob(ctx, job)
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// GetJob loads a job owned by userID. Jobs of other users are reported as
// missing.
func (r *Repo) GetJob(ctx context.Context, userID uint64, id string) (*Job, error) {
	var j Job
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJobByID is the worker's unscoped lookup.
func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// MarkProcessing moves a non-terminal job to processing and records the
// attempt number.
func (r *Repo) MarkProcessing(ctx context.Context, id string, attempt int) error {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, nonTerminalStates).
		Updates(map[string]any{
			"status":   JobProcessing,
			"attempts": attempt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobTransition
	}
	return nil
}

// MarkCompleted writes the result fields and the terminal status in one
// statement.
func (r *Repo) MarkCompleted(ctx context.Context, id, text string, p Period, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobProcessing).
		Updates(map[string]any{
			"status":       JobCompleted,
			"report":       text,
			"period_start": p.Start,
			"period_end":   p.End,
			"error":        nil,
			"completed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobTransition
	}
	return nil
}

func (r *Repo) MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, nonTerminalStates).
		Updates(map[string]any{
			"status":       JobFailed,
			"error":        errMsg,
			"report":       nil,
			"period_start": nil,
			"period_end":   nil,
			"completed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobTransition
	}
	return nil
}

// Report CRUD
func (r *Repo) Create(ctx context.Context, rep *Report) error {
	return r.db.WithContext(ctx).Create(rep).Error
}

func (r *Repo) Save(ctx context.Context, rep *Report) error {
	return r.db.WithContext(ctx).Save(rep).Error
}

func (r *Repo) Get(ctx context.Context, userID uint64, id string) (*Report, error) {
	var rep Report
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *Repo) List(ctx context.Context, userID uint64) ([]Report, error) {
	var out []Report
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&Report{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ListTrashed(ctx context.Context, userID uint64) ([]Report, error) {
	var out []Report
	if err := r.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND deleted_at IS NOT NULL", userID).
		Order("deleted_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Restore(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).Unscoped().Model(&Report{}).
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

func (r *Repo) Purge(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND id = ? AND deleted_at IS NOT NULL", userID, id).
		Delete(&Report{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
