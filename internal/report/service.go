package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/metrics"
)

const (
	defaultStaleAfter = 2 * time.Minute
	maxEntryIDs       = 100
	maxIDLength       = 64

	msgStarted   = "Report generation started in background"
	msgStaleJob  = "Job timed out or worker failed."
	msgNotQueued = "failed to queue report generation"
)

var (
	ErrValidation = errors.New("invalid report request")
	ErrSchedule   = errors.New("failed to start report generation")
)

type Service struct {
	repo       *Repo
	scheduler  Scheduler
	staleAfter time.Duration
	defaults   Defaults
	now        func() time.Time
}

type ServiceOption func(*Service)

func WithStaleAfter(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

func WithDefaults(d Defaults) ServiceOption {
	return func(s *Service) { s.defaults = d.withFallback() }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(repo *Repo, scheduler Scheduler, opts ...ServiceOption) *Service {
	s := &Service{
		repo:       repo,
		scheduler:  scheduler,
		staleAfter: defaultStaleAfter,
		defaults:   DefaultPresentation(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SubmitInput struct {
	EntryIDs       []string
	IdempotencyKey string
}

type Submission struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// JobView is the status snapshot returned to pollers.
type JobView struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Report *string   `json:"report,omitempty"`
	Period *Period   `json:"period,omitempty"`
	Error  *string   `json:"error,omitempty"`
}

// StartGeneration stores a pending job and hands it to the scheduler. It
// never waits for the provider.
func (s *Service) StartGeneration(ctx context.Context, userID uint64, in SubmitInput) (*Submission, error) {
	ids, err := validateEntryIDs(in.EntryIDs)
	if err != nil {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job := &Job{
		ID:       id,
		UserID:   userID,
		EntryIDs: ids,
		Status:   JobPending,
	}
	if k := strings.TrimSpace(in.IdempotencyKey); k != "" {
		job.IdempotencyKey = &k
	}

	stored, created, err := s.repo.CreateJobOrGetExisting(ctx, job)
	if err != nil {
		return nil, err
	}
	if !created {
		return &Submission{JobID: stored.ID, Status: stored.Status, Message: msgStarted}, nil
	}
	metrics.JobSubmitted()

	if err := s.scheduler.Schedule(ctx, stored.ID); err != nil {
		logrus.WithField("job_id", stored.ID).WithError(err).Error("schedule report job")
		if merr := s.repo.MarkFailed(context.WithoutCancel(ctx), stored.ID, msgNotQueued, s.now()); merr != nil {
			logrus.WithField("job_id", stored.ID).WithError(merr).Error("mark unscheduled job failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrSchedule, err)
	}

	logrus.WithFields(logrus.Fields{"job_id": stored.ID, "user_id": userID, "entries": len(ids)}).
		Info("report generation job dispatched")
	return &Submission{JobID: stored.ID, Status: JobPending, Message: msgStarted}, nil
}

// JobStatus reads a job for its owner. A job still processing after
// staleAfter is reported as failed; the stored row is left untouched.
func (s *Service) JobStatus(ctx context.Context, userID uint64, jobID string) (*JobView, error) {
	job, err := s.repo.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == JobProcessing && s.now().Sub(job.CreatedAt) > s.staleAfter {
		msg := msgStaleJob
		return &JobView{JobID: job.ID, Status: JobFailed, Error: &msg}, nil
	}

	v := &JobView{JobID: job.ID, Status: job.Status}
	switch job.Status {
	case JobCompleted:
		v.Report = job.Report
		v.Period = job.Period()
	case JobFailed:
		v.Error = job.Error
	}
	return v, nil
}

func validateEntryIDs(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: entry_ids must be a non-empty list", ErrValidation)
	}
	if len(raw) > maxEntryIDs {
		return nil, fmt.Errorf("%w: at most %d entries per report", ErrValidation, maxEntryIDs)
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" || len(id) > maxIDLength {
			return nil, fmt.Errorf("%w: entry_ids must contain valid identifiers", ErrValidation)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
