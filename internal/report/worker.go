package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"github.com/suPer8Hu/journal-platform/internal/ai"
	"github.com/suPer8Hu/journal-platform/internal/journal"
	"github.com/suPer8Hu/journal-platform/internal/metrics"
)

const (
	maxAttempts    = 3
	defaultTimeout = 5 * time.Minute
	finalizeWithin = 10 * time.Second

	msgNoEntries = "no entries found for the given IDs"
)

var defaultBackoff = []time.Duration{60 * time.Second, 120 * time.Second, 180 * time.Second}

// EntrySource resolves the journal entries a job refers to, ordered by entry
// date ascending and restricted to the owner.
type EntrySource interface {
	FindForReport(ctx context.Context, userID uint64, ids []string) ([]journal.Entry, error)
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetryable
	outcomePermanent
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeRetryable:
		return "retryable"
	default:
		return "permanent"
	}
}

// attemptResult is the classified result of one provider call.
type attemptResult struct {
	outcome outcome
	text    string
	err     error
}

type Worker struct {
	repo     *Repo
	entries  EntrySource
	provider ai.Provider

	backoff []time.Duration
	timeout time.Duration
	timer   retry.Timer
	now     func() time.Time
}

type WorkerOption func(*Worker)

// WithBackoff overrides the delays waited before attempts 2 and 3.
func WithBackoff(d ...time.Duration) WorkerOption {
	return func(w *Worker) {
		if len(d) > 0 {
			w.backoff = d
		}
	}
}

func WithTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithTimer replaces the timer used to wait between attempts.
func WithTimer(t retry.Timer) WorkerOption {
	return func(w *Worker) { w.timer = t }
}

func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

func NewWorker(repo *Repo, entries EntrySource, provider ai.Provider, opts ...WorkerOption) *Worker {
	w := &Worker{
		repo:     repo,
		entries:  entries,
		provider: provider,
		backoff:  defaultBackoff,
		timeout:  defaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process runs one job to a terminal state. It returns an error only when the
// job could not be driven there, which callers treat as an infrastructure
// failure.
func (w *Worker) Process(ctx context.Context, jobID string) (err error) {
	jobStart := w.now()
	log := logrus.WithField("job_id", jobID)

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("report generation crashed: %v", r)
			log.WithField("panic", r).Error("report worker panic")
			w.fail(ctx, jobID, msg, jobStart)
			err = errors.New(msg)
		}
	}()

	job, err := w.repo.GetJobByID(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		log.Warn("report job not found, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.Terminal() {
		log.WithField("status", job.Status).Info("report job already finished, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.repo.MarkProcessing(ctx, jobID, 1); err != nil {
		if errors.Is(err, ErrJobTransition) {
			return nil
		}
		w.fail(ctx, jobID, "failed to start report generation", jobStart)
		return fmt.Errorf("mark processing: %w", err)
	}

	entries, err := w.entries.FindForReport(ctx, job.UserID, job.EntryIDs)
	if err != nil {
		w.fail(ctx, jobID, "failed to load journal entries", jobStart)
		return fmt.Errorf("load entries: %w", err)
	}
	if len(entries) == 0 {
		w.fail(ctx, jobID, msgNoEntries, jobStart)
		return nil
	}

	period := PeriodOf(entries)
	prompt := BuildPrompt(entries)

	t0 := w.now()
	text, attempts, genErr := w.generate(ctx, jobID, prompt)
	genCost := w.now().Sub(t0)

	if genErr != nil {
		msg := genErr.Error()
		if errors.Is(genErr, context.DeadlineExceeded) {
			msg = fmt.Sprintf("report generation timed out after %d attempt(s)", attempts)
		}
		w.fail(ctx, jobID, msg, jobStart)
		log.WithFields(logrus.Fields{
			"attempts": attempts,
			"gen":      genCost.String(),
			"total":    w.now().Sub(jobStart).String(),
		}).WithError(genErr).Warn("job_timing_failed")
		return nil
	}

	fctx, fcancel := finalizeContext(ctx)
	defer fcancel()
	if err := w.repo.MarkCompleted(fctx, jobID, text, period, w.now()); err != nil {
		if errors.Is(err, ErrJobTransition) {
			log.Warn("report job finished elsewhere, dropping result")
			return nil
		}
		w.fail(ctx, jobID, "failed to store generated report", jobStart)
		return fmt.Errorf("mark completed: %w", err)
	}

	total := w.now().Sub(jobStart)
	metrics.JobFinished(string(JobCompleted), total)
	fields := logrus.Fields{"attempts": attempts, "gen": genCost.String(), "total": total.String()}
	if total > 2*time.Second {
		log.WithFields(fields).Info("job_timing")
	} else {
		log.WithFields(fields).Debug("report job completed")
	}
	return nil
}

// generate calls the provider up to maxAttempts times. Permanent failures
// stop the loop; retryable ones wait backoff[n-1] before attempt n+1.
func (w *Worker) generate(ctx context.Context, jobID string, prompt string) (string, int, error) {
	attempts := 0
	var lastErr error

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			i := int(n) - 1
			if i >= len(w.backoff) {
				i = len(w.backoff) - 1
			}
			if i < 0 {
				i = 0
			}
			return w.backoff[i]
		}),
		retry.OnRetry(func(n uint, err error) {
			logrus.WithFields(logrus.Fields{"job_id": jobID, "attempt": n + 1}).
				WithError(err).Warn("report generation attempt failed")
		}),
	}
	if w.timer != nil {
		opts = append(opts, retry.WithTimer(w.timer))
	}

	text, err := retry.DoWithData(func() (string, error) {
		attempts++
		if attempts > 1 {
			if err := w.repo.MarkProcessing(ctx, jobID, attempts); err != nil {
				return "", retry.Unrecoverable(err)
			}
		}
		res := w.attempt(ctx, prompt)
		metrics.AIAttempt(res.outcome.String())
		switch res.outcome {
		case outcomeSuccess:
			return res.text, nil
		case outcomePermanent:
			lastErr = res.err
			return "", retry.Unrecoverable(res.err)
		default:
			lastErr = res.err
			return "", res.err
		}
	}, opts...)

	if err != nil && errors.Is(err, context.DeadlineExceeded) && lastErr != nil && !errors.Is(lastErr, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", err, lastErr)
	}
	return text, attempts, err
}

func (w *Worker) attempt(ctx context.Context, prompt string) attemptResult {
	text, err := w.provider.Generate(ctx, prompt)
	if err != nil {
		if ai.IsRetryable(err) {
			return attemptResult{outcome: outcomeRetryable, err: err}
		}
		return attemptResult{outcome: outcomePermanent, err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return attemptResult{outcome: outcomeRetryable, err: ai.ErrNoContent}
	}
	return attemptResult{outcome: outcomeSuccess, text: text}
}

// fail records the terminal failure on a context that survives the job
// deadline, so timed out jobs are still finalized.
func (w *Worker) fail(ctx context.Context, jobID, msg string, jobStart time.Time) {
	fctx, cancel := finalizeContext(ctx)
	defer cancel()

	err := w.repo.MarkFailed(fctx, jobID, msg, w.now())
	switch {
	case err == nil:
		metrics.JobFinished(string(JobFailed), w.now().Sub(jobStart))
		logrus.WithField("job_id", jobID).WithField("error", msg).Warn("report job failed")
	case errors.Is(err, ErrJobTransition):
	default:
		logrus.WithField("job_id", jobID).WithError(err).Error("could not mark report job failed")
	}
}

func finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeWithin)
}
