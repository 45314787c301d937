package report

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/journal-platform/internal/ai"
)

func overloaded() error {
	return &ai.Error{Provider: "gemini", Kind: ai.KindHTTP, StatusCode: http.StatusServiceUnavailable, Message: "The model is overloaded"}
}

func TestProcess_CompletesWithPeriodFromEntryDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	f.seedEntry(t, 1, "e2", "2026-02-10", "Demo")
	job := f.seedJob(t, 1, "e2", "e1")

	p := &scriptedProvider{steps: []step{{text: "  # Weekly Progress Report\n"}}}
	require.NoError(t, f.worker(p).Process(ctx, job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, JobCompleted, got.Status)
	require.NotNil(t, got.Report)
	assert.Equal(t, "# Weekly Progress Report", *got.Report)
	assert.Equal(t, &Period{Start: "2026-02-05", End: "2026-02-10"}, got.Period())
	assert.Nil(t, got.Error)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, 1, got.Attempts)
	assert.Empty(t, f.timer.Waits())

	require.Len(t, p.prompts, 1)
	prompt := p.prompts[0]
	assert.Contains(t, prompt, "## Executive Summary")
	assert.Contains(t, prompt, "Date: 2026-02-05\nTitle: Kickoff\nContent: Notes for Kickoff\n---\nDate: 2026-02-10")
	assert.Less(t, strings.Index(prompt, "Kickoff"), strings.Index(prompt, "Demo"))
}

func TestProcess_RetriesTransientErrorsWithBackoff(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	job := f.seedJob(t, 1, "e1")

	p := &scriptedProvider{steps: []step{
		{err: overloaded()},
		{err: &ai.Error{Provider: "gemini", Kind: ai.KindHTTP, StatusCode: http.StatusTooManyRequests, Message: "quota"}},
		{text: "third time lucky"},
	}}
	require.NoError(t, f.worker(p).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Equal(t, "third time lucky", *got.Report)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, 3, p.Calls())
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second}, f.timer.Waits())
}

func TestProcess_PermanentErrorFailsWithoutRetry(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	job := f.seedJob(t, 1, "e1")

	p := &scriptedProvider{steps: []step{
		{err: &ai.Error{Provider: "gemini", Kind: ai.KindHTTP, StatusCode: http.StatusBadRequest, Message: "Invalid prompt"}},
		{text: "never reached"},
	}}
	require.NoError(t, f.worker(p).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, JobFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "Invalid prompt")
	assert.Nil(t, got.Report)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, 1, p.Calls())
	assert.Empty(t, f.timer.Waits())
}

func TestProcess_MissingCredentialIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	job := f.seedJob(t, 1, "e1")

	gemini := ai.NewGeminiProvider("http://127.0.0.1:1", "", "gemini-flash-latest", time.Second)
	w := NewWorker(f.repo, f.entries, gemini, WithTimer(f.timer))
	require.NoError(t, w.Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, JobFailed, got.Status)
	assert.Contains(t, *got.Error, "API key missing")
	assert.Empty(t, f.timer.Waits())
}

func TestProcess_NoContentFollowsRetryPolicy(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	job := f.seedJob(t, 1, "e1")

	p := &scriptedProvider{steps: []step{{text: "   "}}}
	require.NoError(t, f.worker(p).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, JobFailed, got.Status)
	assert.Contains(t, *got.Error, "no content returned")
	assert.Equal(t, 3, p.Calls())
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second}, f.timer.Waits())
}

func TestProcess_ExhaustedRetriesKeepLastError(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	job := f.seedJob(t, 1, "e1")

	p := &scriptedProvider{steps: []step{{err: overloaded()}}}
	require.NoError(t, f.worker(p).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, JobFailed, got.Status)
	assert.Equal(t, "gemini: status 503: The model is overloaded", *got.Error)
	assert.Equal(t, 3, got.Attempts)
}

func TestProcess_NoEntriesFails(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, 2, "foreign", "2026-02-05", "Not mine")
	job := f.seedJob(t, 1, "missing", "foreign")

	p := &scriptedProvider{steps: []step{{text: "should not be called"}}}
	require.NoError(t, f.worker(p).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, JobFailed, got.Status)
	assert.Contains(t, *got.Error, "no entries")
	assert.Zero(t, p.Calls())
}

func TestProcess_PartialFieldsNeverVisibleMidFlight(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	job := f.seedJob(t, 1, "e1")

	var mid *Job
	p := &scriptedProvider{steps: []step{{text: "done"}}}
	p.onCall = func() { mid = f.reload(t, job.ID) }
	require.NoError(t, f.worker(p).Process(context.Background(), job.ID))

	require.NotNil(t, mid)
	assert.Equal(t, JobProcessing, mid.Status)
	assert.Nil(t, mid.Report)
	assert.Nil(t, mid.Error)
	assert.Nil(t, mid.Period())
	assert.Nil(t, mid.CompletedAt)
}

func TestProcess_SkipsMissingAndTerminalJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := &scriptedProvider{steps: []step{{text: "x"}}}
	w := f.worker(p)

	assert.NoError(t, w.Process(ctx, "does-not-exist"))

	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	job := f.seedJob(t, 1, "e1")
	require.NoError(t, w.Process(ctx, job.ID))
	first := f.reload(t, job.ID)

	require.NoError(t, w.Process(ctx, job.ID))
	again := f.reload(t, job.ID)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, first.CompletedAt.Unix(), again.CompletedAt.Unix())
}

func TestProcess_PanicStillMarksJobFailed(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	job := f.seedJob(t, 1, "e1")

	p := &scriptedProvider{steps: []step{{panic: true}}}
	err := f.worker(p).Process(context.Background(), job.ID)
	require.Error(t, err)

	got := f.reload(t, job.ID)
	assert.Equal(t, JobFailed, got.Status)
	assert.Contains(t, *got.Error, "provider exploded")
}

func TestProcess_OverallTimeoutMarksJobFailed(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, 1, "e1", "2026-02-05", "Kickoff")
	job := f.seedJob(t, 1, "e1")

	p := &scriptedProvider{steps: []step{{block: true}}}
	require.NoError(t, f.worker(p, WithTimeout(50*time.Millisecond)).Process(context.Background(), job.ID))

	got := f.reload(t, job.ID)
	assert.Equal(t, JobFailed, got.Status)
	assert.Contains(t, *got.Error, "timed out")
}
