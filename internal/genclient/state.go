// Package genclient drives report generation from the client side: it
// submits jobs, polls their status, and keeps the outcome in durable
// storage so a restarted client resumes where it left off. Sibling clients
// sharing the same storage are kept in step through a Bus.
package genclient

const (
	KeyJobID   = "report_generation_job_id"
	KeyResults = "report_generation_results"

	// StepDone marks a finished job in State.Step.
	StepDone = 4
)

type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// JobStatus is one status snapshot as returned by the server. A completed
// snapshot is also what gets persisted under KeyResults.
type JobStatus struct {
	JobID  string  `json:"job_id"`
	Status string  `json:"status"`
	Report string  `json:"report,omitempty"`
	Period *Period `json:"period,omitempty"`
	Error  string  `json:"error,omitempty"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// State is what a UI renders. Step runs 0..4; 1..3 are cosmetic progress.
type State struct {
	IsGenerating bool
	Step         int
	Error        string
	Result       *JobStatus
	Minimized    bool
	JobID        string
}

func (s State) clone() State {
	if s.Result != nil {
		r := *s.Result
		if r.Period != nil {
			p := *r.Period
			r.Period = &p
		}
		s.Result = &r
	}
	return s
}

// Idle reports whether nothing is running and nothing is shown.
func (s State) Idle() bool {
	return !s.IsGenerating && s.Step == 0 && s.Result == nil && s.Error == "" && s.JobID == ""
}
