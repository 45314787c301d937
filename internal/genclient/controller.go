package genclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultStepInterval = 4 * time.Second

	maxAnimatedStep = 3

	msgGenerationFailed = "Report generation failed."
	msgSubmitFailed     = "The report generator is not responding."
)

// Ticker is the part of time.Ticker the controller uses.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) Chan() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()                  { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }

type Option func(*Controller)

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollEvery = d
		}
	}
}

func WithStepInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.stepEvery = d
		}
	}
}

// WithTickers replaces the ticker factory, mostly for tests.
func WithTickers(f func(time.Duration) Ticker) Option {
	return func(c *Controller) { c.newTicker = f }
}

func WithBus(b Bus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithOrigin names this client on the bus. Defaults to a random uuid.
func WithOrigin(origin string) Option {
	return func(c *Controller) { c.origin = origin }
}

// Controller owns the generation state of one client. All methods are safe
// for concurrent use.
type Controller struct {
	api       API
	storage   Storage
	bus       Bus
	origin    string
	pollEvery time.Duration
	stepEvery time.Duration
	newTicker func(time.Duration) Ticker

	root   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	observers map[int]func(State)
	nextObs   int
	stopPoll  context.CancelFunc
	stopStep  context.CancelFunc
	unsubBus  func()
	closed    bool
}

func NewController(api API, storage Storage, opts ...Option) *Controller {
	root, cancel := context.WithCancel(context.Background())
	c := &Controller{
		api:       api,
		storage:   storage,
		origin:    uuid.NewString(),
		pollEvery: DefaultPollInterval,
		stepEvery: DefaultStepInterval,
		newTicker: newTimeTicker,
		root:      root,
		cancel:    cancel,
		observers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn for every state change and returns a function that
// removes it.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Mount attaches the controller to the bus and performs the first sync.
func (c *Controller) Mount(ctx context.Context) error {
	if c.bus != nil {
		msgs, unsub, err := c.bus.Subscribe(c.root)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.unsubBus = unsub
		c.mu.Unlock()
		go c.listen(msgs)
	}
	return c.Sync(ctx)
}

func (c *Controller) listen(msgs <-chan Message) {
	for m := range msgs {
		if m.Type != MessageJobUpdated || m.Origin == c.origin {
			continue
		}
		if err := c.Sync(c.root); err != nil && c.root.Err() == nil {
			logrus.WithError(err).Warn("report generation sync failed")
		}
	}
}

// Close stops timers and detaches from the bus. Persisted state is kept.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimersLocked()
	unsub := c.unsubBus
	c.unsubBus = nil
	c.mu.Unlock()

	c.cancel()
	if unsub != nil {
		unsub()
	}
}

// VisibilityChanged resyncs when the client becomes visible again.
func (c *Controller) VisibilityChanged(ctx context.Context, visible bool) error {
	if !visible {
		return nil
	}
	return c.Sync(ctx)
}

func (c *Controller) SetMinimized(minimized bool) {
	c.update(func(s *State) { s.Minimized = minimized })
}

// Sync reconciles in-memory state with storage. A cached result wins; no
// job id means idle; a job id without result resumes polling, starting
// with an immediate status check.
func (c *Controller) Sync(ctx context.Context) error {
	results, hasResults, err := c.storage.Get(ctx, KeyResults)
	if err != nil {
		return err
	}
	if hasResults {
		var r JobStatus
		if err := json.Unmarshal([]byte(results), &r); err != nil {
			logrus.WithError(err).Warn("discarding unreadable cached report")
			_ = c.storage.Delete(ctx, KeyResults)
		} else {
			c.update(func(s *State) {
				c.stopTimersLocked()
				s.Result = &r
				s.Step = StepDone
				s.IsGenerating = false
				if r.JobID != "" {
					s.JobID = r.JobID
				}
			})
			return nil
		}
	}

	jobID, hasJob, err := c.storage.Get(ctx, KeyJobID)
	if err != nil {
		return err
	}
	if !hasJob || jobID == "" {
		c.update(func(s *State) {
			if s.IsGenerating || s.Step != 0 || s.Result != nil || s.JobID != "" {
				c.resetLocked(s)
			}
		})
		return nil
	}

	start := false
	c.update(func(s *State) {
		s.JobID = jobID
		if c.stopPoll != nil || c.closed {
			return
		}
		if s.Step == 0 {
			s.IsGenerating = true
			s.Step = 1
			s.Minimized = true
		}
		pctx, cancel := context.WithCancel(c.root)
		c.stopPoll = cancel
		go c.pollLoop(pctx)
		start = true
	})
	if start {
		c.Poll(ctx)
	}
	return nil
}

func (c *Controller) pollLoop(ctx context.Context) {
	t := c.newTicker(c.pollEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			c.Poll(ctx)
		}
	}
}

func (c *Controller) stepLoop(ctx context.Context) {
	t := c.newTicker(c.stepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			c.update(func(s *State) {
				if s.IsGenerating && s.Step < maxAnimatedStep {
					s.Step++
				}
			})
		}
	}
}

// Poll checks the current job once and applies the outcome. Transport
// errors are logged and left for the next tick.
func (c *Controller) Poll(ctx context.Context) {
	jobID := c.State().JobID
	if jobID == "" {
		return
	}

	st, err := c.api.Status(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		if c.currentJob(jobID) {
			c.update(c.resetLocked)
			c.forget(ctx)
		}
		return
	}
	if err != nil {
		if ctx.Err() == nil {
			logrus.WithError(err).WithField("job_id", jobID).Warn("report status poll failed")
		}
		return
	}
	if !c.currentJob(jobID) {
		return
	}

	switch st.Status {
	case StatusCompleted:
		if st.JobID == "" {
			st.JobID = jobID
		}
		if b, err := json.Marshal(st); err == nil {
			if err := c.storage.Set(ctx, KeyResults, string(b)); err != nil {
				logrus.WithError(err).Warn("persisting report result failed")
			}
		}
		c.update(func(s *State) {
			c.stopTimersLocked()
			s.Result = st
			s.Step = StepDone
			s.IsGenerating = false
		})
		c.announce(ctx, jobID)

	case StatusFailed:
		msg := st.Error
		if msg == "" {
			msg = msgGenerationFailed
		}
		c.update(func(s *State) {
			c.stopTimersLocked()
			s.Error = msg
			s.Step = 0
			s.IsGenerating = false
			s.JobID = ""
		})
		c.forget(ctx)

	default:
		c.update(func(s *State) {
			if !s.IsGenerating && s.Step != StepDone {
				s.IsGenerating = true
				if s.Step == 0 {
					s.Step = 1
				}
			}
		})
	}
}

// Generate starts a new job for the given entries. Any previous job or
// result is dropped first. A submission failure is returned and also
// recorded in State.Error.
func (c *Controller) Generate(ctx context.Context, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	if err := c.storage.Delete(ctx, KeyJobID, KeyResults); err != nil {
		return err
	}

	c.update(func(s *State) {
		c.stopTimersLocked()
		*s = State{IsGenerating: true, Step: 1, Minimized: true}
		if c.closed {
			return
		}
		sctx, cancel := context.WithCancel(c.root)
		c.stopStep = cancel
		go c.stepLoop(sctx)
	})

	jobID, err := c.api.Submit(ctx, entryIDs, uuid.NewString())
	if err != nil {
		msg := msgSubmitFailed
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		c.update(func(s *State) {
			c.stopTimersLocked()
			s.IsGenerating = false
			s.Error = msg
		})
		return err
	}

	c.update(func(s *State) { s.JobID = jobID })
	if err := c.storage.Set(ctx, KeyJobID, jobID); err != nil {
		return err
	}
	c.announce(ctx, jobID)
	return c.Sync(ctx)
}

// Clear drops transient and persisted state.
func (c *Controller) Clear(ctx context.Context) error {
	c.update(c.resetLocked)
	return c.forget(ctx)
}

func (c *Controller) forget(ctx context.Context) error {
	if err := c.storage.Delete(ctx, KeyJobID, KeyResults); err != nil {
		logrus.WithError(err).Warn("clearing persisted report state failed")
		return err
	}
	c.announce(ctx, "")
	return nil
}

func (c *Controller) announce(ctx context.Context, jobID string) {
	if c.bus == nil {
		return
	}
	m := Message{Type: MessageJobUpdated, Origin: c.origin, JobID: jobID}
	if err := c.bus.Publish(ctx, m); err != nil {
		logrus.WithError(err).Warn("publishing report sync message failed")
	}
}

func (c *Controller) currentJob(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.JobID == jobID
}

// resetLocked must run inside update.
func (c *Controller) resetLocked(s *State) {
	c.stopTimersLocked()
	minimized := s.Minimized
	*s = State{Minimized: minimized}
}

func (c *Controller) stopTimersLocked() {
	if c.stopPoll != nil {
		c.stopPoll()
		c.stopPoll = nil
	}
	if c.stopStep != nil {
		c.stopStep()
		c.stopStep = nil
	}
}

// update mutates state under the lock and notifies observers if it changed.
func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	before := c.state.clone()
	fn(&c.state)
	after := c.state.clone()
	obs := make([]func(State), 0, len(c.observers))
	for _, o := range c.observers {
		obs = append(obs, o)
	}
	c.mu.Unlock()

	if equalState(before, after) {
		return
	}
	for _, o := range obs {
		o(after)
	}
}

func equalState(a, b State) bool {
	if a.IsGenerating != b.IsGenerating || a.Step != b.Step || a.Error != b.Error ||
		a.Minimized != b.Minimized || a.JobID != b.JobID {
		return false
	}
	if (a.Result == nil) != (b.Result == nil) {
		return false
	}
	if a.Result == nil {
		return true
	}
	ra, rb := *a.Result, *b.Result
	if (ra.Period == nil) != (rb.Period == nil) || (ra.Period != nil && *ra.Period != *rb.Period) {
		return false
	}
	ra.Period, rb.Period = nil, nil
	return ra == rb
}
