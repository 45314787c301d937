package report

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrDispatcherClosed = errors.New("report dispatcher is closed")

// Scheduler hands a stored job to whatever runs the worker.
type Scheduler interface {
	Schedule(ctx context.Context, jobID string) error
}

type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Dispatcher runs jobs on an in-process goroutine pool. It is used when no
// message broker is configured.
//
// The queue is unbounded: workers sit in retry backoff for minutes during a
// provider outage, and Schedule must still accept new jobs without waiting.
type Dispatcher struct {
	proc        Processor
	concurrency int

	mu      sync.Mutex
	cond    *sync.Cond
	pending []string
	closed  bool
	wg      sync.WaitGroup
}

func NewDispatcher(proc Processor, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 2
	}
	d := &Dispatcher{
		proc:        proc,
		concurrency: concurrency,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Schedule queues the job and returns immediately.
func (d *Dispatcher) Schedule(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.pending = append(d.pending, jobID)
	d.cond.Signal()
	return nil
}

// Pending reports how many jobs are waiting for a free worker.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// next blocks until a job is queued. It returns false once the dispatcher
// is closed and the queue is drained.
func (d *Dispatcher) next() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.pending) == 0 && !d.closed {
		d.cond.Wait()
	}
	if len(d.pending) == 0 {
		return "", false
	}
	jobID := d.pending[0]
	d.pending[0] = ""
	d.pending = d.pending[1:]
	return jobID, true
}

// Start launches the worker goroutines. Jobs run on ctx; Close drains the
// queue and waits for them.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(d.concurrency)
	for i := 0; i < d.concurrency; i++ {
		go func(workerID int) {
			defer d.wg.Done()
			for {
				jobID, ok := d.next()
				if !ok {
					return
				}
				if err := d.proc.Process(ctx, jobID); err != nil {
					logrus.WithFields(logrus.Fields{"worker": workerID, "job_id": jobID}).
						WithError(err).Error("report job failed")
				}
			}
		}(i)
	}
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	d.wg.Wait()
}

// Run starts the pool and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Start(ctx)
	<-ctx.Done()
	d.Close()
	return nil
}
