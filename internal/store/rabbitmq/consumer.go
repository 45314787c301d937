package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	retryHeader       = "x-redeliveries"
	defaultRedeliver  = 3
	defaultRetryDelay = 10 * time.Second
)

// HandleFunc processes one job. A returned error means the job could not be
// handled at all (for example the database was unreachable), not that the
// job itself failed.
type HandleFunc func(ctx context.Context, jobID string) error

type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	concurrency int
	redeliver   int
	retryDelay  time.Duration

	// republish sends a job to the retry queue.
	republish func(ctx context.Context, jobID string, headers amqp.Table, expiration string) error
	pubMu     sync.Mutex
}

func NewConsumer(url, queue string, concurrency int) (*Consumer, error) {
	if concurrency <= 0 {
		concurrency = 2
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	//  strict concurrency control
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	c := &Consumer{
		conn:        conn,
		ch:          ch,
		queue:       queue,
		concurrency: concurrency,
		redeliver:   defaultRedeliver,
		retryDelay:  defaultRetryDelay,
	}
	c.republish = c.publishRetry
	return c, nil
}

func (c *Consumer) publishRetry(ctx context.Context, jobID string, headers amqp.Table, expiration string) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	return publishJob(ctx, c.ch, retryQueue(c.queue), jobID, headers, expiration)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run consumes deliveries until ctx is cancelled, fanning them out to a
// fixed pool of goroutines.
func (c *Consumer) Run(ctx context.Context, handle HandleFunc) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"queue": c.queue, "concurrency": c.concurrency}).Info("worker started")

	// worker pool
	jobs := make(chan amqp.Delivery, c.concurrency*2)

	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.handle(ctx, workerID, d, handle)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logrus.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				close(jobs)
				wg.Wait()
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

func (o outcome) String() string {
	switch o {
	case outcomeAck:
		return "ack"
	case outcomeRetry:
		return "retry"
	default:
		return "dead-letter"
	}
}

// decide picks what happens to a delivery after the handler ran. Failed
// deliveries go back through the retry queue until they have been
// redelivered c.redeliver times.
func (c *Consumer) decide(handleErr error, headers amqp.Table) outcome {
	if handleErr == nil {
		return outcomeAck
	}
	if redeliveries(headers) >= c.redeliver {
		return outcomeDeadLetter
	}
	return outcomeRetry
}

func (c *Consumer) handle(ctx context.Context, workerID int, d amqp.Delivery, handle HandleFunc) {
	log := logrus.WithField("worker", workerID)

	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		log.WithError(err).Warn("bad message")
		_ = d.Nack(false, false)
		return
	}
	log = log.WithField("job_id", m.JobID)

	start := time.Now()
	err := handle(ctx, m.JobID)
	n := redeliveries(d.Headers)

	switch c.decide(err, d.Headers) {
	case outcomeAck:
		if err := d.Ack(false); err != nil {
			log.WithError(err).Warn("ack failed")
		}

	case outcomeDeadLetter:
		log.WithError(err).WithFields(logrus.Fields{"cost": time.Since(start), "redeliveries": n}).
			Error("job could not be handled, moving to dead letter queue")
		_ = d.Nack(false, false)

	case outcomeRetry:
		log = log.WithError(err).WithFields(logrus.Fields{"cost": time.Since(start), "redeliveries": n})
		headers := amqp.Table{retryHeader: int32(n + 1)}
		expiration := strconv.FormatInt(c.retryDelay.Milliseconds(), 10)
		if perr := c.republish(context.WithoutCancel(ctx), m.JobID, headers, expiration); perr != nil {
			log.WithField("publish_error", perr).Error("retry publish failed, moving to dead letter queue")
			_ = d.Nack(false, false)
			return
		}
		log.Warn("job handling failed, scheduled redelivery")
		_ = d.Ack(false)
	}
}

func redeliveries(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
