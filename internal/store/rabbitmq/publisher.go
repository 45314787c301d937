package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	// amqp channels must not be published on concurrently.
	mu sync.Mutex
}

// JobMessage is the body of every report job delivery.
type JobMessage struct {
	JobID string `json:"job_id"`
}

func NewPublisher(url, queue string) (*Publisher, error) {
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
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// declareTopology sets up the main queue together with its retry and
// dead-letter companions. Publisher and consumer must agree on it.
//
// Rejected deliveries on the main queue land in the DLQ; the retry queue
// holds messages until their TTL expires and then routes them back to main.
func declareTopology(ch *amqp.Channel, queue string) error {
	queues := []struct {
		name string
		args amqp.Table
	}{
		{name: deadLetterQueue(queue)},
		{name: retryQueue(queue), args: deadLetterTo(queue)},
		{name: queue, args: deadLetterTo(deadLetterQueue(queue))},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(
			q.name,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			q.args,
		); err != nil {
			return fmt.Errorf("declare %s: %w", q.name, err)
		}
	}
	return nil
}

func deadLetterTo(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}
}

func retryQueue(queue string) string      { return queue + ".retry" }
func deadLetterQueue(queue string) string { return queue + ".dlq" }

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Schedule publishes the job id on the main queue. It satisfies
// report.Scheduler.
func (p *Publisher) Schedule(ctx context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return publishJob(ctx, p.ch, p.queue, jobID, nil, "")
}

func publishJob(ctx context.Context, ch *amqp.Channel, queue, jobID string, headers amqp.Table, expiration string) error {
	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(cctx,
		"",    // default exchange
		queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Expiration:   expiration,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
