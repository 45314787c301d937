package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "report_jobs.retry", retryQueue("report_jobs"))
	assert.Equal(t, "report_jobs.dlq", deadLetterQueue("report_jobs"))
}

func TestRedeliveries(t *testing.T) {
	assert.Equal(t, 0, redeliveries(nil))
	assert.Equal(t, 0, redeliveries(amqp.Table{"other": int32(4)}))
	assert.Equal(t, 2, redeliveries(amqp.Table{retryHeader: int32(2)}))
	assert.Equal(t, 3, redeliveries(amqp.Table{retryHeader: int64(3)}))
}

// fakeAck records what the consumer did with a delivery.
type fakeAck struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

type retryCall struct {
	jobID      string
	headers    amqp.Table
	expiration string
}

type testConsumer struct {
	*Consumer
	retries    []retryCall
	publishErr error
}

func newTestConsumer() *testConsumer {
	tc := &testConsumer{Consumer: &Consumer{
		queue:      "report_jobs",
		redeliver:  defaultRedeliver,
		retryDelay: 10 * time.Second,
	}}
	tc.republish = func(_ context.Context, jobID string, headers amqp.Table, expiration string) error {
		tc.retries = append(tc.retries, retryCall{jobID: jobID, headers: headers, expiration: expiration})
		return tc.publishErr
	}
	return tc
}

func delivery(ack *fakeAck, body string, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, Body: []byte(body), Headers: headers}
}

var errDBDown = errors.New("database unreachable")

func failing(context.Context, string) error { return errDBDown }

func TestDecide(t *testing.T) {
	c := newTestConsumer()
	cases := []struct {
		name    string
		err     error
		headers amqp.Table
		want    outcome
	}{
		{"handled", nil, nil, outcomeAck},
		{"handled after retries", nil, amqp.Table{retryHeader: int32(3)}, outcomeAck},
		{"first failure", errDBDown, nil, outcomeRetry},
		{"second redelivery fails", errDBDown, amqp.Table{retryHeader: int32(2)}, outcomeRetry},
		{"redeliveries exhausted", errDBDown, amqp.Table{retryHeader: int32(3)}, outcomeDeadLetter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.decide(tc.err, tc.headers), tc.want.String())
		})
	}
}

func TestHandle_AcksHandledJob(t *testing.T) {
	c := newTestConsumer()
	ack := &fakeAck{}
	var got string
	c.handle(context.Background(), 0, delivery(ack, `{"job_id":"job-1"}`, nil), func(_ context.Context, id string) error {
		got = id
		return nil
	})

	assert.Equal(t, "job-1", got)
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Empty(t, c.retries)
}

func TestHandle_FailureIsRepublishedWithCounter(t *testing.T) {
	c := newTestConsumer()
	ack := &fakeAck{}
	c.handle(context.Background(), 0, delivery(ack, `{"job_id":"job-1"}`, amqp.Table{retryHeader: int32(1)}), failing)

	require.Len(t, c.retries, 1)
	assert.Equal(t, "job-1", c.retries[0].jobID)
	assert.Equal(t, int32(2), c.retries[0].headers[retryHeader])
	assert.Equal(t, "10000", c.retries[0].expiration)
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
}

func TestHandle_DeadLettersAfterThreeRedeliveries(t *testing.T) {
	c := newTestConsumer()
	ack := &fakeAck{}
	c.handle(context.Background(), 0, delivery(ack, `{"job_id":"job-1"}`, amqp.Table{retryHeader: int32(3)}), failing)

	assert.Empty(t, c.retries)
	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestHandle_DeadLettersWhenRetryPublishFails(t *testing.T) {
	c := newTestConsumer()
	c.publishErr = errors.New("channel closed")
	ack := &fakeAck{}
	c.handle(context.Background(), 0, delivery(ack, `{"job_id":"job-1"}`, nil), failing)

	assert.Len(t, c.retries, 1)
	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestHandle_MalformedMessagesAreDeadLettered(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"job_id":""}`} {
		c := newTestConsumer()
		ack := &fakeAck{}
		called := false
		c.handle(context.Background(), 0, delivery(ack, body, nil), func(context.Context, string) error {
			called = true
			return nil
		})

		assert.False(t, called, body)
		assert.Equal(t, 1, ack.nacks, body)
		assert.False(t, ack.requeue, body)
		assert.Empty(t, c.retries, body)
	}
}
