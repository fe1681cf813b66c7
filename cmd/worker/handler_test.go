package main

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/suPer8Hu/kb-chat/internal/logging"
	"github.com/suPer8Hu/kb-chat/internal/store/rabbitmq"
)

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}
func (f *fakeAck) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

type fakeRunner struct {
	runErr   error
	requeued []string
	failed   []string
}

func (f *fakeRunner) Run(context.Context, string) error { return f.runErr }
func (f *fakeRunner) Requeue(_ context.Context, id string) error {
	f.requeued = append(f.requeued, id)
	return nil
}
func (f *fakeRunner) Fail(_ context.Context, id string, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeRetrier struct {
	attempts []int
}

func (f *fakeRetrier) Retry(_ context.Context, _ string, attempt int, _ time.Duration) error {
	f.attempts = append(f.attempts, attempt)
	return nil
}

func delivery(ack amqp.Acknowledger, body string, attempt int) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(body),
		Headers:      amqp.Table{rabbitmq.AttemptHeader: int32(attempt)},
	}
}

func newHandler(r *fakeRunner, rt *fakeRetrier) *jobHandler {
	return &jobHandler{runner: r, retrier: rt, maxAttempts: 3, log: logging.NewNop()}
}

func TestHandleSuccessAcks(t *testing.T) {
	ack := &fakeAck{}
	r, rt := &fakeRunner{}, &fakeRetrier{}
	newHandler(r, rt).handle(context.Background(), 0, delivery(ack, `{"job_id":"j1"}`, 1))

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.Empty(t, rt.attempts)
}

func TestHandleBadMessageDeadLetters(t *testing.T) {
	ack := &fakeAck{}
	r, rt := &fakeRunner{}, &fakeRetrier{}
	newHandler(r, rt).handle(context.Background(), 0, delivery(ack, `not json`, 1))

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
}

func TestHandleFailureSchedulesRetry(t *testing.T) {
	ack := &fakeAck{}
	r, rt := &fakeRunner{runErr: errors.New("backend down")}, &fakeRetrier{}
	newHandler(r, rt).handle(context.Background(), 0, delivery(ack, `{"job_id":"j1"}`, 1))

	assert.True(t, ack.acked)
	assert.Equal(t, []int{2}, rt.attempts)
	assert.Equal(t, []string{"j1"}, r.requeued)
	assert.Empty(t, r.failed)
}

func TestHandleLastAttemptFailsJob(t *testing.T) {
	ack := &fakeAck{}
	r, rt := &fakeRunner{runErr: errors.New("backend down")}, &fakeRetrier{}
	newHandler(r, rt).handle(context.Background(), 0, delivery(ack, `{"job_id":"j1"}`, 3))

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
	assert.Empty(t, rt.attempts)
	assert.Equal(t, []string{"j1"}, r.failed)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryDelay(1))
	assert.Equal(t, 8*time.Second, retryDelay(3))
	assert.Equal(t, time.Minute, retryDelay(10))
}
