package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "kb_jobs.retry", RetryQueue("kb_jobs"))
	assert.Equal(t, "kb_jobs.dlq", DeadLetterQueue("kb_jobs"))
}

func TestAttempt(t *testing.T) {
	assert.Equal(t, 1, Attempt(amqp.Delivery{}))
	assert.Equal(t, 3, Attempt(amqp.Delivery{Headers: amqp.Table{AttemptHeader: int32(3)}}))
	assert.Equal(t, 2, Attempt(amqp.Delivery{Headers: amqp.Table{AttemptHeader: int64(2)}}))
}
