package main

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/kb-chat/internal/logging"
	"github.com/suPer8Hu/kb-chat/internal/store/rabbitmq"
)

type jobRunner interface {
	Run(ctx context.Context, jobID string) error
	Requeue(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, cause error) error
}

type retrier interface {
	Retry(ctx context.Context, jobID string, attempt int, delay time.Duration) error
}

type jobHandler struct {
	runner      jobRunner
	retrier     retrier
	maxAttempts int
	log         *logging.Logger
}

// retryDelay backs off 2s, 4s, 8s ... capped at one minute.
func retryDelay(attempt int) time.Duration {
	d := time.Second << attempt
	if d <= 0 || d > time.Minute {
		return time.Minute
	}
	return d
}

// handle runs one delivery. Transient failures go to the retry queue until
// maxAttempts; after that the job is marked failed and the message is
// rejected into the dead-letter queue.
func (h *jobHandler) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	var m rabbitmq.JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		h.log.Warnw("bad message", "worker", workerID, "err", err)
		_ = d.Nack(false, false)
		return
	}

	attempt := rabbitmq.Attempt(d)
	start := time.Now()
	err := h.runner.Run(ctx, m.JobID)
	if err == nil {
		if err := d.Ack(false); err != nil {
			h.log.Warnw("ack failed", "worker", workerID, "job_id", m.JobID, "err", err)
		}
		return
	}

	log := h.log.With("worker", workerID, "job_id", m.JobID, "attempt", attempt, "cost", time.Since(start).String())
	if attempt < h.maxAttempts {
		if rerr := h.runner.Requeue(ctx, m.JobID); rerr == nil {
			if rerr = h.retrier.Retry(ctx, m.JobID, attempt+1, retryDelay(attempt)); rerr == nil {
				log.Warnw("job failed, retry scheduled", "err", err)
				_ = d.Ack(false)
				return
			}
			log.Errorw("schedule retry failed", "err", rerr)
		} else {
			log.Errorw("requeue failed", "err", rerr)
		}
	}

	log.Errorw("job failed", "err", err)
	if ferr := h.runner.Fail(ctx, m.JobID, err); ferr != nil {
		log.Errorw("mark failed", "err", ferr)
	}
	_ = d.Nack(false, false)
}
