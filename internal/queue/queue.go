// Package queue is the in-process FIFO hand-off between the heartbeat poller
// and the dispatcher.
package queue

import (
	"context"
	"time"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1024

// Queue is a bounded single-producer/single-consumer FIFO of RunRecords.
type Queue struct {
	ch chan RunRecord
}

func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan RunRecord, capacity)}
}

// Push enqueues rec, blocking while the queue is full until ctx is done.
func (q *Queue) Push(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		return ErrInvalidRecord
	}
	select {
	case q.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop waits up to timeout for the next record. It returns ok=false when the
// timeout elapses with nothing queued, and ctx.Err() once ctx is done.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (RunRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return RunRecord{}, false, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rec := <-q.ch:
		return rec, true, nil
	case <-timer.C:
		return RunRecord{}, false, nil
	case <-ctx.Done():
		return RunRecord{}, false, ctx.Err()
	}
}

// Len returns the number of records waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
